package verdict

import "regexp"

var (
	// JSON inside a markdown code block
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// any JSON object, greedy
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailing commas before } or ]
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls the JSON object out of a model reply. Code fences and
// trailing commas are tolerated. It returns "" when there is no object.
func ExtractJSON(content string) string {
	raw := ""
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
