package taskgen

import (
	"bytes"
	"math/rand/v2"
	"strings"

	"github.com/spboyer/staffeval/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// minParagraphChars drops headings-as-paragraphs and one-word lines.
const minParagraphChars = 40

// Excerpt is an illustrative passage drawn from a knowledge snippet.
type Excerpt struct {
	Title string
	Text  string
}

// paragraphs extracts the plain text of every markdown paragraph in src.
func paragraphs(src string) []string {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		p, ok := n.(*ast.Paragraph)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := p.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(bytes.TrimSpace(seg.Value(source)))
			buf.WriteByte(' ')
		}
		if s := strings.TrimSpace(buf.String()); len(s) >= minParagraphChars {
			out = append(out, s)
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

// PickExcerpt chooses one paragraph across all snippets using rng.
// ok is false when the knowledge has no usable paragraph.
func PickExcerpt(rng *rand.Rand, knowledge []models.KnowledgeSnippet) (Excerpt, bool) {
	var pool []Excerpt
	for _, k := range knowledge {
		for _, p := range paragraphs(k.Content) {
			pool = append(pool, Excerpt{Title: k.Title, Text: p})
		}
	}
	if len(pool) == 0 {
		return Excerpt{}, false
	}
	return pool[rng.IntN(len(pool))], true
}
