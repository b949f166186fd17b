package adaptive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spboyer/staffeval/internal/execution"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testConfig = models.GenerationConfig{MaxTokens: 1000, Temperature: 0.7, IdleTimeoutMs: 30}

func newEngine(client execution.StreamClient) *Engine {
	return New(client, WithRetryDelay(time.Millisecond))
}

func request() *Request {
	return &Request{Prompt: "Describe the role.", ModelID: "candidate", Config: testConfig}
}

func sentence(n int) string {
	return strings.Repeat("a", n-1) + "."
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name    string
		base    models.GenerationConfig
		attempt int
		want    models.GenerationConfig
	}{
		{"base", testConfig, 0, testConfig},
		{"shrink and cool", testConfig, 1, models.GenerationConfig{MaxTokens: 750, Temperature: 0.5, IdleTimeoutMs: 30}},
		{"temperature floor", models.GenerationConfig{MaxTokens: 100, Temperature: 0.2}, 1, models.GenerationConfig{MaxTokens: 75, Temperature: 0.1}},
		{"enlarge", testConfig, 2, models.GenerationConfig{MaxTokens: 1500, Temperature: 0.7, IdleTimeoutMs: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Adjust(tt.base, tt.attempt)
			assert.Equal(t, tt.want.MaxTokens, got.MaxTokens)
			assert.InDelta(t, tt.want.Temperature, got.Temperature, 1e-9)
			assert.Equal(t, tt.want.IdleTimeoutMs, got.IdleTimeoutMs)
		})
	}
}

func TestLooksComplete(t *testing.T) {
	long := strings.Repeat("word ", 30)
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"short text", "no punctuation", true},
		{"period", long + "end.", true},
		{"trailing whitespace", long + "end!  \n", true},
		{"closing paren", long + "(note)", true},
		{"guillemet", long + "«цитата»", true},
		{"cjk full stop", long + "終わり。", true},
		{"code fence", long + "```", true},
		{"cut mid word", long + "and then the", false},
		{"comma", long + "first,", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksComplete(tt.text))
		})
	}
}

func TestGenerate_CompleteFirstAttempt(t *testing.T) {
	client := execution.NewMockClient(execution.MockResponse{Chunks: execution.TextChunks(sentence(150), 10)})

	res := newEngine(client).Generate(context.Background(), request(), Hooks{})

	assert.Equal(t, models.GenerationCompleted, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 15, res.TokenCount)
	assert.Len(t, res.Text, 150)
	assert.Empty(t, res.Error)
}

func TestGenerate_TruncatedByHeuristic(t *testing.T) {
	client := execution.NewMockClient(execution.MockResponse{Chunks: []string{strings.Repeat("b", 150)}})

	res := newEngine(client).Generate(context.Background(), request(), Hooks{})

	assert.Equal(t, models.GenerationTruncated, res.Status)
	assert.Equal(t, 1, res.Attempts, "non-empty text is returned without retry")
}

func TestGenerate_IdleTimeoutWithLongTextReturnsImmediately(t *testing.T) {
	client := execution.NewMockClient(execution.MockResponse{
		Chunks: execution.TextChunks(strings.Repeat("c", 250), 50),
		Stall:  true,
	})

	res := newEngine(client).Generate(context.Background(), request(), Hooks{})

	assert.Equal(t, models.GenerationTruncated, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, client.Calls())
	assert.Len(t, res.Text, 250)
}

func TestGenerate_ShortAttemptsExhaustToFailed(t *testing.T) {
	client := execution.NewMockClient(execution.MockResponse{
		Chunks: []string{strings.Repeat("d", 80)},
		Stall:  true,
	})

	var retries []int
	res := newEngine(client).Generate(context.Background(), request(), Hooks{
		OnRetry: func(attempt int, cfg models.GenerationConfig, reason string) {
			retries = append(retries, attempt)
			assert.Contains(t, reason, "idle timeout")
		},
	})

	assert.Equal(t, models.GenerationFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, []int{1, 2}, retries)
	assert.Contains(t, res.Error, ErrIdleTimeout.Error())
	assert.Empty(t, res.Text)
}

func TestGenerate_RetriesUseAdjustedConfig(t *testing.T) {
	client := execution.NewMockClient(
		execution.MockResponse{OpenErr: errors.New("503 service unavailable")},
		execution.MockResponse{},
		execution.MockResponse{Chunks: []string{"Done."}},
	)

	res := newEngine(client).Generate(context.Background(), request(), Hooks{})

	require.Equal(t, models.GenerationCompleted, res.Status)
	assert.Equal(t, "Done.", res.Text)
	assert.Equal(t, 3, res.Attempts)

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, 1000, reqs[0].MaxTokens)
	assert.Equal(t, 750, reqs[1].MaxTokens)
	assert.InDelta(t, 0.5, reqs[1].Temperature, 1e-9)
	assert.Equal(t, 1500, reqs[2].MaxTokens)
}

func TestGenerate_ExhaustedKeepsLongestText(t *testing.T) {
	boom := errors.New("connection reset")
	client := execution.NewMockClient(
		execution.MockResponse{Chunks: []string{strings.Repeat("e", 180)}, Err: boom},
		execution.MockResponse{Chunks: []string{strings.Repeat("f", 120)}, Err: boom},
		execution.MockResponse{Err: boom},
	)

	res := newEngine(client).Generate(context.Background(), request(), Hooks{})

	assert.Equal(t, models.GenerationTruncated, res.Status)
	assert.Equal(t, strings.Repeat("e", 180), res.Text, "longest, not last")
	assert.Equal(t, 3, res.Attempts)
}

func TestGenerate_ProgressHook(t *testing.T) {
	chunks := make([]string, 60)
	for i := range chunks {
		chunks[i] = "g"
	}
	chunks[len(chunks)-1] = "."
	client := execution.NewMockClient(execution.MockResponse{Chunks: chunks})

	var seen []int
	newEngine(client).Generate(context.Background(), request(), Hooks{
		OnProgress: func(attempt, tokens int) { seen = append(seen, tokens) },
	})

	assert.Equal(t, []int{25, 50}, seen)
}

func TestGenerate_CancelledContextNeverPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newEngine(execution.NewMockClient(execution.MockResponse{Stall: true})).Generate(ctx, request(), Hooks{})

	assert.Equal(t, models.GenerationFailed, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestOnce(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := execution.NewMockClient(execution.MockResponse{Chunks: []string{"Merged answer."}})
		res := newEngine(client).Once(context.Background(), request(), Hooks{})
		assert.Equal(t, models.GenerationCompleted, res.Status)
		assert.Equal(t, "Merged answer.", res.Text)
		assert.Equal(t, 1, client.Calls())
	})

	t.Run("transport failure is not retried", func(t *testing.T) {
		client := execution.NewMockClient(execution.MockResponse{OpenErr: errors.New("502")})
		res := newEngine(client).Once(context.Background(), request(), Hooks{})
		assert.Equal(t, models.GenerationFailed, res.Status)
		assert.Contains(t, res.Error, "502")
		assert.Equal(t, 1, client.Calls())
	})
}
