package execution

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// MockResponse scripts one OpenStream call of a MockClient.
type MockResponse struct {
	// Chunks are emitted in order.
	Chunks []string
	// Delay is slept before each chunk.
	Delay time.Duration
	// Stall keeps the stream open after the last chunk until it is closed,
	// simulating a backend that stops sending without a sentinel.
	Stall bool
	// Err is returned after the chunks have been emitted.
	Err error
	// OpenErr fails OpenStream itself.
	OpenErr error
}

// MockClient is a scripted StreamClient for tests and offline runs.
type MockClient struct {
	mu        sync.Mutex
	script    []MockResponse
	respond   func(req *StreamRequest) MockResponse
	requests  []StreamRequest
	shutdowns int
}

// NewMockClient returns a client that serves script in order. Once the
// script runs out the last response is repeated; an empty script echoes the
// prompt.
func NewMockClient(script ...MockResponse) *MockClient {
	return &MockClient{script: script}
}

// NewMockClientFunc returns a client that asks respond for every call.
func NewMockClientFunc(respond func(req *StreamRequest) MockResponse) *MockClient {
	return &MockClient{respond: respond}
}

// OpenStream implements StreamClient
func (m *MockClient) OpenStream(ctx context.Context, req *StreamRequest) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	resp := m.next(req)
	if resp.OpenErr != nil {
		return nil, resp.OpenErr
	}

	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		for _, chunk := range resp.Chunks {
			if resp.Delay > 0 {
				select {
				case <-time.After(resp.Delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if !emit(chunk) {
				return ctx.Err()
			}
		}
		if resp.Stall {
			<-ctx.Done()
			return ctx.Err()
		}
		return resp.Err
	}), nil
}

func (m *MockClient) next(req *StreamRequest) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.requests)
	m.requests = append(m.requests, *req)

	switch {
	case m.respond != nil:
		return m.respond(req)
	case len(m.script) == 0:
		return MockResponse{Chunks: []string{fmt.Sprintf("Mock response for: %s.", req.Prompt)}}
	case idx < len(m.script):
		return m.script[idx]
	default:
		return m.script[len(m.script)-1]
	}
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []StreamRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StreamRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of OpenStream calls.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Shutdown implements StreamClient
func (m *MockClient) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdowns++
	return nil
}

// TextChunks splits text into chunks of at most size runes, so multibyte
// characters are never cut.
func TextChunks(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var out []string
	for text != "" {
		end, n := 0, 0
		for end < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[end:])
			end += w
			n++
		}
		out = append(out, text[:end])
		text = text[end:]
	}
	return out
}
