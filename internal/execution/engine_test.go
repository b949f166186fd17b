package execution

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCollect(t *testing.T) {
	client := NewMockClient(MockResponse{Chunks: []string{"a", "b", "c"}})

	text, err := Collect(context.Background(), client, &StreamRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "abc", text)
}

func TestCollect_MidStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	client := NewMockClient(MockResponse{Chunks: []string{"par", "tial"}, Err: boom})

	text, err := Collect(context.Background(), client, &StreamRequest{Prompt: "x"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", text)
}

func TestStream_CloseStopsStalledProducer(t *testing.T) {
	client := NewMockClient(MockResponse{Chunks: []string{"hello"}, Stall: true})

	stream, err := client.OpenStream(context.Background(), &StreamRequest{Prompt: "x"})
	require.NoError(t, err)

	assert.Equal(t, "hello", <-stream.Chunks())

	select {
	case _, ok := <-stream.Chunks():
		require.True(t, ok, "stream should still be open")
		t.Fatal("unexpected chunk")
	case <-time.After(20 * time.Millisecond):
	}

	stream.Close()
	stream.Close()
	assert.NoError(t, stream.Err(), "closing is not an error")
}

func TestStream_ParentCancelIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := NewMockClient(MockResponse{Stall: true})

	stream, err := client.OpenStream(ctx, &StreamRequest{Prompt: "x"})
	require.NoError(t, err)
	defer stream.Close()

	cancel()
	for range stream.Chunks() {
	}
	assert.ErrorIs(t, stream.Err(), context.Canceled)
}

func TestStream_CloseWhileProducerBlockedOnFullBuffer(t *testing.T) {
	chunks := make([]string, 500)
	for i := range chunks {
		chunks[i] = "x"
	}
	client := NewMockClient(MockResponse{Chunks: chunks})

	stream, err := client.OpenStream(context.Background(), &StreamRequest{Prompt: "x"})
	require.NoError(t, err)
	<-stream.Chunks()

	done := make(chan struct{})
	go func() {
		stream.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestMockClient_Script(t *testing.T) {
	client := NewMockClient(
		MockResponse{OpenErr: errors.New("503")},
		MockResponse{Chunks: []string{"ok."}},
	)

	_, err := client.OpenStream(context.Background(), &StreamRequest{Prompt: "one"})
	require.Error(t, err)

	for range 2 {
		text, err := Collect(context.Background(), client, &StreamRequest{Prompt: "two", ModelID: "m"})
		require.NoError(t, err)
		assert.Equal(t, "ok.", text, "last response repeats")
	}

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "one", reqs[0].Prompt)
	assert.Equal(t, "m", reqs[2].ModelID)
	assert.Equal(t, 3, client.Calls())
}

func TestMockClient_EchoAndFunc(t *testing.T) {
	text, err := Collect(context.Background(), NewMockClient(), &StreamRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response for: hi.", text)

	fn := NewMockClientFunc(func(req *StreamRequest) MockResponse {
		return MockResponse{Chunks: []string{req.ModelID}}
	})
	text, err = Collect(context.Background(), fn, &StreamRequest{Prompt: "hi", ModelID: "judge"})
	require.NoError(t, err)
	assert.Equal(t, "judge", text)
}

func TestTextChunks(t *testing.T) {
	assert.Equal(t, []string{"abc", "def", "g"}, TextChunks("abcdefg", 3))
	assert.Nil(t, TextChunks("", 3))
	assert.Equal(t, []string{"a", "b"}, TextChunks("ab", 0))

	t.Run("multibyte", func(t *testing.T) {
		text := "日本語のテキスト, ok"
		chunks := TextChunks(text, 2)
		assert.Equal(t, []string{"日本", "語の", "テキ", "スト", ", ", "ok"}, chunks)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c), "chunk %q", c)
		}
		assert.Equal(t, text, strings.Join(chunks, ""))
	})
}
