package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrEmptyPrompt is returned by OpenStream when the request carries no
// prompt text.
var ErrEmptyPrompt = errors.New("prompt is required")

// StreamClient opens incremental text streams against a generation backend.
type StreamClient interface {
	// OpenStream starts one generation call. The returned stream must be
	// closed by the caller.
	OpenStream(ctx context.Context, req *StreamRequest) (*Stream, error)

	// Shutdown releases backend resources
	Shutdown(ctx context.Context) error
}

// StreamRequest is a single generation call
type StreamRequest struct {
	Prompt       string
	SystemPrompt string
	ModelID      string
	Temperature  float64
	MaxTokens    int
}

func (r *StreamRequest) validate() error {
	if r == nil || strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ProduceFunc pushes chunks through emit until the generation ends. emit
// returns false once the stream has been closed; producers should stop then.
type ProduceFunc func(ctx context.Context, emit func(chunk string) bool) error

// Stream is one in-flight generation. Chunks is closed when the backend
// reaches its terminating sentinel, fails, or the stream is closed.
type Stream struct {
	chunks chan string
	done   chan struct{}
	cancel context.CancelCauseFunc

	closeOnce sync.Once
	err       error
}

// NewStream runs produce on its own goroutine and exposes its output as a
// Stream. Cancelling ctx or calling Close stops the producer.
func NewStream(ctx context.Context, produce ProduceFunc) *Stream {
	ctx, cancel := context.WithCancelCause(ctx)
	s := &Stream{
		chunks: make(chan string, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	emit := func(chunk string) bool {
		select {
		case s.chunks <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.done)
		err := produce(ctx, emit)
		switch {
		case errors.Is(context.Cause(ctx), errClosed):
			err = nil
		case err == nil && ctx.Err() != nil:
			err = ctx.Err()
		}
		s.err = err
		close(s.chunks)
	}()

	return s
}

var errClosed = errors.New("stream closed")

// Chunks returns the channel of incremental text deltas.
func (s *Stream) Chunks() <-chan string {
	return s.chunks
}

// Err blocks until the producer has exited and returns its error. A stream
// stopped through Close reports nil.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Close stops the producer and waits for it to exit. Safe to call more than
// once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.cancel(errClosed)
	})
	<-s.done
}

// Collect opens a stream and reads it to the end, returning the joined text.
func Collect(ctx context.Context, client StreamClient, req *StreamRequest) (string, error) {
	stream, err := client.OpenStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for chunk := range stream.Chunks() {
		sb.WriteString(chunk)
	}
	return sb.String(), stream.Err()
}
