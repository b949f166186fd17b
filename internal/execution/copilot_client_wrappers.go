package execution

import (
	"context"

	copilot "github.com/github/copilot-sdk/go"
)

//go:generate go tool mockgen -source copilot_client_wrappers.go -destination mock_copilot_test.go -package execution

// generationSession is one streaming Copilot session that answers a single
// candidate prompt.
type generationSession interface {
	// Subscribe registers handler for every session event and returns the
	// function that removes it.
	Subscribe(handler copilot.SessionEventHandler) func()

	// Answer sends prompt and blocks until the model finishes its turn.
	// Deltas and session errors arrive through subscribed handlers.
	Answer(ctx context.Context, prompt string) error

	// ID names the session in errors.
	ID() string
}

// generationBackend owns the Copilot CLI process candidate sessions run on.
type generationBackend interface {
	// Start launches the CLI. It is called once per CopilotClient.
	Start(ctx context.Context) error

	// OpenSession creates a streaming session bound to modelID.
	OpenSession(ctx context.Context, modelID string) (generationSession, error)

	// Stop shuts the CLI down.
	Stop() error
}

func newCopilotBackend(clientOptions *copilot.ClientOptions) generationBackend {
	return &copilotBackend{inner: copilot.NewClient(clientOptions)}
}

type copilotBackend struct {
	inner *copilot.Client
}

func (b *copilotBackend) Start(ctx context.Context) error {
	return b.inner.Start(ctx)
}

func (b *copilotBackend) OpenSession(ctx context.Context, modelID string) (generationSession, error) {
	sess, err := b.inner.CreateSession(ctx, sessionConfig(modelID))
	if err != nil {
		return nil, err
	}
	return &copilotSession{inner: sess}, nil
}

func (b *copilotBackend) Stop() error {
	return b.inner.Stop()
}

// sessionConfig always streams so deltas reach the idle timer as they arrive.
func sessionConfig(modelID string) *copilot.SessionConfig {
	return &copilot.SessionConfig{Model: modelID, Streaming: true}
}

// copilotSession adapts [copilot.Session]; its SessionID is a field, not a method.
type copilotSession struct {
	inner *copilot.Session
}

func (s *copilotSession) Subscribe(handler copilot.SessionEventHandler) func() {
	return s.inner.On(handler)
}

func (s *copilotSession) Answer(ctx context.Context, prompt string) error {
	_, err := s.inner.SendAndWait(ctx, copilot.MessageOptions{Prompt: prompt})
	return err
}

func (s *copilotSession) ID() string {
	return s.inner.SessionID
}
