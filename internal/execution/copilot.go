package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/spboyer/staffeval/internal/utils"
)

const sessionFailedUnknown = "session failed with unknown error"

// CopilotClient streams generations through GitHub Copilot SDK sessions.
// Copilot sessions do not expose sampling controls, so Temperature and
// MaxTokens are not forwarded.
type CopilotClient struct {
	defaultModelID string
	backend        generationBackend

	startOnce sync.Once
	startErr  error
}

// CopilotClientOptions customizes NewCopilotClient.
type CopilotClientOptions struct {
	// NewBackend replaces the Copilot CLI backend, mostly for tests.
	NewBackend func(clientOptions *copilot.ClientOptions) generationBackend
}

// NewCopilotClient creates a Copilot backed StreamClient.
//   - defaultModelID - used when a request has no model ID. Can be blank, which means the copilot
//     CLI will choose its own fallback model.
func NewCopilotClient(defaultModelID string, options *CopilotClientOptions) *CopilotClient {
	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	factory := newCopilotBackend
	if options != nil && options.NewBackend != nil {
		factory = options.NewBackend
	}

	return &CopilotClient{
		defaultModelID: defaultModelID,
		backend:        factory(copilotOptions),
	}
}

// OpenStream implements StreamClient
func (c *CopilotClient) OpenStream(ctx context.Context, req *StreamRequest) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	c.startOnce.Do(func() {
		// copilot autostart misbehaves when triggered from separate goroutines
		c.startErr = c.backend.Start(ctx)
	})
	if c.startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", c.startErr)
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = c.defaultModelID
	}

	session, err := c.backend.OpenSession(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}

	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		var (
			mu         sync.Mutex
			sessionErr string
		)

		unsubscribe := session.Subscribe(func(event copilot.SessionEvent) {
			switch event.Type {
			case copilot.AssistantMessageDelta:
				if event.Data.DeltaContent != nil && *event.Data.DeltaContent != "" {
					emit(*event.Data.DeltaContent)
				}
			case copilot.SessionError:
				mu.Lock()
				defer mu.Unlock()
				if event.Data.Message == nil || *event.Data.Message == "" {
					sessionErr = sessionFailedUnknown
				} else {
					sessionErr = *event.Data.Message
				}
			}
		})
		defer unsubscribe()

		unsubscribe = session.Subscribe(utils.StreamEventLogger(modelID))
		defer unsubscribe()

		err := session.Answer(ctx, prompt)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			return fmt.Errorf("copilot session %s: %w", session.ID(), err)
		case sessionErr != "":
			return fmt.Errorf("copilot session %s: %w", session.ID(), errors.New(sessionErr))
		}
		return nil
	}), nil
}

// Shutdown implements StreamClient
func (c *CopilotClient) Shutdown(ctx context.Context) error {
	if err := c.backend.Stop(); err != nil {
		slog.Info("failed to stop client", "error", err)
	}
	return nil
}
