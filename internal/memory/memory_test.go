package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}
	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSWriter_Publishes(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	ch := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("staffeval.memory.>", ch)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	w, err := DialNATS(server.ClientURL(), "")
	require.NoError(t, err)
	defer w.Close()

	entry := Entry{
		Role:            "prompt.engineer",
		Content:         "Candidate gpt-x was rejected.",
		MemoryType:      TypeExperience,
		ConfidenceScore: 0.7,
		Tags:            []string{"verdict", "reject"},
		Metadata:        map[string]any{"session_id": "s1"},
	}
	// The verdict engine writes with a detached context that has no deadline.
	require.NoError(t, w.Write(context.WithoutCancel(context.Background()), entry))

	select {
	case msg := <-ch:
		assert.Equal(t, "staffeval.memory.prompt_engineer", msg.Subject)
		var got Entry
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, entry.Content, got.Content)
		assert.Equal(t, entry.Tags, got.Tags)
		assert.Equal(t, "s1", got.Metadata["session_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("no memory entry received")
	}
}

func TestNATSWriter_KeepsCallerDeadline(t *testing.T) {
	server := startTestNATSServer(t)
	w, err := DialNATS(server.ClientURL(), "")
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Write(ctx, Entry{Role: "critic", Content: "x"}))
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestNATSWriter_Closed(t *testing.T) {
	server := startTestNATSServer(t)
	w, err := DialNATS(server.ClientURL(), "custom")
	require.NoError(t, err)

	assert.Equal(t, "custom.critic", w.Subject("critic"))
	assert.Equal(t, "custom.unknown", w.Subject(""))

	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Write(context.Background(), Entry{Role: "critic"}), ErrClosed)
}

func TestDialNATS_Unreachable(t *testing.T) {
	_, err := DialNATS("nats://127.0.0.1:1", "")
	require.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Write(context.Background(), Entry{}))
}
