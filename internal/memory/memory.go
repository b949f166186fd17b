// Package memory writes experience summaries to the external memory
// collaborator.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject prefix NATSWriter publishes under.
const DefaultSubjectPrefix = "staffeval.memory"

// TypeExperience is the memory type of verdict summaries.
const TypeExperience = "experience"

// FlushTimeout bounds the flush of one entry when the caller's context
// carries no deadline.
const FlushTimeout = 5 * time.Second

// ErrClosed is returned by writers that have been closed.
var ErrClosed = errors.New("memory writer closed")

// Entry is one memory write.
type Entry struct {
	Role            string         `json:"role"`
	Content         string         `json:"content"`
	MemoryType      string         `json:"memory_type"`
	ConfidenceScore float64        `json:"confidence_score"`
	Tags            []string       `json:"tags,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Writer accepts memory entries.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// Nop discards every entry.
type Nop struct{}

// Write implements Writer
func (Nop) Write(context.Context, Entry) error { return nil }

// NATSWriter publishes entries as JSON to "<prefix>.<role>".
type NATSWriter struct {
	mu     sync.Mutex
	conn   *nats.Conn
	prefix string
	owned  bool
}

// NewNATSWriter wraps an existing connection. The caller keeps ownership.
func NewNATSWriter(conn *nats.Conn, prefix string) *NATSWriter {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSWriter{conn: conn, prefix: prefix}
}

// DialNATS connects to url and returns a writer that closes the
// connection on Close.
func DialNATS(url, prefix string) (*NATSWriter, error) {
	conn, err := nats.Connect(url, nats.Name("staffeval"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	w := NewNATSWriter(conn, prefix)
	w.owned = true
	return w, nil
}

// Subject returns the subject entries for role are published to.
func (w *NATSWriter) Subject(role string) string {
	role = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(role)
	if role == "" {
		role = "unknown"
	}
	return w.prefix + "." + role
}

// Write implements Writer. The entry is flushed before returning so a
// broken connection is reported to the caller.
func (w *NATSWriter) Write(ctx context.Context, e Entry) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding memory entry: %w", err)
	}
	if err := conn.Publish(w.Subject(e.Role), data); err != nil {
		return fmt.Errorf("publishing memory entry: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, FlushTimeout)
		defer cancel()
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing memory entry: %w", err)
	}
	return nil
}

// Close releases the connection when the writer dialed it.
func (w *NATSWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil && w.owned {
		w.conn.Close()
	}
	w.conn = nil
	return nil
}
