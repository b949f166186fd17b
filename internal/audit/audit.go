// Package audit archives verdict records as zstd-compressed JSON, either to
// a local directory or to Azure Blob Storage.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spboyer/staffeval/internal/models"
)

// Record is one archived verdict.
type Record struct {
	SessionID      string              `json:"session_id"`
	Role           string              `json:"role"`
	CandidateModel string              `json:"candidate_model"`
	TestResults    *models.TestResults `json:"test_results,omitempty"`
	Verdict        models.Verdict      `json:"verdict"`
	ArchivedAt     time.Time           `json:"archived_at"`
}

// Name returns the archive object name of r.
func (r Record) Name() string {
	return fmt.Sprintf("%s/%s-%d.json.zst", safe(r.Role), safe(r.SessionID), r.ArchivedAt.UnixNano())
}

func safe(s string) string {
	if s == "" {
		return "unknown"
	}
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// Archiver stores verdict records. Archive returns where the record went.
type Archiver interface {
	Archive(ctx context.Context, rec Record) (string, error)
}

// Nop drops every record.
type Nop struct{}

// Archive implements Archiver
func (Nop) Archive(context.Context, Record) (string, error) { return "", nil }

// Encode marshals rec and compresses it.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding audit record: %w", err)
	}
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressing audit record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compressing audit record: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(r io.Reader) (*Record, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	var rec Record
	if err := json.NewDecoder(dec).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding audit record: %w", err)
	}
	return &rec, nil
}

// DirArchiver writes records under a local directory.
type DirArchiver struct {
	dir string
}

// NewDirArchiver creates an archiver rooted at dir.
func NewDirArchiver(dir string) *DirArchiver {
	return &DirArchiver{dir: dir}
}

// Archive implements Archiver
func (a *DirArchiver) Archive(_ context.Context, rec Record) (string, error) {
	data, err := Encode(rec)
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, filepath.FromSlash(rec.Name()))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing audit record: %w", err)
	}
	return path, nil
}
