// Package store persists interview sessions and role assignment history.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spboyer/staffeval/internal/models"
)

var (
	// ErrSessionNotFound is returned when an id does not match any session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by Create for a duplicate id.
	ErrSessionExists = errors.New("session already exists")
)

// SessionStore holds InterviewSession records. Save replaces the whole
// record; there is no field level update.
type SessionStore interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	Get(ctx context.Context, id string) (*models.InterviewSession, error)
	// Save writes s wholesale. A save that would move the stored status
	// backwards fails with models.ErrInvalidTransition.
	Save(ctx context.Context, s *models.InterviewSession) error
	// List returns sessions newest first.
	List(ctx context.Context) ([]*models.InterviewSession, error)
}

//go:generate go tool mockgen -destination mocks/mock_history.go -package mocks github.com/spboyer/staffeval/internal/store HistoryStore

// HistoryStore holds the assignment history of every role.
type HistoryStore interface {
	// RecentAssignments returns up to limit records for role, most recently
	// assigned first.
	RecentAssignments(ctx context.Context, role string, limit int) ([]models.AssignmentRecord, error)
	// Record appends an assignment.
	Record(ctx context.Context, rec models.AssignmentRecord) error
	// CloseCurrent sets removed_at on every open assignment of role.
	CloseCurrent(ctx context.Context, role string, at time.Time) error
}

// Store is both a SessionStore and a HistoryStore.
type Store interface {
	SessionStore
	HistoryStore
	Close() error
}

func checkForward(stored, next models.SessionStatus, id string) error {
	if next.Rank() < stored.Rank() {
		return fmt.Errorf("%w: session %s stored as %s, refusing %s", models.ErrInvalidTransition, id, stored, next)
	}
	return nil
}
