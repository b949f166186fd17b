package orchestration

import "sync"

// CancelToken is a cooperative cancellation flag. The runner checks it
// between steps; a step in flight finishes first.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken creates an un-raised token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel raises the token. Safe to call more than once.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done is closed once the token is raised.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}
