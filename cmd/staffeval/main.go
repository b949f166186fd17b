package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0
	ExitRejected = 1 // A verdict or decision came out as reject
	ExitError    = 2 // Configuration or runtime error
)

// RejectedError reports that the pipeline ran but the candidate was
// rejected. It maps to ExitRejected so scripts can branch on it.
type RejectedError struct {
	SessionID string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("session %s: candidate rejected", e.SessionID)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			os.Exit(ExitRejected)
		}
		os.Exit(ExitError)
	}
}
