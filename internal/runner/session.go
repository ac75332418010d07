package runner

import (
	"time"

	"github.com/google/uuid"
)

// Session is the run-scoped context handed to collaborators that need
// run-relative information (the rewrite hook uses the root dir to relativize
// script paths). It carries no lifetime authority: holders drop the
// reference at run end.
type Session struct {
	ID        string
	Root      string
	Verbose   int
	StartedAt time.Time
}

func NewSession(root string, verbose int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Root:      root,
		Verbose:   verbose,
		StartedAt: time.Now(),
	}
}

// RootDir implements rewrite.Session.
func (s *Session) RootDir() string {
	return s.Root
}
