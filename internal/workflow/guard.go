package workflow

import (
	"errors"
	"fmt"
	"log"
)

// ErrAlreadyProcessing means a session is already in flight. The flag is
// cooperative, not a hard lock, but it must be consulted before every start.
var ErrAlreadyProcessing = errors.New("a video is already being processed")

// processingGuard scopes the global processing flag to a session: acquired
// at entry (or rejected), released exactly once on every exit path. A stuck
// flag would block all future runs, so Release is deferred unconditionally.
type processingGuard struct {
	store    StateStore
	released bool
}

func acquireGuard(store StateStore) (*processingGuard, error) {
	busy, err := store.IsProcessing()
	if err != nil {
		return nil, fmt.Errorf("failed to read processing flag: %v", err)
	}
	if busy {
		return nil, ErrAlreadyProcessing
	}
	if err := store.SetProcessing(true); err != nil {
		return nil, fmt.Errorf("failed to set processing flag: %v", err)
	}
	return &processingGuard{store: store}, nil
}

// Release clears the flag. Idempotent; safe to defer and also call early on
// the skip path.
func (g *processingGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if err := g.store.SetProcessing(false); err != nil {
		// The store is local SQLite; a write failure here is serious
		// because a stale flag blocks the next run.
		log.Printf("[workflow] WARNING: failed to clear processing flag: %v", err)
	}
}
