package controller

import (
	"context"
	"sync"
)

// Readiness is the composite startup barrier: the scheduling loop may only
// start once the filesystem is ready AND the configuration is loaded.
// Both conditions are observed together; marking either one twice has no
// further effect.
type Readiness struct {
	mu           sync.Mutex
	filesystem   bool
	configLoaded bool
	ready        chan struct{}
}

func NewReadiness() *Readiness {
	return &Readiness{ready: make(chan struct{})}
}

func (r *Readiness) MarkFilesystemReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesystem = true
	r.releaseLocked()
}

func (r *Readiness) MarkConfigLoaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configLoaded = true
	r.releaseLocked()
}

func (r *Readiness) releaseLocked() {
	if !r.filesystem || !r.configLoaded {
		return
	}
	select {
	case <-r.ready:
	default:
		close(r.ready)
	}
}

// Ready reports whether both conditions have been signalled.
func (r *Readiness) Ready() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until both conditions hold or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
