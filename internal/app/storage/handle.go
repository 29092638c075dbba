package storage

import (
	"errors"
	"sync"
)

// State describes the lifecycle of a Handle.
type State int

const (
	// Initializing means the backing store is still being opened; requests
	// should receive a retryable not-ready error.
	Initializing State = iota
	// Ready means the store is usable.
	Ready
	// Failed is terminal: initialisation failed and the process should exit.
	Failed
)

// ErrNotReady is returned by Handle.Store while the backend is initialising.
var ErrNotReady = errors.New("storage: not ready")

// Handle holds the store reference while asynchronous initialisation is in
// flight, replacing the global mutable "current store" seen in ad-hoc setups.
type Handle struct {
	mu    sync.RWMutex
	state State
	store Store
	err   error
}

// Provider yields the current store, or an error while it is unavailable.
// Services depend on this rather than on a concrete store so requests made
// during asynchronous initialisation fail with a retryable error instead of
// racing a half-built backend.
type Provider interface {
	Store() (Store, error)
}

// Static wraps an already-initialised store in a Provider. Used by tests and
// by backends that open synchronously.
func Static(store Store) Provider {
	return staticProvider{store: store}
}

type staticProvider struct {
	store Store
}

func (p staticProvider) Store() (Store, error) {
	return p.store, nil
}

// NewHandle returns a handle in the Initializing state.
func NewHandle() *Handle {
	return &Handle{state: Initializing}
}

// SetReady publishes the store and moves the handle to Ready.
func (h *Handle) SetReady(store Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Failed {
		return
	}
	h.state = Ready
	h.store = store
}

// Fail moves the handle to the terminal Failed state.
func (h *Handle) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = Failed
	h.err = err
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Err returns the initialisation failure, if any.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Store returns the ready store, ErrNotReady during initialisation, or the
// initialisation error once Failed.
func (h *Handle) Store() (Store, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch h.state {
	case Ready:
		return h.store, nil
	case Failed:
		return nil, h.err
	default:
		return nil, ErrNotReady
	}
}
