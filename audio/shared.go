package audio

import (
	"errors"
	"sync"
)

// ErrUnsupported means no capture/playback backend could be opened.
var ErrUnsupported = errors.New("audio recording not supported")

// Shared is the process-wide audio context used for capture, level
// analysis and playback. It is created on first use and stays alive until
// CloseShared; Suspend only marks it idle.
type Shared struct {
	mu        sync.Mutex
	factory   func() (Context, error)
	ctx       Context
	suspended bool
	opens     int
}

var (
	sharedMu sync.Mutex
	shared   = &Shared{factory: NewContext}
)

// Default returns the process-wide shared context holder.
func Default() *Shared {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	return shared
}

// SetFactory replaces how the shared context is created. Any open context
// is closed first.
func SetFactory(factory func() (Context, error)) {
	sharedMu.Lock()
	s := shared
	sharedMu.Unlock()
	s.Close()
	s.mu.Lock()
	s.factory = factory
	s.mu.Unlock()
}

// NewShared builds an isolated holder, mainly for tests.
func NewShared(factory func() (Context, error)) *Shared {
	return &Shared{factory: factory}
}

// Resume returns the live context, creating it once if needed.
func (s *Shared) Resume() (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		if s.factory == nil {
			return nil, ErrUnsupported
		}
		ctx, err := s.factory()
		if err != nil {
			return nil, errors.Join(ErrUnsupported, err)
		}
		s.ctx = ctx
		s.opens++
	}
	s.suspended = false
	return s.ctx, nil
}

// Suspend marks the context idle without releasing it.
func (s *Shared) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.mu.Unlock()
}

// Suspended reports whether the context is idle or not yet created.
func (s *Shared) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx == nil || s.suspended
}

// Opens counts how many times the underlying context was created.
func (s *Shared) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Close releases the context. The next Resume creates a new one.
func (s *Shared) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		s.ctx.Close()
		s.ctx = nil
	}
	s.suspended = false
}
