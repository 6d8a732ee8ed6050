// Package keylock serializes work per key.
package keylock

import (
	"context"
	"sync"
)

// Set holds one lock per key. The zero value is ready to use.
type Set struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// Acquire blocks until key is free or ctx is done. The returned release
// must be called exactly once.
func (s *Set) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		release, wait := s.try(key)
		if release != nil {
			return release, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryAcquire takes key only if nobody holds it.
func (s *Set) TryAcquire(key string) (func(), bool) {
	release, _ := s.try(key)
	return release, release != nil
}

// Held reports whether key is currently locked.
func (s *Set) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[key]
	return ok
}

func (s *Set) try(key string) (func(), <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held == nil {
		s.held = make(map[string]chan struct{})
	}
	if wait, ok := s.held[key]; ok {
		return nil, wait
	}
	done := make(chan struct{})
	s.held[key] = done
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, key)
			s.mu.Unlock()
			close(done)
		})
	}, nil
}
