// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"sync"
)

// State is the pending-callback counter, shared by every [Envelope] created
// by one [Loop]. It counts callbacks that have been scheduled, but have not
// yet finished executing (or been cancelled).
//
// All methods are safe to call from any goroutine. The zero value is ready
// to use.
type State struct {
	mu    sync.Mutex
	count int
}

// NewState returns a new, zeroed, State.
func NewState() *State {
	return new(State)
}

// Increment adds n to the pending count, returning the updated value.
func (s *State) Increment(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
	return s.count
}

// Decrement subtracts n from the pending count, returning the updated value.
// The count never goes below zero.
func (s *State) Decrement(n int) int {
	count, _ := s.decrement(n)
	return count
}

// decrement is Decrement, also reporting whether the count was clamped.
func (s *State) decrement(n int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count -= n
	if s.count < 0 {
		s.count = 0
		return 0, true
	}
	return s.count, false
}

// Count returns the current pending count.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
