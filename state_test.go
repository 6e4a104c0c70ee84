// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package monitoredloop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_zeroValue(t *testing.T) {
	var s State
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 2, s.Increment(2))
	assert.Equal(t, 1, s.Decrement(1))
	assert.Equal(t, 1, s.Count())
}

func TestState_Decrement_neverNegative(t *testing.T) {
	s := NewState()
	assert.Equal(t, 0, s.Decrement(1))
	assert.Equal(t, 0, s.Count())
	s.Increment(3)
	assert.Equal(t, 0, s.Decrement(5))
	assert.Equal(t, 1, s.Increment(1))
}

func TestState_concurrent(t *testing.T) {
	const workers, iterations = 16, 1000
	s := NewState()
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				s.Increment(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*iterations, s.Count())
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				if v := s.Decrement(1); v < 0 {
					t.Errorf("negative count: %d", v)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, s.Count())
}

func TestState_decrement_reportsClamp(t *testing.T) {
	s := NewState()
	s.Increment(1)
	count, clamped := s.decrement(1)
	assert.Equal(t, 0, count)
	assert.False(t, clamped)
	count, clamped = s.decrement(1)
	assert.Equal(t, 0, count)
	assert.True(t, clamped)
}
