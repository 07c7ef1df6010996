// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reveal

import (
	"sync"
	"time"

	"github.com/jeranaias/tlchat/internal/logger"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// ChunkSize is the number of runes disclosed per tick.
	ChunkSize = 6

	// TickInterval is the delay between ticks.
	TickInterval = 12 * time.Millisecond
)

// State is the scheduler's run state.
type State int

const (
	Idle State = iota
	Revealing
	Cancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Revealing:
		return "revealing"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ApplyFunc writes the revealed prefix into the owner's message list. It
// returns false when the write was refused, which ends the run.
type ApplyFunc func(epoch uint64, revealed string) bool

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler runs at most one reveal at a time.
type Scheduler struct {
	mu     sync.Mutex
	state  State
	epoch  uint64
	timer  *time.Timer
	text   []rune
	pos    int
	apply  ApplyFunc
	onDone func(epoch uint64)
}

// NewScheduler creates an idle scheduler. onDone, if non-nil, runs after
// the final chunk of a run has been applied.
func NewScheduler(onDone func(epoch uint64)) *Scheduler {
	return &Scheduler{onDone: onDone}
}

// Start cancels any active run and begins revealing fullText. The first
// chunk is scheduled without delay. It returns the run's epoch.
func (s *Scheduler) Start(fullText string, apply ApplyFunc) uint64 {
	s.mu.Lock()
	s.stopLocked()
	s.epoch++
	epoch := s.epoch
	s.state = Revealing
	s.text = []rune(fullText)
	s.pos = 0
	s.apply = apply
	s.timer = time.AfterFunc(0, func() { s.tick(epoch) })
	s.mu.Unlock()

	logger.Logger.Debug().Uint64("epoch", epoch).Int("runes", len([]rune(fullText))).Msg("REVEAL_START")
	return epoch
}

// Stop cancels the active run. It is a no-op when nothing is revealing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state != Revealing {
		return
	}
	s.state = Cancelled
	s.epoch++
	s.apply = nil
	s.text = nil
}

// Current reports whether epoch names the run that is revealing right now.
func (s *Scheduler) Current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Revealing && s.epoch == epoch
}

// Latest reports whether epoch is the most recently issued epoch, whether
// or not its run has finished.
func (s *Scheduler) Latest(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// State returns the current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether a run is in progress.
func (s *Scheduler) Active() bool {
	return s.State() == Revealing
}

// tick discloses the next chunk of the run scheduled under epoch.
func (s *Scheduler) tick(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != Revealing {
		s.mu.Unlock()
		return
	}
	s.pos += ChunkSize
	if s.pos > len(s.text) {
		s.pos = len(s.text)
	}
	revealed := string(s.text[:s.pos])
	done := s.pos >= len(s.text)
	apply := s.apply
	s.mu.Unlock()

	ok := apply(epoch, revealed)

	s.mu.Lock()
	if s.epoch != epoch || s.state != Revealing {
		s.mu.Unlock()
		return
	}
	if !ok {
		s.state = Cancelled
		s.timer = nil
		s.apply = nil
		s.text = nil
		s.mu.Unlock()
		logger.Logger.Debug().Uint64("epoch", epoch).Msg("REVEAL_STALE | apply refused, run ended")
		return
	}
	if done {
		s.state = Idle
		s.timer = nil
		s.apply = nil
		s.text = nil
		onDone := s.onDone
		s.mu.Unlock()
		if onDone != nil {
			onDone(epoch)
		}
		return
	}
	s.timer = time.AfterFunc(TickInterval, func() { s.tick(epoch) })
	s.mu.Unlock()
}
