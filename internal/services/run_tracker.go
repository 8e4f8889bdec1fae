package services

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// Observer receives a progress snapshot after every unit of work.
type Observer func(models.Progress)

var allowedTransitions = map[models.RunState][]models.RunState{
	models.StateIdle:       {models.StateScanning, models.StateFailed},
	models.StateScanning:   {models.StateScoring, models.StateFinalizing, models.StateFailed},
	models.StateScoring:    {models.StateFinalizing, models.StateFailed},
	models.StateFinalizing: {models.StateComplete, models.StateFailed},
}

// runTracker owns the state machine of one run:
// idle -> scanning -> scoring(i/n) -> finalizing -> complete | failed.
type runTracker struct {
	mu       sync.Mutex
	progress models.Progress
	observe  Observer
}

func newRunTracker(observe Observer) *runTracker {
	return &runTracker{progress: models.Progress{State: models.StateIdle}, observe: observe}
}

// transition moves to next, refusing moves the state machine does not allow.
func (t *runTracker) transition(next models.RunState, total int, message string) error {
	t.mu.Lock()
	cur := t.progress.State
	allowed := false
	for _, s := range allowedTransitions[cur] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		t.mu.Unlock()
		return fmt.Errorf("invalid run transition %s -> %s", cur, next)
	}
	t.progress = models.Progress{State: next, Current: 0, Total: total, Message: message}
	if next == models.StateComplete {
		t.progress.Current = total
	}
	snap := t.progress
	t.mu.Unlock()

	t.emit(snap)
	return nil
}

// step records one finished unit of work in the current state.
func (t *runTracker) step(message string) {
	t.mu.Lock()
	t.progress.Current++
	t.progress.Message = message
	snap := t.progress
	t.mu.Unlock()
	t.emit(snap)
}

// note updates the message without advancing.
func (t *runTracker) note(message string) {
	t.mu.Lock()
	t.progress.Message = message
	snap := t.progress
	t.mu.Unlock()
	t.emit(snap)
}

// fail moves to failed from any non-terminal state.
func (t *runTracker) fail(message string) {
	t.mu.Lock()
	if t.progress.State.Terminal() {
		t.mu.Unlock()
		return
	}
	t.progress.State = models.StateFailed
	t.progress.Message = message
	snap := t.progress
	t.mu.Unlock()
	t.emit(snap)
}

func (t *runTracker) snapshot() models.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *runTracker) emit(p models.Progress) {
	slog.Debug("Run progress.", "state", p.State, "current", p.Current, "total", p.Total, "message", p.Message)
	if t.observe != nil {
		t.observe(p)
	}
}
