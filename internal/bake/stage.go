package bake

import (
	"fmt"

	"github.com/Faultbox/posetorest/internal/logger"
	"go.uber.org/zap"
)

// Stage is a step of the per-mesh bake.
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageIsolatingBasis
	StageIsolatingKey
	StageTransferring
	StageCommitting
	StageDone
	StageFailed
)

var stageNames = [...]string{
	"idle", "validating", "isolating-basis", "isolating-key",
	"transferring", "committing", "done", "failed",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// transitions lists the stages reachable from each stage. Failed is reachable
// from every non-terminal stage and is handled separately.
var transitions = map[Stage][]Stage{
	StageIdle:           {StageValidating},
	StageValidating:     {StageIsolatingBasis, StageCommitting},
	StageIsolatingBasis: {StageIsolatingKey, StageCommitting},
	StageIsolatingKey:   {StageTransferring},
	StageTransferring:   {StageIsolatingKey, StageCommitting},
	StageCommitting:     {StageDone},
}

// StageError is an illegal transition.
type StageError struct {
	Mesh     string
	From, To Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: illegal stage transition %s -> %s", e.Mesh, e.From, e.To)
}

// Tracker follows one mesh through the bake stages.
type Tracker struct {
	mesh  string
	stage Stage
	key   int
}

// NewTracker creates a tracker in the idle stage.
func NewTracker(mesh string) *Tracker {
	return &Tracker{mesh: mesh}
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	return t.stage
}

// Key returns the shape-key index of the current key stage.
func (t *Tracker) Key() int {
	return t.key
}

// Enter moves to next. key is the shape-key index for the key stages and is
// ignored otherwise. Transferring must stay on the key being isolated and
// IsolatingKey must advance it by one.
func (t *Tracker) Enter(next Stage, key int) error {
	if !t.allowed(next, key) {
		return &StageError{Mesh: t.mesh, From: t.stage, To: next}
	}
	t.stage = next
	if next == StageIsolatingKey || next == StageTransferring {
		t.key = key
	}
	logger.Debug("bake stage", zap.String("object", t.mesh), zap.Stringer("stage", next), zap.Int("key", t.key))
	return nil
}

func (t *Tracker) allowed(next Stage, key int) bool {
	ok := false
	for _, s := range transitions[t.stage] {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	switch next {
	case StageIsolatingKey:
		if t.stage == StageIsolatingBasis {
			return key == 1
		}
		return key == t.key+1
	case StageTransferring:
		return key == t.key
	}
	return true
}

// Fail moves to the failed stage. It is a no-op once terminal.
func (t *Tracker) Fail(err error) {
	if t.stage.Terminal() {
		return
	}
	logger.Debug("bake stage",
		zap.String("object", t.mesh),
		zap.Stringer("stage", StageFailed),
		zap.Stringer("from", t.stage),
		zap.Error(err))
	t.stage = StageFailed
}
