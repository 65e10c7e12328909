package dualplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_ClampsAndSeals(t *testing.T) {
	rec := &recorder{}
	em := newEmitter("exec-1", rec.record)

	em.emit(StageValidation, 85, "validated")
	em.emit(StageValidation, 75, "stale")
	em.rewind(StageReplan, 70, "repairing")
	em.terminal(StageComplete, "done")
	em.emit(StageValidation, 90, "late")
	em.terminal(StageError, "late")

	events := rec.snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, 85, events[1].Percent, "non-rewind events never go down")
	assert.Equal(t, 70, events[2].Percent)
	assert.Equal(t, StageComplete, events[3].Stage)
	assert.Equal(t, "exec-1", events[3].ExecutionID)
	assert.False(t, events[3].Timestamp.IsZero())
}

func TestEmitter_NilCallback(t *testing.T) {
	em := newEmitter("x", nil)

	assert.NotPanics(t, func() {
		em.emit(StageIntelligence, 15, "gathering")
		em.terminal(StageComplete, "done")
	})
}
