package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_FullLifecycle(t *testing.T) {
	var transitions []string
	m := NewMachine(func(from, to string, generation int) {
		transitions = append(transitions, from+"->"+to)
	})
	require.Equal(t, PhaseIdle, m.Phase())

	require.NoError(t, m.Trigger(EventInitialize))
	for i := 0; i < 2; i++ {
		require.NoError(t, m.Trigger(EventEvaluate))
		require.NoError(t, m.Trigger(EventSelect))
		require.NoError(t, m.Trigger(EventReproduce))
	}
	require.NoError(t, m.Trigger(EventFinalize))

	assert.True(t, m.Done())
	assert.Equal(t, 2, m.Generation())
	assert.Equal(t, []string{
		"idle->initialized",
		"initialized->evaluated", "evaluated->selected", "selected->reproduced",
		"reproduced->evaluated", "evaluated->selected", "selected->reproduced",
		"reproduced->finalized",
	}, transitions)
}

func TestMachine_RejectsOutOfOrderEvents(t *testing.T) {
	m := NewMachine(nil)

	assert.False(t, m.CanTransition(EventSelect))
	assert.Error(t, m.Trigger(EventSelect))
	assert.Error(t, m.Trigger(EventReproduce))

	require.NoError(t, m.Trigger(EventInitialize))
	assert.Error(t, m.Trigger(EventInitialize))
	assert.True(t, m.CanTransition(EventFinalize))
}

func TestMachine_FinalizeWithoutGenerations(t *testing.T) {
	m := NewMachine(nil)
	require.NoError(t, m.Trigger(EventInitialize))
	require.NoError(t, m.Trigger(EventFinalize))

	snap := m.Snapshot()
	assert.Equal(t, PhaseFinalized, snap.Phase)
	assert.Zero(t, snap.Generation)
	assert.Error(t, m.Trigger(EventEvaluate))
}
