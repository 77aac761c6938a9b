package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionStatus(t *testing.T) {
	for _, s := range []string{"READY", "IN_PROGRESS", "PAUSED", "COMPLETED", "CANCELLED"} {
		status, err := ParseSessionStatus(s)
		require.NoError(t, err)
		assert.Equal(t, SessionStatus(s), status)
	}

	_, err := ParseSessionStatus("FINISHED")
	assert.ErrorIs(t, err, ErrStatusNotFound)

	_, err = ParseSessionStatus("in_progress")
	assert.ErrorIs(t, err, ErrStatusNotFound)

	_, err = ParseSessionStatus("")
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestSessionStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{SessionReady, SessionInProgress, true},
		{SessionReady, SessionCancelled, true},
		{SessionReady, SessionPaused, false},
		{SessionReady, SessionCompleted, false},
		{SessionInProgress, SessionPaused, true},
		{SessionInProgress, SessionCompleted, true},
		{SessionInProgress, SessionCancelled, true},
		{SessionInProgress, SessionInProgress, false},
		{SessionPaused, SessionInProgress, true},
		{SessionPaused, SessionCompleted, true},
		{SessionPaused, SessionReady, false},
		{SessionCompleted, SessionInProgress, false},
		{SessionCancelled, SessionInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionCancelled.IsTerminal())
	assert.False(t, SessionPaused.IsTerminal())
	assert.False(t, SessionReady.IsTerminal())
}

func TestQueueEntry_SeenByAll(t *testing.T) {
	e := QueueEntry{RecipeID: 1, SeenBy: []int64{1, 2}}

	assert.True(t, e.HasSeen(2))
	assert.False(t, e.HasSeen(3))
	assert.True(t, e.SeenByAll([]int64{1, 2}))
	assert.False(t, e.SeenByAll([]int64{1, 2, 3}))
	assert.False(t, e.SeenByAll(nil))
}
