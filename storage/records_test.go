package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatus_CanTransitionTo(t *testing.T) {
	all := []EventStatus{EventStatusPending, EventStatusProcessing, EventStatusCompleted, EventStatusFailed}
	allowed := map[EventStatus][]EventStatus{
		EventStatusPending:    {EventStatusProcessing},
		EventStatusProcessing: {EventStatusCompleted, EventStatusFailed},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				want = want || a == to
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestEventStatus_IsTerminal(t *testing.T) {
	assert.False(t, EventStatusPending.IsTerminal())
	assert.False(t, EventStatusProcessing.IsTerminal())
	assert.True(t, EventStatusCompleted.IsTerminal())
	assert.True(t, EventStatusFailed.IsTerminal())
}
