package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		name     string
		terminal bool
		active   bool
	}{
		{NotStarted, "not_started", false, false},
		{Running, "running", false, true},
		{Paused, "paused", false, true},
		{Succeeded, "succeeded", true, false},
		{Failed, "failed", true, false},
		{State(9), "State(9)", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.active, tt.state.IsActive())
		})
	}
}
