package cover

import (
	"context"
	"testing"

	"blindscontrol/internal/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"open", CommandOpen},
		{"CLOSE", CommandClose},
		{" Stop\n", CommandStop},
		{"set_position", CommandSetPosition},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCommand("toggle")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	_, err = ParseCommand("")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCover_Execute(t *testing.T) {
	c, ctrl := newTestCover(t, position.Calibration{Open: 180, Close: 20})
	ctx := context.Background()

	require.NoError(t, c.Execute(ctx, CommandOpen, 0))
	require.NoError(t, c.Execute(ctx, CommandSetPosition, 50))
	require.NoError(t, c.Execute(ctx, CommandStop, 0))
	require.NoError(t, c.Execute(ctx, CommandClose, 0))
	assert.Equal(t, []string{"open 3", "move 3 100", "stop 3", "close 3"}, ctrl.Calls())

	err := c.Execute(ctx, Command("toggle"), 0)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Len(t, ctrl.Calls(), 4)
}
