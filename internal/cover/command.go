package cover

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Command is an action requested through one of the bridges
type Command string

const (
	CommandOpen        Command = "open"
	CommandClose       Command = "close"
	CommandStop        Command = "stop"
	CommandSetPosition Command = "set_position"
)

// ErrUnknownCommand is returned for command names no cover understands
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand accepts command names in any case
func ParseCommand(s string) (Command, error) {
	switch cmd := Command(strings.ToLower(strings.TrimSpace(s))); cmd {
	case CommandOpen, CommandClose, CommandStop, CommandSetPosition:
		return cmd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Execute runs a command. pos is only used by CommandSetPosition.
func (c *Cover) Execute(ctx context.Context, cmd Command, pos int) error {
	switch cmd {
	case CommandOpen:
		return c.Open(ctx)
	case CommandClose:
		return c.Close(ctx)
	case CommandStop:
		return c.Stop(ctx)
	case CommandSetPosition:
		return c.SetPosition(ctx, pos)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}
