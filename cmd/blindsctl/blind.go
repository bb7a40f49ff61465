package main

import (
	"context"
	"fmt"

	"blindscontrol/internal/controller"
	"blindscontrol/internal/position"

	"github.com/spf13/cobra"
)

// NewConfigCommand prints the controller's blind table
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   "Show the blinds the controller knows about",
		GroupID: gBlind,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			device, err := c.DownloadConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to download config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-4s %-5s %-6s %-6s %s\n", "ID", "GPIO", "OPEN", "CLOSE", "DIRECTION")
			for _, id := range device.IDs() {
				b := device[id]
				direction := "invalid"
				if cal, err := b.Calibration(); err == nil {
					direction = cal.Direction().String()
				}
				fmt.Fprintf(out, "%-4d %-5d %-6d %-6d %s\n", id, b.GPIO, b.Open, b.Close, direction)
			}
			return nil
		},
	}
}

func newMoveCommand(use, short string, move func(*controller.Client, context.Context, int) (controller.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:     use + " ID",
		Short:   short,
		GroupID: gBlind,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIntArg(args[0], "blind id")
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := move(c, cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to %s blind %d: %w", use, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blind %d: %s ok, raw position %s\n", id, use, formatRaw(res.Position))
			return nil
		},
	}
}

// NewOpenCommand drives a blind to its open limit
func NewOpenCommand() *cobra.Command {
	return newMoveCommand("open", "Fully open a blind", (*controller.Client).Open)
}

// NewCloseCommand drives a blind to its closed limit
func NewCloseCommand() *cobra.Command {
	return newMoveCommand("close", "Fully close a blind", (*controller.Client).Close)
}

// NewStopCommand halts a moving blind
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "stop ID",
		Short:   "Stop a moving blind",
		GroupID: gBlind,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIntArg(args[0], "blind id")
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Stop(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to stop blind %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blind %d: stopped\n", id)
			return nil
		},
	}
}

// NewPositionCommand reads a blind's position
func NewPositionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "position ID",
		Short:   "Read the position of a blind",
		Long:    "Read the raw position of a blind and, when the controller reports a valid calibration for it, the position in percent.",
		GroupID: gBlind,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIntArg(args[0], "blind id")
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Position(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to read blind %d: %w", id, err)
			}

			out := cmd.OutOrStdout()
			if !res.HasPosition() {
				fmt.Fprintf(out, "blind %d: position unknown\n", id)
				return nil
			}

			cal, err := calibrationFor(cmd.Context(), c, id)
			if err != nil {
				fmt.Fprintf(out, "blind %d: raw %d\n", id, *res.Position)
				return nil
			}
			pos, closed := position.ToNormalized(*res.Position, cal)
			state := "open"
			if closed {
				state = "closed"
			}
			fmt.Fprintf(out, "blind %d: raw %d, %d%% (%s)\n", id, *res.Position, pos, state)
			return nil
		},
	}
}

// NewSetCommand moves a blind to a percentage
func NewSetCommand() *cobra.Command {
	var openRaw, closeRaw int

	cmd := &cobra.Command{
		Use:   "set ID PERCENT",
		Short: "Move a blind to a position in percent",
		Long: `Move a blind to a position in percent, 0 closed and 100 open.

The calibration is read from the controller unless both --open and --close
are given. Out-of-range percentages are clamped. Put -- before a negative
percentage so it is not read as a flag.`,
		Example: `  blindsctl set 14 60
  blindsctl set 1 25 --open 13 --close 180
  blindsctl set 1 -- -5`,
		GroupID: gBlind,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIntArg(args[0], "blind id")
			if err != nil {
				return err
			}
			pct, err := parseIntArg(args[1], "percent")
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}

			var cal position.Calibration
			if cmd.Flags().Changed("open") && cmd.Flags().Changed("close") {
				cal, err = position.NewCalibration(openRaw, closeRaw)
			} else {
				cal, err = calibrationFor(cmd.Context(), c, id)
			}
			if err != nil {
				return err
			}

			raw := position.ToRaw(pct, cal)
			res, err := c.MoveTo(cmd.Context(), id, raw)
			if err != nil {
				return fmt.Errorf("failed to move blind %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blind %d: moved to %d%% (raw %d), reported %s\n",
				id, position.Clamp(pct), raw, formatRaw(res.Position))
			return nil
		},
	}

	cmd.Flags().IntVar(&openRaw, "open", 0, "raw coordinate of the open limit")
	cmd.Flags().IntVar(&closeRaw, "close", 0, "raw coordinate of the closed limit")
	cmd.MarkFlagsRequiredTogether("open", "close")

	return cmd
}

func calibrationFor(ctx context.Context, c *controller.Client, id int) (position.Calibration, error) {
	device, err := c.DownloadConfig(ctx)
	if err != nil {
		return position.Calibration{}, fmt.Errorf("failed to download config: %w", err)
	}
	b, ok := device[id]
	if !ok {
		return position.Calibration{}, fmt.Errorf("blind %d is not configured on the controller", id)
	}
	cal, err := b.Calibration()
	if err != nil {
		return position.Calibration{}, fmt.Errorf("blind %d: %w", id, err)
	}
	return cal, nil
}
