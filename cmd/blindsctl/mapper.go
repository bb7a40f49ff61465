package main

import (
	"fmt"

	"blindscontrol/internal/position"

	"github.com/spf13/cobra"
)

// NewMapCommand converts between percent and raw coordinates offline
func NewMapCommand() *cobra.Command {
	var openRaw, closeRaw int
	var reverse bool

	cmd := &cobra.Command{
		Use:   "map VALUE",
		Short: "Translate a percentage to a raw coordinate, or back with --reverse",
		Example: `  blindsctl map 25 --open 13 --close 180
  blindsctl map 140 --open 13 --close 180 --reverse
  blindsctl map --open 13 --close 180 -- -5`,
		GroupID: gTools,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseIntArg(args[0], "value")
			if err != nil {
				return err
			}
			cal, err := position.NewCalibration(openRaw, closeRaw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if reverse {
				pos, closed := position.ToNormalized(value, cal)
				fmt.Fprintf(out, "raw %d = %d%% closed=%t (%s)\n", value, pos, closed, cal)
				return nil
			}
			fmt.Fprintf(out, "%d%% = raw %d (%s)\n", position.Clamp(value), position.ToRaw(value, cal), cal)
			return nil
		},
	}

	cmd.Flags().IntVar(&openRaw, "open", 0, "raw coordinate of the open limit")
	cmd.Flags().IntVar(&closeRaw, "close", 0, "raw coordinate of the closed limit")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "translate a raw coordinate to percent")
	_ = cmd.MarkFlagRequired("open")
	_ = cmd.MarkFlagRequired("close")

	return cmd
}
