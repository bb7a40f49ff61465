// Command blindsctl drives a blind controller directly, without the bridge daemon.
package main

import (
	"fmt"
	"os"
	"time"

	"blindscontrol/internal/controller"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	host    string
	port    int
	timeout time.Duration
	verbose bool
)

const (
	gBlind = "Blind Commands:"
	gTools = "Tools:"
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand builds the root command with every subcommand attached
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blindsctl",
		Short: "blindsctl talks to a motorized blind controller",
		Long: `blindsctl talks to a motorized blind controller over its HTTP API.

Positions are given in percent, 0 closed and 100 open, and are translated
to the controller's raw coordinates using the calibration it reports.`,
		SilenceUsage: true,
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVar(&host, "host", "localhost", "controller host name or base URL")
	globalFlags.IntVarP(&port, "port", "p", 80, "controller port")
	globalFlags.DurationVar(&timeout, "timeout", controller.DefaultTimeout, "request timeout")
	globalFlags.BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")

	cmd.AddGroup(
		&cobra.Group{ID: gBlind, Title: gBlind},
		&cobra.Group{ID: gTools, Title: gTools},
	)

	cmd.AddCommand(
		NewConfigCommand(),
		NewOpenCommand(),
		NewCloseCommand(),
		NewStopCommand(),
		NewPositionCommand(),
		NewSetCommand(),
		NewMapCommand(),
	)

	return cmd
}

func newClient() (*controller.Client, error) {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}
	return controller.NewClient(controller.Config{Host: host, Port: port, Timeout: timeout}, logger), nil
}
