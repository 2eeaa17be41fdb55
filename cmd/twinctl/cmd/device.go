package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oshokin/building-safety/internal/printer"
	"github.com/oshokin/building-safety/internal/service/common"
)

// errBadSwitch is returned for call point states other than on and off.
var errBadSwitch = errors.New(`state must be "on" or "off"`)

func newStateCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the device's cell.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				s, err := c.Snapshot(ctx)
				if err != nil {
					return err
				}

				return p.Snapshot(g.address, s)
			})
		},
	}
}

func newAwaitCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "await",
		Short: "Wait until the door starts moving.",
		Long: `Blocks until the door has a transition in flight and prints its cell.
Only an interrupt ends the wait.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				s, err := c.AwaitTransition(ctx)
				if err != nil {
					return err
				}

				return p.Snapshot("door moving", s)
			})
		},
	}
}

func newCompleteCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Finish the door's transition in flight.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				s, err := c.Complete(ctx)
				if err != nil {
					return err
				}

				return p.Snapshot("transition completed", s)
			})
		},
	}
}

func newScanCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <code>",
		Short: "Present a card code to a card reader.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				verdict, err := c.Scan(ctx, args[0])
				if err != nil {
					return err
				}

				return p.Verdict(verdict)
			})
		},
	}
}

func newTempCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "temp <celsius>",
		Short: "Write a temperature sensor reading.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 32)
			if err != nil {
				return fmt.Errorf("parse temperature %q: %w", args[0], err)
			}

			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				s, err := c.SetTemperature(ctx, float32(value))
				if err != nil {
					return err
				}

				return p.Snapshot("temperature set", s)
			})
		},
	}
}

func newCallPointCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "callpoint <on|off>",
		Short:     "Press or reset a manual call point.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool

			switch args[0] {
			case "on":
				active = true
			case "off":
			default:
				return errBadSwitch
			}

			return g.run(cmd, func(ctx context.Context, c *common.Client, p *printer.Printer) error {
				s, err := c.SetActive(ctx, active)
				if err != nil {
					return err
				}

				return p.Snapshot("call point", s)
			})
		},
	}
}
