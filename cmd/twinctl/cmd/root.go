package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/building-safety/internal/config"
	"github.com/oshokin/building-safety/internal/printer"
	"github.com/oshokin/building-safety/internal/service/common"
	"github.com/oshokin/building-safety/internal/version"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	// address of the device's twin shim.
	address string
	// timeout bounds calls that do not wait on the device.
	timeout time.Duration
	// asJSON prints protojson instead of coloured text.
	asJSON bool
}

// newRootCommand builds the twinctl command tree.
func newRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "twinctl",
		Short: "Drive a device through its physical-twin shim.",
		Long: `twinctl plays the physical world for a running device process.

It connects to the twin gRPC address a device was configured with and reads
the device's cell, completes door transitions, presents card codes, writes
sensor temperatures and presses or resets call points.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&g.address, "addr", "a", "", "twin shim address of the device (host:port)")
	root.PersistentFlags().DurationVarP(&g.timeout, "timeout", "t", config.DefaultTimeout, "timeout for calls that do not wait on the device")
	root.PersistentFlags().BoolVar(&g.asJSON, "json", false, "print results as JSON")

	if err := root.MarkPersistentFlagRequired("addr"); err != nil {
		panic(err)
	}

	root.AddCommand(
		newStateCommand(g),
		newAwaitCommand(g),
		newCompleteCommand(g),
		newScanCommand(g),
		newTempCommand(g),
		newCallPointCommand(g),
	)

	version.AttachCobraVersionCommand(root)

	return root
}

// Execute runs the twinctl CLI and exits with non-zero status on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// run dials the device and hands the client and a printer to fn. Errors are
// printed before they are returned.
func (g *globals) run(cmd *cobra.Command, fn func(context.Context, *common.Client, *printer.Printer) error) error {
	p := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), g.asJSON)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := common.Dial(ctx, g.address, common.WithCallTimeout(g.timeout))
	if err != nil {
		return p.Error("Cannot reach device", err.Error())
	}
	defer client.Close()

	if err = fn(ctx, client, p); err != nil {
		return p.Error("Twin call failed", err.Error())
	}

	return nil
}
