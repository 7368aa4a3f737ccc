// Command gdalsubset runs Harmony GDAL operations from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harmonyservices/gdalsubset/internal/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command also accepts the
// Harmony service CLI flags so that
//
//	gdalsubset --harmony-action invoke --harmony-input '{...}'
//
// behaves like "gdalsubset invoke '{...}'".
func newRootCmd(out io.Writer) *cobra.Command {
	var (
		action   string
		input    string
		logLevel string
	)

	root := &cobra.Command{
		Use:          "gdalsubset",
		Short:        "Subset, reproject and reformat rasters for Harmony.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr; stdout carries the command result.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, "text"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if action == "" {
				return cmd.Help()
			}
			if action != "invoke" {
				return fmt.Errorf("unsupported --harmony-action %q (only \"invoke\")", action)
			}
			if input == "" {
				return fmt.Errorf("--harmony-input must be provided for --harmony-action %s", action)
			}
			return runInvoke(cmd.Context(), []byte(input), cmd.OutOrStdout())
		},
	}
	root.SetOut(out)

	root.Flags().StringVar(&action, "harmony-action", "", `the action Harmony needs to perform (currently only "invoke")`)
	root.Flags().StringVar(&input, "harmony-input", "", "the input data for the action provided by Harmony")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(newInvokeCmd(), newClipCmd(), newWatchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gdalsubset",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gdalsubset %s\n", version)
		},
	}
}
