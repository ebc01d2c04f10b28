// Package commands implements the kuberx-cli subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kuberx/internal/backend"
	"kuberx/internal/buildinfo"
	"kuberx/internal/cli"
	"kuberx/internal/log"
	"kuberx/internal/services"
)

// Opener builds the loan service a command runs against. The returned
// function releases whatever the service holds.
type Opener func(ctx context.Context) (*services.LoanService, func() error, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
// A nil open reads the configuration and opens the configured backend.
func NewRootCommand(open Opener) *cobra.Command {
	if open == nil {
		open = openFromConfig
	}

	rootCmd := &cobra.Command{
		Use:     "kuberx-cli",
		Short:   "Loan ledger analytics from the command line",
		Version: versionString(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newDashboardCommand(open),
		newInterestCommand(open),
		newExportCommand(open),
		newExtractCommand(open),
		newAddCommand(open),
		newCloseCommand(open),
		newSearchCommand(open),
		newVersionCommand(),
	)

	return rootCmd
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kuberx-cli", versionString())
		},
	}
}

func openFromConfig(ctx context.Context) (*services.LoanService, func() error, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, nil, err
	}
	// Diagnostics go to stderr so command output stays machine readable.
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open backend: %w", err)
	}
	svc, err := cli.NewLoanService(ctx, cfg, logger, result.Backend)
	if err != nil {
		_ = result.Close()
		return nil, nil, err
	}
	return svc, result.Close, nil
}

// withService opens the service for the duration of run.
func withService(ctx context.Context, open Opener, run func(*services.LoanService) error) error {
	svc, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return run(svc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
