package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/casbank/casbank/internal/harness"
)

// StressFlags holds flags for the stress command.
type StressFlags struct {
	Accounts  int
	Balance   int64
	Workers   int
	Transfers int
	MaxAmount int64
	Seed      int64
	Snapshots bool
}

// NewStressCommand creates the stress command.
func NewStressCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &StressFlags{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent conservation stress test",
		Long: `Hammer an in-memory bank with concurrent randomized transfers while
snapshot readers verify that the total balance never leaks a mid-flight
transfer.

Example:
  casbank stress --workers 16 --transfers 5000
  casbank stress --accounts 32 --snapshots=false --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(rootOpts, flags, cmd)
		},
	}

	cmd.Flags().IntVar(&flags.Accounts, "accounts", 8, "number of accounts")
	cmd.Flags().Int64Var(&flags.Balance, "balance", 10_000, "initial balance per account")
	cmd.Flags().IntVar(&flags.Workers, "workers", 8, "concurrent transfer workers")
	cmd.Flags().IntVar(&flags.Transfers, "transfers", 1_000, "transfers per worker")
	cmd.Flags().Int64Var(&flags.MaxAmount, "max-amount", 100, "maximum single transfer amount")
	cmd.Flags().Int64Var(&flags.Seed, "seed", 1, "seed for the worker request streams")
	cmd.Flags().BoolVar(&flags.Snapshots, "snapshots", true, "run concurrent total-balance readers")

	return cmd
}

func runStress(opts *RootOptions, flags *StressFlags, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	var logger *slog.Logger
	if opts.Verbose {
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
		logger = slog.New(handler)
	}

	report, err := harness.Stress(harness.StressOptions{
		Accounts:           flags.Accounts,
		InitialBalance:     flags.Balance,
		Workers:            flags.Workers,
		TransfersPerWorker: flags.Transfers,
		MaxAmount:          flags.MaxAmount,
		Seed:               flags.Seed,
		Snapshots:          flags.Snapshots,
		Logger:             logger,
	})
	if err != nil {
		_ = out.Error("stress run failed", err.Error())
		if report == nil {
			return WrapExitError(ExitCommandError, "stress run failed", err)
		}
		return WrapExitError(ExitFailure, "stress run failed", err)
	}

	if opts.Format == "json" {
		return out.Success(report)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d transfers over %d accounts, %d snapshots, total %d (want %d) in %s\nconservation: OK\n",
		report.RunID, report.Transfers, report.Accounts, report.Snapshots,
		report.Total, report.Want, report.Elapsed)
	return nil
}
