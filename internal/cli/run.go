package cli

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casbank/casbank/internal/harness"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a transfer scenario",
		Long: `Run a YAML transfer scenario against a fresh in-memory ledger.

The scenario declares a set of accounts, a sequential flow of transfers,
and optional expectations on the final state. Transfers a payer cannot
fund are deferred and replayed automatically as credits arrive.

Example:
  casbank run scenarios/deferred_chain.yaml
  casbank run --format json scenarios/overdraft_fill.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = out.Error("failed to load scenario", err.Error())
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var runOpts []harness.RunOption
	if opts.Verbose {
		logLevel := slog.LevelDebug
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel})
		runOpts = append(runOpts, harness.WithLogger(slog.New(handler)))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = out.Error("scenario execution failed", err.Error())
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), formatResult(result))
	}

	if !result.Passed() {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed %d expectation(s)", result.Scenario, len(result.Failures)))
	}
	return nil
}

// formatResult renders a scenario result as human-readable text.
func formatResult(r *harness.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s (run %s)\n", r.Scenario, r.RunID)

	names := make([]string, 0, len(r.Balances))
	for name := range r.Balances {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(&b, "balances:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-12s %d", name, r.Balances[name])
		if od, ok := r.Overdrafts[name]; ok {
			fmt.Fprintf(&b, " (overdraft %d)", od)
		}
		fmt.Fprintln(&b)
	}

	for _, name := range names {
		queued := r.FuturePayments[name]
		if len(queued) == 0 {
			continue
		}
		fmt.Fprintf(&b, "pending payments from %s:\n", name)
		for _, p := range queued {
			fmt.Fprintf(&b, "  -> %s: %d\n", p.To, p.Amount)
		}
	}

	fmt.Fprintf(&b, "total: %d\n", r.Total)
	if r.Passed() {
		fmt.Fprintf(&b, "result: PASS\n")
	} else {
		fmt.Fprintf(&b, "result: FAIL\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  %s\n", f)
		}
	}
	return b.String()
}
