// Package harness executes transfer scenarios against the ledger and
// validates the outcomes.
//
// A Scenario is a YAML-defined account set plus a sequential transfer
// script. The runner builds the accounts, routes every step through a
// bank aggregate, stamps each step with a logical seq, and records a
// trace of balances and queue depths. Sequential execution makes the
// trace fully deterministic, which is what the golden-file comparison
// relies on.
//
// The package also provides a concurrent stress runner that hammers a
// bank with randomized transfers while snapshot readers verify
// conservation; see stress.go.
package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/casbank/casbank/internal/bank"
	"github.com/casbank/casbank/internal/ledger"
)

// TraceEvent records the state after one flow step.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`

	// Balances holds every account's primary balance after the step.
	Balances map[string]int64 `json:"balances"`

	// Queued holds per-account pending future-payment counts, only for
	// accounts with a non-empty queue.
	Queued map[string]int `json:"queued,omitempty"`
}

// QueuedPayment is one queued obligation in a result, by payee name.
type QueuedPayment struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Result captures a scenario execution.
type Result struct {
	// RunID uniquely identifies this execution.
	RunID string `json:"run_id"`

	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`

	// Final state.
	Balances       map[string]int64           `json:"balances"`
	Overdrafts     map[string]int64           `json:"overdrafts,omitempty"`
	FuturePayments map[string][]QueuedPayment `json:"future_payments,omitempty"`
	Total          int64                      `json:"total"`

	// Failures lists expectation mismatches. Empty means the scenario
	// passed.
	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// RunOption configures a scenario execution.
type RunOption func(*runner)

// WithLogger attaches a logger for per-step progress. Default discards.
func WithLogger(l *slog.Logger) RunOption {
	return func(r *runner) { r.logger = l }
}

type runner struct {
	logger *slog.Logger
}

// Run executes a scenario and returns its result. Execution is
// sequential and deterministic; an error is returned only for a fatal
// ledger failure (retries exhausted), never for a failed expectation.
func Run(s *Scenario, opts ...RunOption) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r := &runner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(r)
	}

	accounts := make([]ledger.Account, len(s.Accounts))
	names := make([]string, len(s.Accounts))
	index := make(map[string]int, len(s.Accounts))
	for i, spec := range s.Accounts {
		acct, err := buildAccount(spec)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", spec.Name, err)
		}
		accounts[i] = acct
		names[i] = spec.Name
		index[spec.Name] = i
	}
	agg := bank.New(accounts)

	var clock Clock
	result := &Result{
		RunID:    uuid.NewString(),
		Scenario: s.Name,
	}

	for _, step := range s.Flow {
		seq := clock.Next()
		r.logger.Info("transfer", "seq", seq, "from", step.From, "to", step.To, "amount", step.Amount)
		if err := agg.Transfer(index[step.From], index[step.To], step.Amount); err != nil {
			return nil, fmt.Errorf("step %d (%s -> %s): %w", seq, step.From, step.To, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:      seq,
			From:     step.From,
			To:       step.To,
			Amount:   step.Amount,
			Balances: balancesByName(accounts, names),
			Queued:   queuedByName(accounts, names),
		})
	}

	result.Balances = balancesByName(accounts, names)
	result.Overdrafts = overdraftsByName(accounts, names)
	result.FuturePayments = futurePaymentsByName(accounts, names)

	total, err := agg.TotalBalance()
	if err != nil {
		return nil, fmt.Errorf("total balance: %w", err)
	}
	result.Total = total

	result.Failures = checkExpectations(s.Expect, result)
	sort.Strings(result.Failures)
	return result, nil
}

func buildAccount(spec AccountSpec) (ledger.Account, error) {
	switch spec.Kind {
	case KindCash:
		return ledger.NewCashAccount(spec.Balance), nil
	case KindOverdraft:
		od, err := ledger.NewOverdraftAccount(spec.OverdraftLimit, spec.OverdraftBalance)
		if err != nil {
			return nil, err
		}
		return ledger.NewOverdraftBankAccount(spec.Balance, od), nil
	default:
		return ledger.NewBankAccount(spec.Balance), nil
	}
}

func balancesByName(accounts []ledger.Account, names []string) map[string]int64 {
	out := make(map[string]int64, len(accounts))
	for i, a := range accounts {
		out[names[i]] = a.Balance()
	}
	return out
}

func queuedByName(accounts []ledger.Account, names []string) map[string]int {
	out := make(map[string]int)
	for i, a := range accounts {
		if n := len(futurePayments(a)); n > 0 {
			out[names[i]] = n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overdraftsByName(accounts []ledger.Account, names []string) map[string]int64 {
	out := make(map[string]int64)
	for i, a := range accounts {
		if o, ok := a.(*ledger.OverdraftBankAccount); ok {
			out[names[i]] = o.Overdraft().Balance()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func futurePaymentsByName(accounts []ledger.Account, names []string) map[string][]QueuedPayment {
	byAccount := make(map[ledger.Account]string, len(accounts))
	for i, a := range accounts {
		byAccount[a] = names[i]
	}

	out := make(map[string][]QueuedPayment)
	for i, a := range accounts {
		queued := futurePayments(a)
		if len(queued) == 0 {
			continue
		}
		list := make([]QueuedPayment, len(queued))
		for j, p := range queued {
			list[j] = QueuedPayment{To: byAccount[p.Payee], Amount: p.Amount}
		}
		out[names[i]] = list
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func futurePayments(a ledger.Account) []ledger.Payment {
	type queued interface {
		FuturePayments() []ledger.Payment
	}
	if q, ok := a.(queued); ok {
		return q.FuturePayments()
	}
	return nil
}

func checkExpectations(expect *ExpectClause, result *Result) []string {
	if expect == nil {
		return nil
	}

	var failures []string
	for name, want := range expect.Balances {
		if got := result.Balances[name]; got != want {
			failures = append(failures, fmt.Sprintf("balance %s: got %d, want %d", name, got, want))
		}
	}
	for name, want := range expect.Overdrafts {
		if got := result.Overdrafts[name]; got != want {
			failures = append(failures, fmt.Sprintf("overdraft %s: got %d, want %d", name, got, want))
		}
	}
	for name, want := range expect.FuturePayments {
		got := result.FuturePayments[name]
		if !queuedPaymentsEqual(got, want) {
			failures = append(failures, fmt.Sprintf("future payments %s: got %v, want %v", name, got, want))
		}
	}
	if expect.Total != nil && result.Total != *expect.Total {
		failures = append(failures, fmt.Sprintf("total: got %d, want %d", result.Total, *expect.Total))
	}
	return failures
}

func queuedPaymentsEqual(got []QueuedPayment, want []ExpectedPayment) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].To != want[i].To || got[i].Amount != want[i].Amount {
			return false
		}
	}
	return true
}
