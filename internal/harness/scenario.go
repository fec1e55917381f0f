package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Account kinds accepted in scenario files.
const (
	KindBank      = "bank"      // deferral-capable, non-negative floor (default)
	KindCash      = "cash"      // unconstrained baseline
	KindOverdraft = "overdraft" // deferral-capable with overdraft backing
)

// Scenario is a deterministic transfer script over a named set of
// accounts, with optional expectations on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden
	// file when the scenario runs under golden comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Accounts declares the account set. Declaration order fixes the
	// bank aggregate's indexing.
	Accounts []AccountSpec `yaml:"accounts"`

	// Flow is the transfer script, executed sequentially.
	Flow []TransferStep `yaml:"flow"`

	// Expect validates the final state. Nil means the scenario only
	// records a trace.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// AccountSpec declares one account.
type AccountSpec struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind,omitempty"`
	Balance int64  `yaml:"balance"`

	// Overdraft fields, used only when Kind is "overdraft".
	OverdraftLimit   int64 `yaml:"overdraft_limit,omitempty"`
	OverdraftBalance int64 `yaml:"overdraft_balance,omitempty"`
}

// TransferStep is one scripted transfer.
type TransferStep struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount int64  `yaml:"amount"`
}

// ExpectClause validates the final state of a scenario. All checks are
// subset matches: only the named accounts are validated.
type ExpectClause struct {
	// Balances maps account name to expected final primary balance.
	Balances map[string]int64 `yaml:"balances,omitempty"`

	// Overdrafts maps account name to expected final overdraft balance.
	Overdrafts map[string]int64 `yaml:"overdrafts,omitempty"`

	// FuturePayments maps account name to the expected queued
	// obligations, oldest first. An entry with an empty list asserts
	// the account's queue is empty.
	FuturePayments map[string][]ExpectedPayment `yaml:"future_payments,omitempty"`

	// Total, when set, is the expected bank-wide total balance.
	Total *int64 `yaml:"total,omitempty"`
}

// ExpectedPayment is one expected queued obligation.
type ExpectedPayment struct {
	To     string `yaml:"to"`
	Amount int64  `yaml:"amount"`
}

// LoadScenario reads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural consistency: a name, at least one account,
// unique account names, known kinds, and flow steps that reference
// declared accounts with positive amounts.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("scenario needs at least one account")
	}

	names := make(map[string]bool, len(s.Accounts))
	for _, a := range s.Accounts {
		if a.Name == "" {
			return fmt.Errorf("account name is required")
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate account name %q", a.Name)
		}
		names[a.Name] = true

		switch a.Kind {
		case "", KindBank, KindCash, KindOverdraft:
		default:
			return fmt.Errorf("account %q: unknown kind %q", a.Name, a.Kind)
		}
		if a.Kind != KindOverdraft && (a.OverdraftLimit != 0 || a.OverdraftBalance != 0) {
			return fmt.Errorf("account %q: overdraft fields require kind %q", a.Name, KindOverdraft)
		}
	}

	for i, step := range s.Flow {
		if !names[step.From] {
			return fmt.Errorf("flow step %d: unknown account %q", i+1, step.From)
		}
		if !names[step.To] {
			return fmt.Errorf("flow step %d: unknown account %q", i+1, step.To)
		}
		if step.From == step.To {
			return fmt.Errorf("flow step %d: from and to are both %q", i+1, step.From)
		}
		if step.Amount <= 0 {
			return fmt.Errorf("flow step %d: amount must be positive", i+1)
		}
	}

	if s.Expect != nil {
		for name := range s.Expect.Balances {
			if !names[name] {
				return fmt.Errorf("expect.balances: unknown account %q", name)
			}
		}
		for name := range s.Expect.Overdrafts {
			if !names[name] {
				return fmt.Errorf("expect.overdrafts: unknown account %q", name)
			}
		}
		for name := range s.Expect.FuturePayments {
			if !names[name] {
				return fmt.Errorf("expect.future_payments: unknown account %q", name)
			}
		}
	}
	return nil
}
