package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// traceSnapshot is the golden-file projection of a Result. The RunID is
// excluded: it is unique per execution and would break byte comparison.
type traceSnapshot struct {
	Scenario       string                     `json:"scenario"`
	Trace          []TraceEvent               `json:"trace"`
	Balances       map[string]int64           `json:"balances"`
	Overdrafts     map[string]int64           `json:"overdrafts,omitempty"`
	FuturePayments map[string][]QueuedPayment `json:"future_payments,omitempty"`
	Total          int64                      `json:"total"`
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}

	snapshot := traceSnapshot{
		Scenario:       result.Scenario,
		Trace:          result.Trace,
		Balances:       result.Balances,
		Overdrafts:     result.Overdrafts,
		FuturePayments: result.FuturePayments,
		Total:          result.Total,
	}

	// MarshalIndent is deterministic here: struct fields keep
	// declaration order and map keys are sorted.
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)

	return result
}
