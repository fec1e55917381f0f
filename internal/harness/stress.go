package harness

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casbank/casbank/internal/bank"
	"github.com/casbank/casbank/internal/ledger"
)

// StressOptions configures a concurrent stress run.
type StressOptions struct {
	// Accounts is the number of deferral-capable accounts.
	Accounts int
	// InitialBalance seeds every account.
	InitialBalance int64
	// Workers is the number of concurrent transfer goroutines.
	Workers int
	// TransfersPerWorker is each worker's transfer count.
	TransfersPerWorker int
	// MaxAmount bounds individual transfer amounts (inclusive).
	MaxAmount int64
	// Seed makes worker request streams reproducible. The interleaving
	// is still up to the scheduler; only the streams are fixed.
	Seed int64
	// Snapshots enables a concurrent total-balance reader that
	// verifies conservation while transfers are in flight.
	Snapshots bool

	// Logger for progress output. Nil discards.
	Logger *slog.Logger
}

// StressReport summarizes a stress run.
type StressReport struct {
	RunID     string        `json:"run_id"`
	Accounts  int           `json:"accounts"`
	Transfers int           `json:"transfers"`
	Snapshots int           `json:"snapshots"`
	Total     int64         `json:"total"`
	Want      int64         `json:"want"`
	Conserved bool          `json:"conserved"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Stress runs a randomized concurrent transfer workload over a bank and
// verifies that the total balance is conserved, both in concurrent
// snapshots and at quiescence. Deferred obligations may remain queued at
// the end; they hold no money, so conservation is unaffected.
func Stress(opts StressOptions) (*StressReport, error) {
	if opts.Accounts < 2 {
		return nil, fmt.Errorf("stress needs at least 2 accounts, got %d", opts.Accounts)
	}
	if opts.Workers < 1 || opts.TransfersPerWorker < 1 {
		return nil, fmt.Errorf("stress needs at least one worker and one transfer")
	}
	if opts.MaxAmount < 1 {
		opts.MaxAmount = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	accounts := make([]ledger.Account, opts.Accounts)
	for i := range accounts {
		accounts[i] = ledger.NewBankAccount(opts.InitialBalance)
	}
	agg := bank.New(accounts)
	want := opts.InitialBalance * int64(opts.Accounts)

	report := &StressReport{
		RunID:    uuid.NewString(),
		Accounts: opts.Accounts,
		Want:     want,
	}

	start := time.Now()
	errs := make(chan error, opts.Workers+1)
	stop := make(chan struct{})

	var readerWG sync.WaitGroup
	if opts.Snapshots {
		readerWG.Add(1)
		go func() {
			defer readerWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				total, err := agg.TotalBalance()
				if err != nil {
					errs <- fmt.Errorf("snapshot: %w", err)
					return
				}
				if total != want {
					errs <- fmt.Errorf("snapshot saw %d, want %d", total, want)
					return
				}
				report.Snapshots++
				time.Sleep(time.Millisecond)
			}
		}()
	}

	var workerWG sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		workerWG.Add(1)
		go func(seed int64) {
			defer workerWG.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < opts.TransfersPerWorker; i++ {
				from := rng.Intn(opts.Accounts)
				to := rng.Intn(opts.Accounts)
				if from == to {
					continue
				}
				amount := rng.Int63n(opts.MaxAmount) + 1
				if err := agg.Transfer(from, to, amount); err != nil {
					errs <- fmt.Errorf("transfer %d -> %d: %w", from, to, err)
					return
				}
			}
		}(opts.Seed + int64(w))
	}

	workerWG.Wait()
	close(stop)
	readerWG.Wait()

	select {
	case err := <-errs:
		return report, err
	default:
	}

	total, err := agg.TotalBalance()
	if err != nil {
		return report, fmt.Errorf("final total: %w", err)
	}
	report.Total = total
	report.Conserved = total == want
	report.Transfers = opts.Workers * opts.TransfersPerWorker
	report.Elapsed = time.Since(start)

	logger.Info("stress complete",
		"run_id", report.RunID,
		"transfers", report.Transfers,
		"snapshots", report.Snapshots,
		"total", report.Total,
		"conserved", report.Conserved,
	)
	if !report.Conserved {
		return report, fmt.Errorf("conservation violated: total %d, want %d", total, want)
	}
	return report, nil
}
