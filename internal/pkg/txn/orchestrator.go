package txn

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"slothold/internal/pkg/clock"
	"slothold/internal/pkg/resilience"
)

// Step is one named unit of a multi-entity write sequence. Execute receives
// the step's data; Rollback receives Execute's prior result.
type Step struct {
	Name     string
	Data     any
	Execute  func(ctx context.Context, data any) (any, error)
	Rollback func(ctx context.Context, result any) error
}

type StepResult struct {
	Name   string
	Output any
}

type Result struct {
	Success        bool
	Results        []StepResult
	Err            error
	CompletedSteps []string
	// RollbackFailed lists steps whose compensation itself failed. Compensation
	// is best-effort, not two-phase commit; failures are logged and surfaced
	// here, never silently swallowed.
	RollbackFailed []string
}

// Record keeps a finished transaction around briefly for diagnostics.
type Record struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Result     Result
}

const recentLimit = 50

// Orchestrator executes ordered steps with reverse-order compensation on
// failure. Steps inside one transaction run sequentially; separate
// transactions may run concurrently.
type Orchestrator struct {
	guard *resilience.IdempotencyGuard
	clk   clock.Clock

	mu     sync.Mutex
	recent []Record
}

func NewOrchestrator(guard *resilience.IdempotencyGuard, clk clock.Clock) *Orchestrator {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Orchestrator{guard: guard, clk: clk}
}

func (o *Orchestrator) Run(ctx context.Context, txnID string, steps []Step) Result {
	started := o.clk.Now()
	var res Result

	for i, st := range steps {
		out, err := o.runStep(ctx, txnID, i, st)
		if err != nil {
			res.Err = fmt.Errorf("step %s: %w", st.Name, err)
			o.compensate(ctx, txnID, steps, &res, i)
			o.remember(txnID, started, res)
			return res
		}
		res.Results = append(res.Results, StepResult{Name: st.Name, Output: out})
		res.CompletedSteps = append(res.CompletedSteps, st.Name)
	}

	res.Success = true
	o.remember(txnID, started, res)
	return res
}

// runStep derives a per-step idempotency key from (txnID, index, data) so a
// retried transaction does not re-execute an already completed step.
func (o *Orchestrator) runStep(ctx context.Context, txnID string, index int, st Step) (any, error) {
	if o.guard == nil {
		return st.Execute(ctx, st.Data)
	}
	key := stepKey(txnID, index, st.Data)
	out, cached, err := o.guard.Execute(ctx, key, func(ctx context.Context) (any, error) {
		return st.Execute(ctx, st.Data)
	})
	if cached {
		log.Printf("txn_step_skipped txn=%s step=%s", txnID, st.Name)
	}
	return out, err
}

func (o *Orchestrator) compensate(ctx context.Context, txnID string, steps []Step, res *Result, failedIndex int) {
	for j := failedIndex - 1; j >= 0; j-- {
		if steps[j].Rollback == nil {
			continue
		}
		prior := res.Results[j].Output
		if err := steps[j].Rollback(ctx, prior); err != nil {
			log.Printf("txn_rollback_failed txn=%s step=%s err=%v", txnID, steps[j].Name, err)
			res.RollbackFailed = append(res.RollbackFailed, steps[j].Name)
			continue
		}
		// The step's recorded outcome no longer reflects reality; drop it so
		// a retried transaction re-executes the step instead of skipping it.
		if o.guard != nil {
			o.guard.Forget(ctx, stepKey(txnID, j, steps[j].Data))
		}
	}
}

func (o *Orchestrator) remember(txnID string, started time.Time, res Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recent = append(o.recent, Record{
		ID:         txnID,
		StartedAt:  started,
		FinishedAt: o.clk.Now(),
		Result:     res,
	})
	if len(o.recent) > recentLimit {
		o.recent = o.recent[len(o.recent)-recentLimit:]
	}
}

// Recent returns a snapshot of recently finished transactions, newest last.
func (o *Orchestrator) Recent() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Record, len(o.recent))
	copy(out, o.recent)
	return out
}

func stepKey(txnID string, index int, data any) string {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", data))
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("txn:%s:%d:%x", txnID, index, sum[:8])
}
