package metrics

import (
	"context"
	"log"
	"time"

	"slothold/internal/domain"
	"slothold/internal/pkg/clock"
)

type Repo interface {
	Increment(ctx context.Context, at time.Time, d domain.MetricDeltas) error
}

// Recorder upserts hourly counters. A metrics outage is logged, never
// surfaced into the reservation flow that emitted the delta.
type Recorder struct {
	repo Repo
	clk  clock.Clock
}

func NewRecorder(repo Repo, clk clock.Clock) *Recorder {
	return &Recorder{repo: repo, clk: clk}
}

func (r *Recorder) Record(ctx context.Context, d domain.MetricDeltas) {
	if err := r.repo.Increment(ctx, r.clk.Now(), d); err != nil {
		log.Printf("metrics_increment_failed err=%v", err)
	}
}
