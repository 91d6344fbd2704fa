package solver

import (
	"time"

	"github.com/kevsman/pokerplayer-sub002/internal/compute"
)

// ReportCounters are the recoverable-error tallies of a run. Cycle
// cutoffs count traversal branches cut short by the depth, history or
// repeated-state safeguards; persistence errors count failed checkpoint
// and export writes.
type ReportCounters struct {
	CycleCutoffs      int64 `json:"cycle_cutoffs"`
	PersistenceErrors int64 `json:"persistence_errors"`
}

// RunReport summarizes a completed or interrupted run for logging.
type RunReport struct {
	RunID               string
	Backend             string
	Iterations          int
	InfoSets            int
	Duration            time.Duration
	AcceleratorFailures uint64
	Counters            ReportCounters
	BucketLookups       uint64
	BucketHits          uint64
	BucketHitRate       float64
}

func (t *Trainer) counters() ReportCounters {
	return ReportCounters{
		CycleCutoffs:      t.cycleCutoffs.Load(),
		PersistenceErrors: t.persistenceErrors.Load(),
	}
}

// Report summarizes the run so far.
func (t *Trainer) Report() RunReport {
	cache := t.bucketer.Stats()
	report := RunReport{
		RunID:         t.runID,
		Backend:       t.backend.Name(),
		Iterations:    int(t.iteration.Load()),
		InfoSets:      t.nodes.Size(),
		Duration:      time.Since(t.startedAt),
		Counters:      t.counters(),
		BucketLookups: cache.Lookups,
		BucketHits:    cache.Hits,
	}
	if cache.Lookups > 0 {
		report.BucketHitRate = float64(cache.Hits) / float64(cache.Lookups)
	}
	if fb, ok := t.backend.(*compute.FallbackBackend); ok {
		report.AcceleratorFailures = fb.Failures()
	}
	return report
}
