package crawler

import (
	"context"
	"errors"
	"time"

	"chaincrawl/pkg/logger"
)

// EntryOutcome is the result of one entry within a run
type EntryOutcome struct {
	Name   string
	Result Result
	Err    error
}

// Summary describes a whole run
type Summary struct {
	Entries  []EntryOutcome
	Duration time.Duration
}

// Failed returns the number of entries that ended with an error
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Entries {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Saved returns the number of assets downloaded across all entries
func (s Summary) Saved() int {
	n := 0
	for _, o := range s.Entries {
		n += o.Result.Saved
	}
	return n
}

// Scheduler runs entries sequentially in store order
type Scheduler struct {
	rc     *RunContext
	engine *Engine
}

// NewScheduler creates a Scheduler over rc
func NewScheduler(rc *RunContext) *Scheduler {
	rc = rc.withDefaults()
	return &Scheduler{rc: rc, engine: &Engine{rc: rc}}
}

// Run crawls the named entries, or every entry when none are given. Unknown
// names and invalid entries are reported before any network activity. A
// failed entry is logged and the run moves on, unless the run is strict.
// The returned error joins every entry failure.
func (s *Scheduler) Run(ctx context.Context, names ...string) (Summary, error) {
	start := time.Now()
	var summary Summary

	if len(names) == 0 {
		names = s.rc.Store.Names()
	}
	for _, name := range names {
		if _, err := s.rc.Store.Get(name); err != nil {
			return summary, err
		}
	}
	if err := s.rc.Store.Validate(names...); err != nil {
		return summary, err
	}

	logger.LogComponentStart(s.rc.Logger, "scheduler", map[string]interface{}{
		"entries": len(names),
		"strict":  s.rc.Strict,
	})

	var failures []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		outcome := s.runOne(ctx, name)
		summary.Entries = append(summary.Entries, outcome)

		if outcome.Err == nil {
			continue
		}
		if errors.Is(outcome.Err, context.Canceled) || errors.Is(outcome.Err, context.DeadlineExceeded) {
			summary.Duration = time.Since(start)
			logger.LogComponentStop(s.rc.Logger, "scheduler", "cancelled")
			return summary, outcome.Err
		}
		failures = append(failures, outcome.Err)
		if s.rc.Strict {
			break
		}
	}

	summary.Duration = time.Since(start)
	logger.LogComponentStop(s.rc.Logger, "scheduler", "finished")
	s.rc.Logger.InfoWithFields("Run complete", map[string]interface{}{
		"entries":  len(summary.Entries),
		"failed":   summary.Failed(),
		"saved":    summary.Saved(),
		"duration": summary.Duration,
	})
	return summary, errors.Join(failures...)
}

func (s *Scheduler) runOne(ctx context.Context, name string) EntryOutcome {
	s.rc.Observer.EntryStarted(name)

	entry, err := s.rc.Store.Get(name)
	if err != nil {
		s.rc.Observer.EntryFinished(name, Result{}, err)
		return EntryOutcome{Name: name, Err: err}
	}

	res, err := s.engine.RunEntry(ctx, entry)
	logger.LogEntryResult(s.rc.Logger, name, res.Saved+res.Existing, res.Skipped, err)
	s.rc.Observer.EntryFinished(name, res, err)
	return EntryOutcome{Name: name, Result: res, Err: err}
}
