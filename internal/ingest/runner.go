// Package ingest persists extracted transaction records into the row
// store, one row at a time, reporting progress as it goes.
package ingest

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/store"
)

// State is the lifecycle of one ingestion run.
type State int32

const (
	StateNotStarted State = iota
	StateConnecting
	StateInProgress
	StateCompleted
	StateConnectionFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateConnecting:
		return "connecting"
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	case StateConnectionFailed:
		return "connection-failed"
	}
	return "unknown"
}

// Outcome is the final tally of one run.
type Outcome struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// OpenStore acquires the row-store connection for one run. The run
// owns the connection exclusively and closes it on every exit path.
type OpenStore func(ctx context.Context) (store.RowStore, error)

// Runner starts ingestion runs. It holds no per-run state, so one
// Runner can serve many sequential runs.
type Runner struct {
	open        OpenStore
	resultsPath string
	log         zerolog.Logger
}

func NewRunner(open OpenStore, resultsPath string, log zerolog.Logger) *Runner {
	return &Runner{open: open, resultsPath: resultsPath, log: log}
}

// Run is one in-flight ingestion. Progress values are produced lazily:
// the consumer drives the run by draining the channel, and may stop
// pulling at any time; cancel the context to release the producer.
type Run struct {
	progress chan int
	done     chan struct{}
	state    atomic.Int32
	outcome  Outcome
	err      error
}

// Progress yields one integer percentage per persisted row, in
// [0,100], non-decreasing, ending at exactly 100. The channel closes
// when the run finishes. A run that fails to connect closes the
// channel without emitting anything.
func (r *Run) Progress() <-chan int { return r.progress }

// State reports the run's current lifecycle state.
func (r *Run) State() State { return State(r.state.Load()) }

// Wait blocks until the run has finished and returns the tally. The
// error is non-nil only for run-fatal failures (connection) or
// cancellation; individual row failures are counted, not returned.
func (r *Run) Wait() (Outcome, error) {
	<-r.done
	return r.outcome, r.err
}

func (r *Run) setState(s State) { r.state.Store(int32(s)) }

// Start begins persisting records in assembler order. Each row is
// attempted exactly once and commits independently; a row failure
// increments the failed counter and never aborts the run. Only an
// unreachable row store is run-fatal.
func (rn *Runner) Start(ctx context.Context, records []models.Record) *Run {
	run := &Run{
		progress: make(chan int),
		done:     make(chan struct{}),
	}
	run.setState(StateNotStarted)

	go func() {
		defer close(run.done)
		defer close(run.progress)

		run.setState(StateConnecting)
		st, err := rn.open(ctx)
		if err != nil {
			rn.log.Error().Err(err).Msg("could not connect to row store")
			run.setState(StateConnectionFailed)
			run.err = err
			return
		}
		defer st.Close()

		run.setState(StateInProgress)
		total := len(records)
		if total == 0 {
			// Guard the step-size division: nothing to do, report an
			// immediate 100 and complete with a zero tally.
			if !emit(ctx, run, 100) {
				run.err = ctx.Err()
				return
			}
			rn.finish(run)
			return
		}

		step := 100.0 / float64(total)
		for i, rec := range records {
			if err := st.InsertRecord(ctx, rec); err != nil {
				rn.log.Warn().Str("id", rec.ID).Err(err).Msg("row insert failed")
				run.outcome.Failed++
			} else {
				run.outcome.Succeeded++
			}

			pct := int(step * float64(i+1))
			if i == total-1 {
				pct = 100
			}
			if pct < 0 {
				pct = 0
			} else if pct > 100 {
				pct = 100
			}
			if !emit(ctx, run, pct) {
				run.err = ctx.Err()
				return
			}
		}

		rn.finish(run)
	}()

	return run
}

// emit delivers one progress value, giving up when the consumer's
// context is gone.
func emit(ctx context.Context, run *Run, pct int) bool {
	select {
	case run.progress <- pct:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish marks the run completed and writes the durable results
// artifact for the later results interaction.
func (rn *Runner) finish(run *Run) {
	run.setState(StateCompleted)
	if err := WriteResults(rn.resultsPath, run.outcome); err != nil {
		rn.log.Error().Err(err).Msg("could not write results artifact")
	}
	rn.log.Info().
		Int("succeeded", run.outcome.Succeeded).
		Int("failed", run.outcome.Failed).
		Msg("ingestion finished")
}
