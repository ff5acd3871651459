package sla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CaseRepository is the persistence the batch evaluator needs
type CaseRepository interface {
	// ForEachOpenCase streams every non-terminal case. Returning an error from fn stops the scan.
	ForEachOpenCase(ctx context.Context, fn func(Case) error) error
	GetCase(ctx context.Context, id string) (*Case, error)
	// SaveSLAState writes update only if the stored version still equals expectedVersion,
	// otherwise it returns ErrVersionConflict.
	SaveSLAState(ctx context.Context, id string, expectedVersion int64, update SLAUpdate) error
}

// EventSink receives the events of a persisted evaluation
type EventSink interface {
	Dispatch(ctx context.Context, c Case, events []Event) error
}

// BatchOptions tunes EvaluateOpenCases
type BatchOptions struct {
	Workers    int
	MaxRetries int // retries after a version conflict
}

// Failure classes reported per case
const (
	FailureNoRule        = "no_rule"
	FailureConfiguration = "configuration"
	FailureInvalidState  = "invalid_state"
	FailureConflict      = "version_conflict"
	FailureDispatch      = "dispatch"
	FailureOther         = "error"
)

// CaseFailure records why one case could not be evaluated
type CaseFailure struct {
	CaseID string `json:"case_id" bson:"case_id"`
	Kind   string `json:"kind" bson:"kind"`
	Error  string `json:"error" bson:"error"`
}

// BatchReport summarises one batch run
type BatchReport struct {
	StartedAt  time.Time         `json:"started_at" bson:"started_at"`
	FinishedAt time.Time         `json:"finished_at" bson:"finished_at"`
	Evaluated  int               `json:"evaluated" bson:"evaluated"`
	Changed    int               `json:"changed" bson:"changed"`
	Skipped    int               `json:"skipped" bson:"skipped"`
	Failed     int               `json:"failed" bson:"failed"`
	Events     map[EventKind]int `json:"events" bson:"events"`
	Failures   []CaseFailure     `json:"failures,omitempty" bson:"failures,omitempty"`
}

// DispatchError wraps a sink failure that happened after the evaluation was persisted
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch SLA events: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// EvaluateStored evaluates a case using its rule snapshot, resolving the rule first when the
// case never had one.
func (e *Engine) EvaluateStored(ctx context.Context, c Case, now time.Time) (*Evaluation, error) {
	if c.Terminal || c.SubmittedAt == nil {
		return e.EvaluateCase(c, c.Rule, now)
	}

	rule := c.Rule
	if rule == nil {
		selected, err := e.SelectRuleFor(ctx, c.Attributes, *c.SubmittedAt)
		if err != nil {
			return nil, err
		}
		snapshot := *selected
		rule = &snapshot
		c.SLADeadline = nil
	}

	return e.EvaluateCase(c, rule, now)
}

// EvaluateAndSave evaluates one case, persists the result under optimistic versioning and
// dispatches its events. A version conflict reloads the case and retries up to maxRetries times.
// Events are dispatched only after a successful save, so a concurrent writer never causes
// them to fire twice.
func (e *Engine) EvaluateAndSave(ctx context.Context, repo CaseRepository, sink EventSink, c Case, now time.Time, maxRetries int) (*Evaluation, error) {
	for attempt := 0; ; attempt++ {
		ev, err := e.EvaluateStored(ctx, c, now)
		if err != nil {
			return nil, err
		}
		if !ev.Changed() {
			return ev, nil
		}

		err = repo.SaveSLAState(ctx, c.ID, c.Version, ev.Update)
		if err == nil {
			if sink != nil && len(ev.Events) > 0 {
				if err := sink.Dispatch(ctx, c, ev.Events); err != nil {
					return ev, &DispatchError{Err: err}
				}
			}
			return ev, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxRetries {
			return nil, err
		}

		fresh, err := repo.GetCase(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload case %s: %w", c.ID, err)
		}
		c = *fresh
	}
}

// EvaluateOpenCases evaluates every open case with bounded concurrency. A failing case is
// recorded in the report and never aborts the batch; only a failed scan returns an error.
func (e *Engine) EvaluateOpenCases(ctx context.Context, repo CaseRepository, sink EventSink, opts BatchOptions) (*BatchReport, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	now := e.clock.Now()
	report := &BatchReport{
		StartedAt: now,
		Events:    make(map[EventKind]int),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(opts.Workers)

	scanErr := repo.ForEachOpenCase(ctx, func(c Case) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			ev, err := e.EvaluateAndSave(ctx, repo, sink, c, now, opts.MaxRetries)

			mu.Lock()
			defer mu.Unlock()
			report.record(c.ID, ev, err)
			return nil
		})
		return nil
	})

	_ = g.Wait()
	report.FinishedAt = e.clock.Now()

	if scanErr != nil {
		return report, fmt.Errorf("failed to scan open cases: %w", scanErr)
	}
	return report, nil
}

func (r *BatchReport) record(caseID string, ev *Evaluation, err error) {
	if ev != nil {
		r.Evaluated++
		if ev.Changed() {
			r.Changed++
		}
		for _, event := range ev.Events {
			r.Events[event.Kind]++
		}
	}
	if err == nil {
		return
	}

	kind := ClassifyError(err)
	if kind == FailureInvalidState {
		r.Skipped++
	} else {
		r.Failed++
	}
	r.Failures = append(r.Failures, CaseFailure{CaseID: caseID, Kind: kind, Error: err.Error()})
}

// ClassifyError maps an evaluation error onto a failure class
func ClassifyError(err error) string {
	var dispatchErr *DispatchError
	switch {
	case errors.As(err, &dispatchErr):
		return FailureDispatch
	case errors.Is(err, ErrNoApplicableRule):
		return FailureNoRule
	case IsConfigurationError(err):
		return FailureConfiguration
	case errors.Is(err, ErrInvalidCaseState):
		return FailureInvalidState
	case errors.Is(err, ErrVersionConflict):
		return FailureConflict
	default:
		return FailureOther
	}
}
