package reconciler

import (
	"context"
	"sync"

	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// State is the confirmation-view lifecycle state.
type State string

const (
	// StateClosed is both the initial and the only terminal state.
	StateClosed State = "closed"
	// StateChecking means an eligibility check is in flight.
	StateChecking State = "checking"
	// StateReviewing means a snapshot is held and awaiting a patron decision.
	StateReviewing State = "reviewing"
	// StateSubmitting means a borrow request is in flight.
	StateSubmitting State = "submitting"
	// StateErrored means the last eligibility check failed. No snapshot is
	// retained; the only way forward is reopening, which re-checks.
	StateErrored State = "errored"
)

var (
	// ErrSubmissionBlocked is returned by Submit while any blocking bucket
	// of the current snapshot is non-empty.
	ErrSubmissionBlocked = errors.New("submission is blocked by already borrowed, requested, or reserved items")
	// ErrNotReviewing is returned by Submit outside the reviewing state.
	ErrNotReviewing = errors.New("no reviewed snapshot to submit")
	// ErrSubmitInProgress is returned by Open while a submission is in
	// flight.
	ErrSubmitInProgress = errors.New("a borrow submission is already in progress")
)

// EligibilityChecker is the consumed port for the remote eligibility
// service.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, ids []eligibility.ItemID) (*eligibility.Snapshot, error)
}

// BorrowSubmitter is the consumed port for the remote borrow submission
// service.
type BorrowSubmitter interface {
	SubmitBorrow(ctx context.Context, req eligibility.BorrowRequest) (string, error)
}

// Reconciler drives the check → review → confirm → submit cycle for a
// patron-selected candidate set. It guarantees the patron only submits a
// request the server has already vetted as legal at the moment of the last
// check.
//
// A snapshot is considered stale the instant the view closes: reopening
// always re-issues the check, and responses from superseded checks are
// discarded rather than merged ("last write wins"). Failures are converted
// into state and surfaced; nothing is retried automatically.
type Reconciler struct {
	checker   EligibilityChecker
	submitter BorrowSubmitter
	log       logger.Logger

	mu       sync.Mutex
	state    State
	seq      uint64
	snapshot *eligibility.Snapshot
	lastErr  error
}

// New returns a Reconciler in the closed state.
func New(checker EligibilityChecker, submitter BorrowSubmitter) *Reconciler {
	return &Reconciler{
		checker:   checker,
		submitter: submitter,
		log:       logger.New(),
		state:     StateClosed,
	}
}

// State returns the current lifecycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the currently held snapshot, or nil outside the reviewing
// and submitting states.
func (r *Reconciler) Snapshot() *eligibility.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Decision returns the submission gate for the currently held snapshot. It
// denies whenever there is no snapshot to decide on.
func (r *Reconciler) Decision() eligibility.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		return eligibility.Decision{}
	}
	return eligibility.ComputeDecision(r.snapshot)
}

// Err returns the failure that put the reconciler into the errored state, or
// the last submission failure while reviewing.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Open starts a confirmation-view lifecycle over the given candidates, which
// should be the full cart contents at the moment the patron opens the view.
// It issues a fresh eligibility check even when a previous snapshot for the
// same candidates exists. An empty candidate set short-circuits to an empty
// reviewing snapshot without a network call.
//
// Opening while a previous check is still in flight supersedes it; the late
// response is dropped when it arrives. Opening during a submission is
// refused.
func (r *Reconciler) Open(ctx context.Context, ids []eligibility.ItemID) error {
	r.mu.Lock()
	if r.state == StateSubmitting {
		r.mu.Unlock()
		return errors.WithStack(ErrSubmitInProgress)
	}

	r.seq++
	seq := r.seq
	r.state = StateChecking
	r.snapshot = nil
	r.lastErr = nil

	if len(ids) == 0 {
		// Nothing to check; show the empty state immediately.
		r.state = StateReviewing
		r.snapshot = &eligibility.Snapshot{}
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	snapshot, err := r.checker.CheckEligibility(ctx, ids)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq != seq {
		// Superseded by a newer open or a close while in flight; drop the
		// response rather than updating stale view state.
		r.log.Debug("dropping superseded eligibility response")
		return nil
	}

	if err != nil {
		r.state = StateErrored
		r.lastErr = err
		return errors.WithStack(err)
	}

	if err := snapshot.ValidatePartition(ids); err != nil {
		r.state = StateErrored
		r.lastErr = err
		return errors.WithStack(err)
	}

	r.state = StateReviewing
	r.snapshot = snapshot
	return nil
}

// Submit builds the borrow payload from the reviewed snapshot's allow
// buckets and sends it. It is only invocable from the reviewing state and
// only while the snapshot's blocking buckets are all empty; callers are
// expected to disable their submit control whenever Decision denies.
//
// On success the view closes and the server's confirmation message is
// returned. On failure the reconciler stays in reviewing with the structured
// error retained, so the patron can retry or adjust.
func (r *Reconciler) Submit(ctx context.Context, description string) (string, error) {
	r.mu.Lock()
	if r.state != StateReviewing || r.snapshot == nil {
		r.mu.Unlock()
		return "", errors.WithStack(ErrNotReviewing)
	}
	if !eligibility.ComputeDecision(r.snapshot).IsAllowedBorrowRequest {
		r.mu.Unlock()
		return "", errors.WithStack(ErrSubmissionBlocked)
	}

	seq := r.seq
	req := r.snapshot.BorrowRequest(description)
	r.state = StateSubmitting
	r.mu.Unlock()

	message, err := r.submitter.SubmitBorrow(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq != seq || r.state != StateSubmitting {
		// The view was closed while the submission was in flight. The
		// request may still have succeeded server-side; the caller gets the
		// outcome but the closed view is left alone.
		r.log.Debug("borrow submission finished after view closed")
		return message, errors.WithStack(err)
	}

	if err != nil {
		r.state = StateReviewing
		r.lastErr = err
		return "", errors.WithStack(err)
	}

	r.state = StateClosed
	r.snapshot = nil
	return message, nil
}

// Close discards the held snapshot and returns to the closed state. A check
// still in flight is superseded; its response will be dropped on arrival.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.state = StateClosed
	r.snapshot = nil
	r.lastErr = nil
}
