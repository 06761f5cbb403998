package cart

import (
	"context"
	"database/sql"
	"time"

	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

type AddEntryOptions struct {
	Kind        string
	CandidateID int
	Title       string
}

// AddEntry appends a candidate to its kind's selection if it isn't already
// there. Adding an existing candidate is a no-op that returns the existing
// entry, so cards toggling membership from several surfaces stay idempotent.
func (svc *Service) AddEntry(ctx context.Context, opts AddEntryOptions) (*Entry, error) {
	var entry *Entry

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := &Entry{}
		err := tx.
			NewSelect().
			Model(existing).
			Where("ce.kind = ?", opts.Kind).
			Where("ce.candidate_id = ?", opts.CandidateID).
			Scan(ctx)
		if err == nil {
			entry = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.WithStack(err)
		}

		var maxPosition int
		err = tx.
			NewSelect().
			Model((*Entry)(nil)).
			ColumnExpr("COALESCE(MAX(ce.position), 0)").
			Where("ce.kind = ?", opts.Kind).
			Scan(ctx, &maxPosition)
		if err != nil {
			return errors.WithStack(err)
		}

		now := time.Now()
		entry = &Entry{
			Kind:        opts.Kind,
			CandidateID: opts.CandidateID,
			Title:       opts.Title,
			Position:    maxPosition + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		_, err = tx.
			NewInsert().
			Model(entry).
			Returning("*").
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

type ListEntriesOptions struct {
	Kind string
}

// ListEntries returns a kind's selection in the order it was assembled.
func (svc *Service) ListEntries(ctx context.Context, opts ListEntriesOptions) ([]*Entry, error) {
	entries := []*Entry{}

	q := svc.db.
		NewSelect().
		Model(&entries).
		Order("ce.position ASC")

	if opts.Kind != "" {
		q = q.Where("ce.kind = ?", opts.Kind)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entries, nil
}

// ItemIDs returns the current item-kind selection as typed candidate IDs,
// the shape the reconciler's caller feeds into an eligibility check.
func (svc *Service) ItemIDs(ctx context.Context) ([]eligibility.ItemID, error) {
	entries, err := svc.ListEntries(ctx, ListEntriesOptions{Kind: KindItem})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	ids := make([]eligibility.ItemID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, eligibility.ItemID(entry.CandidateID))
	}
	return ids, nil
}

// RemoveEntry drops one candidate from its kind's selection.
func (svc *Service) RemoveEntry(ctx context.Context, kind string, candidateID int) error {
	res, err := svc.db.
		NewDelete().
		Model((*Entry)(nil)).
		Where("kind = ?", kind).
		Where("candidate_id = ?", candidateID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if rows == 0 {
		return errcodes.NotFound("Cart entry")
	}

	return nil
}

// RemoveEntries drops several candidates from a kind's selection in one
// statement. Used after a successful submission to reconcile the cart with
// what the server accepted.
func (svc *Service) RemoveEntries(ctx context.Context, kind string, candidateIDs []int) error {
	if len(candidateIDs) == 0 {
		return nil
	}

	_, err := svc.db.
		NewDelete().
		Model((*Entry)(nil)).
		Where("kind = ?", kind).
		Where("candidate_id IN (?)", bun.In(candidateIDs)).
		Exec(ctx)
	return errors.WithStack(err)
}

// ClearEntries empties one kind's selection, or the whole cart when kind is
// empty.
func (svc *Service) ClearEntries(ctx context.Context, kind string) error {
	q := svc.db.
		NewDelete().
		Model((*Entry)(nil))

	if kind != "" {
		q = q.Where("kind = ?", kind)
	} else {
		q = q.Where("1 = 1")
	}

	_, err := q.Exec(ctx)
	return errors.WithStack(err)
}

// CountEntries returns the size of one kind's selection.
func (svc *Service) CountEntries(ctx context.Context, kind string) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*Entry)(nil)).
		Where("ce.kind = ?", kind).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}
