package eligibility

import (
	"github.com/pkg/errors"
)

// ItemID identifies a physical library item. It is deliberately a distinct
// type from ResourceID: the backend assigns the two kinds of identifiers
// independently, so a raw integer can legitimately refer to both an item and
// a resource at the same time.
type ItemID int

// ResourceID identifies a standalone resource (ebook or audiobook).
type ResourceID int

// ItemSummary is the per-candidate payload the eligibility service returns
// inside each bucket.
type ItemSummary struct {
	ID    ItemID `json:"id"`
	Title string `json:"title"`
}

// Snapshot is the result of checking a candidate set against server state at
// a point in time. Every candidate submitted to the check appears in exactly
// one of the five buckets. A snapshot is replaced wholesale on every check
// and is never patched incrementally.
//
// The JSON field names follow the backend's wire contract.
type Snapshot struct {
	AllowToBorrowItems    []ItemSummary `json:"allowToBorrowItems"`
	AllowToReserveItems   []ItemSummary `json:"allowToReserveItems"`
	AlreadyBorrowedItems  []ItemSummary `json:"alreadyBorrowedItems"`
	AlreadyRequestedItems []ItemSummary `json:"alreadyRequestedItems"`
	AlreadyReservedItems  []ItemSummary `json:"alreadyReservedItems"`
}

// Decision says whether the snapshot permits submitting a borrow request. It
// is derived from a snapshot on demand and never stored, so it can't diverge
// from the snapshot it was computed from.
type Decision struct {
	IsAllowedBorrowRequest bool
}

// BorrowRequest is the payload for the borrow submission endpoint. It is
// only ever constructed from a snapshot's allow buckets, never from raw cart
// state, which may be stale relative to the last check.
type BorrowRequest struct {
	Description        string   `json:"description"`
	LibraryItemIDs     []ItemID `json:"libraryItemIds"`
	ReservationItemIDs []ItemID `json:"reservationItemIds"`
}

// ComputeDecision returns the all-or-nothing submission gate: a borrow
// request is allowed only while every blocking bucket is empty. Partial
// submission of just the clean subset is intentionally not offered; the
// patron has to remove blocked candidates from the cart first, so nothing
// they asked for is silently dropped.
func ComputeDecision(s *Snapshot) Decision {
	return Decision{
		IsAllowedBorrowRequest: len(s.AlreadyBorrowedItems) == 0 &&
			len(s.AlreadyRequestedItems) == 0 &&
			len(s.AlreadyReservedItems) == 0,
	}
}

// BorrowRequest builds the submission payload from the snapshot's allow
// buckets.
func (s *Snapshot) BorrowRequest(description string) BorrowRequest {
	req := BorrowRequest{
		Description:        description,
		LibraryItemIDs:     make([]ItemID, 0, len(s.AllowToBorrowItems)),
		ReservationItemIDs: make([]ItemID, 0, len(s.AllowToReserveItems)),
	}
	for _, item := range s.AllowToBorrowItems {
		req.LibraryItemIDs = append(req.LibraryItemIDs, item.ID)
	}
	for _, item := range s.AllowToReserveItems {
		req.ReservationItemIDs = append(req.ReservationItemIDs, item.ID)
	}
	return req
}

// Buckets returns the five buckets in a fixed order. Mostly useful for
// iteration in validation and display code.
func (s *Snapshot) Buckets() [][]ItemSummary {
	return [][]ItemSummary{
		s.AllowToBorrowItems,
		s.AllowToReserveItems,
		s.AlreadyBorrowedItems,
		s.AlreadyRequestedItems,
		s.AlreadyReservedItems,
	}
}

// Total returns the number of candidates across all five buckets.
func (s *Snapshot) Total() int {
	total := 0
	for _, bucket := range s.Buckets() {
		total += len(bucket)
	}
	return total
}

// BlockedCount returns the number of candidates in blocking buckets.
func (s *Snapshot) BlockedCount() int {
	return len(s.AlreadyBorrowedItems) + len(s.AlreadyRequestedItems) + len(s.AlreadyReservedItems)
}

// ValidatePartition verifies that the snapshot is a true partition of the
// input candidate set: every input ID appears in exactly one bucket, and no
// bucket contains an ID that wasn't asked about. The client runs this on
// every fetched snapshot and treats a violation as a malformed response from
// the eligibility service.
func (s *Snapshot) ValidatePartition(input []ItemID) error {
	want := make(map[ItemID]struct{}, len(input))
	for _, id := range input {
		want[id] = struct{}{}
	}

	seen := make(map[ItemID]struct{}, len(input))
	for _, bucket := range s.Buckets() {
		for _, item := range bucket {
			if _, ok := want[item.ID]; !ok {
				return errors.Errorf("eligibility snapshot contains unrequested candidate %d", item.ID)
			}
			if _, ok := seen[item.ID]; ok {
				return errors.Errorf("eligibility snapshot classifies candidate %d more than once", item.ID)
			}
			seen[item.ID] = struct{}{}
		}
	}

	for _, id := range input {
		if _, ok := seen[id]; !ok {
			return errors.Errorf("eligibility snapshot dropped candidate %d", id)
		}
	}

	return nil
}
