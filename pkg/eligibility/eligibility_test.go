package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaries(ids ...ItemID) []ItemSummary {
	out := make([]ItemSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, ItemSummary{ID: id, Title: "Item"})
	}
	return out
}

func TestComputeDecision(t *testing.T) {
	t.Parallel()

	t.Run("allows when all blocking buckets are empty", func(t *testing.T) {
		s := &Snapshot{
			AllowToBorrowItems:  summaries(101),
			AllowToReserveItems: summaries(102),
		}
		assert.True(t, ComputeDecision(s).IsAllowedBorrowRequest)
	})

	t.Run("allows an entirely empty snapshot", func(t *testing.T) {
		assert.True(t, ComputeDecision(&Snapshot{}).IsAllowedBorrowRequest)
	})

	t.Run("blocks on already borrowed items", func(t *testing.T) {
		s := &Snapshot{
			AllowToBorrowItems:   summaries(101),
			AlreadyBorrowedItems: summaries(103),
		}
		assert.False(t, ComputeDecision(s).IsAllowedBorrowRequest)
	})

	t.Run("blocks on already requested items", func(t *testing.T) {
		s := &Snapshot{AlreadyRequestedItems: summaries(104)}
		assert.False(t, ComputeDecision(s).IsAllowedBorrowRequest)
	})

	t.Run("blocks on already reserved items", func(t *testing.T) {
		s := &Snapshot{AlreadyReservedItems: summaries(105)}
		assert.False(t, ComputeDecision(s).IsAllowedBorrowRequest)
	})

	t.Run("is deterministic for structurally equal snapshots", func(t *testing.T) {
		a := &Snapshot{AllowToBorrowItems: summaries(1, 2), AlreadyReservedItems: summaries(3)}
		b := &Snapshot{AllowToBorrowItems: summaries(1, 2), AlreadyReservedItems: summaries(3)}
		assert.Equal(t, ComputeDecision(a), ComputeDecision(b))
	})
}

func TestSnapshotBorrowRequest(t *testing.T) {
	t.Parallel()

	t.Run("derives ids from the allow buckets only", func(t *testing.T) {
		s := &Snapshot{
			AllowToBorrowItems:    summaries(101, 104),
			AllowToReserveItems:   summaries(102),
			AlreadyBorrowedItems:  summaries(103),
			AlreadyRequestedItems: summaries(106),
			AlreadyReservedItems:  summaries(107),
		}

		req := s.BorrowRequest("for the weekend")
		assert.Equal(t, "for the weekend", req.Description)
		assert.Equal(t, []ItemID{101, 104}, req.LibraryItemIDs)
		assert.Equal(t, []ItemID{102}, req.ReservationItemIDs)
	})

	t.Run("produces empty slices rather than nil for empty buckets", func(t *testing.T) {
		req := (&Snapshot{}).BorrowRequest("")
		assert.NotNil(t, req.LibraryItemIDs)
		assert.NotNil(t, req.ReservationItemIDs)
		assert.Len(t, req.LibraryItemIDs, 0)
		assert.Len(t, req.ReservationItemIDs, 0)
	})
}

func TestSnapshotValidatePartition(t *testing.T) {
	t.Parallel()

	input := []ItemID{101, 102, 103, 104, 105}
	valid := &Snapshot{
		AllowToBorrowItems:    summaries(101),
		AllowToReserveItems:   summaries(102),
		AlreadyBorrowedItems:  summaries(103),
		AlreadyRequestedItems: summaries(104),
		AlreadyReservedItems:  summaries(105),
	}

	t.Run("accepts a total partition", func(t *testing.T) {
		require.NoError(t, valid.ValidatePartition(input))
		assert.Equal(t, len(input), valid.Total())
		assert.Equal(t, 3, valid.BlockedCount())
	})

	t.Run("rejects a dropped candidate", func(t *testing.T) {
		s := &Snapshot{AllowToBorrowItems: summaries(101)}
		err := s.ValidatePartition([]ItemID{101, 102})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dropped candidate 102")
	})

	t.Run("rejects a candidate classified twice", func(t *testing.T) {
		s := &Snapshot{
			AllowToBorrowItems:   summaries(101),
			AlreadyBorrowedItems: summaries(101),
		}
		err := s.ValidatePartition([]ItemID{101})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("rejects a duplicate within a single bucket", func(t *testing.T) {
		s := &Snapshot{AllowToBorrowItems: summaries(101, 101)}
		err := s.ValidatePartition([]ItemID{101})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("rejects an unrequested candidate", func(t *testing.T) {
		s := &Snapshot{AllowToBorrowItems: summaries(101, 999)}
		err := s.ValidatePartition([]ItemID{101})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unrequested candidate 999")
	})

	t.Run("accepts the empty set", func(t *testing.T) {
		require.NoError(t, (&Snapshot{}).ValidatePartition(nil))
	})
}
