package mocklibrary

import (
	"testing"

	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore()
	store.AddItem(Item{ID: 101, Title: "In stock", CopiesAvailable: 2})
	store.AddItem(Item{ID: 102, Title: "Out of stock", CopiesAvailable: 0})
	store.AddItem(Item{ID: 103, Title: "Borrowed", CopiesAvailable: 1})
	require.NoError(t, store.AddPatron("patron", "secret"))
	store.MarkBorrowed("patron", 103)
	return store
}

func TestStoreAuthenticate(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	t.Run("accepts the right password", func(t *testing.T) {
		assert.NoError(t, store.Authenticate("patron", "secret"))
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		assert.Error(t, store.Authenticate("patron", "wrong"))
	})

	t.Run("rejects an unknown patron", func(t *testing.T) {
		assert.Error(t, store.Authenticate("nobody", "secret"))
	})
}

func TestStoreClassify(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	t.Run("classifies every candidate into exactly one bucket", func(t *testing.T) {
		ids := []eligibility.ItemID{101, 102, 103, 999}
		snapshot := store.Classify("patron", ids)

		require.NoError(t, snapshot.ValidatePartition(ids))
		assert.Equal(t, len(ids), snapshot.Total())

		assert.Len(t, snapshot.AllowToBorrowItems, 1)
		assert.Equal(t, eligibility.ItemID(101), snapshot.AllowToBorrowItems[0].ID)
		// 102 is out of stock, 999 is unknown; both queue as reservations so
		// the partition stays total.
		assert.Len(t, snapshot.AllowToReserveItems, 2)
		assert.Len(t, snapshot.AlreadyBorrowedItems, 1)
	})

	t.Run("blocking state takes precedence over stock", func(t *testing.T) {
		snapshot := store.Classify("patron", []eligibility.ItemID{103})
		assert.Len(t, snapshot.AlreadyBorrowedItems, 1)
		assert.Len(t, snapshot.AllowToBorrowItems, 0)
	})

	t.Run("an unknown patron gets a clean classification", func(t *testing.T) {
		ids := []eligibility.ItemID{101, 103}
		snapshot := store.Classify("stranger", ids)
		require.NoError(t, snapshot.ValidatePartition(ids))
		assert.Len(t, snapshot.AllowToBorrowItems, 2)
	})
}

func TestStoreBorrow(t *testing.T) {
	t.Parallel()

	t.Run("moves items to pending and queues reservations", func(t *testing.T) {
		store := newTestStore(t)

		reference, err := store.Borrow("patron", []eligibility.ItemID{101}, []eligibility.ItemID{102})
		require.NoError(t, err)
		assert.NotEmpty(t, reference)

		snapshot := store.Classify("patron", []eligibility.ItemID{101, 102})
		assert.Len(t, snapshot.AlreadyRequestedItems, 1)
		assert.Len(t, snapshot.AlreadyReservedItems, 1)
	})

	t.Run("rejects the whole request when an item went out of stock", func(t *testing.T) {
		store := newTestStore(t)
		store.AddItem(Item{ID: 101, Title: "In stock", CopiesAvailable: 0})

		_, err := store.Borrow("patron", []eligibility.ItemID{101}, nil)
		require.Error(t, err)

		codedErr := &errcodes.Error{}
		require.ErrorAs(t, err, &codedErr)
		assert.Equal(t, "borrow_conflict", codedErr.Code)
	})

	t.Run("rejects a reservation for an item that became available", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Borrow("patron", nil, []eligibility.ItemID{101})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "became available")
	})

	t.Run("rejects a duplicate transaction", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Borrow("patron", []eligibility.ItemID{103}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already have a transaction")
	})

	t.Run("a rejected request applies nothing", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Borrow("patron", []eligibility.ItemID{101, 103}, nil)
		require.Error(t, err)

		// 101 was vetted fine but 103 conflicted; 101 must stay untouched.
		snapshot := store.Classify("patron", []eligibility.ItemID{101})
		assert.Len(t, snapshot.AllowToBorrowItems, 1)
	})
}
