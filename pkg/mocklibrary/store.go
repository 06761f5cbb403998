package mocklibrary

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Item is one catalog entry with a copy count.
type Item struct {
	ID              eligibility.ItemID
	Title           string
	CopiesAvailable int
}

type patronState struct {
	passwordHash []byte
	borrowed     map[eligibility.ItemID]bool
	requested    map[eligibility.ItemID]bool
	reserved     map[eligibility.ItemID]bool
}

// Store is the in-memory state behind the mock backend: a catalog plus
// per-patron borrow/request/reservation sets. It stands in for the real
// library system in tests and local development; it is the authority that
// classifies candidates, the same way the production backend would be.
type Store struct {
	mu      sync.Mutex
	items   map[eligibility.ItemID]*Item
	patrons map[string]*patronState
}

func NewStore() *Store {
	return &Store{
		items:   map[eligibility.ItemID]*Item{},
		patrons: map[string]*patronState{},
	}
}

// AddItem adds or replaces a catalog entry.
func (s *Store) AddItem(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = &item
}

// AddPatron registers a patron with a bcrypt-hashed password.
func (s *Store) AddPatron(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patrons[username] = &patronState{
		passwordHash: hash,
		borrowed:     map[eligibility.ItemID]bool{},
		requested:    map[eligibility.ItemID]bool{},
		reserved:     map[eligibility.ItemID]bool{},
	}
	return nil
}

// MarkBorrowed records an item as already held by the patron. Test setup
// helper.
func (s *Store) MarkBorrowed(username string, id eligibility.ItemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patrons[username]; ok {
		p.borrowed[id] = true
	}
}

// Authenticate verifies a patron's credentials.
func (s *Store) Authenticate(username, password string) error {
	s.mu.Lock()
	patron, ok := s.patrons[username]
	s.mu.Unlock()
	if !ok {
		return errcodes.Unauthorized("Invalid username or password")
	}

	if bcrypt.CompareHashAndPassword(patron.passwordHash, []byte(password)) != nil {
		return errcodes.Unauthorized("Invalid username or password")
	}
	return nil
}

// Classify partitions the candidate set into the five eligibility buckets.
// Every requested candidate lands in exactly one bucket: blocking states
// take precedence, an in-stock copy allows immediate borrowing, and
// everything else (including identifiers the catalog has never seen) is
// reservable-in-queue, which keeps the partition total.
func (s *Store) Classify(username string, ids []eligibility.ItemID) *eligibility.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	patron, ok := s.patrons[username]
	if !ok {
		patron = &patronState{
			borrowed:  map[eligibility.ItemID]bool{},
			requested: map[eligibility.ItemID]bool{},
			reserved:  map[eligibility.ItemID]bool{},
		}
	}

	snapshot := &eligibility.Snapshot{
		AllowToBorrowItems:    []eligibility.ItemSummary{},
		AllowToReserveItems:   []eligibility.ItemSummary{},
		AlreadyBorrowedItems:  []eligibility.ItemSummary{},
		AlreadyRequestedItems: []eligibility.ItemSummary{},
		AlreadyReservedItems:  []eligibility.ItemSummary{},
	}

	seen := map[eligibility.ItemID]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		summary := eligibility.ItemSummary{ID: id, Title: s.titleLocked(id)}
		switch {
		case patron.borrowed[id]:
			snapshot.AlreadyBorrowedItems = append(snapshot.AlreadyBorrowedItems, summary)
		case patron.requested[id]:
			snapshot.AlreadyRequestedItems = append(snapshot.AlreadyRequestedItems, summary)
		case patron.reserved[id]:
			snapshot.AlreadyReservedItems = append(snapshot.AlreadyReservedItems, summary)
		case s.items[id] != nil && s.items[id].CopiesAvailable > 0:
			snapshot.AllowToBorrowItems = append(snapshot.AllowToBorrowItems, summary)
		default:
			snapshot.AllowToReserveItems = append(snapshot.AllowToReserveItems, summary)
		}
	}

	return snapshot
}

// Borrow applies a submitted borrow request and returns the transaction
// reference. Every identifier is re-classified first; a single conflict
// rejects the whole request, which is how a race between check and submit
// surfaces to the client.
func (s *Store) Borrow(username string, itemIDs, reservationIDs []eligibility.ItemID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patron, ok := s.patrons[username]
	if !ok {
		return "", errcodes.Unauthorized("Invalid session")
	}

	for _, id := range itemIDs {
		if patron.borrowed[id] || patron.requested[id] || patron.reserved[id] {
			return "", errcodes.BorrowConflict("You already have a transaction for \"" + s.titleLocked(id) + "\".")
		}
		if s.items[id] == nil || s.items[id].CopiesAvailable < 1 {
			return "", errcodes.BorrowConflict("\"" + s.titleLocked(id) + "\" is no longer available for borrowing.")
		}
	}
	for _, id := range reservationIDs {
		if patron.borrowed[id] || patron.requested[id] || patron.reserved[id] {
			return "", errcodes.BorrowConflict("You already have a transaction for \"" + s.titleLocked(id) + "\".")
		}
		if s.items[id] != nil && s.items[id].CopiesAvailable > 0 {
			return "", errcodes.BorrowConflict("\"" + s.titleLocked(id) + "\" became available; check eligibility again.")
		}
	}

	// All vetted; apply atomically under the lock. Borrow requests start as
	// pending until a librarian decides them; reservations queue.
	for _, id := range itemIDs {
		s.items[id].CopiesAvailable--
		patron.requested[id] = true
	}
	for _, id := range reservationIDs {
		patron.reserved[id] = true
	}

	return uuid.New().String(), nil
}

func (s *Store) titleLocked(id eligibility.ItemID) string {
	if item, ok := s.items[id]; ok {
		return item.Title
	}
	return "Unknown item"
}
