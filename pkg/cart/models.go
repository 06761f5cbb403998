package cart

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	// KindItem marks a physical library item selection.
	KindItem = "item"
	// KindResource marks a standalone resource (ebook/audiobook) selection.
	KindResource = "resource"
)

// Entry is one candidate the patron has marked as "want to borrow" but not
// yet submitted. Items and resources live in the same table but form two
// separately ordered sets; uniqueness is per (kind, candidate_id), so an
// item and a resource sharing a raw identifier never collide.
type Entry struct {
	bun.BaseModel `bun:"table:cart_entries,alias:ce"`

	ID          int       `bun:",pk,autoincrement" json:"id"`
	Kind        string    `bun:",nullzero" json:"kind"`
	CandidateID int       `bun:",nullzero" json:"candidate_id"`
	Title       string    `json:"title"`
	Position    int       `bun:",nullzero" json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
