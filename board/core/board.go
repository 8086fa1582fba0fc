// ABOUTME: Board and List aggregates: ordered lists of ordered cards with a derived per-list total.
// ABOUTME: Includes deep cloning, lookup helpers, the completed-cards query, and invariant checks.
package core

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// List is an ordered column of cards. TotalValue is derived from Cards and
// is recomputed by the engine after every change; nothing else writes it.
type List struct {
	ID         ulid.ULID `json:"id"`
	Title      string    `json:"title"`
	Color      string    `json:"color,omitempty"`
	Cards      []Card    `json:"cards"`
	TotalValue float64   `json:"totalValue"`
}

func (l List) clone() List {
	cards := make([]Card, len(l.Cards))
	for i, c := range l.Cards {
		cards[i] = c.clone()
	}
	l.Cards = cards
	return l
}

func (l *List) recomputeTotal() {
	var sum float64
	for _, c := range l.Cards {
		sum += c.Value
	}
	l.TotalValue = sum
}

// Board is one pipeline: an ordered sequence of lists plus the automations
// that react to its mutations.
type Board struct {
	ID              ulid.ULID    `json:"id"`
	Name            string       `json:"name"`
	Visibility      Visibility   `json:"visibility"`
	Members         []string     `json:"members,omitempty"`
	Lists           []List       `json:"lists"`
	CompletedListID *ulid.ULID   `json:"completedListId,omitempty"`
	Automations     []Automation `json:"automations"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// NewBoard creates an empty board. An empty visibility defaults to everyone.
func NewBoard(name string, visibility Visibility) (*Board, error) {
	name, err := requireText("board name", name)
	if err != nil {
		return nil, err
	}
	if visibility == "" {
		visibility = VisibilityEveryone
	}
	if !visibility.Valid() {
		return nil, &ValidationError{Field: "visibility", Reason: "unknown visibility " + string(visibility)}
	}
	now := time.Now().UTC()
	return &Board{
		ID:          NewULID(),
		Name:        name,
		Visibility:  visibility,
		Lists:       []List{},
		Automations: []Automation{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a deep copy that shares no slices with b.
func (b *Board) Clone() *Board {
	c := *b
	c.Members = slices.Clone(b.Members)
	c.Lists = make([]List, len(b.Lists))
	for i, l := range b.Lists {
		c.Lists[i] = l.clone()
	}
	c.Automations = slices.Clone(b.Automations)
	if b.CompletedListID != nil {
		id := *b.CompletedListID
		c.CompletedListID = &id
	}
	return &c
}

// ListIndex returns the position of the list with the given id, or -1.
func (b *Board) ListIndex(listID ulid.ULID) int {
	return slices.IndexFunc(b.Lists, func(l List) bool { return l.ID == listID })
}

// List returns the list with the given id.
func (b *Board) List(listID ulid.ULID) (*List, bool) {
	i := b.ListIndex(listID)
	if i < 0 {
		return nil, false
	}
	return &b.Lists[i], true
}

// FindCard locates a card anywhere on the board. It returns the card, the
// index of its owning list, and the card's index within that list.
func (b *Board) FindCard(cardID ulid.ULID) (card Card, listIdx, cardIdx int, ok bool) {
	for li, l := range b.Lists {
		for ci, c := range l.Cards {
			if c.ID == cardID {
				return c, li, ci, true
			}
		}
	}
	return Card{}, -1, -1, false
}

// CardCount returns the number of cards across all lists.
func (b *Board) CardCount() int {
	n := 0
	for _, l := range b.Lists {
		n += len(l.Cards)
	}
	return n
}

// TotalValue sums every list total on the board.
func (b *Board) TotalValue() float64 {
	var sum float64
	for _, l := range b.Lists {
		sum += l.TotalValue
	}
	return sum
}

// CompletedCards returns the cards of the board's completed list. An unset
// or dangling CompletedListID yields an empty slice.
func (b *Board) CompletedCards() []Card {
	if b.CompletedListID == nil {
		return []Card{}
	}
	l, ok := b.List(*b.CompletedListID)
	if !ok {
		return []Card{}
	}
	return slices.Clone(l.Cards)
}

// Automation returns the automation with the given id.
func (b *Board) Automation(id ulid.ULID) (Automation, bool) {
	i := slices.IndexFunc(b.Automations, func(a Automation) bool { return a.ID == id })
	if i < 0 {
		return Automation{}, false
	}
	return b.Automations[i], true
}

// totalTolerance absorbs float summation drift when comparing totals.
const totalTolerance = 1e-9

// CheckInvariants verifies that every list total equals the sum of its card
// values and that every card's ListID names the list holding it, and that no
// card appears twice.
func (b *Board) CheckInvariants() error {
	seen := make(map[ulid.ULID]ulid.ULID)
	for _, l := range b.Lists {
		var sum float64
		for _, c := range l.Cards {
			if c.ListID != l.ID {
				return fmt.Errorf("card %s in list %s has listId %s", c.ID, l.ID, c.ListID)
			}
			if other, dup := seen[c.ID]; dup {
				return fmt.Errorf("card %s appears in lists %s and %s", c.ID, other, l.ID)
			}
			seen[c.ID] = l.ID
			sum += c.Value
		}
		if math.Abs(sum-l.TotalValue) > totalTolerance {
			return fmt.Errorf("list %s totalValue %v, want %v", l.ID, l.TotalValue, sum)
		}
	}
	return nil
}

// Normalize repairs derived fields after decoding untrusted data: it re-links
// card list ids and recomputes totals. A card id seen earlier on the board is
// dropped so each card keeps exactly one owner, the first in board order.
func (b *Board) Normalize() {
	seen := make(map[ulid.ULID]bool)
	if b.Lists == nil {
		b.Lists = []List{}
	}
	if b.Automations == nil {
		b.Automations = []Automation{}
	}
	for i := range b.Lists {
		l := &b.Lists[i]
		if l.Cards == nil {
			l.Cards = []Card{}
		}
		l.Cards = slices.DeleteFunc(l.Cards, func(c Card) bool {
			if seen[c.ID] {
				return true
			}
			seen[c.ID] = true
			return false
		})
		for j := range l.Cards {
			l.Cards[j].ListID = l.ID
			l.Cards[j].Value = normalizeValue(l.Cards[j].Value)
		}
		l.recomputeTotal()
	}
}
