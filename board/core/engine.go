// ABOUTME: Board mutation engine: pure (board, intent) -> board' transformations for lists and cards.
// ABOUTME: Inputs are never modified; a failed operation returns the error and no new board.
package core

import (
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// ListPatch replaces the list fields that are non-nil.
type ListPatch struct {
	Title *string `json:"title,omitempty"`
	Color *string `json:"color,omitempty"`
}

func touch(b *Board, now time.Time) {
	b.UpdatedAt = now
}

// moveItem moves s[from] to position to, shifting the items in between.
// s is modified in place; callers pass a cloned slice.
func moveItem[T any](s []T, from, to int) []T {
	item := s[from]
	s = slices.Delete(s, from, from+1)
	return slices.Insert(s, to, item)
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}

// CreateList appends a new empty list to the end of the board.
func CreateList(b *Board, title, color string) (*Board, ulid.ULID, error) {
	title, err := requireText("list title", title)
	if err != nil {
		return nil, ulid.ULID{}, err
	}
	if !validColor(color) {
		return nil, ulid.ULID{}, &ValidationError{Field: "color", Reason: "must be a #rgb or #rrggbb hex color"}
	}
	nb := b.Clone()
	l := List{ID: NewULID(), Title: title, Color: color, Cards: []Card{}}
	nb.Lists = append(nb.Lists, l)
	touch(nb, time.Now().UTC())
	return nb, l.ID, nil
}

// UpdateList renames or recolors a list.
func UpdateList(b *Board, listID ulid.ULID, p ListPatch) (*Board, error) {
	i := b.ListIndex(listID)
	if i < 0 {
		return nil, notFound("list", listID)
	}
	nb := b.Clone()
	l := &nb.Lists[i]
	if p.Title != nil {
		title, err := requireText("list title", *p.Title)
		if err != nil {
			return nil, err
		}
		l.Title = title
	}
	if p.Color != nil {
		if !validColor(*p.Color) {
			return nil, &ValidationError{Field: "color", Reason: "must be a #rgb or #rrggbb hex color"}
		}
		l.Color = *p.Color
	}
	touch(nb, time.Now().UTC())
	return nb, nil
}

// DeleteList removes a list and every card it holds. A CompletedListID
// pointing at the list is left as is and dangles from then on.
func DeleteList(b *Board, listID ulid.ULID) (*Board, error) {
	i := b.ListIndex(listID)
	if i < 0 {
		return nil, notFound("list", listID)
	}
	nb := b.Clone()
	nb.Lists = slices.Delete(nb.Lists, i, i+1)
	touch(nb, time.Now().UTC())
	return nb, nil
}

// ReorderLists moves the list at from to position to. Out-of-range indices
// are rejected, never clamped or wrapped.
func ReorderLists(b *Board, from, to int) (*Board, error) {
	n := len(b.Lists)
	if err := checkIndex(from, n); err != nil {
		return nil, err
	}
	if err := checkIndex(to, n); err != nil {
		return nil, err
	}
	if from == to {
		return b, nil
	}
	nb := b.Clone()
	nb.Lists = moveItem(nb.Lists, from, to)
	touch(nb, time.Now().UTC())
	return nb, nil
}

// CreateCard appends a new card to the end of the list and returns its id.
func CreateCard(b *Board, listID ulid.ULID, in CardInput) (*Board, ulid.ULID, error) {
	i := b.ListIndex(listID)
	if i < 0 {
		return nil, ulid.ULID{}, notFound("list", listID)
	}
	now := time.Now().UTC()
	card, err := newCard(listID, in, now)
	if err != nil {
		return nil, ulid.ULID{}, err
	}
	nb := b.Clone()
	l := &nb.Lists[i]
	l.Cards = append(l.Cards, card)
	l.recomputeTotal()
	touch(nb, now)
	return nb, card.ID, nil
}

// EditCard applies a patch to the card with the given id, wherever it lives.
func EditCard(b *Board, cardID ulid.ULID, p CardPatch) (*Board, error) {
	card, li, ci, ok := b.FindCard(cardID)
	if !ok {
		return nil, notFound("card", cardID)
	}
	now := time.Now().UTC()
	patched, valueChanged, err := applyPatch(card, p, now)
	if err != nil {
		return nil, err
	}
	nb := b.Clone()
	l := &nb.Lists[li]
	l.Cards[ci] = patched
	if valueChanged {
		l.recomputeTotal()
	}
	touch(nb, now)
	return nb, nil
}

// DeleteCard removes a card from its list.
func DeleteCard(b *Board, listID, cardID ulid.ULID) (*Board, error) {
	li := b.ListIndex(listID)
	if li < 0 {
		return nil, notFound("list", listID)
	}
	ci := slices.IndexFunc(b.Lists[li].Cards, func(c Card) bool { return c.ID == cardID })
	if ci < 0 {
		return nil, notFound("card", cardID)
	}
	nb := b.Clone()
	l := &nb.Lists[li]
	l.Cards = slices.Delete(l.Cards, ci, ci+1)
	l.recomputeTotal()
	touch(nb, time.Now().UTC())
	return nb, nil
}

// MoveCard transfers a card from one list to another, inserting it at index
// (nil appends). Moving within one list with no index returns b unchanged;
// with an index it becomes a positional reorder.
func MoveCard(b *Board, cardID, fromListID, toListID ulid.ULID, index *int) (*Board, error) {
	fi := b.ListIndex(fromListID)
	if fi < 0 {
		return nil, notFound("list", fromListID)
	}
	ti := b.ListIndex(toListID)
	if ti < 0 {
		return nil, notFound("list", toListID)
	}
	ci := slices.IndexFunc(b.Lists[fi].Cards, func(c Card) bool { return c.ID == cardID })
	if ci < 0 {
		return nil, notFound("card", cardID)
	}

	if fi == ti {
		if index == nil {
			return b, nil
		}
		return ReorderCardsWithinList(b, fromListID, ci, *index)
	}

	dest := len(b.Lists[ti].Cards)
	if index != nil {
		// Appending is allowed, so the valid range is [0, len].
		if *index < 0 || *index > dest {
			return nil, &IndexError{Index: *index, Len: dest + 1}
		}
		dest = *index
	}

	now := time.Now().UTC()
	nb := b.Clone()
	src := &nb.Lists[fi]
	card := src.Cards[ci]
	src.Cards = slices.Delete(src.Cards, ci, ci+1)
	src.recomputeTotal()

	card.ListID = toListID
	card.UpdatedAt = now
	dst := &nb.Lists[ti]
	dst.Cards = slices.Insert(dst.Cards, dest, card)
	dst.recomputeTotal()

	touch(nb, now)
	return nb, nil
}

// ReorderCardsWithinList moves a card to another position in the same list.
// ListID and TotalValue are unaffected.
func ReorderCardsWithinList(b *Board, listID ulid.ULID, from, to int) (*Board, error) {
	li := b.ListIndex(listID)
	if li < 0 {
		return nil, notFound("list", listID)
	}
	n := len(b.Lists[li].Cards)
	if err := checkIndex(from, n); err != nil {
		return nil, err
	}
	if err := checkIndex(to, n); err != nil {
		return nil, err
	}
	if from == to {
		return b, nil
	}
	nb := b.Clone()
	l := &nb.Lists[li]
	l.Cards = moveItem(l.Cards, from, to)
	touch(nb, time.Now().UTC())
	return nb, nil
}
