// ABOUTME: Workspace is one tenant's board collection plus its shared tags and HTTP integrations.
// ABOUTME: Workspace operations are pure like the engine's and replace boards wholesale.
package core

import (
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Tag is a colored label. Cards reference tags by id, so renaming a tag
// needs no cascade and deleting one strips it from every card.
type Tag struct {
	ID    ulid.ULID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

// Workspace is the unit of persistence: everything one tenant owns, saved as
// a single snapshot after every mutation. Boards are immutable once placed in
// a workspace; mutations swap in new *Board values.
type Workspace struct {
	ID           ulid.ULID         `json:"id"`
	Name         string            `json:"name"`
	Boards       []*Board          `json:"boards"`
	Tags         []Tag             `json:"tags"`
	Integrations []HttpIntegration `json:"integrations"`
	Version      uint64            `json:"version"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// BoardPatch replaces the board fields that are set.
type BoardPatch struct {
	Name            *string                  `json:"name,omitempty"`
	Visibility      *Visibility              `json:"visibility,omitempty"`
	Members         *[]string                `json:"members,omitempty"`
	CompletedListID OptionalField[ulid.ULID] `json:"completedListId,omitzero"`
}

// TagPatch replaces the tag fields that are non-nil.
type TagPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(id ulid.ULID, name string) *Workspace {
	return &Workspace{
		ID:           id,
		Name:         name,
		Boards:       []*Board{},
		Tags:         []Tag{},
		Integrations: []HttpIntegration{},
		UpdatedAt:    time.Now().UTC(),
	}
}

// clone copies the workspace's slices. Board pointers are shared.
func (w *Workspace) clone() *Workspace {
	c := *w
	c.Boards = slices.Clone(w.Boards)
	c.Tags = slices.Clone(w.Tags)
	c.Integrations = slices.Clone(w.Integrations)
	c.UpdatedAt = time.Now().UTC()
	return &c
}

// Board returns the board with the given id.
func (w *Workspace) Board(id ulid.ULID) (*Board, bool) {
	i := w.boardIndex(id)
	if i < 0 {
		return nil, false
	}
	return w.Boards[i], true
}

func (w *Workspace) boardIndex(id ulid.ULID) int {
	return slices.IndexFunc(w.Boards, func(b *Board) bool { return b.ID == id })
}

// Tag returns the tag with the given id.
func (w *Workspace) Tag(id ulid.ULID) (Tag, bool) {
	i := slices.IndexFunc(w.Tags, func(t Tag) bool { return t.ID == id })
	if i < 0 {
		return Tag{}, false
	}
	return w.Tags[i], true
}

// Integration returns the integration with the given id.
func (w *Workspace) Integration(id ulid.ULID) (HttpIntegration, bool) {
	i := slices.IndexFunc(w.Integrations, func(h HttpIntegration) bool { return h.ID == id })
	if i < 0 {
		return HttpIntegration{}, false
	}
	return w.Integrations[i], true
}

// ResolveTags returns the tags a card references, in the card's order.
// Ids without a matching tag are skipped.
func (w *Workspace) ResolveTags(c Card) []Tag {
	out := make([]Tag, 0, len(c.TagIDs))
	for _, id := range c.TagIDs {
		if t, ok := w.Tag(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// WithBoard returns a copy of w with the board of the same id replaced by b.
func (w *Workspace) WithBoard(b *Board) (*Workspace, error) {
	i := w.boardIndex(b.ID)
	if i < 0 {
		return nil, notFound("board", b.ID)
	}
	nw := w.clone()
	nw.Boards[i] = b
	return nw, nil
}

// MutateBoard runs fn against the named board and swaps the result in.
// When fn returns the board unchanged, w itself is returned.
func (w *Workspace) MutateBoard(boardID ulid.ULID, fn func(*Board) (*Board, error)) (*Workspace, error) {
	b, ok := w.Board(boardID)
	if !ok {
		return nil, notFound("board", boardID)
	}
	nb, err := fn(b)
	if err != nil {
		return nil, err
	}
	if nb == b {
		return w, nil
	}
	return w.WithBoard(nb)
}

// CheckTagIDs verifies that every id names an existing tag.
func (w *Workspace) CheckTagIDs(ids []ulid.ULID) error {
	for _, id := range ids {
		if _, ok := w.Tag(id); !ok {
			return notFound("tag", id)
		}
	}
	return nil
}

// CreateBoard appends a new empty board.
func (w *Workspace) CreateBoard(name string, visibility Visibility) (*Workspace, *Board, error) {
	b, err := NewBoard(name, visibility)
	if err != nil {
		return nil, nil, err
	}
	nw := w.clone()
	nw.Boards = append(nw.Boards, b)
	return nw, b, nil
}

// UpdateBoard applies a patch to a board. A completed list must exist when it
// is set; it may dangle later if that list is deleted.
func (w *Workspace) UpdateBoard(boardID ulid.ULID, p BoardPatch) (*Workspace, error) {
	return w.MutateBoard(boardID, func(b *Board) (*Board, error) {
		nb := b.Clone()
		if p.Name != nil {
			name, err := requireText("board name", *p.Name)
			if err != nil {
				return nil, err
			}
			nb.Name = name
		}
		if p.Visibility != nil {
			if !p.Visibility.Valid() {
				return nil, &ValidationError{Field: "visibility", Reason: "unknown visibility " + string(*p.Visibility)}
			}
			nb.Visibility = *p.Visibility
		}
		if p.Members != nil {
			nb.Members = slices.Clone(*p.Members)
		}
		if p.CompletedListID.Set {
			if p.CompletedListID.Valid {
				id := p.CompletedListID.Value
				if nb.ListIndex(id) < 0 {
					return nil, notFound("list", id)
				}
				nb.CompletedListID = &id
			} else {
				nb.CompletedListID = nil
			}
		}
		touch(nb, time.Now().UTC())
		return nb, nil
	})
}

// DeleteBoard removes a board with all its lists, cards and automations.
func (w *Workspace) DeleteBoard(boardID ulid.ULID) (*Workspace, error) {
	i := w.boardIndex(boardID)
	if i < 0 {
		return nil, notFound("board", boardID)
	}
	nw := w.clone()
	nw.Boards = slices.Delete(nw.Boards, i, i+1)
	return nw, nil
}

// CreateTag adds a tag. Names are not required to be unique.
func (w *Workspace) CreateTag(name, color string) (*Workspace, Tag, error) {
	name, err := requireText("tag name", name)
	if err != nil {
		return nil, Tag{}, err
	}
	if !validColor(color) {
		return nil, Tag{}, &ValidationError{Field: "color", Reason: "must be a #rgb or #rrggbb hex color"}
	}
	t := Tag{ID: NewULID(), Name: name, Color: strings.ToLower(color)}
	nw := w.clone()
	nw.Tags = append(nw.Tags, t)
	return nw, t, nil
}

// UpdateTag renames or recolors a tag. Cards pick up the change through their id reference.
func (w *Workspace) UpdateTag(id ulid.ULID, p TagPatch) (*Workspace, error) {
	i := slices.IndexFunc(w.Tags, func(t Tag) bool { return t.ID == id })
	if i < 0 {
		return nil, notFound("tag", id)
	}
	nw := w.clone()
	t := &nw.Tags[i]
	if p.Name != nil {
		name, err := requireText("tag name", *p.Name)
		if err != nil {
			return nil, err
		}
		t.Name = name
	}
	if p.Color != nil {
		if !validColor(*p.Color) {
			return nil, &ValidationError{Field: "color", Reason: "must be a #rgb or #rrggbb hex color"}
		}
		t.Color = strings.ToLower(*p.Color)
	}
	return nw, nil
}

// DeleteTag removes a tag and strips its id from every card on every board.
func (w *Workspace) DeleteTag(id ulid.ULID) (*Workspace, error) {
	i := slices.IndexFunc(w.Tags, func(t Tag) bool { return t.ID == id })
	if i < 0 {
		return nil, notFound("tag", id)
	}
	nw := w.clone()
	nw.Tags = slices.Delete(nw.Tags, i, i+1)
	for bi, b := range nw.Boards {
		if !boardUsesTag(b, id) {
			continue
		}
		nb := b.Clone()
		for li := range nb.Lists {
			for ci := range nb.Lists[li].Cards {
				c := &nb.Lists[li].Cards[ci]
				c.TagIDs = slices.DeleteFunc(c.TagIDs, func(t ulid.ULID) bool { return t == id })
			}
		}
		nw.Boards[bi] = nb
	}
	return nw, nil
}

func boardUsesTag(b *Board, id ulid.ULID) bool {
	for _, l := range b.Lists {
		for _, c := range l.Cards {
			if slices.Contains(c.TagIDs, id) {
				return true
			}
		}
	}
	return false
}

// SaveAutomation creates an automation (id nil) or replaces an existing one.
func (w *Workspace) SaveAutomation(boardID ulid.ULID, id *ulid.ULID, in AutomationInput) (*Workspace, Automation, error) {
	if in.IntegrationID != nil {
		if _, ok := w.Integration(*in.IntegrationID); !ok {
			return nil, Automation{}, notFound("integration", in.IntegrationID)
		}
	}
	var saved Automation
	nw, err := w.MutateBoard(boardID, func(b *Board) (*Board, error) {
		autoID := NewULID()
		idx := -1
		if id != nil {
			autoID = *id
			idx = slices.IndexFunc(b.Automations, func(a Automation) bool { return a.ID == autoID })
			if idx < 0 {
				return nil, notFound("automation", autoID)
			}
		}
		a, err := buildAutomation(b, autoID, in)
		if err != nil {
			return nil, err
		}
		nb := b.Clone()
		if idx < 0 {
			nb.Automations = append(nb.Automations, a)
		} else {
			nb.Automations[idx] = a
		}
		touch(nb, time.Now().UTC())
		saved = a
		return nb, nil
	})
	if err != nil {
		return nil, Automation{}, err
	}
	return nw, saved, nil
}

// SetAutomationActive switches an automation on or off without deleting it.
func (w *Workspace) SetAutomationActive(boardID, automationID ulid.ULID, active bool) (*Workspace, error) {
	return w.MutateBoard(boardID, func(b *Board) (*Board, error) {
		idx := slices.IndexFunc(b.Automations, func(a Automation) bool { return a.ID == automationID })
		if idx < 0 {
			return nil, notFound("automation", automationID)
		}
		if b.Automations[idx].Active == active {
			return b, nil
		}
		nb := b.Clone()
		nb.Automations[idx].Active = active
		touch(nb, time.Now().UTC())
		return nb, nil
	})
}

// DeleteAutomation removes an automation from its board.
func (w *Workspace) DeleteAutomation(boardID, automationID ulid.ULID) (*Workspace, error) {
	return w.MutateBoard(boardID, func(b *Board) (*Board, error) {
		idx := slices.IndexFunc(b.Automations, func(a Automation) bool { return a.ID == automationID })
		if idx < 0 {
			return nil, notFound("automation", automationID)
		}
		nb := b.Clone()
		nb.Automations = slices.Delete(nb.Automations, idx, idx+1)
		touch(nb, time.Now().UTC())
		return nb, nil
	})
}

// CreateIntegration parses raw integration input and stores the result.
func (w *Workspace) CreateIntegration(in IntegrationInput) (*Workspace, HttpIntegration, error) {
	h, err := ParseHttpIntegration(in)
	if err != nil {
		return nil, HttpIntegration{}, err
	}
	nw := w.clone()
	nw.Integrations = append(nw.Integrations, h)
	return nw, h, nil
}

// DeleteIntegration removes an integration and clears it from automations
// that referenced it; those automations keep firing without its headers.
func (w *Workspace) DeleteIntegration(id ulid.ULID) (*Workspace, error) {
	i := slices.IndexFunc(w.Integrations, func(h HttpIntegration) bool { return h.ID == id })
	if i < 0 {
		return nil, notFound("integration", id)
	}
	nw := w.clone()
	nw.Integrations = slices.Delete(nw.Integrations, i, i+1)
	for bi, b := range nw.Boards {
		uses := slices.ContainsFunc(b.Automations, func(a Automation) bool {
			return a.IntegrationID != nil && *a.IntegrationID == id
		})
		if !uses {
			continue
		}
		nb := b.Clone()
		for ai := range nb.Automations {
			if ref := nb.Automations[ai].IntegrationID; ref != nil && *ref == id {
				nb.Automations[ai].IntegrationID = nil
			}
		}
		nw.Boards[bi] = nb
	}
	return nw, nil
}

// Normalize repairs derived fields on every board after decoding.
func (w *Workspace) Normalize() {
	if w.Boards == nil {
		w.Boards = []*Board{}
	}
	if w.Tags == nil {
		w.Tags = []Tag{}
	}
	if w.Integrations == nil {
		w.Integrations = []HttpIntegration{}
	}
	w.Boards = slices.DeleteFunc(w.Boards, func(b *Board) bool { return b == nil })
	for _, b := range w.Boards {
		b.Normalize()
	}
}
