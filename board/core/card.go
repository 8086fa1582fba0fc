// ABOUTME: Card is a deal or unit of work on a board, with subtasks, attachments, tags, and custom fields.
// ABOUTME: CardInput and CardPatch describe creation and partial edits; Amount coerces loose numeric input.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Subtask is a checklist item inside a card.
type Subtask struct {
	ID          ulid.ULID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
}

// Attachment references an uploaded blob. The blob itself lives elsewhere.
type Attachment struct {
	ID   ulid.ULID      `json:"id"`
	Name string         `json:"name"`
	Type AttachmentType `json:"type"`
	Ref  string         `json:"ref"`
}

// CustomField is a user-defined name/value pair shown on a card.
type CustomField struct {
	ID    ulid.ULID `json:"id"`
	Name  string    `json:"name"`
	Value string    `json:"value"`
}

// Card represents a single card. ListID always names the list whose Cards
// slice holds it.
type Card struct {
	ID           ulid.ULID     `json:"id"`
	ListID       ulid.ULID     `json:"listId"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Value        float64       `json:"value"`
	Phone        string        `json:"phone,omitempty"`
	Date         string        `json:"date,omitempty"`
	Time         string        `json:"time,omitempty"`
	Responsible  string        `json:"responsible,omitempty"`
	Priority     Priority      `json:"priority"`
	Subtasks     []Subtask     `json:"subtasks"`
	Attachments  []Attachment  `json:"attachments"`
	TagIDs       []ulid.ULID   `json:"tagIds"`
	CustomFields []CustomField `json:"customFields"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (c Card) clone() Card {
	c.Subtasks = slices.Clone(c.Subtasks)
	c.Attachments = slices.Clone(c.Attachments)
	c.TagIDs = slices.Clone(c.TagIDs)
	c.CustomFields = slices.Clone(c.CustomFields)
	return c
}

// Amount is a currency value that accepts a JSON number or a numeric string.
// Anything unparseable, negative, or non-finite becomes 0.
type Amount float64

// UnmarshalJSON coerces the raw JSON value through ParseValue.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = Amount(ParseValue(s))
		return nil
	}
	*a = Amount(ParseValue(string(data)))
	return nil
}

// ParseValue converts form input into a non-negative currency value. A comma
// decimal separator is accepted. Invalid input yields 0 instead of an error.
func ParseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return normalizeValue(v)
}

func normalizeValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// CardInput carries the fields for a new card.
type CardInput struct {
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Value        Amount        `json:"value"`
	Phone        string        `json:"phone,omitempty"`
	Date         string        `json:"date,omitempty"`
	Time         string        `json:"time,omitempty"`
	Responsible  string        `json:"responsible,omitempty"`
	Priority     Priority      `json:"priority,omitempty"`
	Subtasks     []Subtask     `json:"subtasks,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	TagIDs       []ulid.ULID   `json:"tagIds,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// CardPatch replaces the mutable fields that are non-nil.
type CardPatch struct {
	Title        *string        `json:"title,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Value        *Amount        `json:"value,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	Date         *string        `json:"date,omitempty"`
	Time         *string        `json:"time,omitempty"`
	Responsible  *string        `json:"responsible,omitempty"`
	Priority     *Priority      `json:"priority,omitempty"`
	Subtasks     *[]Subtask     `json:"subtasks,omitempty"`
	Attachments  *[]Attachment  `json:"attachments,omitempty"`
	TagIDs       *[]ulid.ULID   `json:"tagIds,omitempty"`
	CustomFields *[]CustomField `json:"customFields,omitempty"`
}

// newCard validates input and builds a card owned by listID.
func newCard(listID ulid.ULID, in CardInput, now time.Time) (Card, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return Card{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Card{}, &ValidationError{Field: "priority", Reason: "unknown priority " + string(priority)}
	}
	subtasks, err := normalizeSubtasks(in.Subtasks)
	if err != nil {
		return Card{}, err
	}
	attachments, err := normalizeAttachments(in.Attachments)
	if err != nil {
		return Card{}, err
	}
	fields, err := normalizeCustomFields(in.CustomFields)
	if err != nil {
		return Card{}, err
	}
	return Card{
		ID:           NewULID(),
		ListID:       listID,
		Title:        title,
		Description:  in.Description,
		Value:        normalizeValue(float64(in.Value)),
		Phone:        in.Phone,
		Date:         in.Date,
		Time:         in.Time,
		Responsible:  in.Responsible,
		Priority:     priority,
		Subtasks:     subtasks,
		Attachments:  attachments,
		TagIDs:       dedupeIDs(in.TagIDs),
		CustomFields: fields,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// applyPatch returns a patched copy of c. valueChanged reports whether the
// list total needs recomputing.
func applyPatch(c Card, p CardPatch, now time.Time) (card Card, valueChanged bool, err error) {
	card = c.clone()
	if p.Title != nil {
		title, err := requireText("title", *p.Title)
		if err != nil {
			return c, false, err
		}
		card.Title = title
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return c, false, &ValidationError{Field: "priority", Reason: "unknown priority " + string(*p.Priority)}
		}
		card.Priority = *p.Priority
	}
	if p.Subtasks != nil {
		subtasks, err := normalizeSubtasks(*p.Subtasks)
		if err != nil {
			return c, false, err
		}
		card.Subtasks = subtasks
	}
	if p.Attachments != nil {
		attachments, err := normalizeAttachments(*p.Attachments)
		if err != nil {
			return c, false, err
		}
		card.Attachments = attachments
	}
	if p.CustomFields != nil {
		fields, err := normalizeCustomFields(*p.CustomFields)
		if err != nil {
			return c, false, err
		}
		card.CustomFields = fields
	}
	if p.Description != nil {
		card.Description = *p.Description
	}
	if p.Phone != nil {
		card.Phone = *p.Phone
	}
	if p.Date != nil {
		card.Date = *p.Date
	}
	if p.Time != nil {
		card.Time = *p.Time
	}
	if p.Responsible != nil {
		card.Responsible = *p.Responsible
	}
	if p.TagIDs != nil {
		card.TagIDs = dedupeIDs(*p.TagIDs)
	}
	if p.Value != nil {
		v := normalizeValue(float64(*p.Value))
		valueChanged = v != card.Value
		card.Value = v
	}
	card.UpdatedAt = now
	return card, valueChanged, nil
}

func normalizeSubtasks(in []Subtask) ([]Subtask, error) {
	out := make([]Subtask, 0, len(in))
	for _, s := range in {
		name, err := requireText("subtask name", s.Name)
		if err != nil {
			return nil, err
		}
		s.Name = name
		if s.ID == (ulid.ULID{}) {
			s.ID = NewULID()
		}
		out = append(out, s)
	}
	return out, nil
}

func normalizeAttachments(in []Attachment) ([]Attachment, error) {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if !a.Type.Valid() {
			return nil, &ValidationError{Field: "attachment type", Reason: "unknown type " + string(a.Type)}
		}
		name, err := requireText("attachment name", a.Name)
		if err != nil {
			return nil, err
		}
		a.Name = name
		if a.ID == (ulid.ULID{}) {
			a.ID = NewULID()
		}
		out = append(out, a)
	}
	return out, nil
}

func normalizeCustomFields(in []CustomField) ([]CustomField, error) {
	out := make([]CustomField, 0, len(in))
	for _, f := range in {
		name, err := requireText("custom field name", f.Name)
		if err != nil {
			return nil, err
		}
		f.Name = name
		if f.ID == (ulid.ULID{}) {
			f.ID = NewULID()
		}
		out = append(out, f)
	}
	return out, nil
}

func dedupeIDs(ids []ulid.ULID) []ulid.ULID {
	out := make([]ulid.ULID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
