// ABOUTME: Enumerations shared by the board entity model: priority, visibility, triggers, attachments.
// ABOUTME: Each enum validates itself so commands can reject unknown values at the boundary.
package core

import (
	"regexp"
	"strings"
)

// Priority ranks a card's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Visibility controls who may see a board. Stored only; enforcement belongs
// to the session layer.
type Visibility string

const (
	VisibilityEveryone Visibility = "everyone"
	VisibilityMe       Visibility = "me"
	VisibilitySpecific Visibility = "specific"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityMe, VisibilitySpecific:
		return true
	}
	return false
}

// Trigger names the board mutation an automation reacts to.
type Trigger string

const (
	TriggerCardCreated       Trigger = "card_created"
	TriggerCardCreatedInList Trigger = "card_created_in_list"
	TriggerCardMoved         Trigger = "card_moved"
)

// Valid reports whether t is one of the known triggers.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerCardCreated, TriggerCardCreatedInList, TriggerCardMoved:
		return true
	}
	return false
}

// NeedsSource reports whether automations with this trigger require a source list.
func (t Trigger) NeedsSource() bool {
	return t == TriggerCardCreatedInList || t == TriggerCardMoved
}

// NeedsTarget reports whether automations with this trigger require a target list.
func (t Trigger) NeedsTarget() bool {
	return t == TriggerCardMoved
}

// AttachmentType classifies an attachment blob.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentDocument AttachmentType = "document"
	AttachmentVideo    AttachmentType = "video"
)

// Valid reports whether a is one of the known attachment types.
func (a AttachmentType) Valid() bool {
	switch a {
	case AttachmentImage, AttachmentDocument, AttachmentVideo:
		return true
	}
	return false
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validColor accepts "" (no color) or a #rgb / #rrggbb hex string.
func validColor(c string) bool {
	return c == "" || hexColor.MatchString(c)
}

// requireText trims s and rejects it when empty.
func requireText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return s, nil
}
