// ABOUTME: Event is the envelope broadcast after every committed or provisional workspace change.
// ABOUTME: EventPayload variants form a tagged union serialized with a "type" discriminator.
package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is the immutable envelope for a workspace change.
type Event struct {
	EventID     uint64       `json:"eventId"`
	WorkspaceID ulid.ULID    `json:"workspaceId"`
	BoardID     *ulid.ULID   `json:"boardId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Payload     EventPayload `json:"-"` // Custom marshal/unmarshal
	// State is the workspace as of this event's commit. Set by the actor and
	// never serialized; nil on decoded events.
	State *Workspace `json:"-"`
}

// eventJSON is the wire format for Event.
type eventJSON struct {
	EventID     uint64          `json:"eventId"`
	WorkspaceID ulid.ULID       `json:"workspaceId"`
	BoardID     *ulid.ULID      `json:"boardId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// MarshalJSON serializes the Event with its payload inlined.
func (e Event) MarshalJSON() ([]byte, error) {
	payloadJSON, err := MarshalEventPayload(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return json.Marshal(eventJSON{
		EventID:     e.EventID,
		WorkspaceID: e.WorkspaceID,
		BoardID:     e.BoardID,
		Timestamp:   e.Timestamp,
		Payload:     payloadJSON,
	})
}

// UnmarshalJSON deserializes the Event with its payload.
func (e *Event) UnmarshalJSON(data []byte) error {
	var j eventJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	payload, err := UnmarshalEventPayload(j.Payload)
	if err != nil {
		return fmt.Errorf("unmarshal event payload: %w", err)
	}
	e.EventID = j.EventID
	e.WorkspaceID = j.WorkspaceID
	e.BoardID = j.BoardID
	e.Timestamp = j.Timestamp
	e.Payload = payload
	return nil
}

// EventPayload is a tagged union of everything that can happen to a workspace.
type EventPayload interface {
	EventPayloadType() string
	eventPayloadSeal()
}

// BoardCreatedPayload indicates a new board was added.
type BoardCreatedPayload struct {
	BoardID    ulid.ULID  `json:"boardId"`
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
}

func (p BoardCreatedPayload) EventPayloadType() string { return "BoardCreated" }
func (p BoardCreatedPayload) eventPayloadSeal()        {}

// BoardUpdatedPayload carries the applied board patch.
type BoardUpdatedPayload struct {
	BoardID ulid.ULID  `json:"boardId"`
	Patch   BoardPatch `json:"patch"`
}

func (p BoardUpdatedPayload) EventPayloadType() string { return "BoardUpdated" }
func (p BoardUpdatedPayload) eventPayloadSeal()        {}

// BoardDeletedPayload indicates a board and its contents were removed.
type BoardDeletedPayload struct {
	BoardID ulid.ULID `json:"boardId"`
}

func (p BoardDeletedPayload) EventPayloadType() string { return "BoardDeleted" }
func (p BoardDeletedPayload) eventPayloadSeal()        {}

// ListCreatedPayload indicates a list was appended.
type ListCreatedPayload struct {
	ListID ulid.ULID `json:"listId"`
	Title  string    `json:"title"`
	Color  string    `json:"color,omitempty"`
}

func (p ListCreatedPayload) EventPayloadType() string { return "ListCreated" }
func (p ListCreatedPayload) eventPayloadSeal()        {}

// ListUpdatedPayload carries the applied list patch.
type ListUpdatedPayload struct {
	ListID ulid.ULID `json:"listId"`
	Patch  ListPatch `json:"patch"`
}

func (p ListUpdatedPayload) EventPayloadType() string { return "ListUpdated" }
func (p ListUpdatedPayload) eventPayloadSeal()        {}

// ListDeletedPayload indicates a list and its cards were removed.
type ListDeletedPayload struct {
	ListID ulid.ULID `json:"listId"`
	Cards  int       `json:"cards"`
}

func (p ListDeletedPayload) EventPayloadType() string { return "ListDeleted" }
func (p ListDeletedPayload) eventPayloadSeal()        {}

// ListsReorderedPayload indicates a list changed position.
type ListsReorderedPayload struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (p ListsReorderedPayload) EventPayloadType() string { return "ListsReordered" }
func (p ListsReorderedPayload) eventPayloadSeal()        {}

// CardCreatedPayload carries the new card, including its list.
type CardCreatedPayload struct {
	Card Card `json:"card"`
}

func (p CardCreatedPayload) EventPayloadType() string { return "CardCreated" }
func (p CardCreatedPayload) eventPayloadSeal()        {}

// CardEditedPayload carries the applied card patch.
type CardEditedPayload struct {
	CardID ulid.ULID `json:"cardId"`
	ListID ulid.ULID `json:"listId"`
	Patch  CardPatch `json:"patch"`
}

func (p CardEditedPayload) EventPayloadType() string { return "CardEdited" }
func (p CardEditedPayload) eventPayloadSeal()        {}

// CardDeletedPayload indicates a card was removed.
type CardDeletedPayload struct {
	CardID ulid.ULID `json:"cardId"`
	ListID ulid.ULID `json:"listId"`
}

func (p CardDeletedPayload) EventPayloadType() string { return "CardDeleted" }
func (p CardDeletedPayload) eventPayloadSeal()        {}

// CardMovedPayload indicates a card changed lists. Provisional moves happen
// mid-drag and are never evaluated against automations; the committed move
// that ends a drag spans from the drag's origin list to its final list.
type CardMovedPayload struct {
	CardID      ulid.ULID `json:"cardId"`
	FromListID  ulid.ULID `json:"fromListId"`
	ToListID    ulid.ULID `json:"toListId"`
	Index       int       `json:"index"`
	Provisional bool      `json:"provisional"`
}

func (p CardMovedPayload) EventPayloadType() string { return "CardMoved" }
func (p CardMovedPayload) eventPayloadSeal()        {}

// CardsReorderedPayload indicates a card changed position within its list.
type CardsReorderedPayload struct {
	ListID ulid.ULID `json:"listId"`
	CardID ulid.ULID `json:"cardId"`
	From   int       `json:"from"`
	To     int       `json:"to"`
}

func (p CardsReorderedPayload) EventPayloadType() string { return "CardsReordered" }
func (p CardsReorderedPayload) eventPayloadSeal()        {}

// DragStartedPayload indicates a card was picked up.
type DragStartedPayload struct {
	CardID ulid.ULID `json:"cardId"`
	ListID ulid.ULID `json:"listId"`
}

func (p DragStartedPayload) EventPayloadType() string { return "DragStarted" }
func (p DragStartedPayload) eventPayloadSeal()        {}

// DragRevertedPayload indicates a cancelled drag returned its card to the
// origin list, undoing provisional moves.
type DragRevertedPayload struct {
	CardID     ulid.ULID `json:"cardId"`
	FromListID ulid.ULID `json:"fromListId"`
	ToListID   ulid.ULID `json:"toListId"`
}

func (p DragRevertedPayload) EventPayloadType() string { return "DragReverted" }
func (p DragRevertedPayload) eventPayloadSeal()        {}

// TagSavedPayload carries a created or updated tag.
type TagSavedPayload struct {
	Tag Tag `json:"tag"`
}

func (p TagSavedPayload) EventPayloadType() string { return "TagSaved" }
func (p TagSavedPayload) eventPayloadSeal()        {}

// TagDeletedPayload indicates a tag was removed from the workspace and its cards.
type TagDeletedPayload struct {
	TagID ulid.ULID `json:"tagId"`
}

func (p TagDeletedPayload) EventPayloadType() string { return "TagDeleted" }
func (p TagDeletedPayload) eventPayloadSeal()        {}

// AutomationSavedPayload carries a created, replaced, or toggled automation.
type AutomationSavedPayload struct {
	Automation Automation `json:"automation"`
}

func (p AutomationSavedPayload) EventPayloadType() string { return "AutomationSaved" }
func (p AutomationSavedPayload) eventPayloadSeal()        {}

// AutomationDeletedPayload indicates an automation was removed.
type AutomationDeletedPayload struct {
	AutomationID ulid.ULID `json:"automationId"`
}

func (p AutomationDeletedPayload) EventPayloadType() string { return "AutomationDeleted" }
func (p AutomationDeletedPayload) eventPayloadSeal()        {}

// IntegrationCreatedPayload carries a parsed integration.
type IntegrationCreatedPayload struct {
	Integration HttpIntegration `json:"integration"`
}

func (p IntegrationCreatedPayload) EventPayloadType() string { return "IntegrationCreated" }
func (p IntegrationCreatedPayload) eventPayloadSeal()        {}

// IntegrationDeletedPayload indicates an integration was removed.
type IntegrationDeletedPayload struct {
	IntegrationID ulid.ULID `json:"integrationId"`
}

func (p IntegrationDeletedPayload) EventPayloadType() string { return "IntegrationDeleted" }
func (p IntegrationDeletedPayload) eventPayloadSeal()        {}

func decodePayload[T EventPayload](data []byte) (EventPayload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var payloadDecoders = map[string]func([]byte) (EventPayload, error){
	"BoardCreated":       decodePayload[BoardCreatedPayload],
	"BoardUpdated":       decodePayload[BoardUpdatedPayload],
	"BoardDeleted":       decodePayload[BoardDeletedPayload],
	"ListCreated":        decodePayload[ListCreatedPayload],
	"ListUpdated":        decodePayload[ListUpdatedPayload],
	"ListDeleted":        decodePayload[ListDeletedPayload],
	"ListsReordered":     decodePayload[ListsReorderedPayload],
	"CardCreated":        decodePayload[CardCreatedPayload],
	"CardEdited":         decodePayload[CardEditedPayload],
	"CardDeleted":        decodePayload[CardDeletedPayload],
	"CardMoved":          decodePayload[CardMovedPayload],
	"CardsReordered":     decodePayload[CardsReorderedPayload],
	"DragStarted":        decodePayload[DragStartedPayload],
	"DragReverted":       decodePayload[DragRevertedPayload],
	"TagSaved":           decodePayload[TagSavedPayload],
	"TagDeleted":         decodePayload[TagDeletedPayload],
	"AutomationSaved":    decodePayload[AutomationSavedPayload],
	"AutomationDeleted":  decodePayload[AutomationDeletedPayload],
	"IntegrationCreated": decodePayload[IntegrationCreatedPayload],
	"IntegrationDeleted": decodePayload[IntegrationDeletedPayload],
}

// MarshalEventPayload serializes an EventPayload with a "type" discriminator.
func MarshalEventPayload(p EventPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot marshal nil event payload")
	}
	return marshalTagged(p.EventPayloadType(), p)
}

// UnmarshalEventPayload deserializes an EventPayload using its "type" discriminator.
func UnmarshalEventPayload(data []byte) (EventPayload, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal payload type: %w", err)
	}
	decode, ok := payloadDecoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event payload type: %q", envelope.Type)
	}
	return decode(data)
}
