// ABOUTME: Command is a tagged union of every workspace mutation intent, including drag pointer events.
// ABOUTME: Commands serialize with a "type" discriminator so the HTTP API and the CLI share one wire format.
package core

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Command represents a mutation intent for a workspace.
type Command interface {
	CommandType() string
	commandSeal()
}

// CreateBoardCommand adds an empty board.
type CreateBoardCommand struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility,omitempty"`
}

func (c CreateBoardCommand) CommandType() string { return "CreateBoard" }
func (c CreateBoardCommand) commandSeal()        {}

// UpdateBoardCommand patches board settings, including the completed list.
type UpdateBoardCommand struct {
	BoardID ulid.ULID  `json:"boardId"`
	Patch   BoardPatch `json:"patch"`
}

func (c UpdateBoardCommand) CommandType() string { return "UpdateBoard" }
func (c UpdateBoardCommand) commandSeal()        {}

// DeleteBoardCommand removes a board and everything on it.
type DeleteBoardCommand struct {
	BoardID ulid.ULID `json:"boardId"`
}

func (c DeleteBoardCommand) CommandType() string { return "DeleteBoard" }
func (c DeleteBoardCommand) commandSeal()        {}

// CreateListCommand appends a list to a board.
type CreateListCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	Title   string    `json:"title"`
	Color   string    `json:"color,omitempty"`
}

func (c CreateListCommand) CommandType() string { return "CreateList" }
func (c CreateListCommand) commandSeal()        {}

// UpdateListCommand renames or recolors a list.
type UpdateListCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	ListID  ulid.ULID `json:"listId"`
	Patch   ListPatch `json:"patch"`
}

func (c UpdateListCommand) CommandType() string { return "UpdateList" }
func (c UpdateListCommand) commandSeal()        {}

// DeleteListCommand removes a list and its cards.
type DeleteListCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	ListID  ulid.ULID `json:"listId"`
}

func (c DeleteListCommand) CommandType() string { return "DeleteList" }
func (c DeleteListCommand) commandSeal()        {}

// ReorderListsCommand moves the list at From to position To.
type ReorderListsCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	From    int       `json:"from"`
	To      int       `json:"to"`
}

func (c ReorderListsCommand) CommandType() string { return "ReorderLists" }
func (c ReorderListsCommand) commandSeal()        {}

// CreateCardCommand appends a card to a list.
type CreateCardCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	ListID  ulid.ULID `json:"listId"`
	Card    CardInput `json:"card"`
}

func (c CreateCardCommand) CommandType() string { return "CreateCard" }
func (c CreateCardCommand) commandSeal()        {}

// EditCardCommand patches a card wherever it lives on the board.
type EditCardCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	CardID  ulid.ULID `json:"cardId"`
	Patch   CardPatch `json:"patch"`
}

func (c EditCardCommand) CommandType() string { return "EditCard" }
func (c EditCardCommand) commandSeal()        {}

// DeleteCardCommand removes a card from a list.
type DeleteCardCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	ListID  ulid.ULID `json:"listId"`
	CardID  ulid.ULID `json:"cardId"`
}

func (c DeleteCardCommand) CommandType() string { return "DeleteCard" }
func (c DeleteCardCommand) commandSeal()        {}

// MoveCardCommand moves a card between lists. A nil Index appends.
type MoveCardCommand struct {
	BoardID    ulid.ULID `json:"boardId"`
	CardID     ulid.ULID `json:"cardId"`
	FromListID ulid.ULID `json:"fromListId"`
	ToListID   ulid.ULID `json:"toListId"`
	Index      *int      `json:"index,omitempty"`
}

func (c MoveCardCommand) CommandType() string { return "MoveCard" }
func (c MoveCardCommand) commandSeal()        {}

// ReorderCardsCommand moves a card to another position in the same list.
type ReorderCardsCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	ListID  ulid.ULID `json:"listId"`
	From    int       `json:"from"`
	To      int       `json:"to"`
}

func (c ReorderCardsCommand) CommandType() string { return "ReorderCards" }
func (c ReorderCardsCommand) commandSeal()        {}

// CreateTagCommand adds a workspace tag.
type CreateTagCommand struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (c CreateTagCommand) CommandType() string { return "CreateTag" }
func (c CreateTagCommand) commandSeal()        {}

// UpdateTagCommand renames or recolors a tag.
type UpdateTagCommand struct {
	TagID ulid.ULID `json:"tagId"`
	Patch TagPatch  `json:"patch"`
}

func (c UpdateTagCommand) CommandType() string { return "UpdateTag" }
func (c UpdateTagCommand) commandSeal()        {}

// DeleteTagCommand removes a tag from the workspace and from every card.
type DeleteTagCommand struct {
	TagID ulid.ULID `json:"tagId"`
}

func (c DeleteTagCommand) CommandType() string { return "DeleteTag" }
func (c DeleteTagCommand) commandSeal()        {}

// SaveAutomationCommand creates an automation, or replaces one when
// AutomationID is set.
type SaveAutomationCommand struct {
	BoardID      ulid.ULID       `json:"boardId"`
	AutomationID *ulid.ULID      `json:"automationId,omitempty"`
	Automation   AutomationInput `json:"automation"`
}

func (c SaveAutomationCommand) CommandType() string { return "SaveAutomation" }
func (c SaveAutomationCommand) commandSeal()        {}

// SetAutomationActiveCommand activates or deactivates an automation.
type SetAutomationActiveCommand struct {
	BoardID      ulid.ULID `json:"boardId"`
	AutomationID ulid.ULID `json:"automationId"`
	Active       bool      `json:"active"`
}

func (c SetAutomationActiveCommand) CommandType() string { return "SetAutomationActive" }
func (c SetAutomationActiveCommand) commandSeal()        {}

// DeleteAutomationCommand removes an automation.
type DeleteAutomationCommand struct {
	BoardID      ulid.ULID `json:"boardId"`
	AutomationID ulid.ULID `json:"automationId"`
}

func (c DeleteAutomationCommand) CommandType() string { return "DeleteAutomation" }
func (c DeleteAutomationCommand) commandSeal()        {}

// CreateIntegrationCommand parses and stores an HTTP integration.
type CreateIntegrationCommand struct {
	Integration IntegrationInput `json:"integration"`
}

func (c CreateIntegrationCommand) CommandType() string { return "CreateIntegration" }
func (c CreateIntegrationCommand) commandSeal()        {}

// DeleteIntegrationCommand removes an integration.
type DeleteIntegrationCommand struct {
	IntegrationID ulid.ULID `json:"integrationId"`
}

func (c DeleteIntegrationCommand) CommandType() string { return "DeleteIntegration" }
func (c DeleteIntegrationCommand) commandSeal()        {}

// DragStartCommand picks up a card.
type DragStartCommand struct {
	BoardID ulid.ULID `json:"boardId"`
	CardID  ulid.ULID `json:"cardId"`
}

func (c DragStartCommand) CommandType() string { return "DragStart" }
func (c DragStartCommand) commandSeal()        {}

// DragOverCommand reports the drop zone under the pointer.
type DragOverCommand struct {
	BoardID ulid.ULID  `json:"boardId"`
	Target  DragTarget `json:"target"`
}

func (c DragOverCommand) CommandType() string { return "DragOver" }
func (c DragOverCommand) commandSeal()        {}

// DragEndCommand releases the card. A nil Target cancels the drag.
type DragEndCommand struct {
	BoardID ulid.ULID   `json:"boardId"`
	Target  *DragTarget `json:"target,omitempty"`
}

func (c DragEndCommand) CommandType() string { return "DragEnd" }
func (c DragEndCommand) commandSeal()        {}

func decodeCommand[T Command](data []byte) (Command, error) {
	var c T
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}

var commandDecoders = map[string]func([]byte) (Command, error){
	"CreateBoard":         decodeCommand[CreateBoardCommand],
	"UpdateBoard":         decodeCommand[UpdateBoardCommand],
	"DeleteBoard":         decodeCommand[DeleteBoardCommand],
	"CreateList":          decodeCommand[CreateListCommand],
	"UpdateList":          decodeCommand[UpdateListCommand],
	"DeleteList":          decodeCommand[DeleteListCommand],
	"ReorderLists":        decodeCommand[ReorderListsCommand],
	"CreateCard":          decodeCommand[CreateCardCommand],
	"EditCard":            decodeCommand[EditCardCommand],
	"DeleteCard":          decodeCommand[DeleteCardCommand],
	"MoveCard":            decodeCommand[MoveCardCommand],
	"ReorderCards":        decodeCommand[ReorderCardsCommand],
	"CreateTag":           decodeCommand[CreateTagCommand],
	"UpdateTag":           decodeCommand[UpdateTagCommand],
	"DeleteTag":           decodeCommand[DeleteTagCommand],
	"SaveAutomation":      decodeCommand[SaveAutomationCommand],
	"SetAutomationActive": decodeCommand[SetAutomationActiveCommand],
	"DeleteAutomation":    decodeCommand[DeleteAutomationCommand],
	"CreateIntegration":   decodeCommand[CreateIntegrationCommand],
	"DeleteIntegration":   decodeCommand[DeleteIntegrationCommand],
	"DragStart":           decodeCommand[DragStartCommand],
	"DragOver":            decodeCommand[DragOverCommand],
	"DragEnd":             decodeCommand[DragEndCommand],
}

// MarshalCommand serializes a Command with a "type" discriminator field.
func MarshalCommand(c Command) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("cannot marshal nil command")
	}
	return marshalTagged(c.CommandType(), c)
}

// UnmarshalCommand deserializes a Command from JSON with a "type" discriminator.
func UnmarshalCommand(data []byte) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal command type: %w", err)
	}
	decode, ok := commandDecoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, envelope.Type)
	}
	c, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s command: %w", envelope.Type, err)
	}
	return c, nil
}

// marshalTagged marshals a struct with an injected "type" field.
func marshalTagged(typeName string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	typeJSON, _ := json.Marshal(typeName)
	m["type"] = typeJSON
	return json.Marshal(m)
}
