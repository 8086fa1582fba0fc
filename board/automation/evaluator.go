// ABOUTME: Automation trigger evaluation: matches committed board events against a board's active automations.
// ABOUTME: Pure function; provisional drag moves and non-card events never match.
package automation

import (
	"time"

	"github.com/2389-research/funnel/board/core"
	"github.com/oklog/ulid/v2"
)

// Payload is the JSON body posted to an automation's webhook.
type Payload struct {
	Trigger      core.Trigger `json:"trigger"`
	CardID       ulid.ULID    `json:"cardId"`
	SourceListID *ulid.ULID   `json:"sourceListId,omitempty"`
	TargetListID *ulid.ULID   `json:"targetListId,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Match pairs an automation with the payload its webhook receives.
type Match struct {
	Automation core.Automation
	Payload    Payload
}

// Evaluate returns the automations of b that fire for ev, in board order.
//
//   - card_created fires for every new card.
//   - card_created_in_list fires when the card was created in the source list.
//   - card_moved fires when the card left the source list and landed in the
//     target list; a move anywhere else does not fire it.
func Evaluate(b *core.Board, ev core.Event) []Match {
	var matches []Match
	switch p := ev.Payload.(type) {
	case core.CardCreatedPayload:
		listID := p.Card.ListID
		for _, a := range b.Automations {
			if !a.Active {
				continue
			}
			switch a.Trigger {
			case core.TriggerCardCreated:
			case core.TriggerCardCreatedInList:
				if a.SourceListID == nil || *a.SourceListID != listID {
					continue
				}
			default:
				continue
			}
			matches = append(matches, Match{Automation: a, Payload: Payload{
				Trigger:      a.Trigger,
				CardID:       p.Card.ID,
				SourceListID: &listID,
				Timestamp:    ev.Timestamp,
			}})
		}

	case core.CardMovedPayload:
		if p.Provisional || p.FromListID == p.ToListID {
			return nil
		}
		from, to := p.FromListID, p.ToListID
		for _, a := range b.Automations {
			if !a.Active || a.Trigger != core.TriggerCardMoved {
				continue
			}
			if a.SourceListID == nil || a.TargetListID == nil {
				continue
			}
			if *a.SourceListID != from || *a.TargetListID != to {
				continue
			}
			matches = append(matches, Match{Automation: a, Payload: Payload{
				Trigger:      a.Trigger,
				CardID:       p.CardID,
				SourceListID: &from,
				TargetListID: &to,
				Timestamp:    ev.Timestamp,
			}})
		}
	}
	return matches
}
