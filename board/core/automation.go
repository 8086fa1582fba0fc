// ABOUTME: Automation maps a board mutation trigger to an outbound webhook call.
// ABOUTME: Validation enforces which list references each trigger needs and that the URL is absolute http(s).
package core

import (
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Automation is a rule evaluated after every committed mutation on its board.
// Inactive automations are kept but skipped.
type Automation struct {
	ID            ulid.ULID  `json:"id"`
	Trigger       Trigger    `json:"trigger"`
	SourceListID  *ulid.ULID `json:"sourceListId,omitempty"`
	TargetListID  *ulid.ULID `json:"targetListId,omitempty"`
	WebhookURL    string     `json:"webhookUrl"`
	IntegrationID *ulid.ULID `json:"integrationId,omitempty"`
	Active        bool       `json:"active"`
}

// AutomationInput carries the user-editable fields of an automation.
type AutomationInput struct {
	Trigger       Trigger    `json:"trigger"`
	SourceListID  *ulid.ULID `json:"sourceListId,omitempty"`
	TargetListID  *ulid.ULID `json:"targetListId,omitempty"`
	WebhookURL    string     `json:"webhookUrl"`
	IntegrationID *ulid.ULID `json:"integrationId,omitempty"`
	Active        *bool      `json:"active,omitempty"`
}

// buildAutomation validates in against b and returns the automation with the
// given id. Lists that a trigger does not use are dropped.
func buildAutomation(b *Board, id ulid.ULID, in AutomationInput) (Automation, error) {
	if !in.Trigger.Valid() {
		return Automation{}, &ValidationError{Field: "trigger", Reason: "unknown trigger " + string(in.Trigger)}
	}
	if err := validateWebhookURL(in.WebhookURL); err != nil {
		return Automation{}, err
	}
	a := Automation{
		ID:            id,
		Trigger:       in.Trigger,
		WebhookURL:    strings.TrimSpace(in.WebhookURL),
		IntegrationID: in.IntegrationID,
		Active:        true,
	}
	if in.Active != nil {
		a.Active = *in.Active
	}
	if in.Trigger.NeedsSource() {
		if in.SourceListID == nil {
			return Automation{}, &ValidationError{Field: "sourceListId", Reason: "required for " + string(in.Trigger)}
		}
		if b.ListIndex(*in.SourceListID) < 0 {
			return Automation{}, notFound("list", in.SourceListID)
		}
		src := *in.SourceListID
		a.SourceListID = &src
	}
	if in.Trigger.NeedsTarget() {
		if in.TargetListID == nil {
			return Automation{}, &ValidationError{Field: "targetListId", Reason: "required for " + string(in.Trigger)}
		}
		if b.ListIndex(*in.TargetListID) < 0 {
			return Automation{}, notFound("list", in.TargetListID)
		}
		dst := *in.TargetListID
		a.TargetListID = &dst
	}
	return a, nil
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "webhookUrl", Reason: "must be an absolute http or https URL"}
	}
	return nil
}
