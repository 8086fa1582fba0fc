// ABOUTME: Exports a board as a structured YAML document.
// ABOUTME: Uses gopkg.in/yaml.v3; lists keep board order and cards keep list order.
package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/2389-research/funnel/board/core"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// YamlSubtask is a checklist item in the YAML export.
type YamlSubtask struct {
	Name      string `yaml:"name"`
	Completed bool   `yaml:"completed"`
}

// YamlCard is one card in the YAML export.
type YamlCard struct {
	ID           string            `yaml:"id"`
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description,omitempty"`
	Value        float64           `yaml:"value"`
	Priority     string            `yaml:"priority"`
	Responsible  string            `yaml:"responsible,omitempty"`
	Phone        string            `yaml:"phone,omitempty"`
	Date         string            `yaml:"date,omitempty"`
	Time         string            `yaml:"time,omitempty"`
	Tags         []string          `yaml:"tags,omitempty"`
	Subtasks     []YamlSubtask     `yaml:"subtasks,omitempty"`
	CustomFields map[string]string `yaml:"custom_fields,omitempty"`
	Attachments  []string          `yaml:"attachments,omitempty"`
}

// YamlList is one list in the YAML export.
type YamlList struct {
	ID         string     `yaml:"id"`
	Title      string     `yaml:"title"`
	Color      string     `yaml:"color,omitempty"`
	Completed  bool       `yaml:"completed,omitempty"`
	TotalValue float64    `yaml:"total_value"`
	Cards      []YamlCard `yaml:"cards"`
}

// YamlAutomation is one automation in the YAML export.
type YamlAutomation struct {
	Trigger    string `yaml:"trigger"`
	Source     string `yaml:"source,omitempty"`
	Target     string `yaml:"target,omitempty"`
	WebhookURL string `yaml:"webhook_url"`
	Active     bool   `yaml:"active"`
}

// YamlBoard is the top-level YAML document.
type YamlBoard struct {
	Workspace   string           `yaml:"workspace"`
	Board       string           `yaml:"board"`
	ID          string           `yaml:"id"`
	Visibility  string           `yaml:"visibility"`
	Members     []string         `yaml:"members,omitempty"`
	TotalValue  float64          `yaml:"total_value"`
	Lists       []YamlList       `yaml:"lists"`
	Automations []YamlAutomation `yaml:"automations,omitempty"`
}

// ExportYAML renders b, resolving tag and list names through ws.
func ExportYAML(ws *core.Workspace, b *core.Board) (string, error) {
	if ws == nil || b == nil {
		return "", fmt.Errorf("export yaml: workspace and board are required")
	}
	doc := YamlBoard{
		Workspace:  ws.Name,
		Board:      b.Name,
		ID:         b.ID.String(),
		Visibility: string(b.Visibility),
		Members:    b.Members,
		TotalValue: b.TotalValue(),
		Lists:      make([]YamlList, 0, len(b.Lists)),
	}

	for _, l := range b.Lists {
		yl := YamlList{
			ID:         l.ID.String(),
			Title:      l.Title,
			Color:      l.Color,
			Completed:  b.CompletedListID != nil && *b.CompletedListID == l.ID,
			TotalValue: l.TotalValue,
			Cards:      make([]YamlCard, 0, len(l.Cards)),
		}
		for _, c := range l.Cards {
			yl.Cards = append(yl.Cards, yamlCard(ws, c))
		}
		doc.Lists = append(doc.Lists, yl)
	}

	for _, a := range b.Automations {
		ya := YamlAutomation{Trigger: string(a.Trigger), WebhookURL: a.WebhookURL, Active: a.Active}
		if a.SourceListID != nil {
			ya.Source = listTitle(b, *a.SourceListID)
		}
		if a.TargetListID != nil {
			ya.Target = listTitle(b, *a.TargetListID)
		}
		doc.Automations = append(doc.Automations, ya)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("yaml marshal: %w", err)
	}
	return string(data), nil
}

func yamlCard(ws *core.Workspace, c core.Card) YamlCard {
	yc := YamlCard{
		ID:          c.ID.String(),
		Title:       c.Title,
		Description: c.Description,
		Value:       c.Value,
		Priority:    string(c.Priority),
		Responsible: c.Responsible,
		Phone:       c.Phone,
		Date:        c.Date,
		Time:        c.Time,
		Tags:        tagNames(ws, c),
	}
	for _, s := range c.Subtasks {
		yc.Subtasks = append(yc.Subtasks, YamlSubtask{Name: s.Name, Completed: s.Completed})
	}
	if len(c.CustomFields) > 0 {
		yc.CustomFields = make(map[string]string, len(c.CustomFields))
		for _, f := range c.CustomFields {
			yc.CustomFields[f.Name] = f.Value
		}
	}
	for _, a := range c.Attachments {
		yc.Attachments = append(yc.Attachments, a.Name)
	}
	return yc
}

// tagNames returns the card's resolved tag names sorted case-insensitively.
func tagNames(ws *core.Workspace, c core.Card) []string {
	tags := ws.ResolveTags(c)
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return names
}

func listTitle(b *core.Board, id ulid.ULID) string {
	if l, ok := b.List(id); ok {
		return l.Title
	}
	return id.String()
}
