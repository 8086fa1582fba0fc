// ABOUTME: Tests for YAML and Markdown board exports.
package export_test

import (
	"strings"
	"testing"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/export"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

func salesWorkspace(t *testing.T) (*core.Workspace, *core.Board) {
	t.Helper()
	ws := core.NewWorkspace(core.NewULID(), "Acme")
	ws, zeta, err := ws.CreateTag("zeta", "")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	ws, alpha, err := ws.CreateTag("Alpha", "")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	ws, b, err := ws.CreateBoard("Sales", core.VisibilityEveryone)
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	b, todo, err := core.CreateList(b, "Todo", "")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	b, done, err := core.CreateList(b, "Done", "#00ff00")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	b, _, err = core.CreateCard(b, todo, core.CardInput{
		Title:       "Acme renewal",
		Value:       1200.5,
		Priority:    core.PriorityHigh,
		Responsible: "sam",
		TagIDs:      []ulid.ULID{zeta.ID, alpha.ID},
		Subtasks:    []core.Subtask{{Name: "Call"}},
	})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	b, _, err = core.CreateCard(b, todo, core.CardInput{Title: "Globex pilot", Value: 300, Priority: core.PriorityLow})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	b.CompletedListID = &done
	ws, err = ws.WithBoard(b)
	if err != nil {
		t.Fatalf("WithBoard: %v", err)
	}
	b, _ = ws.Board(b.ID)
	ws, _, err = ws.SaveAutomation(b.ID, nil, core.AutomationInput{
		Trigger: core.TriggerCardMoved, SourceListID: &todo, TargetListID: &done, WebhookURL: "https://hooks.example.com/won",
	})
	if err != nil {
		t.Fatalf("SaveAutomation: %v", err)
	}
	b, _ = ws.Board(b.ID)
	return ws, b
}

func TestExportMarkdown(t *testing.T) {
	ws, b := salesWorkspace(t)
	md := export.ExportMarkdown(ws, b)

	for _, want := range []string{
		"# Sales\n",
		"> Acme · 2 cards · total 1500.50\n",
		"## Todo\n\nTotal: 1500.50\n",
		"### Acme renewal\n",
		"- Priority: high\n",
		"- Tags: Alpha, zeta\n",
		"- [ ] Call\n",
		"## Done (completed)\n",
		"_No cards._",
		"- `card_moved` from Todo to Done → https://hooks.example.com/won (active)\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
	if strings.Index(md, "Acme renewal") > strings.Index(md, "Globex pilot") {
		t.Error("cards out of list order")
	}
	if again := export.ExportMarkdown(ws, b); again != md {
		t.Error("markdown export is not deterministic")
	}
}

func TestExportYAML(t *testing.T) {
	ws, b := salesWorkspace(t)
	out, err := export.ExportYAML(ws, b)
	if err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	var doc export.YamlBoard
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if doc.Workspace != "Acme" || doc.Board != "Sales" || doc.TotalValue != 1500.5 {
		t.Errorf("header: %+v", doc)
	}
	if len(doc.Lists) != 2 || doc.Lists[0].Title != "Todo" || !doc.Lists[1].Completed {
		t.Fatalf("lists: %+v", doc.Lists)
	}
	card := doc.Lists[0].Cards[0]
	if card.Title != "Acme renewal" || strings.Join(card.Tags, ",") != "Alpha,zeta" {
		t.Errorf("card: %+v", card)
	}
	if len(doc.Automations) != 1 || doc.Automations[0].Source != "Todo" || doc.Automations[0].Target != "Done" {
		t.Errorf("automations: %+v", doc.Automations)
	}
	if len(doc.Lists[1].Cards) != 0 {
		t.Errorf("done cards: %+v", doc.Lists[1].Cards)
	}
}

func TestExportYAMLRequiresBoard(t *testing.T) {
	if _, err := export.ExportYAML(core.NewWorkspace(core.NewULID(), "x"), nil); err == nil {
		t.Fatal("want error for nil board")
	}
}
