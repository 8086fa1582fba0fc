// ABOUTME: Exports a board as a deterministic Markdown document.
// ABOUTME: Lists appear in board order, cards in list order, tags by name.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389-research/funnel/board/core"
)

// ExportMarkdown renders b as Markdown. The same board always renders to
// the same bytes.
func ExportMarkdown(ws *core.Workspace, b *core.Board) string {
	var out strings.Builder

	fmt.Fprintf(&out, "# %s\n", b.Name)
	fmt.Fprintln(&out)
	fmt.Fprintf(&out, "> %s · %d cards · total %s\n", ws.Name, b.CardCount(), FormatValue(b.TotalValue()))

	for _, l := range b.Lists {
		fmt.Fprintln(&out)
		title := l.Title
		if b.CompletedListID != nil && *b.CompletedListID == l.ID {
			title += " (completed)"
		}
		fmt.Fprintf(&out, "## %s\n", title)
		fmt.Fprintln(&out)
		fmt.Fprintf(&out, "Total: %s\n", FormatValue(l.TotalValue))

		if len(l.Cards) == 0 {
			fmt.Fprintln(&out)
			fmt.Fprintln(&out, "_No cards._")
			continue
		}
		for _, c := range l.Cards {
			fmt.Fprintln(&out)
			writeCard(&out, ws, c)
		}
	}

	if len(b.Automations) > 0 {
		fmt.Fprintln(&out)
		fmt.Fprintln(&out, "---")
		fmt.Fprintln(&out)
		fmt.Fprintln(&out, "## Automations")
		fmt.Fprintln(&out)
		for _, a := range b.Automations {
			state := "active"
			if !a.Active {
				state = "inactive"
			}
			fmt.Fprintf(&out, "- `%s`", a.Trigger)
			if a.SourceListID != nil {
				fmt.Fprintf(&out, " from %s", listTitle(b, *a.SourceListID))
			}
			if a.TargetListID != nil {
				fmt.Fprintf(&out, " to %s", listTitle(b, *a.TargetListID))
			}
			fmt.Fprintf(&out, " → %s (%s)\n", a.WebhookURL, state)
		}
	}

	return out.String()
}

func writeCard(out *strings.Builder, ws *core.Workspace, c core.Card) {
	fmt.Fprintf(out, "### %s\n", c.Title)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "- Value: %s\n", FormatValue(c.Value))
	fmt.Fprintf(out, "- Priority: %s\n", c.Priority)
	if c.Responsible != "" {
		fmt.Fprintf(out, "- Responsible: %s\n", c.Responsible)
	}
	if c.Phone != "" {
		fmt.Fprintf(out, "- Phone: %s\n", c.Phone)
	}
	if c.Date != "" {
		when := c.Date
		if c.Time != "" {
			when += " " + c.Time
		}
		fmt.Fprintf(out, "- Due: %s\n", when)
	}
	if names := tagNames(ws, c); len(names) > 0 {
		fmt.Fprintf(out, "- Tags: %s\n", strings.Join(names, ", "))
	}
	for _, f := range c.CustomFields {
		fmt.Fprintf(out, "- %s: %s\n", f.Name, f.Value)
	}

	if c.Description != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, c.Description)
	}
	if len(c.Subtasks) > 0 {
		fmt.Fprintln(out)
		for _, s := range c.Subtasks {
			mark := " "
			if s.Completed {
				mark = "x"
			}
			fmt.Fprintf(out, "- [%s] %s\n", mark, s.Name)
		}
	}
	if len(c.Attachments) > 0 {
		fmt.Fprintln(out)
		for _, a := range c.Attachments {
			fmt.Fprintf(out, "- Attachment: %s (%s)\n", a.Name, a.Type)
		}
	}
}

// FormatValue renders an amount with two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
