// ABOUTME: The list and show subcommands: summarize stored workspaces and render a board as terminal columns.
// ABOUTME: Columns are drawn with lipgloss, one bordered box per list with its total value.
package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/2389-research/funnel/board/core"
	"github.com/2389-research/funnel/board/export"
)

const columnWidth = 30

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1).
			Width(columnWidth)

	completedColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("42"))

	listTitleStyle = lipgloss.NewStyle().Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var priorityStyles = map[core.Priority]lipgloss.Style{
	core.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	core.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
	core.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	core.PriorityUrgent: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored workspaces and their boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, repo, p, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()
			ids, err := mgr.WorkspaceIDs(ctx, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, subtleStyle.Render("no workspaces"))
				return nil
			}
			for _, id := range ids {
				ws, err := repo.LoadWorkspace(ctx, id)
				if err != nil {
					c.log.Sugar().Warnw("skipping workspace", "workspace", id, "error", err)
					continue
				}
				fmt.Fprintf(out, "%s  %s\n", titleStyle.Render(ws.Name), subtleStyle.Render(ws.ID.String()))
				for _, b := range ws.Boards {
					fmt.Fprintf(out, "  %-24s %4d cards  %s\n", b.Name, b.CardCount(), export.FormatValue(b.TotalValue()))
				}
			}
			return nil
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workspace> [board]",
		Short: "Render a board as columns",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mgr, repo, p, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()
			ws, err := findWorkspace(ctx, mgr, repo, p, args[0])
			if err != nil {
				return err
			}
			var ref string
			if len(args) == 2 {
				ref = args[1]
			}
			b, err := findBoard(ws, ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderBoard(ws, b))
			return nil
		},
	}
}

// renderBoard draws the board header and one column per list.
func renderBoard(ws *core.Workspace, b *core.Board) string {
	header := fmt.Sprintf("%s %s",
		titleStyle.Render(b.Name),
		subtleStyle.Render(fmt.Sprintf("%s · %d cards · total %s", ws.Name, b.CardCount(), export.FormatValue(b.TotalValue()))))
	if len(b.Lists) == 0 {
		return header + "\n" + subtleStyle.Render("no lists")
	}

	cols := make([]string, 0, len(b.Lists))
	for _, l := range b.Lists {
		completed := b.CompletedListID != nil && *b.CompletedListID == l.ID
		cols = append(cols, renderColumn(ws, l, completed))
	}
	return header + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderColumn(ws *core.Workspace, l core.List, completed bool) string {
	var sb strings.Builder
	title := l.Title
	if completed {
		title += " ✓"
	}
	sb.WriteString(listTitleStyle.Render(title))
	sb.WriteString("\n")
	sb.WriteString(valueStyle.Render(export.FormatValue(l.TotalValue)))
	if len(l.Cards) == 0 {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render("no cards"))
	}
	for _, c := range l.Cards {
		sb.WriteString("\n\n")
		sb.WriteString(c.Title)
		line := priorityStyles[c.Priority].Render(string(c.Priority))
		if c.Value > 0 {
			line += " " + valueStyle.Render(export.FormatValue(c.Value))
		}
		if tags := ws.ResolveTags(c); len(tags) > 0 {
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = "#" + t.Name
			}
			line += " " + subtleStyle.Render(strings.Join(names, " "))
		}
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	style := columnStyle
	if completed {
		style = completedColumnStyle
	}
	return style.Render(sb.String())
}
