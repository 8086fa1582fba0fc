// ABOUTME: The export subcommand: writes a stored board as Markdown or YAML to stdout, a file, or the workspace's exports dir.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389-research/funnel/board/export"
)

func newExportCmd(c *cli) *cobra.Command {
	var (
		format string
		out    string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "export <workspace> [board]",
		Short: "Export a board as Markdown or YAML",
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

			var body, ext string
			switch strings.ToLower(format) {
			case "md", "markdown":
				body, ext = export.ExportMarkdown(ws, b), "md"
			case "yaml", "yml":
				body, err = export.ExportYAML(ws, b)
				if err != nil {
					return err
				}
				ext = "yaml"
			default:
				return fmt.Errorf("unknown format %q: want md or yaml", format)
			}

			switch {
			case save:
				path, err := mgr.WriteExport(ws.ID, fmt.Sprintf("%s.%s", b.ID, ext), []byte(body))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			case out != "":
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
			default:
				fmt.Fprint(cmd.OutOrStdout(), body)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&save, "save", false, "write under the workspace's exports directory and print the path")
	return cmd
}
