package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rasterkit/internal/issues"
	"rasterkit/internal/workspace"
)

type issueView struct {
	issues.Issue
	Label       string `json:"label"`
	Recommended string `json:"recommended"`
}

func newIssuesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "issues <file>",
		Short: "Detect data-quality issues and show the recommended fixes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(nil, func(ws *workspace.Workspace) error {
				h, err := ws.OpenRaster(args[0])
				if err != nil {
					return err
				}
				defer h.Close()

				found, err := ws.DetectIssues(commandCtx(cmd), h)
				if err != nil {
					return err
				}
				views := make([]issueView, len(found))
				for i, issue := range found {
					views[i] = issueView{Issue: issue, Label: issueLabel(issue.Kind), Recommended: actionLabel(issue)}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No issues detected")
					return nil
				}
				rows := make([][]string, len(views))
				for i, v := range views {
					rows[i] = []string{v.Label, bandList(v.Bands), v.Recommended, v.Description}
				}
				fmt.Fprintln(out, renderTable([]string{"Issue", "Bands", "Fix", "Details"}, rows, nil))
				return nil
			})
		},
	}
}

func bandList(bands []int) string {
	parts := make([]string, len(bands))
	for i, b := range bands {
		parts[i] = fmt.Sprint(b)
	}
	return strings.Join(parts, ",")
}
