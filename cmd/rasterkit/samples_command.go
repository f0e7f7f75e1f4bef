package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rasterkit/internal/samples"
	"rasterkit/internal/workspace"
)

type sampleView struct {
	ID        string   `json:"id"`
	Source    string   `json:"source"`
	Path      string   `json:"path"`
	DataType  string   `json:"dtype"`
	NoData    string   `json:"nodata,omitempty"`
	Issues    []string `json:"issues"`
	Size      int64    `json:"size"`
	SHA256    string   `json:"sha256"`
	CreatedAt string   `json:"created_at"`
}

func newSamplesCommand(ctx *commandContext) *cobra.Command {
	samplesCmd := &cobra.Command{
		Use:   "samples",
		Short: "Inspect the registry of corrected samples",
	}
	samplesCmd.AddCommand(newSamplesListCommand(ctx))
	samplesCmd.AddCommand(newSamplesRemoveCommand(ctx))
	return samplesCmd
}

func newSamplesListCommand(ctx *commandContext) *cobra.Command {
	var sourceFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted corrected samples, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(nil, func(ws *workspace.Workspace) error {
				var (
					list []*samples.Sample
					err  error
				)
				if source := strings.TrimSpace(sourceFlag); source != "" {
					if source, err = filepath.Abs(source); err != nil {
						return fmt.Errorf("resolve source path: %w", err)
					}
					list, err = ws.Samples().ForSource(commandCtx(cmd), source)
				} else {
					list, err = ws.Samples().List(commandCtx(cmd))
				}
				if err != nil {
					return err
				}

				views := make([]sampleView, len(list))
				for i, s := range list {
					views[i] = sampleView{
						ID:        s.ID,
						Source:    s.SourcePath,
						Path:      s.Path,
						DataType:  s.DataType,
						NoData:    s.NoData,
						Issues:    s.IssueKinds,
						Size:      s.Size,
						SHA256:    s.SHA256,
						CreatedAt: s.CreatedAt.Format(time.RFC3339),
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No samples recorded")
					return nil
				}
				rows := make([][]string, len(views))
				for i, v := range views {
					rows[i] = []string{
						samples.Sample{ID: v.ID}.ShortID(),
						filepath.Base(v.Source),
						v.Path,
						v.DataType,
						strings.Join(v.Issues, ","),
						humanBytes(v.Size),
						v.CreatedAt,
					}
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Sample", "Type", "Fixed", "Size", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sourceFlag, "source", "", "Only list samples derived from this raster")
	return cmd
}

func newSamplesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id>",
		Short: "Remove a sample from the registry (the file is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(nil, func(ws *workspace.Workspace) error {
				if err := ws.Samples().Remove(commandCtx(cmd), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sample %s removed from the registry\n", args[0])
				return nil
			})
		},
	}
}
