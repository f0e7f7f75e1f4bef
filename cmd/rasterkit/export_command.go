package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/workspace"
)

type exportSummary struct {
	Output   string   `json:"output"`
	Source   string   `json:"source"`
	Bands    []int    `json:"bands"`
	DataType string   `json:"dtype"`
	Size     int64    `json:"size"`
	SHA256   string   `json:"sha256"`
	Issues   []string `json:"issues,omitempty"`
	Sample   string   `json:"sample,omitempty"`
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var bandsFlag string
	var outFlag string
	var correctFlag string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write selected bands, in order, to a new GeoTIFF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outFlag) == "" {
				return fmt.Errorf("--out is required")
			}
			return ctx.withWorkspace(newPromptDecision(cmd, correctFlag), func(ws *workspace.Workspace) error {
				h, err := ws.OpenRaster(args[0])
				if err != nil {
					return err
				}
				defer h.Close()

				order := bandorder.Default(h.BandCount())
				if strings.TrimSpace(bandsFlag) != "" {
					if order, err = bandorder.Parse(bandsFlag); err != nil {
						return err
					}
				}

				res, err := ws.ExportBands(commandCtx(cmd), h, order, outFlag)
				if err != nil {
					return err
				}

				summary := exportSummary{
					Output:   res.Path,
					Source:   res.Source,
					Bands:    res.Order,
					DataType: res.DataType.String(),
					Size:     res.Size,
					SHA256:   res.SHA256,
				}
				for _, issue := range res.Issues {
					summary.Issues = append(summary.Issues, string(issue.Kind))
				}
				if res.Correction != nil && res.Correction.Sample != nil {
					summary.Sample = res.Correction.Sample.Path
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}

				rows := [][]string{
					{"Output", summary.Output},
					{"Source", summary.Source},
					{"Bands", res.Order.String()},
					{"Data type", summary.DataType},
					{"Size", humanBytes(summary.Size)},
					{"SHA-256", summary.SHA256},
				}
				if summary.Sample != "" {
					rows = append(rows, []string{"Corrected sample", summary.Sample})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Export", ""}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&bandsFlag, "bands", "b", "", "Comma-separated 1-based bands in output order (default: all)")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Destination GeoTIFF path")
	cmd.Flags().StringVar(&correctFlag, "correct", "", "Answer for detected issues: yes, no, or decline (prompts when omitted)")
	return cmd
}
