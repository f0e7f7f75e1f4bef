package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/preview"
	"rasterkit/internal/raster"
	"rasterkit/internal/workspace"
)

type previewSummary struct {
	Output     string   `json:"output"`
	Bands      []int    `json:"bands"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Downscaled bool     `json:"downscaled"`
	Issues     []string `json:"issues,omitempty"`
	Corrected  bool     `json:"corrected"`
	Sample     string   `json:"sample,omitempty"`
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var bandsFlag string
	var outFlag string
	var correctFlag string

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Render a 1-3 band composite preview as PNG",
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

				order := bandorder.Default(min(h.BandCount(), 3))
				if strings.TrimSpace(bandsFlag) != "" {
					if order, err = bandorder.Parse(bandsFlag); err != nil {
						return err
					}
				}

				res, err := ws.ComposePreview(commandCtx(cmd), h, order)
				if err != nil {
					return err
				}
				if res.Correction != nil && res.Correction.Persisted() {
					if sample, ok := res.Correction.Handle.(*raster.File); ok {
						defer sample.Close()
					}
				}
				if err := preview.WritePNG(outFlag, res.Image); err != nil {
					return err
				}
				return printPreview(cmd, ctx.jsonOutput(), outFlag, res)
			})
		},
	}

	cmd.Flags().StringVarP(&bandsFlag, "bands", "b", "", "Comma-separated 1-based bands to compose (default: first three)")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Destination PNG path")
	cmd.Flags().StringVar(&correctFlag, "correct", "", "Answer for detected issues: yes, no, or decline (prompts when omitted)")
	return cmd
}

func printPreview(cmd *cobra.Command, asJSON bool, output string, res *preview.Result) error {
	bounds := res.Image.Bounds()
	summary := previewSummary{
		Output:     output,
		Bands:      res.Order,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Downscaled: res.Downscaled,
	}
	for _, issue := range res.Issues {
		summary.Issues = append(summary.Issues, string(issue.Kind))
	}
	if res.Correction != nil {
		summary.Corrected = res.Correction.Corrected()
		if res.Correction.Sample != nil {
			summary.Sample = res.Correction.Sample.Path
		}
	}
	if asJSON {
		return writeJSON(cmd, summary)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Preview written to %s (%dx%d, bands %s)\n", output, summary.Width, summary.Height, res.Order)
	if summary.Downscaled {
		fmt.Fprintln(out, "Preview was downscaled to fit the configured maximum dimension")
	}
	if len(summary.Issues) > 0 {
		fmt.Fprintf(out, "Issues: %s; corrected: %s\n", strings.Join(summary.Issues, ", "), yesNo(summary.Corrected))
	}
	if summary.Sample != "" {
		fmt.Fprintf(out, "Corrected sample saved to %s\n", summary.Sample)
	}
	return nil
}
