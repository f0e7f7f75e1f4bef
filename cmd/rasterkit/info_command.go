package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rasterkit/internal/metadata"
	"rasterkit/internal/workspace"
)

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Show raster metadata and per-band statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(nil, func(ws *workspace.Workspace) error {
				h, err := ws.OpenRaster(args[0])
				if err != nil {
					return err
				}
				defer h.Close()

				report := ws.DescribeMetadata(commandCtx(cmd), h)
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
				return nil
			})
		},
	}
}

func renderReport(r metadata.Report) string {
	nodata := "undefined"
	if r.NoData.Defined {
		nodata = r.NoData.Text
	}
	transform := r.Transform.Status
	switch {
	case r.Transform.Status == metadata.TransformOK:
		transform = formatTransform(r.Transform.Values)
	case r.Transform.Detail != "":
		transform += " (" + r.Transform.Detail + ")"
	}
	rows := [][]string{
		{"File", r.ID},
		{"Size", fmt.Sprintf("%d x %d", r.Width, r.Height)},
		{"Bands", strconv.Itoa(r.BandCount)},
		{"Data type", r.DataType},
		{"CRS", r.CRS},
		{"Geotransform", transform},
		{"NoData", nodata},
	}
	if r.Extent != nil {
		rows = append(rows, []string{"Extent", fmt.Sprintf("%s, %s - %s, %s",
			formatFloat(r.Extent.MinX), formatFloat(r.Extent.MinY),
			formatFloat(r.Extent.MaxX), formatFloat(r.Extent.MaxY))})
	}
	out := renderTable([]string{"Field", "Value"}, rows, nil) + "\n"

	bandRows := make([][]string, 0, len(r.Bands))
	for _, b := range r.Bands {
		if b.Error != "" {
			bandRows = append(bandRows, []string{b.Name, "-", "-", "-", "-", "error: " + b.Error})
			continue
		}
		bandRows = append(bandRows, []string{
			b.Name,
			formatStat(b.Min),
			formatStat(b.Max),
			formatStat(b.Mean),
			formatStat(b.Std),
			fmt.Sprintf("%d/%d", b.Valid, b.Total),
		})
	}
	out += renderTable(
		[]string{"Band", "Min", "Max", "Mean", "StdDev", "Valid"},
		bandRows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	) + "\n"

	for _, p := range r.Problems {
		out += fmt.Sprintf("warning: %s: %s\n", p.Section, p.Message)
	}
	return out
}
