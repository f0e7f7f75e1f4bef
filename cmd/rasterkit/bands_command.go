package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rasterkit/internal/bandorder"
	"rasterkit/internal/metadata"
	"rasterkit/internal/workspace"
)

type bandEntry struct {
	Band int    `json:"band"`
	Name string `json:"name"`
}

func newBandsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bands <file>",
		Short: "List the bands of a raster in their default order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWorkspace(nil, func(ws *workspace.Workspace) error {
				h, err := ws.OpenRaster(args[0])
				if err != nil {
					return err
				}
				defer h.Close()

				order := bandorder.Default(h.BandCount())
				entries := make([]bandEntry, len(order))
				for i, band := range order {
					entries[i] = bandEntry{Band: band, Name: metadata.BandName(band)}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintln(out, e.Name)
				}
				return nil
			})
		},
	}
}
