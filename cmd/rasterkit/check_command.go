package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rasterkit/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the sample registry and export settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(commandCtx(cmd), cfg)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, len(results))
				for i, r := range results {
					rows[i] = []string{r.Name, passLabel(r.Passed), r.Detail}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			}
			if !preflight.AllPassed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "FAIL"
}
