package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"rasterkit/internal/correction"
	"rasterkit/internal/issues"
	"rasterkit/internal/raster"
)

// promptDecision answers correction prompts from the --correct flag, or by
// asking on the terminal when the flag is empty.
type promptDecision struct {
	flag        string
	in          io.Reader
	out         io.Writer
	interactive bool
}

func newPromptDecision(cmd *cobra.Command, flag string) *promptDecision {
	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &promptDecision{flag: flag, in: in, out: cmd.ErrOrStderr(), interactive: interactive}
}

func (p *promptDecision) RequestCorrectionDecision(_ context.Context, h raster.Handle, found []issues.Issue) (correction.Decision, error) {
	if strings.TrimSpace(p.flag) != "" {
		return correction.ParseDecision(p.flag)
	}
	if !p.interactive {
		return correction.Decision{}, fmt.Errorf("%d issue(s) detected in %s; rerun with --correct yes, no, or decline", len(found), h.ID())
	}

	fmt.Fprintf(p.out, "Issues detected in %s:\n", h.ID())
	for _, issue := range found {
		fmt.Fprintf(p.out, "  - %s: %s\n", issueLabel(issue.Kind), issue.Description)
	}
	fmt.Fprint(p.out, "Apply corrections? yes = save as new sample, no = preview only, decline = use raw data [yes/no/decline]: ")
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return correction.Decision{}, fmt.Errorf("read answer: %w", err)
	}
	return correction.ParseDecision(line)
}
