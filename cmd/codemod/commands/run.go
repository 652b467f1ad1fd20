package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/observability"
	"github.com/Sumatoshi-tech/codemod/pkg/report"
	"github.com/Sumatoshi-tech/codemod/pkg/runner"
)

// RunCommand holds the flags of the run command.
type RunCommand struct {
	global *GlobalOptions
	walk   walkFlags

	dryRun  bool
	diff    bool
	list    bool
	format  string
	context int
}

// NewRunCommand creates the run command.
func NewRunCommand(global *GlobalOptions) *cobra.Command {
	rc := &RunCommand{global: global}

	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Rewrite files with the loaded rules",
		Long: `Apply every rule with a fix to the files under the given paths
(default: the working directory) and write the results in place.

With --dry-run nothing is written and a unified diff of every change is
printed instead.`,
		RunE: rc.run,
	}

	rc.walk.bind(cmd)
	cmd.Flags().BoolVarP(&rc.dryRun, "dry-run", "n", false, "Print diffs instead of writing files")
	cmd.Flags().BoolVar(&rc.diff, "diff", false, "Print diffs even when writing files")
	cmd.Flags().BoolVar(&rc.list, "list", false, "List every match with its location")
	cmd.Flags().StringVarP(&rc.format, "format", "f", string(report.FormatText), "Output format: text, json")
	cmd.Flags().IntVar(&rc.context, "context", report.DefaultContext, "Diff context lines")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(rc.format)
	if err != nil {
		return err
	}

	s, err := rc.global.open(cmd, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer s.close()

	set, err := s.loadRules(cmd.Context(), rc.global.Rules)
	if err != nil {
		return err
	}

	summary, err := s.runner(set, rc.walk, rc.dryRun).Run(cmd.Context(), rootsOf(args))
	if err != nil {
		return err
	}

	printer := report.New(cmd.OutOrStdout(), report.Options{
		Format:  format,
		Diff:    rc.dryRun || rc.diff,
		Matches: rc.list,
		NoColor: rc.global.NoColor,
		Context: rc.context,
	})

	err = printer.Print(summary)
	if err != nil {
		return err
	}

	return failed(summary)
}

func failed(summary *runner.Summary) error {
	if summary.Failed == 0 {
		return nil
	}

	return fmt.Errorf("%w (%d): %w", ErrFilesFailed, summary.Failed, summary.Err())
}
