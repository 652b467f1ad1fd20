package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/fixture"
	"github.com/Sumatoshi-tech/codemod/pkg/observability"
	"github.com/Sumatoshi-tech/codemod/pkg/report"
)

// TestCommand holds the flags of the test command.
type TestCommand struct {
	global *GlobalOptions

	update  bool
	context int
}

// NewTestCommand creates the fixture test command.
func NewTestCommand(global *GlobalOptions) *cobra.Command {
	tc := &TestCommand{global: global}

	cmd := &cobra.Command{
		Use:   "test <dir>",
		Short: "Run fixture tests for the loaded rules",
		Long: `Run snapshot tests. Each case directory holds input.<ext> and
expected.<ext>, or input/ and expected/ directories with files of the same
name. Case directories ending in _should_error pass only when processing
fails.`,
		Args: cobra.ExactArgs(1),
		RunE: tc.run,
	}

	cmd.Flags().BoolVarP(&tc.update, "update", "u", false, "Write actual output to expected files")
	cmd.Flags().IntVar(&tc.context, "context", report.DefaultContext, "Diff context lines")

	return cmd
}

func (tc *TestCommand) run(cmd *cobra.Command, args []string) error {
	cases, err := fixture.Discover(args[0])
	if err != nil {
		return err
	}

	s, err := tc.global.open(cmd, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer s.close()

	set, err := s.loadRules(cmd.Context(), tc.global.Rules)
	if err != nil {
		return err
	}

	rep, err := fixture.Run(cmd.Context(), s.runner(set, walkFlags{}, true), cases, fixture.Options{
		Update:  tc.update,
		Context: tc.context,
	})
	if err != nil {
		return err
	}

	tc.print(cmd.OutOrStdout(), rep)

	if rep.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFixturesFailed, rep.Failed, len(rep.Results))
	}

	return nil
}

func (tc *TestCommand) print(w io.Writer, rep *fixture.Report) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	printer := report.New(w, report.Options{NoColor: tc.global.NoColor})

	if tc.global.NoColor {
		pass.DisableColor()
		fail.DisableColor()
	}

	for _, res := range rep.Results {
		if !res.Passed() {
			fmt.Fprintf(w, "%s %s\n", fail.Sprint("FAIL"), res.Case.Name)

			for _, f := range res.Failures {
				if f.Diff != "" {
					fmt.Fprintf(w, "    %s: output differs\n", f.File)
					fmt.Fprint(w, indent(printer.ColorDiff(f.Diff), "    "))

					continue
				}

				fmt.Fprintf(w, "    %s\n", f.String())
			}

			continue
		}

		fmt.Fprintf(w, "%s %s\n", pass.Sprint("PASS"), res.Case.Name)

		for _, path := range res.Updated {
			fmt.Fprintf(w, "    updated %s\n", path)
		}
	}

	fmt.Fprintf(w, "\n%d passed, %d failed\n", rep.Passed, rep.Failed)
}

func indent(text, prefix string) string {
	var sb strings.Builder

	for line := range strings.Lines(text) {
		sb.WriteString(prefix)
		sb.WriteString(line)
	}

	return sb.String()
}
