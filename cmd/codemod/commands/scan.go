package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/observability"
	"github.com/Sumatoshi-tech/codemod/pkg/report"
)

// ScanCommand holds the flags of the scan command.
type ScanCommand struct {
	global *GlobalOptions
	walk   walkFlags

	format       string
	errorOnMatch bool
}

// NewScanCommand creates the scan command.
func NewScanCommand(global *GlobalOptions) *cobra.Command {
	sc := &ScanCommand{global: global}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "List rule matches without rewriting",
		Long: `Report every match of the loaded rules as path:line:column with the rule
id and message. Files are never modified.`,
		RunE: sc.run,
	}

	sc.walk.bind(cmd)
	cmd.Flags().StringVarP(&sc.format, "format", "f", string(report.FormatText), "Output format: text, json")
	cmd.Flags().BoolVar(&sc.errorOnMatch, "error-on-match", false, "Exit with an error when anything matched")

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(sc.format)
	if err != nil {
		return err
	}

	s, err := sc.global.open(cmd, observability.ModeCLI, nil)
	if err != nil {
		return err
	}
	defer s.close()

	set, err := s.loadRules(cmd.Context(), sc.global.Rules)
	if err != nil {
		return err
	}

	summary, err := s.runner(set, sc.walk, true).Run(cmd.Context(), rootsOf(args))
	if err != nil {
		return err
	}

	printer := report.New(cmd.OutOrStdout(), report.Options{
		Format:  format,
		Matches: true,
		NoColor: sc.global.NoColor,
	})

	err = printer.Print(summary)
	if err != nil {
		return err
	}

	err = failed(summary)
	if err != nil {
		return err
	}

	if sc.errorOnMatch && summary.Matches > 0 {
		return fmt.Errorf("%w: %d in %d files", ErrMatchesFound, summary.Matches, summary.Matched)
	}

	return nil
}
