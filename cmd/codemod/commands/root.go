package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/codemod/pkg/version"
)

// NewRootCommand creates the codemod command tree.
func NewRootCommand() *cobra.Command {
	global := &GlobalOptions{}

	root := &cobra.Command{
		Use:   "codemod",
		Short: "Structural search and rewrite for source code",
		Long: `codemod finds code by syntax-tree patterns with $METAVARIABLES and rewrites
matches from fix templates, leaving everything else byte-identical.

Commands:
  run       Rewrite files in place (or print diffs with --dry-run)
  scan      List matches without rewriting
  test      Run input/expected fixture tests for a rule set
  mcp       Serve the rewrite engine as MCP tools over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global.Bind(root)

	root.AddCommand(NewRunCommand(global))
	root.AddCommand(NewScanCommand(global))
	root.AddCommand(NewTestCommand(global))
	root.AddCommand(NewMCPCommand(global))
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
