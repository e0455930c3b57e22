package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the repominer command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(defaultDeps())
}

func newRootCommandWithDeps(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "repominer",
		Short: "Mine Git histories for defect-fixing commits and failure-prone files",
		Long: `repominer finds the commits of a branch that fix defects, labels them
with defect categories, resolves the commits that introduced each defect and
lists every failure-prone file version.

Commands:
  mine            Full pipeline
  fixing-commits  Fixing commits and their labels only
  rules           Inspect and validate classification rules
  mcp             MCP server over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String(flagConfig, "", "Config file (default: .repominer.yaml in CWD or $HOME)")
	root.PersistentFlags().Bool(flagNoColor, false, "Disable colored output")

	root.AddCommand(
		newMineCommandWithDeps(d),
		newFixingCommitsCommandWithDeps(d),
		NewRulesCommand(),
		NewMCPCommand(),
	)

	return root
}
