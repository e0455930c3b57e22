package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier/rules"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate defect classification rules",
	}

	cmd.AddCommand(newRulesValidateCommand(), newRulesDefaultCommand())

	return cmd
}

func newRulesValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a YAML rules file against the rules schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := rules.Load(args[0])
			if err != nil {
				return err
			}

			ok := color.New(color.FgGreen, color.Bold)
			if noColor, _ := cmd.Flags().GetBool(flagNoColor); noColor {
				ok.DisableColor()
			}

			ok.Fprintf(cmd.OutOrStdout(), "%s: valid (%d labels)\n", args[0], len(table.Rules))

			return nil
		},
	}
}

func newRulesDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Print the shipped rules as YAML, a starting point for a rules file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeStructured(cmd.OutOrStdout(), FormatYAML, rules.Default())
		},
	}
}
