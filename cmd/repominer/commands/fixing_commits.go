package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repominer/pkg/classifier"
	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// FixingCommit is one row of the fixing-commits output.
type FixingCommit struct {
	Hash   string              `json:"hash"   yaml:"hash"`
	Labels classifier.LabelSet `json:"labels" yaml:"labels"`
}

// NewFixingCommitsCommand creates the fixing-commits command.
func NewFixingCommitsCommand() *cobra.Command {
	return newFixingCommitsCommandWithDeps(defaultDeps())
}

func newFixingCommitsCommandWithDeps(d deps) *cobra.Command {
	var (
		pipeline pipelineFlags
		format   string
	)

	cmd := &cobra.Command{
		Use:   "fixing-commits <path|url>",
		Short: "List the defect-fixing commits of a branch with their labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := validateFormat(format)
			if err != nil {
				return err
			}

			sess, err := startSession(cmd, observability.ModeCLI, func(cfg *config.Config) {
				pipeline.apply(cmd, cfg)
			})
			if err != nil {
				return err
			}
			defer sess.close()

			ctx := observability.ContextWithRepository(cmd.Context(), args[0])

			miner, hist, err := sess.newMiner(ctx, d.open, args[0])
			if err != nil {
				return err
			}
			defer hist.close()

			start := time.Now()

			_, err = miner.SelectFixingCommits(ctx)
			if err != nil {
				return err
			}

			fixing := miner.FixingCommits()
			labels := miner.Labels()

			if format != FormatTable {
				rows := make([]FixingCommit, len(fixing))
				for i, hash := range fixing {
					rows[i] = FixingCommit{Hash: hash, Labels: labels[hash]}
				}

				return writeStructured(cmd.OutOrStdout(), format, rows)
			}

			s := summary{commits: miner.Index().Len(), took: time.Since(start)}
			writeSummary(cmd.OutOrStdout(), s, []string{count(len(fixing), "fixing commits")}, sess.noColor)
			renderFixingCommits(cmd.OutOrStdout(), fixing, labels, sess.noColor)

			return nil
		},
	}

	pipeline.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "Output format: table, json, yaml")

	return cmd
}
