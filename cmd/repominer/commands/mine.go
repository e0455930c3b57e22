package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/repominer/pkg/config"
	"github.com/Sumatoshi-tech/repominer/pkg/observability"
)

// pipelineFlags are the configuration overrides shared by mining commands.
type pipelineFlags struct {
	branch     string
	cloneTo    string
	workers    int
	extensions []string
	languages  []string
	rules      string
}

func (pf *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&pf.branch, "branch", "b", "", "Branch to mine (default: HEAD)")
	cmd.Flags().StringVar(&pf.cloneTo, "clone-to", "", "Directory for remote clones (default: temporary)")
	cmd.Flags().IntVar(&pf.workers, "workers", 0, "Parallel classifier workers (0 = use CPU count)")
	cmd.Flags().StringSliceVar(&pf.extensions, "extensions", nil, "Only mine files with these extensions (e.g. .yml,.yaml)")
	cmd.Flags().StringSliceVar(&pf.languages, "languages", nil, "Only mine files of these linguist languages (e.g. Python)")
	cmd.Flags().StringVar(&pf.rules, "rules", "", "YAML rules file replacing the shipped dictionaries")
}

// apply overrides cfg with the flags set on cmd.
func (pf *pipelineFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("branch") {
		cfg.Repository.Branch = pf.branch
	}

	if flags.Changed("clone-to") {
		cfg.Repository.CloneDir = pf.cloneTo
	}

	if flags.Changed("workers") {
		cfg.Mining.Workers = pf.workers
	}

	if flags.Changed("extensions") {
		cfg.Relevance.Extensions = pf.extensions
	}

	if flags.Changed("languages") {
		cfg.Relevance.Languages = pf.languages
	}

	if flags.Changed("rules") {
		cfg.Mining.RulesFile = pf.rules
	}
}

// MineCommand holds configuration and dependencies for the mine command.
type MineCommand struct {
	pipeline pipelineFlags
	format   string
	stateDir string
	resume   bool

	deps deps
}

// NewMineCommand creates the mine command.
func NewMineCommand() *cobra.Command {
	return newMineCommandWithDeps(defaultDeps())
}

func newMineCommandWithDeps(d deps) *cobra.Command {
	mc := &MineCommand{deps: d}

	cmd := &cobra.Command{
		Use:   "mine <path|url>",
		Short: "Mine fixing commits, fixed files and failure-prone files",
		Long: `Mine a branch history for defects.

The pipeline selects the defect-fixing commits, resolves for each fixed file
the commit that introduced the defect, and labels every version of the file
inside that window as failure-prone. Remote github.com and gitlab.com URLs
are cloned first.`,
		Args: cobra.ExactArgs(1),
		RunE: mc.run,
	}

	mc.pipeline.register(cmd)
	cmd.Flags().StringVarP(&mc.format, "format", "f", FormatTable, "Output format: table, json, yaml")
	cmd.Flags().StringVar(&mc.stateDir, "state-dir", "", "Directory where mining state is saved after the run")
	cmd.Flags().BoolVar(&mc.resume, "resume", false, "Resume from the state saved in --state-dir")

	return cmd
}

func (mc *MineCommand) run(cmd *cobra.Command, args []string) error {
	err := validateFormat(mc.format)
	if err != nil {
		return err
	}

	sess, err := startSession(cmd, observability.ModeCLI, func(cfg *config.Config) {
		mc.pipeline.apply(cmd, cfg)

		if cmd.Flags().Changed("state-dir") {
			cfg.State.Dir = mc.stateDir
		}
	})
	if err != nil {
		return err
	}
	defer sess.close()

	ctx := observability.ContextWithRepository(cmd.Context(), args[0])

	miner, hist, err := sess.newMiner(ctx, mc.deps.open, args[0])
	if err != nil {
		return err
	}
	defer hist.close()

	store, err := newStateStore(sess.cfg, sess.logger())
	if err != nil {
		return err
	}

	branch := sess.cfg.Repository.Branch
	resumed := false

	if mc.resume && store != nil {
		resumed, err = store.restore(ctx, miner, hist.name, branch)
		if err != nil {
			return err
		}
	}

	start := time.Now()

	result, err := miner.Run(ctx)
	if err != nil {
		return err
	}

	took := time.Since(start)

	if store != nil {
		err = store.save(ctx, miner, hist.name, branch)
		if err != nil {
			return err
		}
	}

	if mc.format != FormatTable {
		return writeStructured(cmd.OutOrStdout(), mc.format, result)
	}

	renderResult(cmd.OutOrStdout(), result, summary{commits: miner.Index().Len(), took: took, resumed: resumed}, sess.noColor)

	return nil
}
