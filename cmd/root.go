package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/meysamhadeli/gitshape/config"
	"github.com/meysamhadeli/gitshape/constants/lipgloss"
	"github.com/meysamhadeli/gitshape/diffshape"
	"github.com/meysamhadeli/gitshape/diffshape/contracts"
	"github.com/meysamhadeli/gitshape/logging"
	"github.com/meysamhadeli/gitshape/token_management"
	token_contracts "github.com/meysamhadeli/gitshape/token_management/contracts"
	"github.com/meysamhadeli/gitshape/utils"
	"github.com/spf13/cobra"
)

// RootDependencies holds everything a subcommand needs.
type RootDependencies struct {
	Cwd             string
	Config          *config.Config
	Logger          *slog.Logger
	Shaper          contracts.IDiffShaper
	Git             *utils.GitOperations
	TokenManagement token_contracts.ITokenManagement
}

var rootCmd = &cobra.Command{
	Use:   "gitshape",
	Short: "Shape git diffs into compact, budget-aware payloads for language models.",
	Long: `gitshape reads a unified diff from git, a file or stdin, drops lockfiles and generated
noise, ranks files and hunks by importance and packs the result into a payload that fits a
character budget. Four algorithms are available: the full diff, selected files, selected
hunks and a semantic JSON summary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version, _ := cmd.Flags().GetBool("version"); version {
			fmt.Fprintln(cmd.OutOrStdout(), lipgloss.BlueSky.Render(fmt.Sprintf("version: %s", config.DefaultConfig.Version)))
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}
}

func handleRootCommand(cmd *cobra.Command) (*RootDependencies, error) {
	var err error
	rootDependencies := &RootDependencies{}

	rootDependencies.Cwd, err = os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("error getting current directory: %w", err)
	}

	rootDependencies.Config, err = config.LoadConfigs(cmd.Root(), rootDependencies.Cwd)
	if err != nil {
		return nil, err
	}
	if err := rootDependencies.Config.Validate(); err != nil {
		return nil, err
	}

	rootDependencies.Logger = logging.NewLogger(rootDependencies.Config.LogLevel, rootDependencies.Config.LogFormat, cmd.ErrOrStderr())

	engineConfig, err := rootDependencies.Config.EngineConfig(rootDependencies.Cwd, rootDependencies.Logger)
	if err != nil {
		return nil, err
	}
	rootDependencies.Shaper = diffshape.NewEngine(engineConfig)
	rootDependencies.Git = utils.NewGitOperations(rootDependencies.Cwd)
	rootDependencies.TokenManagement = token_management.NewTokenManager()

	rootDependencies.Logger.Debug("configuration loaded",
		"algorithm", rootDependencies.Config.Algorithm,
		"max_chars", rootDependencies.Config.MaxChars,
		"noise_rules", len(engineConfig.Noise.Rules))
	return rootDependencies, nil
}
