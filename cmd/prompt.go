package cmd

import (
	"fmt"
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/constants/lipgloss"
	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/meysamhadeli/gitshape/utils"
	"github.com/spf13/cobra"
)

// promptCmd: gitshape prompt
var promptCmd = &cobra.Command{
	Use:   "prompt [target]",
	Short: "Build a commit-message prompt around the shaped diff.",
	Long: `The 'prompt' subcommand shapes the diff like 'diff' does and wraps the payload into a
system and user prompt for generating a commit message, together with the current branch and
the most recent commits. The prompt is printed so it can be piped into any LLM client.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handlePromptCommand(cmd, rootDependencies, targetArg(args))
	},
}

func init() {
	addInputFlags(promptCmd)
	promptCmd.Flags().StringP("message", "M", "", "Extra request appended to the prompt.")
	promptCmd.Flags().String("style", "", "Preferred commit message style, such as 'conventional commits'.")
	promptCmd.Flags().Int("commits", 3, "Number of recent commits to include.")
	promptCmd.Flags().Bool("stats", false, "Print the token estimate of the prompt.")
	promptCmd.Flags().BoolP("yes", "y", false, "Accept the file summary payload when nothing else fits the budget.")
	rootCmd.AddCommand(promptCmd)
}

func handlePromptCommand(cmd *cobra.Command, rootDependencies *RootDependencies, target string) error {
	message, _ := cmd.Flags().GetString("message")
	style, _ := cmd.Flags().GetString("style")
	commits, _ := cmd.Flags().GetInt("commits")
	stats, _ := cmd.Flags().GetBool("stats")
	yes, _ := cmd.Flags().GetBool("yes")

	diff, err := readDiff(cmd, rootDependencies, target)
	if err != nil {
		return err
	}

	result, err := shapeDiff(cmd, rootDependencies, diff, rootDependencies.Config.Options(), yes)
	if err != nil {
		return err
	}
	if result.Empty {
		return fmt.Errorf("no changes to describe")
	}

	request := utils.CommitPromptRequest{
		Result:      result,
		UserInput:   message,
		CommitStyle: style,
	}
	// git context is optional, the diff may come from a file outside any repository
	if branch, err := rootDependencies.Git.GetBranchName(); err == nil {
		request.Branch = branch
	} else {
		rootDependencies.Logger.Debug("branch unavailable", "error", err)
	}
	if commits > 0 {
		if recent, err := rootDependencies.Git.GetRecentCommits(commits); err == nil {
			request.RecentCommits = recent
		} else {
			rootDependencies.Logger.Debug("recent commits unavailable", "error", err)
		}
	}

	prompt := utils.BuildCommitPrompt(request)
	text := prompt.String()
	fmt.Fprint(cmd.OutOrStdout(), text)

	if stats {
		tokens := models.EstimateTokens(utf8.RuneCountInString(text))
		rootDependencies.TokenManagement.ClearToken()
		rootDependencies.TokenManagement.UsedTokens(tokens, 0)
		fmt.Fprintln(cmd.ErrOrStderr(), result.Stats.Display())
		fmt.Fprintln(cmd.ErrOrStderr(), rootDependencies.TokenManagement.DisplayTokens(rootDependencies.Config.Model))
		if result.Stats.Truncated {
			fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Yellow.Render("The diff was reduced to fit the budget."))
		}
	}
	return nil
}
