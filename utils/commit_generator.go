package utils

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// CommitPromptRequest holds everything placed around a shaped diff.
type CommitPromptRequest struct {
	Result        *models.Result
	Branch        string
	RecentCommits []CommitInfo
	UserInput     string
	CommitStyle   string
}

// CommitPrompt is a system and user prompt pair ready for any chat model.
type CommitPrompt struct {
	System string
	User   string
}

// BuildCommitPrompt wraps a shaped diff into a commit-message prompt.
func BuildCommitPrompt(request CommitPromptRequest) CommitPrompt {
	return CommitPrompt{
		System: commitSystemPrompt(request.Result),
		User:   createCommitUserPrompt(request),
	}
}

// String renders both prompts as one document.
func (p CommitPrompt) String() string {
	return "## System\n\n" + p.System + "\n\n## User\n\n" + p.User + "\n"
}

func commitSystemPrompt(result *models.Result) string {
	var b strings.Builder
	b.WriteString(`You are a helpful AI assistant that generates concise, meaningful Git commit messages.

Please follow these guidelines for commit messages:
1. Keep the first line under 72 characters (the title)
2. Use present tense ("Add feature" not "Added feature")
3. Use imperative mood ("Move cursor to..." not "Moves cursor to...")
4. Start with a capital letter
5. Don't end with a period
6. Be specific about what changed

Format the commit message as:
- First line: Brief summary (required)
- Second line: Leave blank
- Third+ lines: Detailed explanation if needed`)

	if result != nil && result.Strategy.IsJSON() {
		b.WriteString(`

The changes are given as a JSON summary. "files" lists every changed file with its
status (A added, D deleted, M modified, R renamed, C copied), line counts and priority.
"hunks" holds previews of the most important changes, highest priority first.`)
	} else if result != nil && result.Stats.Truncated {
		b.WriteString("\n\nThe diff below was reduced to its most important parts; lower priority changes are omitted.")
	}
	return b.String()
}

func createCommitUserPrompt(request CommitPromptRequest) string {
	var prompt strings.Builder

	prompt.WriteString("Please generate a commit message for the following changes:")

	if request.Branch != "" {
		prompt.WriteString(fmt.Sprintf("\nBranch: %s", request.Branch))
	}

	if len(request.RecentCommits) > 0 {
		prompt.WriteString("\n\n## Recent Commit History:")
		for i, commit := range request.RecentCommits {
			if i < 3 {
				prompt.WriteString(fmt.Sprintf("\n- %s: %s", commit.ShortHash(), commit.Subject))
			}
		}
	}

	if request.Result != nil && !request.Result.Empty {
		lang := "diff"
		if request.Result.Strategy.IsJSON() {
			lang = "json"
		}
		prompt.WriteString("\n\n## Staged Changes:")
		prompt.WriteString(fmt.Sprintf("\n```%s\n%s\n```", lang, strings.TrimSuffix(request.Result.Payload, "\n")))
	}

	if request.UserInput != "" {
		prompt.WriteString(fmt.Sprintf("\n\n## User Request:\n%s", request.UserInput))
	}

	if request.CommitStyle != "" {
		prompt.WriteString(fmt.Sprintf("\n\n## Preferred Style:\n%s", request.CommitStyle))
	}

	prompt.WriteString("\n\n## Instructions:")
	prompt.WriteString("\n- Generate a clear and concise commit message based on the changes shown above")
	prompt.WriteString("\n- If the changes are small and obvious, keep the message brief")
	prompt.WriteString("\n- For larger changes, include a detailed description in the body")

	return prompt.String()
}
