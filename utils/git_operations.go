package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// GitOperations handles git-related operations
type GitOperations struct {
	workingDir string
}

// CommitInfo is one entry of the recent history.
type CommitInfo struct {
	Hash    string
	Subject string
	Author  string
}

// NewGitOperations creates a new GitOperations instance
func NewGitOperations(workingDir string) *GitOperations {
	return &GitOperations{workingDir: workingDir}
}

// CheckGitRepo checks if the current directory is a git repository
func (g *GitOperations) CheckGitRepo() error {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	cmd.Dir = g.workingDir
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("not a git repository: %s", g.workingDir)
	}
	return nil
}

// GetDiff returns the unified diff against target (a ref or range, empty for
// the working tree) or the staged changes.
func (g *GitOperations) GetDiff(target string, staged bool) (string, error) {
	return g.run(diffArgs(target, staged)...)
}

// GetDiffStat returns the --stat summary for the same selection as GetDiff.
func (g *GitOperations) GetDiffStat(target string, staged bool) (string, error) {
	args := append(diffArgs(target, staged), "--stat")
	return g.run(args...)
}

func diffArgs(target string, staged bool) []string {
	args := []string{"diff", "--no-color", "--no-ext-diff", "--unified=3"}
	if staged {
		args = append(args, "--cached")
	}
	if target != "" {
		args = append(args, target)
	}
	return args
}

// HasStagedChanges checks if there are staged changes ready to commit
func (g *GitOperations) HasStagedChanges() (bool, error) {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	cmd.Dir = g.workingDir
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// Exit code 1 means there are staged changes
			return true, nil
		}
		return false, fmt.Errorf("failed to check staged changes: %w", err)
	}
	return false, nil
}

// GetRecentCommits returns up to limit commits, newest first.
func (g *GitOperations) GetRecentCommits(limit int) ([]CommitInfo, error) {
	output, err := g.run("log", fmt.Sprintf("--max-count=%d", limit), "--pretty=format:%H|%s|%an")
	if err != nil {
		return nil, fmt.Errorf("failed to get recent commits: %w", err)
	}
	return parseCommitLog(output), nil
}

func parseCommitLog(output string) []CommitInfo {
	var commits []CommitInfo
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "|", 3)
		if len(parts) < 2 || parts[0] == "" {
			continue
		}
		c := CommitInfo{Hash: parts[0], Subject: parts[1]}
		if len(parts) == 3 {
			c.Author = parts[2]
		}
		commits = append(commits, c)
	}
	return commits
}

// ShortHash returns the first seven characters of the hash.
func (c CommitInfo) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

// GetBranchName returns the current branch name
func (g *GitOperations) GetBranchName() (string, error) {
	output, err := g.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get branch name: %w", err)
	}
	return strings.TrimSpace(output), nil
}

func (g *GitOperations) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.workingDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s: %w", args[0], msg, err)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(output), nil
}
