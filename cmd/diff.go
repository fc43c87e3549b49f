package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/meysamhadeli/gitshape/constants/lipgloss"
	"github.com/meysamhadeli/gitshape/diffshape"
	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/meysamhadeli/gitshape/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// diffCmd: gitshape diff
var diffCmd = &cobra.Command{
	Use:   "diff [target]",
	Short: "Shape a diff into a budget-aware payload and print it.",
	Long: `The 'diff' subcommand reads a diff (the working tree, --staged changes, a target ref or
range, a --file or --stdin), shapes it with the configured algorithm and prints the payload.
Use --stats for the statistics box and --compare to run all four algorithms side by side.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleDiffCommand(cmd, rootDependencies, targetArg(args))
	},
}

// diffFlags are the output switches of the diff subcommand.
type diffFlags struct {
	stats       bool
	statsOnly   bool
	statsFormat string
	compare     bool
	payloads    bool
	header      bool
	noColor     bool
	yes         bool
}

// statsReport is the machine readable form of the statistics.
type statsReport struct {
	models.Stats  `yaml:",inline"`
	Algorithm     int     `json:"algorithm" yaml:"algorithm"`
	Model         string  `json:"model" yaml:"model"`
	EstimatedCost float64 `json:"estimated_cost_usd" yaml:"estimated_cost_usd"`
	Error         string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func init() {
	addInputFlags(diffCmd)
	diffCmd.Flags().Bool("stats", false, "Print the statistics box after the payload.")
	diffCmd.Flags().Bool("stats-only", false, "Print only the statistics.")
	diffCmd.Flags().String("stats-format", "text", "Statistics format: text, json or yaml.")
	diffCmd.Flags().Bool("compare", false, "Run all four algorithms and print a comparison.")
	diffCmd.Flags().Bool("payloads", false, "With --compare, also print every algorithm's payload.")
	diffCmd.Flags().Bool("header", false, "Prepend the preview banner with algorithm and budget.")
	diffCmd.Flags().Bool("no-color", false, "Print the payload without syntax highlighting.")
	diffCmd.Flags().BoolP("yes", "y", false, "Accept the file summary payload when nothing else fits the budget.")
	rootCmd.AddCommand(diffCmd)
}

func readDiffFlags(cmd *cobra.Command) (diffFlags, error) {
	var f diffFlags
	f.stats, _ = cmd.Flags().GetBool("stats")
	f.statsOnly, _ = cmd.Flags().GetBool("stats-only")
	f.statsFormat, _ = cmd.Flags().GetString("stats-format")
	f.compare, _ = cmd.Flags().GetBool("compare")
	f.payloads, _ = cmd.Flags().GetBool("payloads")
	f.header, _ = cmd.Flags().GetBool("header")
	f.noColor, _ = cmd.Flags().GetBool("no-color")
	f.yes, _ = cmd.Flags().GetBool("yes")

	switch f.statsFormat {
	case "text", "json", "yaml":
	default:
		return f, fmt.Errorf("unknown stats format %q, use text, json or yaml", f.statsFormat)
	}
	return f, nil
}

func handleDiffCommand(cmd *cobra.Command, rootDependencies *RootDependencies, target string) error {
	flags, err := readDiffFlags(cmd)
	if err != nil {
		return err
	}

	diff, err := readDiff(cmd, rootDependencies, target)
	if err != nil {
		return err
	}

	opts := rootDependencies.Config.Options()
	if flags.stats && flags.statsFormat == "text" && readsFromGit(cmd) {
		printGitStat(cmd, rootDependencies, target)
	}
	if flags.compare {
		return handleCompare(cmd, rootDependencies, diff, opts, flags)
	}

	result, err := shapeDiff(cmd, rootDependencies, diff, opts, flags.yes)
	if err != nil {
		return err
	}
	return printResult(cmd, rootDependencies, result, opts, flags)
}

// shapeDiff shapes the diff and resolves the recoverable failures: unparsable
// input falls back to the full diff, an exceeded budget needs confirmation.
func shapeDiff(cmd *cobra.Command, rootDependencies *RootDependencies, diff string, opts models.Options, yes bool) (*models.Result, error) {
	result, err := rootDependencies.Shaper.Shape(diff, opts)
	switch {
	case err == nil:
		return result, nil

	case diffshape.IsKind(err, diffshape.KindMalformedDiff):
		rootDependencies.Logger.Warn("diff could not be parsed, falling back to the full diff", "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Yellow.Render(fmt.Sprintf("⚠️ %v, using the full diff", err)))
		return diffshape.ShapeRaw(diff, opts.MaxChars), nil

	case diffshape.IsKind(err, diffshape.KindBudgetExceeded):
		partial, _ := diffshape.PartialResult(err)
		fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Yellow.Render(fmt.Sprintf("⚠️ %v", err)))
		if yes {
			return partial, nil
		}
		ok, promptErr := utils.ConfirmPrompt(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), "Print the file summary payload anyway?")
		if promptErr != nil {
			return nil, promptErr
		}
		if !ok {
			return nil, fmt.Errorf("shaping aborted (use --yes to accept): %w", err)
		}
		return partial, nil

	default:
		return nil, fmt.Errorf("error shaping diff: %w", err)
	}
}

func printResult(cmd *cobra.Command, rootDependencies *RootDependencies, result *models.Result, opts models.Options, flags diffFlags) error {
	out := cmd.OutOrStdout()

	if result.Empty {
		fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Yellow.Render("No changes to shape."))
	} else if !flags.statsOnly {
		if err := printPayload(out, rootDependencies, result, opts, flags); err != nil {
			return err
		}
	}

	if !flags.stats && !flags.statsOnly {
		return nil
	}
	statsOut := cmd.ErrOrStderr()
	if flags.statsOnly {
		statsOut = out
	}
	return printStats(statsOut, rootDependencies, result.Stats, flags.statsFormat)
}

func printPayload(w io.Writer, rootDependencies *RootDependencies, result *models.Result, opts models.Options, flags diffFlags) error {
	if flags.header {
		if _, err := io.WriteString(w, utils.PreviewBanner(result.Strategy, opts.MaxChars)); err != nil {
			return err
		}
	}
	if flags.noColor {
		return utils.WritePayload(w, result.Payload)
	}
	if err := utils.HighlightPayload(w, result.Payload, result.Strategy, rootDependencies.Config.Theme); err != nil {
		return fmt.Errorf("error highlighting payload: %w", err)
	}
	return nil
}

func newStatsReport(rootDependencies *RootDependencies, stats models.Stats) statsReport {
	model := rootDependencies.Config.Model
	return statsReport{
		Stats:         stats,
		Algorithm:     stats.Strategy.Number(),
		Model:         model,
		EstimatedCost: rootDependencies.TokenManagement.CalculateCost(model, stats.EstimatedTokens, 0),
	}
}

func printStats(w io.Writer, rootDependencies *RootDependencies, stats models.Stats, format string) error {
	switch format {
	case "json":
		return writeJSON(w, newStatsReport(rootDependencies, stats))
	case "yaml":
		return writeYAML(w, newStatsReport(rootDependencies, stats))
	default:
		rootDependencies.TokenManagement.ClearToken()
		rootDependencies.TokenManagement.UsedTokens(stats.EstimatedTokens, 0)
		fmt.Fprintln(w, stats.Display())
		fmt.Fprintln(w, rootDependencies.TokenManagement.DisplayTokens(rootDependencies.Config.Model))
		return nil
	}
}

func handleCompare(cmd *cobra.Command, rootDependencies *RootDependencies, diff string, opts models.Options, flags diffFlags) error {
	comparisons, err := rootDependencies.Shaper.Compare(diff, opts)
	if err != nil {
		return fmt.Errorf("error comparing algorithms: %w", err)
	}
	out := cmd.OutOrStdout()

	switch flags.statsFormat {
	case "json", "yaml":
		reports := make([]statsReport, 0, len(comparisons))
		for _, c := range comparisons {
			reports = append(reports, compareReport(rootDependencies, c))
		}
		if flags.statsFormat == "json" {
			return writeJSON(out, reports)
		}
		return writeYAML(out, reports)
	}

	table, err := compareTable(comparisons)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, lipgloss.Info.Render(fmt.Sprintf("Algorithm comparison (max_chars: %d)", opts.MaxChars)))
	fmt.Fprintln(out, table)

	if !flags.payloads {
		return nil
	}
	for _, c := range comparisons {
		if c.Result == nil || c.Result.Empty {
			continue
		}
		// every payload gets its banner in compare mode
		f := flags
		f.header = true
		if err := printPayload(out, rootDependencies, c.Result, opts, f); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	return nil
}

func compareReport(rootDependencies *RootDependencies, c models.Comparison) statsReport {
	stats := models.Stats{Strategy: c.Strategy, StrategyName: c.Strategy.String()}
	result := comparisonResult(c)
	if result != nil {
		stats = result.Stats
	}
	report := newStatsReport(rootDependencies, stats)
	if c.Err != nil {
		report.Error = c.Err.Error()
	}
	return report
}

// comparisonResult returns the result of an entry, or the file summary payload
// of a strategy that exceeded the budget.
func comparisonResult(c models.Comparison) *models.Result {
	if c.Result != nil {
		return c.Result
	}
	partial, _ := diffshape.PartialResult(c.Err)
	return partial
}

func compareTable(comparisons []models.Comparison) (string, error) {
	data := pterm.TableData{
		{"Alg", "Name", "Files", "Hunks", "Chars", "Reduction", "Est Tokens", "Status"},
	}
	for _, c := range comparisons {
		row := []string{strconv.Itoa(c.Strategy.Number()), c.Strategy.String()}
		result := comparisonResult(c)
		if result == nil {
			row = append(row, "-", "-", "-", "-", "-", lipgloss.Red.Render(c.Err.Error()))
			data = append(data, row)
			continue
		}

		s := result.Stats
		status := lipgloss.Green.Render("ok")
		switch {
		case c.Err != nil:
			status = lipgloss.Red.Render("budget exceeded")
		case result.Empty:
			status = lipgloss.Yellow.Render("empty")
		case s.Truncated:
			status = lipgloss.Yellow.Render("truncated")
		}
		row = append(row,
			fmt.Sprintf("%d/%d", s.FilesIncluded, s.FilesTotal),
			fmt.Sprintf("%d/%d", s.HunksIncluded, s.HunksTotal),
			strconv.Itoa(s.ShapedChars),
			fmt.Sprintf("%.1f%%", s.Reduction()),
			strconv.Itoa(s.EstimatedTokens),
			status,
		)
		data = append(data, row)
	}
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding statistics: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding statistics: %w", err)
	}
	return nil
}

// addInputFlags registers the flags that select where the diff comes from.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("staged", false, "Use the staged changes (git diff --cached).")
	cmd.Flags().Bool("stdin", false, "Read the diff from standard input.")
	cmd.Flags().StringP("file", "f", "", "Read the diff from a file.")
	cmd.MarkFlagsMutuallyExclusive("staged", "stdin", "file")
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// readDiff returns the diff selected by the input flags.
func readDiff(cmd *cobra.Command, rootDependencies *RootDependencies, target string) (string, error) {
	stdin, _ := cmd.Flags().GetBool("stdin")
	file, _ := cmd.Flags().GetString("file")
	staged, _ := cmd.Flags().GetBool("staged")

	switch {
	case stdin:
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("error reading diff from stdin: %w", err)
		}
		return string(content), nil

	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("error reading diff file: %w", err)
		}
		return string(content), nil
	}

	if err := rootDependencies.Git.CheckGitRepo(); err != nil {
		return "", err
	}
	if staged {
		if hasStaged, err := rootDependencies.Git.HasStagedChanges(); err == nil && !hasStaged {
			fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Yellow.Render("No staged changes found. Use 'git add' to stage changes."))
		}
	}

	spinner := pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).WithStyle(pterm.NewStyle(pterm.FgLightBlue)).WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").WithDelay(100).WithRemoveWhenDone(true)
	spinnerReadDiff, _ := spinner.Start("Reading diff...")
	diff, err := rootDependencies.Git.GetDiff(target, staged)
	if spinnerReadDiff != nil {
		_ = spinnerReadDiff.Stop()
	}
	if err != nil {
		return "", err
	}

	rootDependencies.Logger.Debug("diff read from git", "target", target, "staged", staged, "chars", len(diff))
	return diff, nil
}

func readsFromGit(cmd *cobra.Command) bool {
	stdin, _ := cmd.Flags().GetBool("stdin")
	file, _ := cmd.Flags().GetString("file")
	return !stdin && file == ""
}

// printGitStat shows git's own file summary next to the statistics box.
func printGitStat(cmd *cobra.Command, rootDependencies *RootDependencies, target string) {
	staged, _ := cmd.Flags().GetBool("staged")
	stat, err := rootDependencies.Git.GetDiffStat(target, staged)
	if err != nil {
		rootDependencies.Logger.Debug("diff stat unavailable", "error", err)
		return
	}
	if stat = strings.TrimRight(stat, "\n"); stat != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), lipgloss.Gray.Render(stat))
	}
}
