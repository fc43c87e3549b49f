package models

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/meysamhadeli/gitshape/constants/lipgloss"
)

// Strategy selects one of the four packing algorithms.
type Strategy int

const (
	StrategyFull           Strategy = 1
	StrategySelectiveFiles Strategy = 2
	StrategySelectiveHunks Strategy = 3
	StrategySemanticJSON   Strategy = 4
)

// Strategies lists every strategy in numeric order.
var Strategies = []Strategy{StrategyFull, StrategySelectiveFiles, StrategySelectiveHunks, StrategySemanticJSON}

// StrategyFromNumber maps the configuration value 1..4 to a Strategy.
func StrategyFromNumber(n int) (Strategy, bool) {
	s := Strategy(n)
	if s < StrategyFull || s > StrategySemanticJSON {
		return 0, false
	}
	return s, true
}

func (s Strategy) Number() int {
	return int(s)
}

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "Full Diff"
	case StrategySelectiveFiles:
		return "Selective Files"
	case StrategySelectiveHunks:
		return "Selective Hunks"
	case StrategySemanticJSON:
		return "Semantic JSON"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// IsJSON reports whether the strategy produces a JSON document.
func (s Strategy) IsJSON() bool {
	return s == StrategySemanticJSON
}

// Defaults for Options.
const (
	DefaultMaxChars         = 15000
	DefaultPerFileHunkCap   = 3
	DefaultMaxHunks         = 10
	DefaultPreviewLines     = 25
	DefaultMinPreviewLines  = 1
	DefaultPreviewLineChars = 160
)

// Options controls a single shaping call.
type Options struct {
	Strategy         Strategy
	MaxChars         int
	PerFileHunkCap   int
	MaxHunks         int
	PreviewLines     int
	MinPreviewLines  int
	PreviewLineChars int
	Workers          int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Strategy:         StrategySemanticJSON,
		MaxChars:         DefaultMaxChars,
		PerFileHunkCap:   DefaultPerFileHunkCap,
		MaxHunks:         DefaultMaxHunks,
		PreviewLines:     DefaultPreviewLines,
		MinPreviewLines:  DefaultMinPreviewLines,
		PreviewLineChars: DefaultPreviewLineChars,
		Workers:          runtime.GOMAXPROCS(0),
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Strategy == 0 {
		o.Strategy = d.Strategy
	}
	if o.MaxChars == 0 {
		o.MaxChars = d.MaxChars
	}
	if o.PerFileHunkCap == 0 {
		o.PerFileHunkCap = d.PerFileHunkCap
	}
	if o.MaxHunks == 0 {
		o.MaxHunks = d.MaxHunks
	}
	if o.PreviewLines == 0 {
		o.PreviewLines = d.PreviewLines
	}
	if o.MinPreviewLines == 0 {
		o.MinPreviewLines = d.MinPreviewLines
	}
	if o.PreviewLineChars == 0 {
		o.PreviewLineChars = d.PreviewLineChars
	}
	if o.Workers == 0 {
		o.Workers = d.Workers
	}
	return o
}

// Validate checks that every option is in range.
func (o Options) Validate() error {
	if _, ok := StrategyFromNumber(int(o.Strategy)); !ok {
		return fmt.Errorf("algorithm must be between 1 and 4, got %d", int(o.Strategy))
	}
	if o.MaxChars <= 0 {
		return fmt.Errorf("max_chars must be positive, got %d", o.MaxChars)
	}
	if o.PerFileHunkCap <= 0 {
		return fmt.Errorf("per_file_hunk_cap must be positive, got %d", o.PerFileHunkCap)
	}
	if o.MaxHunks < 0 {
		return fmt.Errorf("max_hunks must not be negative, got %d", o.MaxHunks)
	}
	if o.MinPreviewLines < 1 {
		return fmt.Errorf("min_preview_lines must be at least 1, got %d", o.MinPreviewLines)
	}
	if o.PreviewLines < o.MinPreviewLines {
		return fmt.Errorf("preview_lines (%d) must not be below min_preview_lines (%d)", o.PreviewLines, o.MinPreviewLines)
	}
	if o.PreviewLineChars < 1 {
		return fmt.Errorf("preview_line_chars must be positive, got %d", o.PreviewLineChars)
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	return nil
}

// CharsPerToken is the conservative characters-per-token ratio for code.
const CharsPerToken = 3.5

// EstimateTokens converts a character count to an approximate token count.
func EstimateTokens(chars int) int {
	return int(float64(chars) / CharsPerToken)
}

// Stats describes one shaping run.
type Stats struct {
	Strategy        Strategy `json:"-" yaml:"-"`
	StrategyName    string   `json:"strategy" yaml:"strategy"`
	FilesTotal      int      `json:"files_total" yaml:"files_total"`
	FilesNoise      int      `json:"files_noise" yaml:"files_noise"`
	FilesIncluded   int      `json:"files_included" yaml:"files_included"`
	HunksTotal      int      `json:"hunks_total" yaml:"hunks_total"`
	HunksIncluded   int      `json:"hunks_included" yaml:"hunks_included"`
	OriginalChars   int      `json:"original_chars" yaml:"original_chars"`
	ShapedChars     int      `json:"shaped_chars" yaml:"shaped_chars"`
	EstimatedTokens int      `json:"estimated_tokens" yaml:"estimated_tokens"`
	Truncated       bool     `json:"truncated" yaml:"truncated"`
	Digest          string   `json:"digest" yaml:"digest"`
}

// Reduction returns the percentage of characters removed by shaping.
func (s Stats) Reduction() float64 {
	if s.OriginalChars == 0 {
		return 0
	}
	return (1 - float64(s.ShapedChars)/float64(s.OriginalChars)) * 100
}

// Display renders the statistics as a terminal box.
func (s Stats) Display() string {
	truncated := "no"
	if s.Truncated {
		truncated = "yes"
	}
	lines := []string{
		fmt.Sprintf("Algorithm:  %d - %s", s.Strategy.Number(), s.Strategy),
		fmt.Sprintf("Files:      %d/%d included (%d noise)", s.FilesIncluded, s.FilesTotal, s.FilesNoise),
		fmt.Sprintf("Hunks:      %d/%d included", s.HunksIncluded, s.HunksTotal),
		fmt.Sprintf("Chars:      %d → %d (%.1f%% reduction)", s.OriginalChars, s.ShapedChars, s.Reduction()),
		fmt.Sprintf("Est Tokens: ~%d", s.EstimatedTokens),
		fmt.Sprintf("Truncated:  %s", truncated),
		fmt.Sprintf("Digest:     %s", s.Digest),
	}
	return lipgloss.BoxStyle.Render(strings.Join(lines, "\n"))
}

// FitStep records the document size after one adaptive fitting step.
type FitStep struct {
	PreviewLines int
	Hunks        int
	Size         int
}

// Result is the outcome of shaping a diff with one strategy.
type Result struct {
	Strategy Strategy
	Payload  string
	// Empty marks a diff without any file changes.
	Empty    bool
	Stats    Stats
	FitSteps []FitStep
}

// Comparison holds one strategy's outcome in compare mode.
type Comparison struct {
	Strategy Strategy
	Result   *Result
	Err      error
}
