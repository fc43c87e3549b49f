package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHunk_HeaderLine(t *testing.T) {
	h := &Hunk{
		OldRange: Range{Start: 3, Count: 1},
		NewRange: Range{Start: 3, Count: 2},
		Header:   "func main() {",
		Lines: []Line{
			{Kind: LineRemoved, Text: "old"},
			{Kind: LineAdded, Text: "new"},
			{Kind: LineAdded, Text: ""},
		},
	}

	assert.Equal(t, "@@ -3 +3,2 @@ func main() {", h.HeaderLine())
	assert.Equal(t, "@@ -3 +3,2 @@ func main() {\n-old\n+new\n+\n", h.String())
	assert.Equal(t, []string{"-old", "+new", "+"}, h.ChangedLines())
	assert.Equal(t, 2, h.Added())
	assert.Equal(t, 1, h.Removed())
}

func TestFileChange_FileHeader(t *testing.T) {
	tests := []struct {
		name string
		file FileChange
		want string
	}{
		{"modified", FileChange{Path: "x.go"}, "diff --git a/x.go b/x.go\n--- a/x.go\n+++ b/x.go\n"},
		{"added", FileChange{Path: "x.go", Status: StatusAdded}, "diff --git a/x.go b/x.go\n--- /dev/null\n+++ b/x.go\n"},
		{"deleted", FileChange{Path: "x.go", Status: StatusDeleted}, "diff --git a/x.go b/x.go\n--- a/x.go\n+++ /dev/null\n"},
		{"renamed", FileChange{Path: "new.go", OldPath: "old.go", Status: StatusRenamed}, "diff --git a/old.go b/new.go\n--- a/old.go\n+++ b/new.go\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.file.FileHeader())
		})
	}
}

func TestStrategy(t *testing.T) {
	s, ok := StrategyFromNumber(3)
	require.True(t, ok)
	assert.Equal(t, StrategySelectiveHunks, s)
	assert.Equal(t, "Selective Hunks", s.String())
	assert.Equal(t, 3, s.Number())
	assert.False(t, s.IsJSON())
	assert.True(t, StrategySemanticJSON.IsJSON())

	_, ok = StrategyFromNumber(0)
	assert.False(t, ok)
	_, ok = StrategyFromNumber(5)
	assert.False(t, ok)
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{MaxChars: 500}.WithDefaults()

	assert.Equal(t, StrategySemanticJSON, o.Strategy)
	assert.Equal(t, 500, o.MaxChars)
	assert.Equal(t, DefaultPerFileHunkCap, o.PerFileHunkCap)
	assert.Equal(t, DefaultPreviewLines, o.PreviewLines)
	assert.GreaterOrEqual(t, o.Workers, 1)
	assert.NoError(t, o.Validate())
}

func TestOptions_Validate(t *testing.T) {
	valid := DefaultOptions()

	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"unknown strategy", func(o *Options) { o.Strategy = 7 }},
		{"zero budget", func(o *Options) { o.MaxChars = 0 }},
		{"zero cap", func(o *Options) { o.PerFileHunkCap = 0 }},
		{"negative max hunks", func(o *Options) { o.MaxHunks = -1 }},
		{"zero min preview", func(o *Options) { o.MinPreviewLines = 0 }},
		{"preview below min", func(o *Options) { o.PreviewLines = 1; o.MinPreviewLines = 4 }},
		{"zero line chars", func(o *Options) { o.PreviewLineChars = 0 }},
		{"zero workers", func(o *Options) { o.Workers = 0 }},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestStats(t *testing.T) {
	s := Stats{Strategy: StrategyFull, OriginalChars: 200, ShapedChars: 50, Digest: "00000000000000ff"}
	assert.InDelta(t, 75.0, s.Reduction(), 0.001)
	assert.Equal(t, 0.0, Stats{}.Reduction())

	display := s.Display()
	assert.Contains(t, display, "Algorithm:  1 - Full Diff")
	assert.Contains(t, display, "75.0% reduction")
	assert.Contains(t, display, "00000000000000ff")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(0))
	assert.Equal(t, 2, EstimateTokens(7))
	assert.Equal(t, 1000, EstimateTokens(3500))
}
