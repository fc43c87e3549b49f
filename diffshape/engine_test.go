package diffshape

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// insertion renders a hunk adding the given lines at newStart.
func insertion(newStart int, header string, added ...string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("@@ -%d,0 +%d,%d @@", newStart-1, newStart, len(added)))
	if header != "" {
		b.WriteString(" " + header)
	}
	b.WriteString("\n")
	for _, l := range added {
		b.WriteString("+" + l + "\n")
	}
	return b.String()
}

func modifiedFile(path string, hunks ...string) string {
	return fmt.Sprintf("diff --git a/%s b/%s\nindex 1111111..2222222 100644\n--- a/%s\n+++ b/%s\n", path, path, path, path) +
		strings.Join(hunks, "")
}

func addedFile(path string, added ...string) string {
	return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\nindex 0000000..1111111\n--- /dev/null\n+++ b/%s\n", path, path, path) +
		fmt.Sprintf("@@ -0,0 +1,%d @@\n", len(added)) +
		"+" + strings.Join(added, "\n+") + "\n"
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s_%d = %d", prefix, i, i)
	}
	return out
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig()).(*Engine)
}

func opts(strategy models.Strategy, maxChars int) models.Options {
	return models.Options{Strategy: strategy, MaxChars: maxChars}
}

func TestEngine_LockfileOnlyIsExcluded(t *testing.T) {
	diff := addedFile("package-lock.json", numbered("line", 500)...)

	result, err := newTestEngine().Shape(diff, opts(models.StrategySelectiveFiles, 100000))
	require.NoError(t, err)

	assert.False(t, result.Empty)
	assert.Empty(t, result.Payload)
	assert.Equal(t, 1, result.Stats.FilesTotal)
	assert.Equal(t, 1, result.Stats.FilesNoise)
	assert.Equal(t, 0, result.Stats.FilesIncluded)
	assert.Equal(t, 1, result.Stats.HunksTotal)
}

func TestEngine_SelectiveFilesOrdersByImportance(t *testing.T) {
	style := modifiedFile("style.css", insertion(1, "", numbered("color", 5)...))
	util := modifiedFile("web/util.js", insertion(1, "", numbered("u", 5)...))
	main := modifiedFile("main.go", insertion(1, "", numbered("m", 5)...))
	app := modifiedFile("web/app.ts", insertion(1, "", numbered("a", 5)...))
	server := modifiedFile("server.py", insertion(1, "", numbered("s", 5)...))

	result, err := newTestEngine().Shape(style+util+main+app+server, opts(models.StrategySelectiveFiles, 100000))
	require.NoError(t, err)

	assert.Equal(t, main+server+app+util+style, result.Payload)
	assert.Equal(t, 5, result.Stats.FilesIncluded)
	assert.Equal(t, 5, result.Stats.HunksIncluded)
	assert.False(t, result.Stats.Truncated)
}

func tenHunkFile() string {
	hunks := make([]string, 10)
	for i := range hunks {
		hunks[i] = insertion(1+i*20, "", numbered(fmt.Sprintf("v%d", i), i+1)...)
	}
	return modifiedFile("pkg/service.go", hunks...)
}

func TestEngine_SelectiveHunksPerFileCap(t *testing.T) {
	o := opts(models.StrategySelectiveHunks, 100000)
	o.PerFileHunkCap = 3

	result, err := newTestEngine().Shape(tenHunkFile(), o)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.HunksIncluded)
	assert.Equal(t, 10, result.Stats.HunksTotal)

	// the three largest insertions, by importance
	assert.Equal(t, 1, strings.Count(result.Payload, "diff --git "))
	assert.Equal(t, 3, strings.Count(result.Payload, "\n@@ "))
	first := strings.Index(result.Payload, "@@ -180,0 +181,10 @@")
	second := strings.Index(result.Payload, "@@ -160,0 +161,9 @@")
	third := strings.Index(result.Payload, "@@ -140,0 +141,8 @@")
	require.True(t, first >= 0 && second >= 0 && third >= 0)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func TestEngine_SelectiveHunksEmitsFileHeaders(t *testing.T) {
	a := modifiedFile("a.go", insertion(1, "func A()", numbered("a", 4)...))
	b := modifiedFile("b.go", insertion(1, "func B()", numbered("b", 2)...))

	result, err := newTestEngine().Shape(a+b, opts(models.StrategySelectiveHunks, 100000))
	require.NoError(t, err)

	files, err := Parse(result.Payload)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "b.go", files[1].Path)
	assert.Equal(t, 2, strings.Count(result.Payload, "diff --git "))
}

func TestEngine_SemanticBudgetExceeded(t *testing.T) {
	diff := modifiedFile("main.go", insertion(1, "", numbered("x", 3)...))

	result, err := newTestEngine().Shape(diff, opts(models.StrategySemanticJSON, 20))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.True(t, IsKind(err, KindBudgetExceeded))

	partial, ok := PartialResult(err)
	require.True(t, ok)

	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(partial.Payload), &doc))
	require.Len(t, doc.Files, 1)
	assert.Equal(t, "main.go", doc.Files[0].Path)
	assert.Empty(t, doc.Hunks)
	assert.Equal(t, 0, partial.Stats.HunksIncluded)
	assert.True(t, partial.Stats.Truncated)
	require.NotEmpty(t, partial.FitSteps)
	assert.Equal(t, 0, partial.FitSteps[len(partial.FitSteps)-1].Hunks)
}

func TestEngine_EmptyDiff(t *testing.T) {
	engine := newTestEngine()
	for _, strategy := range models.Strategies {
		result, err := engine.Shape("", opts(strategy, 100))
		require.NoError(t, err)
		assert.True(t, result.Empty)
		assert.Empty(t, result.Payload)
		assert.Equal(t, strategy, result.Strategy)
		assert.Equal(t, strategy.String(), result.Stats.StrategyName)
		assert.Equal(t, Digest(""), result.Stats.Digest)
	}

	comparisons, err := engine.Compare("  \n", models.Options{})
	require.NoError(t, err)
	require.Len(t, comparisons, 4)
	for _, c := range comparisons {
		assert.NoError(t, c.Err)
		assert.True(t, c.Result.Empty)
	}
}

func mixedDiff() string {
	return modifiedFile("internal/server.go",
		insertion(10, "func (s *Server) Start() error {", "if err := s.listen(); err != nil {", "\treturn err", "}"),
		insertion(80, "", "// TODO remove", "// old"),
	) +
		addedFile("yarn.lock", numbered("dep", 40)...) +
		modifiedFile("README.md", insertion(3, "", "Run `make` to build é à ü.")) +
		addedFile("cmd/tool/main.go", "package main", "", "func main() {", "\trun()", "}") +
		modifiedFile("config.yaml", insertion(1, "", "port: 8080", "host: localhost"))
}

func TestEngine_BudgetRespected(t *testing.T) {
	engine := newTestEngine()
	diff := mixedDiff()

	for _, strategy := range models.Strategies {
		for _, budget := range []int{120, 400, 900, 5000} {
			result, err := engine.Shape(diff, opts(strategy, budget))
			if strategy == models.StrategySemanticJSON && IsKind(err, KindBudgetExceeded) {
				continue
			}
			require.NoError(t, err, "%s with budget %d", strategy, budget)
			assert.LessOrEqual(t, utf8.RuneCountInString(result.Payload), budget, "%s with budget %d", strategy, budget)
			assert.Equal(t, utf8.RuneCountInString(result.Payload), result.Stats.ShapedChars)
		}
	}
}

func TestEngine_FullTruncatesAtExactBudget(t *testing.T) {
	diff := mixedDiff()
	engine := newTestEngine()

	result, err := engine.Shape(diff, opts(models.StrategyFull, 250))
	require.NoError(t, err)
	assert.Equal(t, 250, utf8.RuneCountInString(result.Payload))
	assert.Equal(t, string([]rune(diff)[:250]), result.Payload)
	assert.True(t, result.Stats.Truncated)

	// noise stays in the full diff
	result, err = engine.Shape(diff, opts(models.StrategyFull, 100000))
	require.NoError(t, err)
	assert.Equal(t, diff, result.Payload)
	assert.Contains(t, result.Payload, "yarn.lock")
	assert.False(t, result.Stats.Truncated)
	assert.Equal(t, 5, result.Stats.FilesIncluded)
}

func TestEngine_NoiseExcludedButCounted(t *testing.T) {
	engine := newTestEngine()
	diff := mixedDiff()

	for _, strategy := range []models.Strategy{models.StrategySelectiveFiles, models.StrategySelectiveHunks, models.StrategySemanticJSON} {
		result, err := engine.Shape(diff, opts(strategy, 100000))
		require.NoError(t, err)
		assert.NotContains(t, result.Payload, "yarn.lock", strategy.String())
		assert.Equal(t, 5, result.Stats.FilesTotal)
		assert.Equal(t, 1, result.Stats.FilesNoise)
		assert.Equal(t, 4, result.Stats.FilesIncluded, strategy.String())
	}
}

func TestEngine_SemanticDocument(t *testing.T) {
	rename := "diff --git a/old/util.go b/pkg/util.go\nsimilarity index 95%\nrename from old/util.go\nrename to pkg/util.go\n" +
		"--- a/old/util.go\n+++ b/pkg/util.go\n" + insertion(5, "", "const limit = 10")
	diff := mixedDiff() + rename

	o := opts(models.StrategySemanticJSON, 100000)
	o.PreviewLines = 2
	o.PreviewLineChars = 12
	result, err := newTestEngine().Shape(diff, o)
	require.NoError(t, err)
	assert.Empty(t, result.FitSteps)
	assert.False(t, result.Stats.Truncated)
	assert.NotContains(t, result.Payload, "\n")

	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &doc))
	require.Len(t, doc.Files, 5)
	for i := 1; i < len(doc.Files); i++ {
		assert.GreaterOrEqual(t, doc.Files[i-1].Priority, doc.Files[i].Priority)
	}

	byPath := map[string]models.FileSummary{}
	for _, f := range doc.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, "A", byPath["cmd/tool/main.go"].Status)
	assert.Equal(t, "M", byPath["config.yaml"].Status)
	assert.Equal(t, "R", byPath["pkg/util.go"].Status)
	assert.Equal(t, "old/util.go", byPath["pkg/util.go"].OldPath)
	assert.Empty(t, byPath["config.yaml"].OldPath)
	assert.Equal(t, 5, byPath["cmd/tool/main.go"].Additions)

	require.NotEmpty(t, doc.Hunks)
	for i, h := range doc.Hunks {
		if i > 0 {
			assert.GreaterOrEqual(t, doc.Hunks[i-1].Priority, h.Priority)
		}
		previewLines := strings.Split(h.Preview, "\n")
		assert.LessOrEqual(t, len(previewLines), 2)
		for _, l := range previewLines {
			assert.LessOrEqual(t, utf8.RuneCountInString(l), 12)
		}
	}
	assert.Equal(t, "func (s *Server) Start() error {", doc.Hunks[0].Header)
}

func TestEngine_SemanticCapsAndMaxHunks(t *testing.T) {
	engine := newTestEngine()

	result, err := engine.Shape(tenHunkFile(), opts(models.StrategySemanticJSON, 100000))
	require.NoError(t, err)
	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &doc))
	assert.Len(t, doc.Hunks, models.DefaultPerFileHunkCap)

	o := opts(models.StrategySemanticJSON, 100000)
	o.PerFileHunkCap = 10
	o.MaxHunks = 4
	result, err = engine.Shape(tenHunkFile(), o)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &doc))
	assert.Len(t, doc.Hunks, 4)
	assert.Equal(t, 4, result.Stats.HunksIncluded)
}

func TestEngine_TiesBreakByPath(t *testing.T) {
	body := insertion(1, "", numbered("same", 4)...)
	diff := modifiedFile("b.go", body) + modifiedFile("a.go", body)
	engine := newTestEngine()

	result, err := engine.Shape(diff, opts(models.StrategySelectiveFiles, 100000))
	require.NoError(t, err)
	assert.Equal(t, modifiedFile("a.go", body)+modifiedFile("b.go", body), result.Payload)

	result, err = engine.Shape(diff, opts(models.StrategySelectiveHunks, 100000))
	require.NoError(t, err)
	assert.Less(t, strings.Index(result.Payload, "a/a.go"), strings.Index(result.Payload, "a/b.go"))

	result, err = engine.Shape(diff, opts(models.StrategySemanticJSON, 100000))
	require.NoError(t, err)
	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(result.Payload), &doc))
	assert.Equal(t, "a.go", doc.Files[0].Path)
	assert.Equal(t, "b.go", doc.Files[1].Path)
	// equal hunks keep diff order
	assert.Equal(t, "b.go", doc.Hunks[0].Path)
	assert.Equal(t, "a.go", doc.Hunks[1].Path)
}

func TestEngine_Idempotent(t *testing.T) {
	engine := newTestEngine()
	diff := mixedDiff()

	for _, strategy := range models.Strategies {
		first, err := engine.Shape(diff, opts(strategy, 600))
		if err != nil {
			first, _ = PartialResult(err)
		}
		second, err := engine.Shape(diff, opts(strategy, 600))
		if err != nil {
			second, _ = PartialResult(err)
		}
		require.NotNil(t, first)
		require.NotNil(t, second)
		assert.Equal(t, first.Payload, second.Payload)
		assert.Equal(t, first.Stats, second.Stats)
	}
}

func TestEngine_ParallelScoringMatchesSerial(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 25; i++ {
		b.WriteString(modifiedFile(fmt.Sprintf("pkg/f%02d.go", i), insertion(1, "", numbered("v", i%7+1)...)))
	}
	diff := b.String()
	engine := newTestEngine()

	serial := opts(models.StrategySemanticJSON, 100000)
	serial.Workers = 1
	parallel := serial
	parallel.Workers = 8

	want, err := engine.Shape(diff, serial)
	require.NoError(t, err)
	got, err := engine.Shape(diff, parallel)
	require.NoError(t, err)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestEngine_Compare(t *testing.T) {
	comparisons, err := newTestEngine().Compare(mixedDiff(), models.Options{MaxChars: 40})
	require.NoError(t, err)
	require.Len(t, comparisons, 4)

	full := comparisons[0]
	assert.Equal(t, models.StrategyFull, full.Strategy)
	require.NoError(t, full.Err)
	assert.Equal(t, 40, utf8.RuneCountInString(full.Result.Payload))

	files := comparisons[1]
	require.NoError(t, files.Err)
	assert.Empty(t, files.Result.Payload)
	assert.True(t, files.Result.Stats.Truncated)

	semantic := comparisons[3]
	assert.Nil(t, semantic.Result)
	assert.True(t, IsKind(semantic.Err, KindBudgetExceeded))
}

func TestEngine_InvalidOptions(t *testing.T) {
	engine := newTestEngine()

	_, err := engine.Shape(mixedDiff(), models.Options{Strategy: 7})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	_, err = engine.Shape(mixedDiff(), models.Options{PreviewLines: 1, MinPreviewLines: 2})
	assert.True(t, IsKind(err, KindInvalidOptions))

	_, err = engine.Compare(mixedDiff(), models.Options{MaxChars: -1})
	assert.True(t, IsKind(err, KindInvalidOptions))
}

func TestEngine_MalformedDiff(t *testing.T) {
	_, err := newTestEngine().Shape("diff --git a/x b/x\n--- a/x\n+++ b/x\n+stray\n", models.Options{})
	assert.True(t, IsKind(err, KindMalformedDiff))
}

func TestShapeRaw(t *testing.T) {
	result := ShapeRaw("not a diff at all", 6)
	assert.Equal(t, "not a ", result.Payload)
	assert.Equal(t, models.StrategyFull, result.Strategy)
	assert.True(t, result.Stats.Truncated)
	assert.Equal(t, 17, result.Stats.OriginalChars)
	assert.Equal(t, Digest("not a "), result.Stats.Digest)
}

func TestDigest(t *testing.T) {
	assert.Len(t, Digest("payload"), 16)
	assert.Equal(t, Digest("payload"), Digest("payload"))
	assert.NotEqual(t, Digest("payload"), Digest("payload2"))
}
