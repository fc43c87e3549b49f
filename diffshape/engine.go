package diffshape

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/diffshape/contracts"
	"github.com/meysamhadeli/gitshape/diffshape/models"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Diffs with fewer files are scored inline.
const parallelThreshold = 8

// Config holds the immutable tables of an engine.
type Config struct {
	Noise       NoiseConfig
	FileWeights FileWeights
	HunkWeights HunkWeights
	// Logger receives debug records; nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the built-in noise rules and weight tables.
func DefaultConfig() Config {
	return Config{
		Noise:       NoiseConfig{Rules: DefaultNoiseRules()},
		FileWeights: DefaultFileWeights(),
		HunkWeights: DefaultHunkWeights(),
	}
}

// Engine shapes diffs. It is safe for concurrent use.
type Engine struct {
	noise  *NoiseClassifier
	files  *FileScorer
	hunks  *HunkScorer
	logger *slog.Logger
}

// NewEngine builds an engine from cfg; the tables are copied.
func NewEngine(cfg Config) contracts.IDiffShaper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		noise:  NewNoiseClassifier(cfg.Noise),
		files:  NewFileScorer(cfg.FileWeights),
		hunks:  NewHunkScorer(cfg.HunkWeights),
		logger: logger,
	}
}

// Parse parses diff text without classifying or scoring it.
func (e *Engine) Parse(diff string) ([]*models.FileChange, error) {
	return Parse(diff)
}

// Shape converts diff into a payload using opts.Strategy.
func (e *Engine) Shape(diff string, opts models.Options) (*models.Result, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, invalidOptions(err)
	}

	sd, err := e.prepare(diff, opts.Workers)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return emptyResult(opts.Strategy), nil
	}
	return e.shape(sd, opts)
}

// Compare shapes diff with every strategy. The diff is parsed and scored once;
// a failing strategy is recorded in its entry.
func (e *Engine) Compare(diff string, opts models.Options) ([]models.Comparison, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, invalidOptions(err)
	}

	sd, err := e.prepare(diff, opts.Workers)
	if err != nil {
		return nil, err
	}

	comparisons := make([]models.Comparison, 0, len(models.Strategies))
	for _, strategy := range models.Strategies {
		o := opts
		o.Strategy = strategy
		if sd == nil {
			comparisons = append(comparisons, models.Comparison{Strategy: strategy, Result: emptyResult(strategy)})
			continue
		}
		result, err := e.shape(sd, o)
		comparisons = append(comparisons, models.Comparison{Strategy: strategy, Result: result, Err: err})
	}
	return comparisons, nil
}

// prepare parses, classifies and scores diff. A nil scoredDiff means the diff is empty.
func (e *Engine) prepare(diff string, workers int) (*scoredDiff, error) {
	files, err := Parse(diff)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	e.score(files, workers)
	sd := newScoredDiff(diff, files)
	e.logger.Debug("diff parsed",
		"files", len(files),
		"noise", len(files)-len(sd.ranked),
		"hunks", sd.hunkCount())
	return sd, nil
}

// score classifies and scores every file. Each goroutine only writes to its own file.
func (e *Engine) score(files []*models.FileChange, workers int) {
	if len(files) < parallelThreshold || workers <= 1 {
		for _, f := range files {
			e.scoreFile(f)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			e.scoreFile(f)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) scoreFile(f *models.FileChange) {
	f.IsNoise, f.NoiseRule = e.noise.Classify(f.Path)
	if f.IsNoise {
		return
	}
	f.Importance = e.files.Score(f)
	for _, h := range f.Hunks {
		h.Importance = e.hunks.Score(f.Path, h)
	}
}

func (e *Engine) shape(sd *scoredDiff, opts models.Options) (*models.Result, error) {
	e.logger.Debug("packing", "strategy", opts.Strategy.String(), "max_chars", opts.MaxChars)

	out, err := pack(opts.Strategy, sd, opts)
	for _, step := range out.steps {
		e.logger.Debug("fit step", "preview_lines", step.PreviewLines, "hunks", step.Hunks, "size", step.Size)
	}

	var shapeErr *ShapeError
	if err != nil && !(errors.As(err, &shapeErr) && shapeErr.Kind == KindBudgetExceeded) {
		return nil, err
	}

	result := &models.Result{
		Strategy: opts.Strategy,
		Payload:  out.payload,
		Stats:    newStats(opts.Strategy, sd, out),
		FitSteps: out.steps,
	}
	if err != nil {
		shapeErr.Partial = result
		return nil, shapeErr
	}
	return result, nil
}

func newStats(strategy models.Strategy, sd *scoredDiff, out packed) models.Stats {
	shaped := utf8.RuneCountInString(out.payload)
	return models.Stats{
		Strategy:        strategy,
		StrategyName:    strategy.String(),
		FilesTotal:      len(sd.files),
		FilesNoise:      len(sd.files) - len(sd.ranked),
		FilesIncluded:   out.files,
		HunksTotal:      sd.hunkCount(),
		HunksIncluded:   out.hunks,
		OriginalChars:   utf8.RuneCountInString(sd.raw),
		ShapedChars:     shaped,
		EstimatedTokens: models.EstimateTokens(shaped),
		Truncated:       out.truncated,
		Digest:          Digest(out.payload),
	}
}

func emptyResult(strategy models.Strategy) *models.Result {
	return &models.Result{
		Strategy: strategy,
		Empty:    true,
		Stats: models.Stats{
			Strategy:     strategy,
			StrategyName: strategy.String(),
			Digest:       Digest(""),
		},
	}
}

// ShapeRaw applies the Full strategy to text that could not be parsed.
// Only character statistics are reported.
func ShapeRaw(diff string, maxChars int) *models.Result {
	if maxChars <= 0 {
		maxChars = models.DefaultMaxChars
	}
	payload, truncated := truncateRunes(diff, maxChars)
	shaped := utf8.RuneCountInString(payload)
	return &models.Result{
		Strategy: models.StrategyFull,
		Payload:  payload,
		Empty:    payload == "",
		Stats: models.Stats{
			Strategy:        models.StrategyFull,
			StrategyName:    models.StrategyFull.String(),
			OriginalChars:   utf8.RuneCountInString(diff),
			ShapedChars:     shaped,
			EstimatedTokens: models.EstimateTokens(shaped),
			Truncated:       truncated,
			Digest:          Digest(payload),
		},
	}
}

// Digest returns the xxh3 hash of a payload as 16 hex digits.
func Digest(payload string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(payload))
}
