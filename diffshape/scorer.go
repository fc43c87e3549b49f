package diffshape

import (
	"math"
	"path"
	"strings"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// PathWeight assigns a weight to paths ending in an extension (".go") or
// named exactly like a file ("Makefile").
type PathWeight struct {
	Pattern string
	Weight  float64
}

func (w PathWeight) matches(base string) bool {
	if strings.HasPrefix(w.Pattern, ".") {
		return strings.HasSuffix(base, w.Pattern)
	}
	return base == w.Pattern
}

// StatusWeights is the bonus added per file status.
type StatusWeights struct {
	Added    float64
	Deleted  float64
	Modified float64
	Renamed  float64
	Copied   float64
}

func (w StatusWeights) bonus(s models.Status) float64 {
	switch s {
	case models.StatusAdded:
		return w.Added
	case models.StatusDeleted:
		return w.Deleted
	case models.StatusRenamed:
		return w.Renamed
	case models.StatusCopied:
		return w.Copied
	default:
		return w.Modified
	}
}

// FileWeights configures the FileScorer.
type FileWeights struct {
	Paths             []PathWeight
	DefaultPathWeight float64
	Status            StatusWeights

	// Changes below SmallChange lines cost SmallChangePenalty per missing line.
	SmallChange        int
	SmallChangePenalty float64
	// Changes up to LargeChange lines earn ModerateBonus; beyond that every
	// doubling costs LargePenaltyPerDoubling, up to MaxLargePenalty.
	ModerateBonus           float64
	LargeChange             int
	LargePenaltyPerDoubling float64
	MaxLargePenalty         float64
}

// DefaultFileWeights returns a fresh copy of the built-in file weights.
func DefaultFileWeights() FileWeights {
	return FileWeights{
		Paths: []PathWeight{
			{"main.go", 100}, {"main.rs", 100}, {"lib.rs", 100}, {"mod.rs", 80},
			{".go", 70}, {".rs", 70}, {".py", 70}, {".c", 70}, {".cpp", 70}, {".h", 65},
			{".java", 70}, {".kt", 70}, {".swift", 70}, {".cs", 70}, {".rb", 65},
			{".ts", 65}, {".tsx", 65}, {".js", 60}, {".jsx", 60}, {".sql", 55}, {".proto", 55},
			{".sh", 50}, {"Makefile", 50}, {"Dockerfile", 50},
			{"go.mod", 50}, {"Cargo.toml", 50}, {"pyproject.toml", 50}, {"package.json", 45},
			{"README.md", 40}, {".md", 30}, {".toml", 30}, {".yaml", 25}, {".yml", 25},
			{".json", 15}, {".css", 10}, {".svg", 5},
		},
		DefaultPathWeight: 20,
		Status: StatusWeights{
			Added:    15,
			Deleted:  10,
			Modified: 0,
			Renamed:  5,
			Copied:   5,
		},
		SmallChange:             3,
		SmallChangePenalty:      3,
		ModerateBonus:           10,
		LargeChange:             300,
		LargePenaltyPerDoubling: 8,
		MaxLargePenalty:         30,
	}
}

// FileScorer computes file importance from path, status and change volume.
type FileScorer struct {
	weights FileWeights
}

// NewFileScorer copies weights so later edits by the caller have no effect.
func NewFileScorer(weights FileWeights) *FileScorer {
	weights.Paths = append([]PathWeight(nil), weights.Paths...)
	return &FileScorer{weights: weights}
}

// Score returns the importance of a non-noise file.
func (s *FileScorer) Score(f *models.FileChange) float64 {
	score := s.pathWeight(f.Path) + s.weights.Status.bonus(f.Status)
	if !f.Binary {
		score += s.sizeTerm(f.Changed())
	}
	return round2(score)
}

func (s *FileScorer) pathWeight(p string) float64 {
	base := path.Base(p)
	best := s.weights.DefaultPathWeight
	matched := false
	for _, w := range s.weights.Paths {
		if w.matches(base) && (!matched || w.Weight > best) {
			best = w.Weight
			matched = true
		}
	}
	return best
}

func (s *FileScorer) sizeTerm(changed int) float64 {
	w := s.weights
	switch {
	case changed < w.SmallChange:
		return -w.SmallChangePenalty * float64(w.SmallChange-changed)
	case changed <= w.LargeChange:
		return w.ModerateBonus
	default:
		penalty := w.LargePenaltyPerDoubling * math.Log2(float64(changed)/float64(w.LargeChange))
		return w.ModerateBonus - math.Min(penalty, w.MaxLargePenalty)
	}
}

// HunkWeights configures the HunkScorer.
type HunkWeights struct {
	Base float64
	// HeaderBonus rewards hunks whose header names an enclosing function or type.
	HeaderBonus float64
	// KeywordBonus is added per changed line that declares a structure.
	KeywordBonus   float64
	MaxKeywordHits int
	// Syntax counts declarations with tree-sitter for supported languages;
	// Keywords are the line prefixes used for every other file.
	Syntax         bool
	Keywords       []string
	NetDeltaWeight float64
	// Churn: both sides changed and min/max >= ChurnRatio.
	ChurnRatio   float64
	ChurnPenalty float64
	// Trivial: at least TrivialRatio of the changed lines are blank or comments.
	TrivialRatio    float64
	TrivialPenalty  float64
	CommentPrefixes []string
}

// DefaultHunkWeights returns a fresh copy of the built-in hunk weights.
func DefaultHunkWeights() HunkWeights {
	return HunkWeights{
		Base:           10,
		HeaderBonus:    15,
		KeywordBonus:   5,
		MaxKeywordHits: 3,
		Syntax:         true,
		Keywords: []string{
			"func", "def", "class", "fn", "impl", "struct", "interface", "type", "enum",
			"trait", "function", "export", "pub", "async", "const",
		},
		NetDeltaWeight:  4,
		ChurnRatio:      0.8,
		ChurnPenalty:    8,
		TrivialRatio:    0.8,
		TrivialPenalty:  10,
		CommentPrefixes: []string{"//", "/*", "*", "#", "--", ";", "<!--", `"""`},
	}
}

// HunkScorer computes hunk importance from structure and line balance.
type HunkScorer struct {
	weights HunkWeights
}

// NewHunkScorer copies weights so later edits by the caller have no effect.
func NewHunkScorer(weights HunkWeights) *HunkScorer {
	weights.Keywords = append([]string(nil), weights.Keywords...)
	weights.CommentPrefixes = append([]string(nil), weights.CommentPrefixes...)
	return &HunkScorer{weights: weights}
}

// Score returns the importance of a hunk of the file at p; it depends on the
// hunk content and the language of p only.
func (s *HunkScorer) Score(p string, h *models.Hunk) float64 {
	w := s.weights
	score := w.Base
	if h.Header != "" {
		score += w.HeaderBonus
	}

	added, removed, keywordHits, trivial := 0, 0, 0, 0
	for _, l := range h.Lines {
		switch l.Kind {
		case models.LineAdded:
			added++
		case models.LineRemoved:
			removed++
		default:
			continue
		}
		text := strings.TrimSpace(l.Text)
		if s.isTrivial(text) {
			trivial++
		} else if s.declaresStructure(text) {
			keywordHits++
		}
	}
	if n, ok := s.syntaxHits(p, h); ok {
		keywordHits = n
	}
	if keywordHits > w.MaxKeywordHits {
		keywordHits = w.MaxKeywordHits
	}
	score += w.KeywordBonus * float64(keywordHits)

	delta := added - removed
	if delta < 0 {
		delta = -delta
	}
	score += w.NetDeltaWeight * math.Log2(1+float64(delta))

	if added > 0 && removed > 0 {
		ratio := float64(min(added, removed)) / float64(max(added, removed))
		if ratio >= w.ChurnRatio {
			score -= w.ChurnPenalty
		}
	}
	if changed := added + removed; changed > 0 && float64(trivial)/float64(changed) >= w.TrivialRatio {
		score -= w.TrivialPenalty
	}
	return round2(score)
}

// syntaxHits counts declarations in the added and the removed side of h,
// each parsed on its own.
func (s *HunkScorer) syntaxHits(p string, h *models.Hunk) (int, bool) {
	if !s.weights.Syntax {
		return 0, false
	}
	g := grammarFor(p)
	if g == nil {
		return 0, false
	}

	var added, removed []string
	for _, l := range h.Lines {
		switch l.Kind {
		case models.LineAdded:
			added = append(added, l.Text)
		case models.LineRemoved:
			removed = append(removed, l.Text)
		}
	}
	hits := 0
	for _, side := range [][]string{added, removed} {
		if len(side) == 0 {
			continue
		}
		n, ok := g.countDeclarations(strings.Join(side, "\n") + "\n")
		if !ok {
			return 0, false
		}
		hits += n
	}
	return hits, true
}

func (s *HunkScorer) isTrivial(text string) bool {
	if text == "" {
		return true
	}
	for _, p := range s.weights.CommentPrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func (s *HunkScorer) declaresStructure(text string) bool {
	for _, kw := range s.weights.Keywords {
		if strings.HasPrefix(text, kw+" ") || strings.HasPrefix(text, kw+"(") {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
