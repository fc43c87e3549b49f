package diffshape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// scoredDiff is the parsed, classified and scored input of one shaping call.
type scoredDiff struct {
	raw   string
	files []*models.FileChange
	// ranked holds the non-noise files by importance desc, path asc.
	ranked []*models.FileChange
}

type rankedHunk struct {
	file *models.FileChange
	hunk *models.Hunk
}

// packed is what a strategy produced before statistics are attached.
type packed struct {
	payload   string
	files     int
	hunks     int
	truncated bool
	steps     []models.FitStep
}

func newScoredDiff(raw string, files []*models.FileChange) *scoredDiff {
	sd := &scoredDiff{raw: raw, files: files}
	for _, f := range files {
		if !f.IsNoise {
			sd.ranked = append(sd.ranked, f)
		}
	}
	sort.SliceStable(sd.ranked, func(i, j int) bool {
		a, b := sd.ranked[i], sd.ranked[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.Path < b.Path
	})
	return sd
}

func (sd *scoredDiff) hunkCount() int {
	n := 0
	for _, f := range sd.files {
		n += len(f.Hunks)
	}
	return n
}

func (sd *scoredDiff) rankedHunks(less func(a, b rankedHunk) bool) []rankedHunk {
	var out []rankedHunk
	for _, f := range sd.ranked {
		for _, h := range f.Hunks {
			out = append(out, rankedHunk{file: f, hunk: h})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// pack runs the selected strategy over the scored diff.
func pack(strategy models.Strategy, sd *scoredDiff, opts models.Options) (packed, error) {
	switch strategy {
	case models.StrategyFull:
		return packFull(sd, opts), nil
	case models.StrategySelectiveFiles:
		return packSelectiveFiles(sd, opts), nil
	case models.StrategySelectiveHunks:
		return packSelectiveHunks(sd, opts), nil
	case models.StrategySemanticJSON:
		return packSemantic(sd, opts)
	default:
		return packed{}, invalidOptions(fmt.Errorf("unknown strategy %d", int(strategy)))
	}
}

func packFull(sd *scoredDiff, opts models.Options) packed {
	payload, truncated := truncateRunes(sd.raw, opts.MaxChars)
	return packed{
		payload:   payload,
		files:     len(sd.files),
		hunks:     sd.hunkCount(),
		truncated: truncated,
	}
}

func packSelectiveFiles(sd *scoredDiff, opts models.Options) packed {
	var (
		b    strings.Builder
		size int
		out  packed
	)
	for _, f := range sd.ranked {
		n := utf8.RuneCountInString(f.Patch)
		if size+n > opts.MaxChars {
			out.truncated = true
			break
		}
		b.WriteString(f.Patch)
		size += n
		out.files++
		out.hunks += len(f.Hunks)
	}
	out.payload = b.String()
	return out
}

func packSelectiveHunks(sd *scoredDiff, opts models.Options) packed {
	hunks := sd.rankedHunks(func(a, b rankedHunk) bool {
		if a.hunk.Importance != b.hunk.Importance {
			return a.hunk.Importance > b.hunk.Importance
		}
		if a.file.Path != b.file.Path {
			return a.file.Path < b.file.Path
		}
		return a.hunk.Index < b.hunk.Index
	})

	var (
		b       strings.Builder
		size    int
		out     packed
		last    *models.FileChange
		perFile = make(map[*models.FileChange]int)
	)
	for _, rh := range hunks {
		if perFile[rh.file] >= opts.PerFileHunkCap {
			continue
		}
		piece := rh.hunk.String()
		if rh.file != last {
			piece = rh.file.FileHeader() + piece
		}
		n := utf8.RuneCountInString(piece)
		if size+n > opts.MaxChars {
			out.truncated = true
			break
		}
		b.WriteString(piece)
		size += n
		if perFile[rh.file] == 0 {
			out.files++
		}
		perFile[rh.file]++
		out.hunks++
		last = rh.file
	}
	out.payload = b.String()
	return out
}

func packSemantic(sd *scoredDiff, opts models.Options) (packed, error) {
	doc := newSemanticDoc(sd, opts)
	outcome, err := fit(doc, opts.MaxChars, opts.MinPreviewLines)
	out := packed{
		payload:   outcome.payload,
		files:     len(doc.files),
		hunks:     outcome.hunks,
		truncated: len(outcome.steps) > 0,
		steps:     outcome.steps,
	}
	return out, err
}

// semanticDoc holds everything needed to render the JSON document at any
// preview length and hunk count.
type semanticDoc struct {
	files        []models.FileSummary
	hunks        []rankedHunk
	previewLines int
	lineChars    int
}

func newSemanticDoc(sd *scoredDiff, opts models.Options) *semanticDoc {
	doc := &semanticDoc{
		files:        make([]models.FileSummary, 0, len(sd.ranked)),
		previewLines: opts.PreviewLines,
		lineChars:    opts.PreviewLineChars,
	}
	for _, f := range sd.ranked {
		summary := models.FileSummary{
			Path:      f.Path,
			Status:    f.Status.Code(),
			Additions: f.Additions,
			Deletions: f.Deletions,
			Priority:  f.Importance,
		}
		if f.Status == models.StatusRenamed || f.Status == models.StatusCopied {
			summary.OldPath = f.OldPath
		}
		doc.files = append(doc.files, summary)
	}

	ranked := sd.rankedHunks(func(a, b rankedHunk) bool {
		if a.hunk.Importance != b.hunk.Importance {
			return a.hunk.Importance > b.hunk.Importance
		}
		if a.file.Index != b.file.Index {
			return a.file.Index < b.file.Index
		}
		return a.hunk.Index < b.hunk.Index
	})
	perFile := make(map[*models.FileChange]int)
	for _, rh := range ranked {
		if len(doc.hunks) >= opts.MaxHunks {
			break
		}
		if perFile[rh.file] >= opts.PerFileHunkCap {
			continue
		}
		perFile[rh.file]++
		doc.hunks = append(doc.hunks, rh)
	}
	return doc
}

// render serialises the document with the top keep hunks and previews of at
// most previewLines changed lines.
func (d *semanticDoc) render(previewLines, keep int) (string, error) {
	out := models.Document{
		Files: d.files,
		Hunks: make([]models.HunkSummary, 0, keep),
	}
	for _, rh := range d.hunks[:keep] {
		out.Hunks = append(out.Hunks, models.HunkSummary{
			Path:     rh.file.Path,
			Header:   rh.hunk.Header,
			Preview:  preview(rh.hunk, previewLines, d.lineChars),
			Priority: rh.hunk.Importance,
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("error encoding semantic document: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// preview renders the first n changed lines of h, each clipped to lineChars.
func preview(h *models.Hunk, n, lineChars int) string {
	changed := h.ChangedLines()
	if len(changed) > n {
		changed = changed[:n]
	}
	for i, l := range changed {
		changed[i], _ = truncateRunes(l, lineChars)
	}
	return strings.Join(changed, "\n")
}

func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}
