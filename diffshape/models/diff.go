package models

import (
	"fmt"
	"strings"
)

// Status describes what happened to a file in a diff.
type Status int

const (
	StatusModified Status = iota
	StatusAdded
	StatusDeleted
	StatusRenamed
	StatusCopied
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	default:
		return "modified"
	}
}

// Code returns the one-letter status used by git (A, D, M, R, C).
func (s Status) Code() string {
	switch s {
	case StatusAdded:
		return "A"
	case StatusDeleted:
		return "D"
	case StatusRenamed:
		return "R"
	case StatusCopied:
		return "C"
	default:
		return "M"
	}
}

// LineKind tags a single line of a hunk.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

// Prefix returns the unified diff prefix for the kind.
func (k LineKind) Prefix() string {
	switch k {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// Line is one line of a hunk body, without its prefix.
type Line struct {
	Kind LineKind
	Text string
}

// Range is a (start line, line count) pair from a hunk header.
type Range struct {
	Start int
	Count int
}

// End returns the first line after the range.
func (r Range) End() int {
	return r.Start + r.Count
}

// Hunk is one contiguous change region within a file.
type Hunk struct {
	OldRange   Range
	NewRange   Range
	Header     string
	Lines      []Line
	Importance float64
	Index      int
}

// Added counts the added lines of the hunk.
func (h *Hunk) Added() int {
	return h.count(LineAdded)
}

// Removed counts the removed lines of the hunk.
func (h *Hunk) Removed() int {
	return h.count(LineRemoved)
}

func (h *Hunk) count(kind LineKind) int {
	n := 0
	for _, l := range h.Lines {
		if l.Kind == kind {
			n++
		}
	}
	return n
}

// ChangedLines returns the added and removed lines with their prefixes, in order.
func (h *Hunk) ChangedLines() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind == LineContext {
			continue
		}
		out = append(out, l.Kind.Prefix()+l.Text)
	}
	return out
}

// HeaderLine renders the "@@ ... @@" line of the hunk.
func (h *Hunk) HeaderLine() string {
	line := fmt.Sprintf("@@ -%s +%s @@", formatRange(h.OldRange), formatRange(h.NewRange))
	if h.Header != "" {
		line += " " + h.Header
	}
	return line
}

// String renders the hunk in unified diff form, newline terminated.
func (h *Hunk) String() string {
	var b strings.Builder
	b.WriteString(h.HeaderLine())
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteString(l.Kind.Prefix())
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatRange(r Range) string {
	if r.Count == 1 {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d,%d", r.Start, r.Count)
}

// FileChange is one file's contribution to a diff.
type FileChange struct {
	Path      string
	OldPath   string
	Status    Status
	Additions int
	Deletions int
	Binary    bool
	Hunks     []*Hunk
	// Patch is the verbatim section of the input diff for this file.
	Patch string

	IsNoise   bool
	NoiseRule string

	Importance float64
	Index      int
}

// Changed returns Additions+Deletions.
func (f *FileChange) Changed() int {
	return f.Additions + f.Deletions
}

// SourcePath returns the pre-image path, falling back to Path.
func (f *FileChange) SourcePath() string {
	if f.OldPath != "" {
		return f.OldPath
	}
	return f.Path
}

// FileHeader renders the git-style header lines that introduce the file's hunks.
func (f *FileChange) FileHeader() string {
	oldName := "a/" + f.SourcePath()
	newName := "b/" + f.Path
	minus, plus := oldName, newName
	switch f.Status {
	case StatusAdded:
		minus = "/dev/null"
	case StatusDeleted:
		plus = "/dev/null"
	}
	return fmt.Sprintf("diff --git %s %s\n--- %s\n+++ %s\n", oldName, newName, minus, plus)
}
