package diffshape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)

// Parse splits unified diff text into file changes, in diff order.
// Blank input yields no files and no error.
func Parse(text string) ([]*models.FileChange, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil, nil
	}
	normalized = strings.TrimSuffix(normalized, "\n")

	p := &diffParser{lines: strings.Split(normalized, "\n")}
	if err := p.run(); err != nil {
		return nil, err
	}
	if len(p.files) == 0 {
		return nil, malformed(1, "no file header found")
	}
	return p.files, nil
}

type diffParser struct {
	lines []string
	files []*models.FileChange

	cur        *models.FileChange
	curStart   int
	sawMinus   bool
	binaryBody bool

	hunk    *models.Hunk
	oldLeft int
	newLeft int
}

func (p *diffParser) run() error {
	for i := 0; i < len(p.lines); i++ {
		line := p.lines[i]

		if p.hunk != nil {
			if p.consumeHunkLine(line) {
				continue
			}
			p.hunk = nil
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			p.closeFile(i)
			p.openFile(i)
			oldPath, newPath := splitGitPaths(strings.TrimPrefix(line, "diff --git "))
			p.cur.Path = newPath
			if p.cur.Path == "" {
				p.cur.Path = oldPath
			}

		case p.binaryBody:
			// base85 payload of a GIT binary patch

		case strings.HasPrefix(line, "--- ") && i+1 < len(p.lines) && strings.HasPrefix(p.lines[i+1], "+++ "):
			if p.cur == nil || p.sawMinus || len(p.cur.Hunks) > 0 {
				p.closeFile(i)
				p.openFile(i)
			}
			p.applyFilePair(line, p.lines[i+1])
			i++

		case strings.HasPrefix(line, "@@"):
			if p.cur == nil {
				return malformed(i+1, "hunk header before any file header")
			}
			if err := p.openHunk(i, line); err != nil {
				return err
			}

		case p.cur == nil:
			// preamble such as commit metadata

		case line == "-- ":
			// mail signature that ends format-patch output
			p.closeFile(i)

		case len(p.cur.Hunks) == 0 && p.applyExtendedHeader(line):

		case len(p.cur.Hunks) == 0 && strings.HasPrefix(line, "Binary files ") && strings.HasSuffix(line, " differ"):
			p.markBinary(line)

		case line == "GIT binary patch":
			p.cur.Binary = true
			p.binaryBody = true

		case line == "" || strings.HasPrefix(line, `\`):

		case isContentLine(line):
			return malformed(i+1, "content line outside of a hunk")

		case len(p.cur.Hunks) > 0:
			// commit lines of git log -p, "diff -ruN" command lines and
			// "Only in" notices end the file; the next header opens another
			p.closeFile(i)
		}
	}
	p.closeFile(len(p.lines))
	return nil
}

func (p *diffParser) openFile(start int) {
	p.cur = &models.FileChange{Status: models.StatusModified, Index: len(p.files)}
	p.curStart = start
	p.sawMinus = false
	p.binaryBody = false
}

func (p *diffParser) closeFile(end int) {
	p.hunk = nil
	if p.cur == nil {
		return
	}
	for _, h := range p.cur.Hunks {
		p.cur.Additions += h.Added()
		p.cur.Deletions += h.Removed()
	}
	p.cur.Patch = strings.Join(p.lines[p.curStart:end], "\n") + "\n"
	p.files = append(p.files, p.cur)
	p.cur = nil
	p.binaryBody = false
}

func (p *diffParser) applyFilePair(minus, plus string) {
	p.sawMinus = true
	oldPath := headerPath(strings.TrimPrefix(minus, "--- "))
	newPath := headerPath(strings.TrimPrefix(plus, "+++ "))

	switch {
	case oldPath == "/dev/null":
		p.cur.Path = newPath
		p.setStatus(models.StatusAdded)
	case newPath == "/dev/null":
		p.cur.Path = oldPath
		p.setStatus(models.StatusDeleted)
	default:
		if p.cur.Status != models.StatusRenamed && p.cur.Status != models.StatusCopied {
			p.cur.Path = newPath
		}
	}
}

func (p *diffParser) applyExtendedHeader(line string) bool {
	switch {
	case strings.HasPrefix(line, "new file mode"):
		p.setStatus(models.StatusAdded)
	case strings.HasPrefix(line, "deleted file mode"):
		p.setStatus(models.StatusDeleted)
	case strings.HasPrefix(line, "rename from "):
		p.cur.Status = models.StatusRenamed
		p.cur.OldPath = unquotePath(strings.TrimPrefix(line, "rename from "))
	case strings.HasPrefix(line, "rename to "):
		p.cur.Status = models.StatusRenamed
		p.cur.Path = unquotePath(strings.TrimPrefix(line, "rename to "))
	case strings.HasPrefix(line, "copy from "):
		p.cur.Status = models.StatusCopied
		p.cur.OldPath = unquotePath(strings.TrimPrefix(line, "copy from "))
	case strings.HasPrefix(line, "copy to "):
		p.cur.Status = models.StatusCopied
		p.cur.Path = unquotePath(strings.TrimPrefix(line, "copy to "))
	case strings.HasPrefix(line, "similarity index"),
		strings.HasPrefix(line, "dissimilarity index"),
		strings.HasPrefix(line, "index "),
		strings.HasPrefix(line, "old mode"),
		strings.HasPrefix(line, "new mode"):
	default:
		return false
	}
	return true
}

// setStatus only refines a file that is still considered modified.
func (p *diffParser) setStatus(s models.Status) {
	if p.cur.Status == models.StatusModified {
		p.cur.Status = s
	}
}

func (p *diffParser) markBinary(line string) {
	p.cur.Binary = true
	body := strings.TrimSuffix(strings.TrimPrefix(line, "Binary files "), " differ")
	switch {
	case strings.HasPrefix(body, "/dev/null and "):
		p.setStatus(models.StatusAdded)
	case strings.HasSuffix(body, " and /dev/null"):
		p.setStatus(models.StatusDeleted)
	}
}

func (p *diffParser) openHunk(i int, line string) error {
	m := hunkHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return malformed(i+1, "invalid hunk header %q", line)
	}
	oldRange, err := parseRange(m[1], m[2])
	if err != nil {
		return malformed(i+1, "invalid hunk range in %q: %v", line, err)
	}
	newRange, err := parseRange(m[3], m[4])
	if err != nil {
		return malformed(i+1, "invalid hunk range in %q: %v", line, err)
	}
	h := &models.Hunk{
		OldRange: oldRange,
		NewRange: newRange,
		Header:   strings.TrimSpace(m[5]),
		Index:    len(p.cur.Hunks),
	}
	if n := len(p.cur.Hunks); n > 0 {
		prev := p.cur.Hunks[n-1]
		if h.NewRange.Start < prev.NewRange.End() {
			return malformed(i+1, "hunk at +%d overlaps previous hunk ending at +%d", h.NewRange.Start, prev.NewRange.End())
		}
	}
	p.cur.Hunks = append(p.cur.Hunks, h)
	p.hunk = h
	p.oldLeft = h.OldRange.Count
	p.newLeft = h.NewRange.Count
	return nil
}

// consumeHunkLine adds line to the open hunk while its declared counts allow it.
func (p *diffParser) consumeHunkLine(line string) bool {
	if strings.HasPrefix(line, `\`) {
		return true
	}
	if p.oldLeft <= 0 && p.newLeft <= 0 {
		return false
	}
	if line == "" {
		// some transports strip the space of empty context lines
		if p.oldLeft > 0 && p.newLeft > 0 {
			p.appendLine(models.LineContext, "")
			return true
		}
		return false
	}
	switch line[0] {
	case ' ':
		if p.oldLeft > 0 && p.newLeft > 0 {
			p.appendLine(models.LineContext, line[1:])
			return true
		}
	case '+':
		if p.newLeft > 0 {
			p.appendLine(models.LineAdded, line[1:])
			return true
		}
	case '-':
		if p.oldLeft > 0 {
			p.appendLine(models.LineRemoved, line[1:])
			return true
		}
	}
	return false
}

func (p *diffParser) appendLine(kind models.LineKind, text string) {
	switch kind {
	case models.LineContext:
		p.oldLeft--
		p.newLeft--
	case models.LineAdded:
		p.newLeft--
	case models.LineRemoved:
		p.oldLeft--
	}
	p.hunk.Lines = append(p.hunk.Lines, models.Line{Kind: kind, Text: text})
}

func isContentLine(line string) bool {
	return line[0] == ' ' || line[0] == '+' || line[0] == '-'
}

// splitGitPaths extracts both sides of a "diff --git a/x b/y" line.
func splitGitPaths(rest string) (string, string) {
	if strings.HasPrefix(rest, `"`) {
		if quoted, err := strconv.QuotedPrefix(rest); err == nil {
			return headerPath(quoted), headerPath(strings.TrimSpace(rest[len(quoted):]))
		}
	}
	if strings.HasSuffix(rest, `"`) {
		if idx := strings.LastIndex(rest, ` "`); idx >= 0 {
			return headerPath(rest[:idx]), headerPath(rest[idx+1:])
		}
	}
	// identical names on both sides split evenly, which also covers paths with " b/" inside
	if n := len(rest); n%2 == 1 && rest[n/2] == ' ' {
		oldPath, newPath := headerPath(rest[:n/2]), headerPath(rest[n/2+1:])
		if oldPath == newPath {
			return oldPath, newPath
		}
	}
	if idx := strings.LastIndex(rest, " b/"); idx >= 0 {
		return headerPath(rest[:idx]), headerPath(rest[idx+1:])
	}
	return "", headerPath(rest)
}

// headerPath normalises a path from a diff header line.
func headerPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, '\t'); idx >= 0 {
		// diff -u appends a timestamp after a tab
		raw = raw[:idx]
	}
	raw = unquotePath(raw)
	if raw == "/dev/null" {
		return raw
	}
	if strings.HasPrefix(raw, "a/") || strings.HasPrefix(raw, "b/") {
		return raw[2:]
	}
	return raw
}

func unquotePath(raw string) string {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		if unquoted, err := strconv.Unquote(raw); err == nil {
			return unquoted
		}
	}
	return raw
}

// parseRange reads the start and optional count of one side of a hunk
// header; a missing count means one line.
func parseRange(start, count string) (models.Range, error) {
	r := models.Range{Count: 1}
	var err error
	if r.Start, err = strconv.Atoi(start); err != nil {
		return r, err
	}
	if count != "" {
		if r.Count, err = strconv.Atoi(count); err != nil {
			return r, err
		}
	}
	return r, nil
}
