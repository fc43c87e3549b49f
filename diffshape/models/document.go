package models

// FileSummary is one file entry of the Semantic JSON document.
type FileSummary struct {
	Path      string  `json:"path"`
	OldPath   string  `json:"old_path,omitempty"`
	Status    string  `json:"status"`
	Additions int     `json:"additions"`
	Deletions int     `json:"deletions"`
	Priority  float64 `json:"priority"`
}

// HunkSummary is one ranked hunk entry of the Semantic JSON document.
type HunkSummary struct {
	Path     string  `json:"path"`
	Header   string  `json:"header,omitempty"`
	Preview  string  `json:"preview"`
	Priority float64 `json:"priority"`
}

// Document is the Semantic JSON payload.
type Document struct {
	Files []FileSummary `json:"files"`
	Hunks []HunkSummary `json:"hunks"`
}
