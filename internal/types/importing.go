package types

import (
	"strconv"
	"strings"
	"time"
)

// FileType represents supported upload file types
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// DetectFileType returns the file type from the filename extension only.
// No content sniffing is done.
func DetectFileType(filename string) (FileType, bool) {
	lower := strings.ToLower(strings.TrimSpace(filename))
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FileTypeCSV, true
	case strings.HasSuffix(lower, ".xlsx"):
		return FileTypeXLSX, true
	}
	return "", false
}

// RawRow is one parsed data line keyed by normalized header name.
// Keys keeps the header order; every row of a file shares the same keys.
type RawRow struct {
	Keys   []string          `json:"keys"`
	Values map[string]string `json:"values"`
}

// NewRawRow builds a row from headers and positional values. Missing
// trailing values map to the empty string. A repeated header keeps the
// value of its first column.
func NewRawRow(headers []string, values []string) RawRow {
	row := RawRow{
		Keys:   make([]string, 0, len(headers)),
		Values: make(map[string]string, len(headers)),
	}
	for i, h := range headers {
		if _, seen := row.Values[h]; seen {
			continue
		}
		row.Keys = append(row.Keys, h)
		if i < len(values) {
			row.Values[h] = values[i]
		} else {
			row.Values[h] = ""
		}
	}
	return row
}

// Get returns the value stored under key and whether the key exists
func (r RawRow) Get(key string) (string, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// IsBlank reports whether every value of the row is empty or whitespace
func (r RawRow) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Rejection records why a row was not submitted.
// RowIndex is the spreadsheet line number: the first data row is 2.
type Rejection struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

func (r *Rejection) Error() string {
	return FormatRowMessage(r.RowIndex, r.Reason)
}

// FormatRowMessage formats a per-row message the way it is shown to users
func FormatRowMessage(rowIndex int, msg string) string {
	return "Linha " + strconv.Itoa(rowIndex) + ": " + msg
}

// RowIndexFor converts a 0-based data row position to its line number
func RowIndexFor(position int) int {
	return position + 2
}

// BatchResult is the running tally of one upload
type BatchResult struct {
	Success       int      `json:"success"`
	Failed        int      `json:"failed"`
	Errors        []string `json:"errors"`
	Notes         []string `json:"notes,omitempty"`
	Truncated     bool     `json:"truncated"`
	RefreshFailed bool     `json:"refreshFailed"`
}

// NewBatchResult returns an empty tally
func NewBatchResult() *BatchResult {
	return &BatchResult{
		Errors: make([]string, 0),
	}
}

// Processed returns the number of rows that reached a final state
func (b *BatchResult) Processed() int {
	return b.Success + b.Failed
}

// ValidationReport is the outcome of a dry run: normalization without submission
type ValidationReport struct {
	TotalRows  int         `json:"totalRows"`
	ValidRows  int         `json:"validRows"`
	Rejections []Rejection `json:"rejections"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// RunStatus represents status of an import run
type RunStatus string

const (
	RunStatusPending     RunStatus = "pending"
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusInterrupted RunStatus = "interrupted"
)

// ImportRun describes one upload handled by the server
type ImportRun struct {
	ID          string       `json:"id"`
	Entity      string       `json:"entity"`
	Filename    string       `json:"filename"`
	Status      RunStatus    `json:"status"`
	Progress    int          `json:"progress"`
	TotalRows   int          `json:"totalRows"`
	Result      *BatchResult `json:"result,omitempty"`
	Error       *string      `json:"error,omitempty"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// TimePtr returns a pointer to the given time
func TimePtr(t time.Time) *time.Time {
	return &t
}
