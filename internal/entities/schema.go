// Package entities describes each importable entity: which CSV columns map
// to which payload fields, how a row is validated, and where the payload is
// sent.
package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clinica/import-service/internal/normalize"
	"github.com/clinica/import-service/internal/types"
)

// Payload is a validated, API-ready object
type Payload interface {
	// Has reports whether an optional field is set
	Has(field string) bool
	// Without returns a copy with the optional field cleared
	Without(field string) Payload
	// Label identifies the record in logs and messages
	Label() string
}

// Field maps one logical field to its accepted header spellings.
// Aliases[0] is the canonical template column.
type Field struct {
	Name     string
	Label    string
	Aliases  []string
	Required bool
}

// ConflictRule drops an optional field and resubmits once when the backend
// error message mentions any of the keywords.
type ConflictRule struct {
	Field    string
	Keywords []string
	// Note is recorded when the retry succeeds; empty means silent
	Note string
}

// Matches reports whether the backend message triggers this rule
func (r ConflictRule) Matches(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ExportColumn maps a template column to a key of the list response item
type ExportColumn struct {
	Header string
	Key    string
}

// Outcome is the result of normalizing one row: either a payload (possibly
// with warnings about dropped fields) or a rejection.
type Outcome struct {
	Payload   Payload
	Warnings  []string
	Rejection *types.Rejection
}

// Rejected reports whether the row must be skipped
func (o Outcome) Rejected() bool {
	return o.Rejection != nil
}

type normalizeFunc func(s *Schema, row types.RawRow, rowIndex int, now time.Time) Outcome

// Schema parameterizes the generic import pipeline for one entity
type Schema struct {
	Name          string
	DisplayName   string
	Fields        []Field
	Categories    []normalize.Option
	CreatePath    string
	ListPath      string
	ConflictRules []ConflictRule
	Template      string
	ExportColumns []ExportColumn

	normalize normalizeFunc
}

// Normalize validates a row against the current date
func (s *Schema) Normalize(row types.RawRow, rowIndex int) Outcome {
	return s.NormalizeAt(row, rowIndex, time.Now())
}

// NormalizeAt validates a row. It has no side effects besides debug logging:
// the same row and date always yield the same outcome.
func (s *Schema) NormalizeAt(row types.RawRow, rowIndex int, now time.Time) Outcome {
	return s.normalize(s, row, rowIndex, now)
}

// Field returns the field definition by name
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Resolve reads a field through its aliases
func (s *Schema) Resolve(row types.RawRow, name string) string {
	f, ok := s.Field(name)
	if !ok {
		return ""
	}
	v, _ := normalize.Resolve(row, f.Aliases)
	return v
}

// Headers returns the canonical template columns in field order
func (s *Schema) Headers() []string {
	headers := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		headers[i] = f.Aliases[0]
	}
	return headers
}

// TemplateFilename is the download name of the CSV template
func (s *Schema) TemplateFilename() string {
	return fmt.Sprintf("modelo_%s.csv", s.Name)
}

// missingRequired lists the labels of every required field that resolved
// empty, in field order.
func (s *Schema) missingRequired(row types.RawRow) []string {
	var missing []string
	for _, f := range s.Fields {
		if !f.Required {
			continue
		}
		if _, ok := normalize.Resolve(row, f.Aliases); !ok {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

func reject(rowIndex int, format string, args ...any) Outcome {
	return Outcome{Rejection: &types.Rejection{
		RowIndex: rowIndex,
		Reason:   fmt.Sprintf(format, args...),
	}}
}

func missingFieldsOutcome(rowIndex int, missing []string) Outcome {
	return reject(rowIndex, "Campos obrigatórios ausentes: %s", strings.Join(missing, ", "))
}

var registry = map[string]*Schema{}
var aliases = map[string]string{}

func register(s *Schema, names ...string) {
	registry[s.Name] = s
	for _, n := range names {
		aliases[n] = s.Name
	}
}

// Lookup finds a schema by name or English alias
func Lookup(name string) (*Schema, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	s, ok := registry[name]
	return s, ok
}

// Names lists the registered entity names, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
