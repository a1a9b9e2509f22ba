package diagnostic

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"struct-mapper/internal/common"
)

// ErrDiagnostic is matched by every error produced from an error diagnostic.
var ErrDiagnostic = errors.New("mapping diagnostic")

// Diagnostic codes.
const (
	CodeUnmapped        = "unmapped"         // target member without data source
	CodeUnknownMember   = "unknown_member"   // configuration names a missing member
	CodeUnsupported     = "unsupported"      // no strategy for a type pair
	CodeFlattened       = "flattened"        // target member sourced from a nested path
	CodeDictionaryEntry = "dictionary_entry" // target member sourced from a map entry
	CodeFactory         = "factory"          // factory selection
	CodeInvalidRule     = "invalid_rule"     // rule-file validation
	CodeUnknownType     = "unknown_type"     // rule file names an unregistered type
	CodeConversion      = "conversion"       // scalar conversion outside allowed categories
	CodeRecursive       = "recursive"        // target member refers back to its own type
)

// Diagnostics holds all diagnostic information from plan compilation.
type Diagnostics struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
	Infos    []Diagnostic
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Severity DiagnosticSeverity
	// Code is one of the Code* constants.
	Code    string
	Message string
	// TypePair is "Source -> Target" when the finding concerns a pair.
	TypePair string
	// FieldPath is the qualified path of the member concerned, if any.
	FieldPath string
	// Suggestions are source members that might have been meant.
	Suggestions []string
}

// DiagnosticSeverity represents the severity level of a diagnostic.
type DiagnosticSeverity int

const (
	DiagnosticInfo DiagnosticSeverity = iota
	DiagnosticWarning
	DiagnosticError
)

// String returns a human-readable severity name.
func (s DiagnosticSeverity) String() string {
	switch s {
	case DiagnosticInfo:
		return "info"
	case DiagnosticWarning:
		return "warning"
	case DiagnosticError:
		return "error"
	default:
		return common.UnknownStr
	}
}

// Add appends a diagnostic to the list matching its severity.
func (d *Diagnostics) Add(diag Diagnostic) {
	switch diag.Severity {
	case DiagnosticError:
		d.Errors = append(d.Errors, diag)
	case DiagnosticWarning:
		d.Warnings = append(d.Warnings, diag)
	default:
		d.Infos = append(d.Infos, diag)
	}
}

// AddError adds an error diagnostic.
func (d *Diagnostics) AddError(code, message, typePair, fieldPath string) {
	d.Add(Diagnostic{Severity: DiagnosticError, Code: code, Message: message, TypePair: typePair, FieldPath: fieldPath})
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(code, message, typePair, fieldPath string) {
	d.Add(Diagnostic{Severity: DiagnosticWarning, Code: code, Message: message, TypePair: typePair, FieldPath: fieldPath})
}

// AddInfo adds an info diagnostic.
func (d *Diagnostics) AddInfo(code, message, typePair, fieldPath string) {
	d.Add(Diagnostic{Severity: DiagnosticInfo, Code: code, Message: message, TypePair: typePair, FieldPath: fieldPath})
}

// HasErrors returns true if there are any error diagnostics.
func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Merge merges another Diagnostics instance into this one.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// IsValid returns true if there are no errors.
func (d *Diagnostics) IsValid() bool {
	return len(d.Errors) == 0
}

// All returns errors, warnings and infos in that order.
func (d *Diagnostics) All() []Diagnostic {
	all := make([]Diagnostic, 0, len(d.Errors)+len(d.Warnings)+len(d.Infos))
	all = append(all, d.Errors...)
	all = append(all, d.Warnings...)

	return append(all, d.Infos...)
}

// ByCode returns every diagnostic carrying code.
func (d *Diagnostics) ByCode(code string) []Diagnostic {
	return common.Filter(d.All(), func(diag Diagnostic) bool { return diag.Code == code })
}

// Error combines all error diagnostics into one error, or nil if valid.
// Each part matches ErrDiagnostic; multierr.Errors splits them again.
func (d *Diagnostics) Error() error {
	var err error

	for _, e := range d.Errors {
		err = multierr.Append(err, fmt.Errorf("%w: %s", ErrDiagnostic, e))
	}

	return err
}

// String returns a formatted diagnostic string.
func (d Diagnostic) String() string {
	var prefix []string
	if d.TypePair != "" {
		prefix = append(prefix, "["+d.TypePair+"]")
	}

	if d.FieldPath != "" {
		prefix = append(prefix, d.FieldPath)
	}

	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}

	if len(d.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(d.Suggestions, ", ") + "?)"
	}

	if len(prefix) > 0 {
		return strings.Join(prefix, " ") + ": " + msg
	}

	return msg
}
