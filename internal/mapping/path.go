package mapping

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidPath = errors.New("invalid member path")

// ParsePath parses a member path string into a FieldPath.
// Supports: "Field", "Nested.Field", "Items[]", "Items[].ProductID".
func ParsePath(path string) (FieldPath, error) {
	if path == "" {
		return FieldPath{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	var segments []PathSegment

	for part := range strings.SplitSeq(path, ".") {
		if part == "" {
			return FieldPath{}, fmt.Errorf("%w %q: empty segment", ErrInvalidPath, path)
		}

		name, isSlice := strings.CutSuffix(part, "[]")
		if isSlice && name == "" {
			return FieldPath{}, fmt.Errorf("%w %q: element access without member name", ErrInvalidPath, path)
		}

		if !isValidIdent(name) {
			return FieldPath{}, fmt.Errorf("%w %q: invalid identifier %q", ErrInvalidPath, path, name)
		}

		segments = append(segments, PathSegment{Name: name, IsSlice: isSlice})
	}

	return FieldPath{Segments: segments}, nil
}

// ParsePaths parses multiple member paths.
func ParsePaths(paths StringArray) ([]FieldPath, error) {
	result := make([]FieldPath, 0, len(paths))

	for _, p := range paths {
		fp, err := ParsePath(p)
		if err != nil {
			return nil, err
		}

		result = append(result, fp)
	}

	return result, nil
}

// isValidIdent checks if a string is a valid Go identifier.
func isValidIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case unicode.IsLetter(r), r == '_':
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}

	return true
}
