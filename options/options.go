// Package options holds the tunables of a mapper and the functional options
// used to set them.
package options

import (
	"fmt"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"struct-mapper/primitive"
)

// Settings controls plan compilation. Zero fields are replaced by Defaults.
type Settings struct {
	// Categories limits which scalar conversions may be compiled into plans.
	// Zero means all categories.
	Categories primitive.CategoryEnum
	// Strict turns unmapped target members into compilation errors.
	Strict bool
	// IdentityNames are member names tried, in order, as identity keys of
	// collection elements when no identity is configured for the element type.
	IdentityNames []string
	// MaxSuggestions bounds the candidate list attached to unmapped-member
	// diagnostics. Negative disables suggestions.
	MaxSuggestions int
	// Converters are custom scalar converters, see node.ParseCaster for accepted signatures.
	Converters []any
	// Transforms are named functions referenced from configuration.
	Transforms map[string]any
	// Logger receives debug output about compilation and caching.
	Logger *zap.Logger
}

// Option mutates Settings.
type Option func(*Settings)

// Defaults returns the settings used for every zero field.
func Defaults() Settings {
	return Settings{
		Categories:     primitive.CategoryAll,
		IdentityNames:  []string{"ID", "Id", "Key"},
		MaxSuggestions: 3,
	}
}

// Build applies opts in order and fills the remaining zero fields from Defaults.
func Build(opts ...Option) (Settings, error) {
	var s Settings

	for _, opt := range opts {
		opt(&s)
	}

	if err := mergo.Merge(&s, Defaults()); err != nil {
		return Settings{}, fmt.Errorf("failed to merge default settings: %w", err)
	}

	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}

	return s, nil
}

// WithCategories restricts scalar conversions to the given categories.
func WithCategories(categories primitive.CategoryEnum) Option {
	return func(s *Settings) { s.Categories = categories }
}

// WithStrict fails plan compilation when a target member has no data source.
func WithStrict() Option {
	return func(s *Settings) { s.Strict = true }
}

// WithLogger sends compilation and cache debug output to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Settings) { s.Logger = logger }
}

// WithLenient reports unmapped target members as warnings again, undoing an
// earlier WithStrict.
func WithLenient() Option {
	return func(s *Settings) { s.Strict = false }
}

// WithConverter registers a custom converter function. It takes precedence over
// the built-in scalar conversions for its source and target types.
func WithConverter(fn any) Option {
	return func(s *Settings) { s.Converters = append(s.Converters, fn) }
}

// WithTransform registers fn under name for use by configured members and rule files.
func WithTransform(name string, fn any) Option {
	return func(s *Settings) {
		if s.Transforms == nil {
			s.Transforms = make(map[string]any)
		}

		s.Transforms[name] = fn
	}
}

// WithIdentityNames replaces the member names tried as identity keys of
// collection elements.
func WithIdentityNames(names ...string) Option {
	return func(s *Settings) { s.IdentityNames = append([]string(nil), names...) }
}

// WithMaxSuggestions bounds the candidate names attached to unmapped-member
// diagnostics. Zero or less disables suggestions.
func WithMaxSuggestions(n int) Option {
	if n <= 0 {
		n = -1
	}

	return func(s *Settings) { s.MaxSuggestions = n }
}
