package mapping

import (
	"strings"

	"struct-mapper/internal/common"
)

// MappingFile represents the root of a mapping rule file.
type MappingFile struct {
	// Version of the mapping schema (for future compatibility).
	Version string `yaml:"version,omitempty" mapstructure:"version"`

	// Settings overlay the mapper options for plans compiled under this file.
	Settings *SettingsDef `yaml:"settings,omitempty" mapstructure:"settings"`

	// TypeMappings is a list of type pair mappings.
	TypeMappings []TypeMapping `yaml:"mappings" mapstructure:"mappings"`

	// Transforms declares the named functions the mappings reference. The
	// functions themselves are registered in code under the same names.
	Transforms []TransformDef `yaml:"transforms,omitempty" mapstructure:"transforms"`
}

// SettingsDef is the file form of the mapper options.
// Unset fields keep the value given by the options.
type SettingsDef struct {
	Strict         *bool    `yaml:"strict,omitempty" mapstructure:"strict"`
	Categories     []string `yaml:"categories,omitempty" mapstructure:"categories"`
	IdentityNames  []string `yaml:"identity_names,omitempty" mapstructure:"identity_names"`
	MaxSuggestions *int     `yaml:"max_suggestions,omitempty" mapstructure:"max_suggestions"`
}

// TypeMapping defines how to map one source type to one target type.
type TypeMapping struct {
	// Source type identifier (e.g., "store.Order" or full path).
	Source string `yaml:"source" mapstructure:"source"`

	// Target type identifier (e.g., "warehouse.Order" or full path).
	Target string `yaml:"target" mapstructure:"target"`

	// OneToOne is a simplified mapping syntax where keys are source members
	// and values are target members. Priority: highest.
	// Example: { "OrderID": "ID", "CustomerName": "Customer" }
	OneToOne map[string]string `yaml:"121,omitempty" mapstructure:"121"`

	// Fields defines explicit member mappings with full control.
	// Supports 1:1, 1:many, many:1, and many:many with transforms.
	Fields []FieldMapping `yaml:"fields,omitempty" mapstructure:"fields"`

	// Ignore lists target members that are never mapped.
	Ignore []string `yaml:"ignore,omitempty" mapstructure:"ignore"`

	// Identify names the identity member of both types when they are
	// collection elements.
	Identify string `yaml:"identify,omitempty" mapstructure:"identify"`

	// Derived lists concrete type pairs used for members of interface type.
	Derived []DerivedDef `yaml:"derived,omitempty" mapstructure:"derived"`

	// Create names a factory building the target from sourced parameters.
	Create *CreateDef `yaml:"create,omitempty" mapstructure:"create"`

	// Auto contains best-effort matches written back by tools.
	// Fields here are overridden by 121, fields, or ignore.
	Auto []FieldMapping `yaml:"auto,omitempty" mapstructure:"auto"`
}

// String returns "source -> target".
func (tm *TypeMapping) String() string {
	return tm.Source + " -> " + tm.Target
}

// FieldMapping defines how target member(s) are populated from source member(s).
type FieldMapping struct {
	// Source is the source member path(s).
	// If empty, the member is set from Default or from Transform applied to
	// the whole source value.
	Source StringArray `yaml:"source,omitempty" mapstructure:"source"`

	// Target is the target member name(s).
	Target StringArray `yaml:"target" mapstructure:"target"`

	// Default is a literal assigned instead of a source value. It is
	// converted to the member type with the text conversions.
	Default *string `yaml:"default,omitempty" mapstructure:"default"`

	// Transform is the name of a registered function applied to the sources.
	// Required for many:1 mappings.
	Transform string `yaml:"transform,omitempty" mapstructure:"transform"`
}

// DerivedDef is a concrete source/target type pair.
type DerivedDef struct {
	Source string `yaml:"source" mapstructure:"source"`
	Target string `yaml:"target" mapstructure:"target"`
}

// CreateDef names a registered factory function and its parameter names.
type CreateDef struct {
	Func   string   `yaml:"func" mapstructure:"func"`
	Params []string `yaml:"params,omitempty" mapstructure:"params"`
}

// Cardinality represents the mapping cardinality.
type Cardinality int

const (
	CardinalityOneToOne   Cardinality = iota // 1:1 - single source to single target
	CardinalityOneToMany                     // 1:N - single source to multiple targets
	CardinalityManyToOne                     // N:1 - multiple sources to single target
	CardinalityManyToMany                    // N:M - multiple sources to multiple targets
)

// String returns a human-readable representation of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case CardinalityOneToOne:
		return "1:1"
	case CardinalityOneToMany:
		return "1:N"
	case CardinalityManyToOne:
		return "N:1"
	case CardinalityManyToMany:
		return "N:M"
	default:
		return common.UnknownStr
	}
}

// GetCardinality returns the cardinality of this field mapping.
func (fm *FieldMapping) GetCardinality() Cardinality {
	switch {
	case !fm.Source.IsMultiple() && !fm.Target.IsMultiple():
		return CardinalityOneToOne
	case !fm.Source.IsMultiple():
		return CardinalityOneToMany
	case !fm.Target.IsMultiple():
		return CardinalityManyToOne
	default:
		return CardinalityManyToMany
	}
}

// NeedsTransform returns true if this mapping requires a transform function.
func (fm *FieldMapping) NeedsTransform() bool {
	card := fm.GetCardinality()
	return card == CardinalityManyToOne || card == CardinalityManyToMany
}

// TransformDef declares a named transform and the types it works on.
type TransformDef struct {
	// Name is the transform identifier used in field mappings.
	Name string `yaml:"name" mapstructure:"name"`

	// SourceType is the expected type of the first argument, if checked.
	SourceType string `yaml:"source_type,omitempty" mapstructure:"source_type"`

	// TargetType is the expected result type, if checked.
	TargetType string `yaml:"target_type,omitempty" mapstructure:"target_type"`

	// Description is an optional human-readable description.
	Description string `yaml:"description,omitempty" mapstructure:"description"`
}

// MappingPriority represents the priority level of a mapping rule.
type MappingPriority int

const (
	PriorityAuto     MappingPriority = iota // Lowest: auto-matched by best-effort
	PriorityIgnore                          // explicitly ignored
	PriorityFields                          // explicit field mappings
	PriorityOneToOne                        // Highest: 121 shorthand mappings
)

// String returns a human-readable representation of the priority.
func (p MappingPriority) String() string {
	switch p {
	case PriorityOneToOne:
		return "121"
	case PriorityFields:
		return "fields"
	case PriorityIgnore:
		return "ignore"
	case PriorityAuto:
		return "auto"
	default:
		return common.UnknownStr
	}
}

// PathSegment represents a parsed segment of a member path.
type PathSegment struct {
	// Name is the member name.
	Name string

	// IsSlice indicates this segment addresses elements (e.g., "Items[]").
	IsSlice bool
}

// FieldPath represents a parsed member path like "Customer.Address.City".
type FieldPath struct {
	Segments []PathSegment
}

// String returns the path as a string.
func (p FieldPath) String() string {
	var sb strings.Builder

	for i, seg := range p.Segments {
		if i > 0 {
			sb.WriteString(".")
		}

		sb.WriteString(seg.Name)

		if seg.IsSlice {
			sb.WriteString("[]")
		}
	}

	return sb.String()
}

// IsSimple returns true if this is a simple single-member path.
func (p FieldPath) IsSimple() bool {
	return len(p.Segments) == 1 && !p.Segments[0].IsSlice
}

// Root returns the first segment's member name.
func (p FieldPath) Root() string {
	if len(p.Segments) == 0 {
		return ""
	}

	return p.Segments[0].Name
}

// HasElements reports whether any segment addresses collection elements.
func (p FieldPath) HasElements() bool {
	for _, seg := range p.Segments {
		if seg.IsSlice {
			return true
		}
	}

	return false
}
