package mapping

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown rule file format")

// LoadFile loads and parses a rule file. Files ending in ".toml" are TOML;
// ".yaml", ".yml" and files without an extension are YAML.
func LoadFile(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		return ParseTOML(data)
	case ".yaml", ".yml", "":
		return Parse(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, ext)
	}
}

// Parse parses YAML data into a MappingFile.
func Parse(data []byte) (*MappingFile, error) {
	var mf MappingFile

	err := yaml.Unmarshal(data, &mf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	applyDefaults(&mf)

	return &mf, nil
}

// ParseTOML parses TOML data into a MappingFile. The document is decoded
// into a generic tree first and then into the schema, so both formats share
// the same field names.
func ParseTOML(data []byte) (*MappingFile, error) {
	var tree map[string]any

	if _, err := toml.Decode(string(data), &tree); err != nil {
		return nil, fmt.Errorf("failed to parse mapping TOML: %w", err)
	}

	var mf MappingFile

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &mf,
		TagName:     "mapstructure",
		ErrorUnused: true,
		DecodeHook:  stringArrayHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("decoder creation failed: %w", err)
	}

	if err := decoder.Decode(tree); err != nil {
		return nil, fmt.Errorf("failed to decode mapping TOML: %w", err)
	}

	applyDefaults(&mf)

	return &mf, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(mf *MappingFile) {
	if mf.Version == "" {
		mf.Version = "1"
	}
}

// Marshal serializes a MappingFile to YAML.
func Marshal(mf *MappingFile) ([]byte, error) {
	return yaml.Marshal(mf)
}

// WriteFile writes a MappingFile to the given path as YAML.
func WriteFile(mf *MappingFile, path string) error {
	data, err := Marshal(mf)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping file %s: %w", path, err)
	}

	return nil
}

// NormalizeTypeMapping expands the 121 shorthand into Fields entries placed
// before the explicit ones, in source-name order.
func NormalizeTypeMapping(tm *TypeMapping) {
	if len(tm.OneToOne) == 0 {
		return
	}

	sources := make([]string, 0, len(tm.OneToOne))
	for source := range tm.OneToOne {
		sources = append(sources, source)
	}

	slices.Sort(sources)

	expanded := make([]FieldMapping, 0, len(sources))
	for _, source := range sources {
		expanded = append(expanded, FieldMapping{
			Source: StringArray{source},
			Target: StringArray{tm.OneToOne[source]},
		})
	}

	tm.Fields = append(expanded, tm.Fields...)
	tm.OneToOne = nil
}

// NormalizeMappingFile normalizes all type mappings in a file.
func NormalizeMappingFile(mf *MappingFile) {
	for i := range mf.TypeMappings {
		NormalizeTypeMapping(&mf.TypeMappings[i])
	}
}
