package mapping

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"struct-mapper/internal/common"
)

// StringArray is a string slice that can be written as a single string or
// as a list: both "Name" and ["First", "Second"] are accepted.
type StringArray []string

// UnmarshalYAML implements custom YAML unmarshaling for StringArray.
func (s *StringArray) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var str string

		if err := node.Decode(&str); err != nil {
			return err
		}

		if str != "" {
			*s = StringArray{str}
		} else {
			*s = StringArray{}
		}

		return nil

	case yaml.SequenceNode:
		var arr []string

		if err := node.Decode(&arr); err != nil {
			return err
		}

		*s = arr

		return nil

	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// MarshalYAML outputs a single string if length is 1, otherwise a list.
func (s StringArray) MarshalYAML() (any, error) {
	if s.IsSingle() {
		return s[0], nil
	}

	return []string(s), nil
}

// First returns the first element or empty string if empty.
func (s StringArray) First() string {
	if v, ok := common.First(s); ok {
		return v
	}

	return ""
}

// IsEmpty returns true if the array is empty.
func (s StringArray) IsEmpty() bool {
	return common.IsEmpty(s)
}

// IsSingle returns true if the array has exactly one element.
func (s StringArray) IsSingle() bool {
	return common.IsSingle(s)
}

// IsMultiple returns true if the array has more than one element.
func (s StringArray) IsMultiple() bool {
	return common.IsMultiple(s)
}

// Contains returns true if the array contains the given string.
func (s StringArray) Contains(str string) bool {
	return slices.Contains(s, str)
}

// stringArrayHookFunc lifts a single string into a StringArray when decoding
// TOML trees.
func stringArrayHookFunc() mapstructure.DecodeHookFunc {
	target := reflect.TypeFor[StringArray]()

	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != target || f.Kind() != reflect.String {
			return data, nil
		}

		if str := data.(string); str != "" {
			return StringArray{str}, nil
		}

		return StringArray{}, nil
	}
}
