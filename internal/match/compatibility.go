package match

import (
	"reflect"

	"struct-mapper/internal/common"
	"struct-mapper/primitive"
)

// TypeCompatibility represents the level of compatibility between two types.
type TypeCompatibility int

const (
	// TypeIncompatible means no plan can move a value between the types.
	TypeIncompatible TypeCompatibility = iota
	// TypeNeedsMapping means a nested plan (struct, collection, pointer) is needed.
	TypeNeedsMapping
	// TypeConvertible means a scalar converter exists for the pair.
	TypeConvertible
	// TypeAssignable means the source value can be assigned as is.
	TypeAssignable
	// TypeIdentical means the types are exactly the same.
	TypeIdentical
)

const (
	VerdictIdentical    = "identical"
	VerdictAssignable   = "assignable"
	VerdictConvertible  = "convertible"
	VerdictNeedsMapping = "needs_mapping"
	VerdictIncompatible = "incompatible"
)

// String returns a human-readable name for the compatibility level.
func (c TypeCompatibility) String() string {
	switch c {
	case TypeIdentical:
		return VerdictIdentical
	case TypeAssignable:
		return VerdictAssignable
	case TypeConvertible:
		return VerdictConvertible
	case TypeNeedsMapping:
		return VerdictNeedsMapping
	case TypeIncompatible:
		return VerdictIncompatible
	default:
		return common.UnknownStr
	}
}

// weight is the share of a combined candidate score owed to type compatibility.
func (c TypeCompatibility) weight() float64 {
	switch c {
	case TypeIdentical:
		return 1.0
	case TypeAssignable:
		return 0.9
	case TypeConvertible:
		return 0.7
	case TypeNeedsMapping:
		return 0.4
	default:
		return 0
	}
}

// TypeCompatibilityResult contains detailed information about type compatibility.
type TypeCompatibilityResult struct {
	Compatibility TypeCompatibility
	Reason        string
	SourceType    string
	TargetType    string
}

// ScoreTypeCompatibility rates how a value of type source can reach target.
// Scalar conversions are checked against the allowed primitive categories.
func ScoreTypeCompatibility(source, target reflect.Type, allowed primitive.CategoryEnum) TypeCompatibilityResult {
	res := TypeCompatibilityResult{
		SourceType: common.TypeName(source),
		TargetType: common.TypeName(target),
	}

	switch {
	case source == target:
		res.Compatibility, res.Reason = TypeIdentical, "types are identical"
	case source.AssignableTo(target):
		res.Compatibility, res.Reason = TypeAssignable, "source is assignable to target"
	case scalarConvertible(source, target, allowed):
		res.Compatibility, res.Reason = TypeConvertible, "scalar conversion available"
	case needsMapping(source, target, allowed):
		res.Compatibility, res.Reason = TypeNeedsMapping, "types need a nested mapping"
	default:
		res.Compatibility, res.Reason = TypeIncompatible, "types are not compatible"
	}

	return res
}

func scalarConvertible(source, target reflect.Type, allowed primitive.CategoryEnum) bool {
	if !primitive.IsScalar(source) || !primitive.IsScalar(target) {
		return false
	}

	if source.Kind() == reflect.Ptr || target.Kind() == reflect.Ptr {
		return false
	}

	_, _, ok := primitive.Converter(source, target, allowed)

	return ok
}

func needsMapping(source, target reflect.Type, allowed primitive.CategoryEnum) bool {
	if source.Kind() == reflect.Ptr {
		return ScoreTypeCompatibility(source.Elem(), target, allowed).Compatibility > TypeIncompatible
	}

	if target.Kind() == reflect.Ptr {
		return ScoreTypeCompatibility(source, target.Elem(), allowed).Compatibility > TypeIncompatible
	}

	switch target.Kind() {
	case reflect.Interface:
		return source.Kind() == reflect.Interface || source.Implements(target)
	case reflect.Slice, reflect.Array:
		if source.Kind() != reflect.Slice && source.Kind() != reflect.Array {
			return false
		}

		return ScoreTypeCompatibility(source.Elem(), target.Elem(), allowed).Compatibility > TypeIncompatible
	case reflect.Map:
		switch source.Kind() {
		case reflect.Map:
			return ScoreTypeCompatibility(source.Elem(), target.Elem(), allowed).Compatibility > TypeIncompatible
		case reflect.Struct:
			return target.Key().Kind() == reflect.String
		default:
			return false
		}
	case reflect.Struct:
		return source.Kind() == reflect.Struct || source.Kind() == reflect.Interface ||
			(source.Kind() == reflect.Map && source.Key().Kind() == reflect.String)
	default:
		return false
	}
}
