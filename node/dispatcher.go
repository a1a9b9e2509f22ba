package node

import (
	"reflect"

	"struct-mapper/primitive"
)

// Dispatch classifies a source/target type pair by the shape of the mapping
// it needs. Pointers on either side are reported before anything else so
// callers can unwrap them one level at a time.
func Dispatch(src, dst reflect.Type) DispatcherEnum {
	if src.Kind() == reflect.Ptr || dst.Kind() == reflect.Ptr {
		return DispatcherPointer
	}

	if dst.Kind() == reflect.Interface || src.Kind() == reflect.Interface {
		return DispatcherInterface
	}

	if primitive.FromReflectType(dst) != 0 {
		if primitive.FromReflectType(src) != 0 {
			return DispatcherPrimitive
		}

		return DispatcherUnknown
	}

	switch dst.Kind() {
	case reflect.Slice, reflect.Array:
		if src.Kind() == reflect.Slice || src.Kind() == reflect.Array {
			return DispatcherSlice
		}
	case reflect.Map:
		switch src.Kind() {
		case reflect.Map:
			return DispatcherMap
		case reflect.Struct:
			if dst.Key().Kind() == reflect.String {
				return DispatcherStructToMap
			}
		}
	case reflect.Struct:
		switch src.Kind() {
		case reflect.Struct:
			if primitive.FromReflectType(src) == 0 {
				return DispatcherStruct
			}
		case reflect.Map:
			if src.Key().Kind() == reflect.String {
				return DispatcherMapToStruct
			}
		}
	}

	return DispatcherUnknown
}
