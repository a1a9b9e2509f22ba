package primitive

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrOverflow       = errors.New("value overflows target type")
	ErrNotWhole       = errors.New("fractional value cannot be stored in an integer")
	ErrInvalidBool    = errors.New("value is not a recognizable boolean")
	ErrInvalidEnum    = errors.New("value is not valid for enum type")
	ErrNotConvertible = errors.New("conversion is not supported")
)

// Func converts a scalar source value into a value of the target type the
// converter was built for.
type Func func(src reflect.Value) (reflect.Value, error)

type valueConverter func(src reflect.Value, dst reflect.Type) (reflect.Value, error)

var converters map[ConversionPair]valueConverter

var (
	stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
	validType    = reflect.TypeOf((*interface{ IsValid() bool })(nil)).Elem()
	unmarshaler  = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Converter returns a function converting values of src into dst, restricted to
// the allowed categories. The second result names the category that matched.
// Pointer types are not accepted; callers unwrap them first.
func Converter(src, dst reflect.Type, allowed CategoryEnum) (Func, CategoryEnum, bool) {
	srcKind := FromReflectType(src)
	dstKind := FromReflectType(dst)

	if srcKind == 0 || dstKind == 0 {
		return nil, CategoryNone, false
	}

	if srcKind == KindPrimitiveEnum || dstKind == KindPrimitiveEnum {
		return enumConverter(src, dst, srcKind, dstKind, allowed)
	}

	pair := ConversionPair{srcKind, dstKind}

	category, ok := CategoryOf(pair, allowed)
	if !ok {
		return nil, CategoryNone, false
	}

	conv, ok := converters[pair]
	if !ok {
		return nil, CategoryNone, false
	}

	return bind(conv, dst), category, true
}

func bind(conv valueConverter, dst reflect.Type) Func {
	return func(src reflect.Value) (reflect.Value, error) {
		res, err := conv(src, dst)
		if err != nil {
			return reflect.Value{}, err
		}

		if res.Type() != dst {
			res = res.Convert(dst)
		}

		return res, nil
	}
}

// enumConverter handles named scalar types. Named types over the same basic
// kind convert directly; string forms go through String/IsValid/UnmarshalText.
func enumConverter(src, dst reflect.Type, srcKind, dstKind KindEnum, allowed CategoryEnum) (Func, CategoryEnum, bool) {
	srcBase, dstBase := BaseKind(src), BaseKind(dst)

	if srcBase != 0 && srcBase == dstBase {
		category := CategorySafeNumber
		if srcBase == KindString || srcBase == KindBool {
			category = CategoryEnumString
		}

		if allowed&category == 0 {
			return nil, CategoryNone, false
		}

		return bind(func(v reflect.Value, t reflect.Type) (reflect.Value, error) {
			return checkValid(v.Convert(t))
		}, dst), category, true
	}

	textual := srcKind == KindString || dstKind == KindString ||
		(srcKind == KindPrimitiveEnum && dstKind == KindPrimitiveEnum && srcBase != dstBase)

	if textual && allowed&CategoryEnumString != 0 {
		if _, ok := CategoryOf(ConversionPair{srcKind, dstKind}, CategoryEnumString); ok {
			return bind(func(v reflect.Value, t reflect.Type) (reflect.Value, error) {
				return fromText(enumText(v), t)
			}, dst), CategoryEnumString, true
		}
	}

	// enum backed by a basic kind behaves like that kind for everything else
	if srcKind == KindPrimitiveEnum {
		srcKind = srcBase
	}

	if dstKind == KindPrimitiveEnum {
		dstKind = dstBase
	}

	if srcKind == 0 || dstKind == 0 {
		return nil, CategoryNone, false
	}

	pair := ConversionPair{srcKind, dstKind}

	category, ok := CategoryOf(pair, allowed)
	if !ok {
		return nil, CategoryNone, false
	}

	conv, ok := converters[pair]
	if !ok {
		return nil, CategoryNone, false
	}

	return bind(func(v reflect.Value, t reflect.Type) (reflect.Value, error) {
		res, err := conv(v, t)
		if err != nil {
			return reflect.Value{}, err
		}

		return checkValid(res.Convert(t))
	}, dst), category, true
}

// enumText renders an enum value using String() when available.
func enumText(v reflect.Value) string {
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String()
	}

	if v.Kind() == reflect.String {
		return v.String()
	}

	return fmt.Sprint(v.Interface())
}

// fromText parses text into dst, which is a string kind or an enum.
func fromText(text string, dst reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(dst).Implements(unmarshaler) {
		ptr := reflect.New(dst)

		err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %w", ErrInvalidEnum, err)
		}

		return checkValid(ptr.Elem())
	}

	base := BaseKind(dst)
	if base == KindString {
		return checkValid(reflect.ValueOf(text).Convert(dst))
	}

	conv, ok := converters[ConversionPair{KindString, base}]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: string to %s", ErrNotConvertible, dst)
	}

	res, err := conv(reflect.ValueOf(text), dst)
	if err != nil {
		return reflect.Value{}, err
	}

	return checkValid(res.Convert(dst))
}

func checkValid(v reflect.Value) (reflect.Value, error) {
	if v.Type().Implements(validType) && !v.Interface().(interface{ IsValid() bool }).IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %v is not a valid %s", ErrInvalidEnum, v.Interface(), v.Type())
	}

	return v, nil
}

func init() {
	converters = map[ConversionPair]valueConverter{}

	// CategorySafeNumber
	// CategoryUnsafeNumber
	for fromKind := KindEnum(0); int(fromKind) < KindTotal; fromKind++ {
		if !fromKind.IsNumber() {
			continue
		}

		for toKind := KindEnum(0); int(toKind) < KindTotal; toKind++ {
			if !toKind.IsNumber() {
				continue
			}

			converters[ConversionPair{fromKind, toKind}] = convertNumber
		}
	}

	// CategoryTextNumber
	for numberKind := KindEnum(0); int(numberKind) < KindTotal; numberKind++ {
		if !numberKind.IsNumber() {
			continue
		}

		converters[ConversionPair{numberKind, KindString}] = formatNumber
		converters[ConversionPair{KindString, numberKind}] = parseNumber
	}

	// CategoryNumericBool
	for kind := KindEnum(0); int(kind) < KindTotal; kind++ {
		if !kind.IsInteger() {
			continue
		}

		converters[ConversionPair{kind, KindBool}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
			n, err := asInt64(v)
			if err != nil {
				return reflect.Value{}, err
			}

			switch n {
			case 0:
				return reflect.ValueOf(false), nil
			case 1:
				return reflect.ValueOf(true), nil
			default:
				return reflect.Value{}, fmt.Errorf("%w: only numbers 0 and 1 are allowed, got %d", ErrInvalidBool, n)
			}
		}
		converters[ConversionPair{KindBool, kind}] = func(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
			res := reflect.New(dst).Elem()
			if v.Bool() {
				setNumber(res, 1)
			}

			return res, nil
		}
	}

	// CategoryTextualBool
	converters[ConversionPair{KindString, KindBool}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		switch strings.ToLower(strings.TrimSpace(v.String())) {
		case "true", "yes", "on", "1":
			return reflect.ValueOf(true), nil
		case "false", "no", "off", "0":
			return reflect.ValueOf(false), nil
		default:
			return reflect.Value{}, fmt.Errorf("%w: %q", ErrInvalidBool, v.String())
		}
	}
	converters[ConversionPair{KindBool, KindString}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(strconv.FormatBool(v.Bool())), nil
	}

	// CategoryDatetime
	converters[ConversionPair{KindString, KindTime}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		t, err := time.Parse(time.RFC3339Nano, v.String())
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(t), nil
	}
	converters[ConversionPair{KindTime, KindString}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(v.Interface().(time.Time).Format(time.RFC3339Nano)), nil
	}

	// CategoryTimestamp
	for kind := KindEnum(0); int(kind) < KindTotal; kind++ {
		if !kind.IsInteger() {
			continue
		}

		converters[ConversionPair{kind, KindTime}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
			n, err := asInt64(v)
			if err != nil {
				return reflect.Value{}, err
			}

			return reflect.ValueOf(time.Unix(n, 0).UTC()), nil
		}
		converters[ConversionPair{KindTime, kind}] = func(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
			return convertNumber(reflect.ValueOf(v.Interface().(time.Time).Unix()), dst)
		}
	}

	// CategoryDuration
	converters[ConversionPair{KindString, KindDuration}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		d, err := time.ParseDuration(v.String())
		if err != nil {
			return reflect.Value{}, err
		}

		return reflect.ValueOf(d), nil
	}
	converters[ConversionPair{KindDuration, KindString}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(time.Duration(v.Int()).String()), nil
	}

	// CategoryNanoseconds
	for kind := KindEnum(0); int(kind) < KindTotal; kind++ {
		if !kind.IsInteger() {
			continue
		}

		converters[ConversionPair{kind, KindDuration}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
			n, err := asInt64(v)
			if err != nil {
				return reflect.Value{}, err
			}

			return reflect.ValueOf(time.Duration(n)), nil
		}
		converters[ConversionPair{KindDuration, kind}] = func(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
			return convertNumber(reflect.ValueOf(v.Int()), dst)
		}
	}

	// CategorySeconds
	for _, kind := range []KindEnum{KindFloat32, KindFloat64} {
		converters[ConversionPair{kind, KindDuration}] = func(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
			seconds := v.Float() * float64(time.Second)
			if seconds > math.MaxInt64 || seconds < math.MinInt64 {
				return reflect.Value{}, ErrOverflow
			}

			return reflect.ValueOf(time.Duration(seconds)), nil
		}
		converters[ConversionPair{KindDuration, kind}] = func(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
			return reflect.ValueOf(time.Duration(v.Int()).Seconds()).Convert(dst), nil
		}
	}
}

// convertNumber converts between numeric kinds, failing on overflow and on
// fractional floats stored into integers.
func convertNumber(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	res := reflect.New(dst).Elem()

	switch {
	case v.CanInt():
		n := v.Int()

		switch {
		case res.CanInt():
			if res.OverflowInt(n) {
				return reflect.Value{}, fmt.Errorf("%w: %d into %s", ErrOverflow, n, dst)
			}

			res.SetInt(n)
		case res.CanUint():
			if n < 0 || res.OverflowUint(uint64(n)) {
				return reflect.Value{}, fmt.Errorf("%w: %d into %s", ErrOverflow, n, dst)
			}

			res.SetUint(uint64(n))
		default:
			res.SetFloat(float64(n))
		}
	case v.CanUint():
		n := v.Uint()

		switch {
		case res.CanInt():
			if n > math.MaxInt64 || res.OverflowInt(int64(n)) {
				return reflect.Value{}, fmt.Errorf("%w: %d into %s", ErrOverflow, n, dst)
			}

			res.SetInt(int64(n))
		case res.CanUint():
			if res.OverflowUint(n) {
				return reflect.Value{}, fmt.Errorf("%w: %d into %s", ErrOverflow, n, dst)
			}

			res.SetUint(n)
		default:
			res.SetFloat(float64(n))
		}
	case v.CanFloat():
		f := v.Float()

		switch {
		case res.CanFloat():
			if res.OverflowFloat(f) {
				return reflect.Value{}, fmt.Errorf("%w: %g into %s", ErrOverflow, f, dst)
			}

			res.SetFloat(f)
		case f != math.Trunc(f):
			return reflect.Value{}, fmt.Errorf("%w: %g", ErrNotWhole, f)
		case res.CanInt():
			if f > math.MaxInt64 || f < math.MinInt64 || res.OverflowInt(int64(f)) {
				return reflect.Value{}, fmt.Errorf("%w: %g into %s", ErrOverflow, f, dst)
			}

			res.SetInt(int64(f))
		default:
			if f < 0 || f > math.MaxUint64 || res.OverflowUint(uint64(f)) {
				return reflect.Value{}, fmt.Errorf("%w: %g into %s", ErrOverflow, f, dst)
			}

			res.SetUint(uint64(f))
		}
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s to %s", ErrNotConvertible, v.Type(), dst)
	}

	return res, nil
}

func formatNumber(v reflect.Value, _ reflect.Type) (reflect.Value, error) {
	switch {
	case v.CanInt():
		return reflect.ValueOf(strconv.FormatInt(v.Int(), 10)), nil
	case v.CanUint():
		return reflect.ValueOf(strconv.FormatUint(v.Uint(), 10)), nil
	default:
		return reflect.ValueOf(strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits())), nil
	}
}

func parseNumber(v reflect.Value, dst reflect.Type) (reflect.Value, error) {
	text := strings.TrimSpace(v.String())
	res := reflect.New(dst).Elem()

	switch {
	case res.CanInt():
		n, err := strconv.ParseInt(text, 10, dst.Bits())
		if err != nil {
			return reflect.Value{}, err
		}

		res.SetInt(n)
	case res.CanUint():
		n, err := strconv.ParseUint(text, 10, dst.Bits())
		if err != nil {
			return reflect.Value{}, err
		}

		res.SetUint(n)
	case res.CanFloat():
		f, err := strconv.ParseFloat(text, dst.Bits())
		if err != nil {
			return reflect.Value{}, err
		}

		res.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("%w: string to %s", ErrNotConvertible, dst)
	}

	return res, nil
}

func asInt64(v reflect.Value) (int64, error) {
	if v.CanInt() {
		return v.Int(), nil
	}

	n := v.Uint()
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d", ErrOverflow, n)
	}

	return int64(n), nil
}

func setNumber(v reflect.Value, n int64) {
	switch {
	case v.CanInt():
		v.SetInt(n)
	case v.CanUint():
		v.SetUint(uint64(n))
	case v.CanFloat():
		v.SetFloat(float64(n))
	}
}
