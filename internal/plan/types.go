package plan

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"struct-mapper/internal/common"
	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	nodepkg "struct-mapper/node"
)

var (
	ErrUnsupported    = errors.New("unsupported type pair")
	ErrNoDerivedPair  = errors.New("no derived pair for dynamic type")
	ErrInvalidSource  = errors.New("invalid mapping source")
	ErrInvalidTarget  = errors.New("invalid mapping target")
	ErrCompileFailed  = errors.New("plan compilation failed")
	ErrInvalidRuleSet = errors.New("invalid rule set")
)

// RuleSet is the top-level mapping mode of a plan.
type RuleSet int

const (
	// CreateNew builds new targets.
	CreateNew RuleSet = iota
	// Merge maps onto an existing target, filling only zero members.
	Merge
	// Overwrite maps onto an existing target, replacing every sourced member.
	Overwrite
)

// String returns a human-readable rule set name.
func (rs RuleSet) String() string {
	switch rs {
	case CreateNew:
		return "create_new"
	case Merge:
		return "merge"
	case Overwrite:
		return "overwrite"
	default:
		return common.UnknownStr
	}
}

// ParseRuleSet parses the names returned by RuleSet.String.
func ParseRuleSet(name string) (RuleSet, error) {
	for _, rs := range []RuleSet{CreateNew, Merge, Overwrite} {
		if strings.EqualFold(rs.String(), name) {
			return rs, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidRuleSet, name)
}

// Strategy describes how a value of the source type becomes a value of the
// target type.
type Strategy int

const (
	// StrategyDirectAssign - assignment (identical or assignable scalar types).
	StrategyDirectAssign Strategy = iota
	// StrategyConvert - built-in scalar conversion.
	StrategyConvert
	// StrategyCustomConvert - registered converter function.
	StrategyCustomConvert
	// StrategyPointerDeref - dereference source pointer with nil check.
	StrategyPointerDeref
	// StrategyPointerWrap - allocate target pointer.
	StrategyPointerWrap
	// StrategySliceMap - map over slice or array elements.
	StrategySliceMap
	// StrategyMapMap - map over map entries.
	StrategyMapMap
	// StrategyStructToMap - struct members into a string-keyed map.
	StrategyStructToMap
	// StrategyMapToStruct - string-keyed map entries into struct members.
	StrategyMapToStruct
	// StrategyNested - inlined struct mapping.
	StrategyNested
	// StrategySubmapping - call of a named submapping.
	StrategySubmapping
	// StrategyDerived - dispatch on the dynamic type of the source.
	StrategyDerived
	// StrategyTransform - call of a configured function.
	StrategyTransform
	// StrategyConstant - configured constant.
	StrategyConstant
	// StrategyIgnore - explicitly ignored member.
	StrategyIgnore
)

// String returns a human-readable strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyDirectAssign:
		return "direct_assign"
	case StrategyConvert:
		return "convert"
	case StrategyCustomConvert:
		return "custom_convert"
	case StrategyPointerDeref:
		return "pointer_deref"
	case StrategyPointerWrap:
		return "pointer_wrap"
	case StrategySliceMap:
		return "slice_map"
	case StrategyMapMap:
		return "map_map"
	case StrategyStructToMap:
		return "struct_to_map"
	case StrategyMapToStruct:
		return "map_to_struct"
	case StrategyNested:
		return "nested"
	case StrategySubmapping:
		return "submapping"
	case StrategyDerived:
		return "derived"
	case StrategyTransform:
		return "transform"
	case StrategyConstant:
		return "constant"
	case StrategyIgnore:
		return "ignore"
	default:
		return common.UnknownStr
	}
}

// PairRules is the configuration of one source/target type pair.
type PairRules struct {
	// Members holds configured data sources by target member name.
	Members map[string][]datasource.Configured
	// Ignore lists target member names that are never mapped.
	Ignore map[string]struct{}
}

// Rules is the complete mapping configuration a Compiler works from.
type Rules struct {
	Pairs map[nodepkg.Pair]*PairRules
	// Factories are registered constructors by constructed type.
	Factories map[reflect.Type][]creation.Factory
	// Identities names the identity member of collection element types.
	Identities map[reflect.Type]string
	// Derived lists concrete pairs used for sources of interface type and for
	// interface targets, in registration order.
	Derived []nodepkg.Pair
}

// NewRules returns empty rules.
func NewRules() *Rules {
	return &Rules{
		Pairs:      make(map[nodepkg.Pair]*PairRules),
		Factories:  make(map[reflect.Type][]creation.Factory),
		Identities: make(map[reflect.Type]string),
	}
}

// Pair returns the rules of a type pair, creating them on first use.
func (r *Rules) Pair(src, dst reflect.Type) *PairRules {
	key := nodepkg.Pair{Src: src, Dst: dst}

	pr, ok := r.Pairs[key]
	if !ok {
		pr = &PairRules{
			Members: make(map[string][]datasource.Configured),
			Ignore:  make(map[string]struct{}),
		}
		r.Pairs[key] = pr
	}

	return pr
}

// Clone returns a copy of r that shares no maps or slices with it.
func (r *Rules) Clone() *Rules {
	res := NewRules()

	for key, pr := range r.Pairs {
		cp := &PairRules{
			Members: make(map[string][]datasource.Configured, len(pr.Members)),
			Ignore:  maps.Clone(pr.Ignore),
		}

		for name, cfg := range pr.Members {
			cp.Members[name] = slices.Clone(cfg)
		}

		res.Pairs[key] = cp
	}

	for t, fs := range r.Factories {
		res.Factories[t] = slices.Clone(fs)
	}

	maps.Copy(res.Identities, r.Identities)
	res.Derived = slices.Clone(r.Derived)

	return res
}

// AddDerived registers a derived pair once.
func (r *Rules) AddDerived(src, dst reflect.Type) {
	pair := nodepkg.Pair{Src: src, Dst: dst}
	for _, p := range r.Derived {
		if p == pair {
			return
		}
	}

	r.Derived = append(r.Derived, pair)
}

func (r *Rules) pair(src, dst reflect.Type) *PairRules {
	if r == nil {
		return nil
	}

	return r.Pairs[nodepkg.Pair{Src: src, Dst: dst}]
}

// derivedFor returns the derived pairs whose source is t.
func (r *Rules) derivedFor(t reflect.Type) []nodepkg.Pair {
	if r == nil {
		return nil
	}

	var res []nodepkg.Pair

	for _, p := range r.Derived {
		if p.Src == t {
			res = append(res, p)
		}
	}

	return res
}

func (r *Rules) identity(t reflect.Type) (string, bool) {
	if r == nil {
		return "", false
	}

	name, ok := r.Identities[t]

	return name, ok
}

func (r *Rules) factories(t reflect.Type) []creation.Factory {
	if r == nil {
		return nil
	}

	return r.Factories[t]
}

// MemberError locates a run-time mapping failure.
type MemberError struct {
	Path string
	Err  error
}

func (e *MemberError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

// wrapErr attaches path to err unless a deeper member already did.
func wrapErr(path string, err error) error {
	if err == nil {
		return nil
	}

	var me *MemberError
	if errors.As(err, &me) {
		return err
	}

	return &MemberError{Path: path, Err: err}
}
