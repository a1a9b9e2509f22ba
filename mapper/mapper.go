package mapper

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"struct-mapper/internal/common"
	"struct-mapper/internal/mapping"
	"struct-mapper/internal/plan"
	"struct-mapper/node"
	"struct-mapper/options"
)

var (
	ErrInvalidTarget = errors.New("invalid mapping target")
	ErrInvalidConfig = errors.New("invalid mapper configuration")
)

// RuleSet is the top-level mode of a mapping.
type RuleSet = plan.RuleSet

const (
	RuleCreateNew = plan.CreateNew
	RuleMerge     = plan.Merge
	RuleOverwrite = plan.Overwrite
)

// Key identifies a cached plan.
type Key struct {
	Source, Target reflect.Type
	RuleSet        RuleSet
}

func (k Key) String() string {
	return node.Pair{Src: k.Source, Dst: k.Target}.String() + " (" + k.RuleSet.String() + ")"
}

// Mapper compiles, caches and executes mapping plans. It is safe for
// concurrent use, including configuration changes.
type Mapper struct {
	mu sync.RWMutex

	base     []options.Option
	overlay  []options.Option // from rule file settings
	settings options.Settings
	logger   *zap.Logger

	rules     *plan.Rules
	types     *mapping.TypeRegistry
	configErr error

	// compiler works on a snapshot of rules; nil after a change
	compiler   *plan.Compiler
	generation uint64
	cache      map[Key]*plan.Plan
	group      singleflight.Group
}

// Default is the package mapper, for callers that need no configuration.
var Default = New()

// New creates a Mapper.
func New(opts ...options.Option) *Mapper {
	m := &Mapper{
		base:   opts,
		rules:  plan.NewRules(),
		types:  mapping.NewTypeRegistry(),
		cache:  make(map[Key]*plan.Plan),
		logger: zap.NewNop(),
	}

	if err := m.rebuildSettings(); err != nil {
		m.configErr = err
	}

	return m
}

func (m *Mapper) rebuildSettings() error {
	settings, err := options.Build(append(append([]options.Option(nil), m.base...), m.overlay...)...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	m.settings = settings
	m.logger = settings.Logger

	return nil
}

// Settings returns the effective settings.
func (m *Mapper) Settings() options.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.settings
}

// update applies a configuration change and discards compiled plans.
func (m *Mapper) update(what string, change func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := change(); err != nil {
		m.configErr = multierr.Append(m.configErr, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, what, err))
	}

	m.resetLocked(what)
}

func (m *Mapper) resetLocked(reason string) {
	m.logger.Debug("configuration changed, dropping cached plans",
		zap.String("reason", reason),
		zap.Int("plans", len(m.cache)),
	)

	m.compiler = nil
	m.generation++
	m.cache = make(map[Key]*plan.Plan)
}

// Err returns the configuration errors recorded so far. Plans cannot be
// compiled while it is non-nil.
func (m *Mapper) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.configErr
}

// Plan returns the plan mapping src to dst under rs, compiling it on first
// use. Concurrent requests for the same plan share one compilation.
func (m *Mapper) Plan(src, dst reflect.Type, rs RuleSet) (*plan.Plan, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: nil type", plan.ErrUnsupported)
	}

	key := Key{Source: src, Target: dst, RuleSet: rs}

	m.mu.RLock()
	p, ok := m.cache[key]
	gen, logger := m.generation, m.logger
	m.mu.RUnlock()

	if ok {
		logger.Debug("plan cache hit", zap.Stringer("key", key))
		return p, nil
	}

	flight := fmt.Sprintf("%d/%p/%p/%d", gen, src, dst, rs)

	v, err, shared := m.group.Do(flight, func() (any, error) {
		return m.compile(key, gen)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Debug("plan compilation shared", zap.Stringer("key", key))
	}

	return v.(*plan.Plan), nil
}

func (m *Mapper) compile(key Key, gen uint64) (*plan.Plan, error) {
	compiler, err := m.currentCompiler()
	if err != nil {
		return nil, err
	}

	p, err := compiler.Compile(key.Source, key.Target, key.RuleSet)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// a configuration change during compilation makes the plan stale
	if m.generation == gen {
		m.cache[key] = p
		m.logger.Debug("plan cached", zap.Stringer("key", key), zap.Int("size", len(m.cache)))
	}

	return p, nil
}

func (m *Mapper) currentCompiler() (*plan.Compiler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configErr != nil {
		return nil, m.configErr
	}

	if m.compiler == nil {
		compiler, err := plan.NewCompiler(m.settings, m.rules.Clone())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		m.compiler = compiler
	}

	return m.compiler, nil
}

// Precompile compiles the plans of a pair ahead of use, under RuleCreateNew when
// no rule set is given.
func (m *Mapper) Precompile(src, dst reflect.Type, rs ...RuleSet) error {
	if len(rs) == 0 {
		rs = []RuleSet{RuleCreateNew}
	}

	var err error

	for _, r := range rs {
		_, perr := m.Plan(src, dst, r)
		err = multierr.Append(err, perr)
	}

	return err
}

// Cached returns the number of cached plans.
func (m *Mapper) Cached() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.cache)
}

// MapInto maps src onto the value dstPtr points to under rs.
func (m *Mapper) MapInto(src, dstPtr any, rs RuleSet) error {
	dv := reflect.ValueOf(dstPtr)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return fmt.Errorf("%w: want a non-nil pointer, got %T", ErrInvalidTarget, dstPtr)
	}

	return m.execute(src, dv.Elem(), rs)
}

func (m *Mapper) execute(src any, dst reflect.Value, rs RuleSet) error {
	sv := reflect.ValueOf(src)
	if !sv.IsValid() {
		// untyped nil maps to the zero target; Merge keeps it
		if rs != RuleMerge {
			dst.Set(reflect.Zero(dst.Type()))
		}

		return nil
	}

	p, err := m.Plan(sv.Type(), dst.Type(), rs)
	if err != nil {
		return err
	}

	if err := p.Execute(sv, dst); err != nil {
		return fmt.Errorf("map %s to %s: %w", common.TypeName(sv.Type()), common.TypeName(dst.Type()), err)
	}

	return nil
}

// Map maps src to a new T.
func Map[T any](m *Mapper, src any) (T, error) {
	var dst T

	err := m.execute(src, reflect.ValueOf(&dst).Elem(), RuleCreateNew)

	return dst, err
}

// Merge maps src onto *dst, filling only its zero members.
func Merge[T any](m *Mapper, src any, dst *T) error {
	if dst == nil {
		return fmt.Errorf("%w: nil %T", ErrInvalidTarget, dst)
	}

	return m.execute(src, reflect.ValueOf(dst).Elem(), RuleMerge)
}

// Overwrite maps src onto *dst, replacing every sourced member.
func Overwrite[T any](m *Mapper, src any, dst *T) error {
	if dst == nil {
		return fmt.Errorf("%w: nil %T", ErrInvalidTarget, dst)
	}

	return m.execute(src, reflect.ValueOf(dst).Elem(), RuleOverwrite)
}

// DeepClone returns a copy of src sharing no references with it.
func DeepClone[T any](m *Mapper, src T) (T, error) {
	var dst T

	p, err := m.Plan(reflect.TypeFor[T](), reflect.TypeFor[T](), RuleCreateNew)
	if err != nil {
		return dst, err
	}

	err = p.Execute(reflect.ValueOf(&src).Elem(), reflect.ValueOf(&dst).Elem())

	return dst, err
}

// Describe renders the plan mapping S to T under rs.
func Describe[S, T any](m *Mapper, rs RuleSet) (string, error) {
	p, err := m.Plan(reflect.TypeFor[S](), reflect.TypeFor[T](), rs)
	if err != nil {
		return "", err
	}

	return p.Describe(), nil
}
