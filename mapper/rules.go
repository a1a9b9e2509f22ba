package mapper

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"struct-mapper/internal/mapping"
)

// RegisterTypes makes types known to rule files. Values may be instances,
// nil pointers such as (*store.Order)(nil), or reflect.Type values.
func (m *Mapper) RegisterTypes(values ...any) error {
	types := make([]reflect.Type, 0, len(values))

	for _, v := range values {
		if t, ok := v.(reflect.Type); ok {
			types = append(types, t)
			continue
		}

		types = append(types, reflect.TypeOf(v))
	}

	return m.types.Register(types...)
}

// TypeNames returns the short names of the registered types.
func (m *Mapper) TypeNames() []string {
	return m.types.Names()
}

// LoadRules loads a YAML or TOML rule file and applies it.
func (m *Mapper) LoadRules(path string) error {
	mf, err := mapping.LoadFile(path)
	if err != nil {
		return err
	}

	if err := m.ApplyRules(mf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

// ApplyRules validates a parsed rule file against the registered types and
// transforms, then adds its mappings and settings. A file with errors
// changes nothing.
func (m *Mapper) ApplyRules(mf *mapping.MappingFile) error {
	if mf == nil {
		return fmt.Errorf("%w: nil rule file", ErrInvalidConfig)
	}

	fileOpts, err := mf.Settings.Options()
	if err != nil {
		return fmt.Errorf("%w: settings: %w", ErrInvalidConfig, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	transforms, err := mapping.NewTransformRegistry(m.settings.Transforms)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	rules := m.rules.Clone()
	if err := mapping.Apply(mf, m.types, transforms, rules); err != nil {
		return err
	}

	m.rules = rules
	m.overlay = append(m.overlay, fileOpts...)

	if err := m.rebuildSettings(); err != nil {
		m.configErr = multierr.Append(m.configErr, err)
	}

	m.logger.Debug("rule file applied",
		zap.Int("mappings", len(mf.TypeMappings)),
		zap.Int("settings", len(fileOpts)),
	)

	m.resetLocked("rule file")

	return nil
}
