// Package mapper maps values of one type onto values of another.
//
// A Mapper compiles one plan per source type, target type and rule set the
// first time the combination is used, and reuses it afterwards:
//
//	m := mapper.New(options.WithLogger(logger))
//	dto, err := mapper.Map[*warehouse.Customer](m, customer)
//
// Rule sets:
//   - RuleCreateNew builds new targets (Map, DeepClone)
//   - RuleMerge fills the zero members of an existing target (Merge)
//   - RuleOverwrite replaces the sourced members of an existing target (Overwrite)
//
// Members are matched by name unless configured otherwise, either in code
// with Configure or through rule files loaded with LoadRules. Configuration
// may be changed at any time; it discards the cached plans.
package mapper
