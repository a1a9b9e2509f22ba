package main

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/spf13/cobra"

	"struct-mapper/internal/common"
	"struct-mapper/internal/mapping"
	"struct-mapper/internal/member"
	"struct-mapper/mapper"
)

var errCheckFailed = errors.New("rule file has errors")

func newCheckCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a rule file against the demo types",
		Long: `Validate a YAML or TOML rule file against the demo store and warehouse
types. Transforms the file uses but nobody registered are printed as Go stubs.
When the file is valid, the plans of its pairs are compiled and their warnings
are reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(c, cmd.OutOrStdout(), args[0])
		},
	}
}

func runCheck(c *cli, out io.Writer, path string) error {
	mf, err := mapping.LoadFile(path)
	if err != nil {
		return err
	}

	types := mapping.NewTypeRegistry()
	if err := types.Register(demoTypes...); err != nil {
		return err
	}

	transforms, err := mapping.NewTransformRegistry(demoTransforms)
	if err != nil {
		return err
	}

	diags := mapping.Validate(mf, types, transforms)
	for _, d := range diags.All() {
		fmt.Fprintf(out, "%s: %s\n", d.Severity, d)
	}

	if missing := mapping.MissingTransforms(mf, transforms); len(missing) > 0 {
		fmt.Fprintln(out, "\nmissing transforms:")

		for _, name := range missing {
			fmt.Fprintf(out, "\n%s\n", stubFor(mf, types, name))
		}
	}

	if diags.HasErrors() {
		return fmt.Errorf("%w: %s", errCheckFailed, path)
	}

	m, err := newDemoMapper(c.logger, path)
	if err != nil {
		return err
	}

	var warnings int

	for i := range mf.TypeMappings {
		tm := &mf.TypeMappings[i]

		src, _ := types.Resolve(tm.Source)
		dst, _ := types.Resolve(tm.Target)

		p, err := m.Plan(src, dst, mapper.RuleCreateNew)
		if err != nil {
			return fmt.Errorf("%s: %w", tm, err)
		}

		for _, w := range p.Diagnostics.Warnings {
			fmt.Fprintf(out, "%s: %s\n", w.Severity, w)
			warnings++
		}
	}

	fmt.Fprintf(out, "%s: %d mappings ok, %d warnings\n", path, len(mf.TypeMappings), warnings)

	return nil
}

// stubFor renders the stub of a missing transform, typed from the first
// mapping that uses it.
func stubFor(mf *mapping.MappingFile, types *mapping.TypeRegistry, name string) string {
	for i := range mf.TypeMappings {
		tm := &mf.TypeMappings[i]

		src, serr := types.Resolve(tm.Source)
		dst, derr := types.Resolve(tm.Target)

		typeName := func(t reflect.Type, err error) string {
			if err != nil || t == nil {
				return ""
			}

			return common.TypeName(t)
		}

		if tm.Create != nil && tm.Create.Func == name {
			params := make([]string, len(tm.Create.Params))
			if derr == nil {
				return mapping.GenerateStub(name, params, "*"+common.TypeName(member.Indirect(dst)))
			}

			return mapping.GenerateStub(name, params, "")
		}

		for _, fm := range append(append([]mapping.FieldMapping(nil), tm.Fields...), tm.Auto...) {
			if fm.Transform != name {
				continue
			}

			var sources []string

			if fm.Source.IsEmpty() {
				sources = []string{typeName(src, serr)}
			}

			for _, p := range fm.Source {
				var t reflect.Type

				if serr == nil {
					if q, err := member.Lookup(member.Indirect(src), p); err == nil {
						t = q.Type()
					}
				}

				sources = append(sources, typeName(t, nil))
			}

			var target string

			if derr == nil {
				if f, ok := member.FieldByNameFold(member.Indirect(dst), fm.Target.First()); ok {
					target = common.TypeName(f.Type)
				}
			}

			return mapping.GenerateStub(name, sources, target)
		}
	}

	return mapping.GenerateStub(name, nil, "")
}
