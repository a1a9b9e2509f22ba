package main

import (
	"fmt"
	"io"
	"reflect"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"struct-mapper/internal/plan"
	"struct-mapper/mapper"
	"struct-mapper/store"
	"struct-mapper/warehouse"
)

func newPlanCommand(c *cli) *cobra.Command {
	var rules, ruleSet string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the plan mapping a store customer to a warehouse customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := plan.ParseRuleSet(ruleSet)
			if err != nil {
				return err
			}

			return runPlan(c, cmd.OutOrStdout(), rules, rs)
		},
	}

	cmd.Flags().StringVarP(&rules, "rules", "r", "", "rule file to configure the mapper with")
	cmd.Flags().StringVar(&ruleSet, "rule-set", plan.CreateNew.String(), "create_new, merge or overwrite")

	return cmd
}

func runPlan(c *cli, out io.Writer, rules string, rs mapper.RuleSet) error {
	m, err := newDemoMapper(c.logger, rules)
	if err != nil {
		return err
	}

	p, err := m.Plan(reflect.TypeFor[*store.Customer](), reflect.TypeFor[*warehouse.Customer](), rs)
	if err != nil {
		return err
	}

	fmt.Fprint(out, p.Describe())

	for _, w := range p.Diagnostics.Warnings {
		fmt.Fprintf(out, "%s: %s\n", w.Severity, w)
	}

	return nil
}

func newMapCommand(c *cli) *cobra.Command {
	var rules string

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map the sample store customer and dump the warehouse customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMap(c, cmd.OutOrStdout(), rules)
		},
	}

	cmd.Flags().StringVarP(&rules, "rules", "r", "", "rule file to configure the mapper with")

	return cmd
}

// dumper prints cyclic graphs; pointers already shown are elided.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

func runMap(c *cli, out io.Writer, rules string) error {
	m, err := newDemoMapper(c.logger, rules)
	if err != nil {
		return err
	}

	customer, err := mapper.Map[*warehouse.Customer](m, store.Sample())
	if err != nil {
		return err
	}

	dumper.Fdump(out, customer)

	return nil
}
