// Package diagnostic collects the findings of plan compilation and rule-file
// validation: errors that stop a plan, warnings such as unmapped target
// members, and infos explaining non-obvious matches.
package diagnostic
