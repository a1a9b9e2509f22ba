// Package match scores how well a source member fits a target member.
//
// It normalizes identifiers, measures edit distance between them, scores
// run-time type compatibility and ranks source members as suggestions for
// target members that found no data source.
package match
