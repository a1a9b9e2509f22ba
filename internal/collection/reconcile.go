// Package collection reconciles the elements of a target collection with the
// elements of an incoming source collection.
package collection

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Indexed is a collection element together with its position.
type Indexed[E any] struct {
	Index int
	Value E
}

// Match pairs a source element with the target element it identifies.
type Match[S, T any] struct {
	Source Indexed[S]
	Target Indexed[T]
}

// Diff is the outcome of a reconciliation. New and Matched follow source
// order, Removed follows target order.
type Diff[S, T any] struct {
	New     []Indexed[S]
	Removed []Indexed[T]
	Matched []Match[S, T]
}

// KeyFunc extracts the identity key of an element; ok is false when the
// element has no usable key.
type KeyFunc[E any, K comparable] func(E) (K, bool)

// Reconcile splits source and target elements into new, removed and matched
// ones by identity key. Elements without a key are never matched. A target
// element matches at most one source element: the first source element
// carrying its key wins and later duplicates count as new.
func Reconcile[K comparable, S, T any](source []S, target []T, srcKey KeyFunc[S, K], tgtKey KeyFunc[T, K]) Diff[S, T] {
	var diff Diff[S, T]

	targets := make(map[K]Indexed[T], len(target))
	for i, t := range target {
		k, ok := tgtKey(t)
		if !ok {
			continue
		}

		if _, dup := targets[k]; dup {
			continue
		}

		targets[k] = Indexed[T]{Index: i, Value: t}
	}

	claimed := mapset.NewThreadUnsafeSetWithSize[K](len(targets))
	matchedIdx := mapset.NewThreadUnsafeSetWithSize[int](len(targets))

	for i, s := range source {
		k, ok := srcKey(s)
		if !ok {
			diff.New = append(diff.New, Indexed[S]{Index: i, Value: s})
			continue
		}

		t, found := targets[k]
		if !found || !claimed.Add(k) {
			diff.New = append(diff.New, Indexed[S]{Index: i, Value: s})
			continue
		}

		matchedIdx.Add(t.Index)
		diff.Matched = append(diff.Matched, Match[S, T]{Source: Indexed[S]{Index: i, Value: s}, Target: t})
	}

	for i, t := range target {
		if !matchedIdx.Contains(i) {
			diff.Removed = append(diff.Removed, Indexed[T]{Index: i, Value: t})
		}
	}

	return diff
}
