// Package plan compiles executable mapping plans for pairs of types.
//
// Compilation pipeline:
//  1. Dispatch the pair by shape (pointer, interface, scalar, collection,
//     dictionary, struct) and pick a strategy
//  2. For struct pairs, cache the unit before its members are compiled so
//     that recursive pairs resolve to themselves
//  3. For every target member, resolve data sources in priority order and
//     compile the pair from each data source type to the member type
//  4. Extract recursive and derived pairs as named submappings, inline the rest
//  5. Emit diagnostics (unmapped members, unsupported pairs, bad configuration)
//
// A compiled Plan is a tree of closures over reflect values. It is safe for
// concurrent use; each execution carries its own object-identity table.
package plan
