// Package graph builds the undirected, weighted proximity graph.
//
// # Overview
//
// A [Builder] collects candidate edges discovered by the neighbor search and
// turns them into a [Graph]: a vertex registry keyed by node id plus at most
// one [Edge] per unordered pair of ids.
//
// # Canonical Pairs
//
// Candidates arrive in both directions: (a, b) and (b, a) describe the same
// edge. Every pair is stored under its canonical [Pair] form, with the smaller
// id first, and duplicates are detected by explicit set membership. The first
// weight seen for a pair wins; a later duplicate with a different weight is
// reported through [Options.OnInconsistency] and otherwise ignored.
//
// # Ordering
//
// [Graph.Vertices] and [Graph.Edges] are always returned sorted (ids
// ascending, edges by canonical pair), so nothing downstream depends on map
// iteration order.
//
// # Concurrency
//
// Builder and Graph are not safe for concurrent mutation. A built Graph is
// read-only and may be shared between readers.
package graph
