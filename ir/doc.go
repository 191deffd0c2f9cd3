// Package ir holds the in-memory node tree of a ydb instance.
//
// A [Tree] owns every node it contains. Nodes live in an arena and are
// addressed by [ID]s that stay valid while the node is attached; once a node
// is deleted its slot is recycled under a new generation so stale IDs report
// as missing instead of naming another node.
//
// Nodes are one of three [Type]s. Scalars carry a string value, mappings
// carry children keyed by string and kept in key order, sequences carry
// children by position.
package ir
