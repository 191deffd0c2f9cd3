// Package parse decodes YAML text into [ir.Tree]s.
//
// Parsing is done by github.com/goccy/go-yaml's parser; this package walks
// the resulting AST bottom up. The supported subset is plain YAML data:
// scalars, block and flow mappings, block and flow sequences. Tags are
// ignored and null reads as the empty scalar. Anchors, aliases and merge
// keys are rejected with [result.InvalidToken].
package parse
