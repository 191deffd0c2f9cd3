// Package ypath implements the slash separated paths used to address nodes
// of a ydb tree.
//
// A path is a list of segments separated by '/'. A leading '/' is optional
// and both "" and "/" address the top of the tree:
//
//   - "a/b"    → mapping key "a", then mapping key "b"
//   - "a/0"    → key "a", then sequence slot 0 (or key "0" of a mapping)
//   - "a/'0'"  → key "a", then the mapping key "0" only
//   - "a/*"    → every child of "a"
//   - "a\/b"   → the single key "a/b"
//
// A backslash escapes a slash, a backslash, a star or a single quote.
package ypath
