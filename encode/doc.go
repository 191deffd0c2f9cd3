// Package encode renders [ir.Tree] nodes as YAML or JSON text.
//
// # Usage
//
//	// block YAML
//	err := encode.Encode(t, t.Top(), os.Stdout)
//
//	// single line flow YAML, as sent between peers
//	s, err := encode.String(t, id, encode.EncodeWire(true))
//
//	// JSON
//	err := encode.Encode(t, id, w, encode.EncodeFormat(format.JSONFormat))
//
// Scalars that would not parse back to the same string are written double
// quoted, so parse.Parse(Encode(n)) is equal to n.
package encode
