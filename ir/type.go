package ir

import "fmt"

// Type is the closed set of node kinds.
type Type uint8

const (
	ScalarType Type = iota
	MappingType
	SequenceType
)

func (t Type) String() string {
	switch t {
	case ScalarType:
		return "Scalar"
	case MappingType:
		return "Mapping"
	case SequenceType:
		return "Sequence"
	default:
		return "<unknown type>"
	}
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(d []byte) error {
	tt, ok := map[string]Type{
		"Scalar":   ScalarType,
		"Mapping":  MappingType,
		"Sequence": SequenceType,
	}[string(d)]
	if !ok {
		return fmt.Errorf("unrecognized type %q", d)
	}
	*t = tt
	return nil
}

func Types() []Type {
	return []Type{ScalarType, MappingType, SequenceType}
}

// IsLeaf reports whether nodes of type t never have children.
func (t Type) IsLeaf() bool {
	return t == ScalarType
}
