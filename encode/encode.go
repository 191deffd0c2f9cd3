package encode

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/signadot/ydb/format"
	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

type EncState struct {
	indent int
	format format.Format
	wire   bool

	t     *ir.Tree
	Color func(ir.Type, ColorAttr, string) string
}

// Encode writes the node id of t to w, followed by a newline.
func Encode(t *ir.Tree, id ir.ID, w io.Writer, opts ...EncodeOption) error {
	if !t.Valid(id) {
		return result.Errorf(result.NoEntry, "encode %s", id)
	}
	es := &EncState{indent: 2, t: t}
	for _, opt := range opts {
		opt(es)
	}
	var buf bytes.Buffer
	switch {
	case es.format.IsJSON():
		es.json(&buf, id)
		if !es.wire {
			var ind bytes.Buffer
			if err := json.Indent(&ind, buf.Bytes(), "", strings.Repeat(" ", es.indent)); err != nil {
				return result.Wrap(result.Failed, err)
			}
			buf = ind
		}
	case es.wire:
		es.flow(&buf, id)
	default:
		es.top(&buf, id)
	}
	if b := buf.Bytes(); len(b) == 0 || b[len(b)-1] != '\n' {
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	if err != nil {
		return result.Wrap(result.SystemFailed, err)
	}
	return nil
}

// String renders id without the trailing newline.
func String(t *ir.Tree, id ir.ID, opts ...EncodeOption) (string, error) {
	var buf bytes.Buffer
	if err := Encode(t, id, &buf, opts...); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (es *EncState) color(t ir.Type, attr ColorAttr, s string) string {
	if es.Color == nil {
		return s
	}
	return es.Color(t, attr, s)
}

func (es *EncState) scalar(buf *bytes.Buffer, s string) {
	if NeedsQuote(s) {
		buf.WriteString(es.color(ir.ScalarType, QuotedColor, Quote(s)))
		return
	}
	buf.WriteString(es.color(ir.ScalarType, ValueColor, s))
}

func (es *EncState) key(buf *bytes.Buffer, k string) {
	if NeedsQuote(k) {
		k = Quote(k)
	}
	buf.WriteString(es.color(ir.MappingType, KeyColor, k))
}

func (es *EncState) sep(buf *bytes.Buffer, t ir.Type, s string) {
	buf.WriteString(es.color(t, SepColor, s))
}

func (es *EncState) empty(buf *bytes.Buffer, id ir.ID) bool {
	switch typ := es.t.Type(id); {
	case typ == ir.ScalarType:
		return false
	case es.t.Len(id) != 0:
		return false
	case typ == ir.MappingType:
		es.sep(buf, typ, "{}")
	default:
		es.sep(buf, typ, "[]")
	}
	return true
}

func (es *EncState) top(buf *bytes.Buffer, id ir.ID) {
	if es.t.Type(id) == ir.ScalarType {
		es.scalar(buf, es.t.Value(id))
		return
	}
	if es.empty(buf, id) {
		return
	}
	es.block(buf, id, "", false)
}

// block writes the container id with every line at indentation ind. When
// inline is set the first line continues the current one.
func (es *EncState) block(buf *bytes.Buffer, id ir.ID, ind string, inline bool) {
	typ := es.t.Type(id)
	pad := strings.Repeat(" ", es.indent)
	i := 0
	for c := range es.t.Children(id) {
		if i > 0 || !inline {
			buf.WriteString(ind)
		}
		i++
		ctyp := es.t.Type(c)
		if typ == ir.MappingType {
			es.key(buf, es.t.Key(c))
			es.sep(buf, typ, ":")
			switch {
			case ctyp == ir.ScalarType:
				buf.WriteByte(' ')
				es.scalar(buf, es.t.Value(c))
			case es.t.Len(c) == 0:
				buf.WriteByte(' ')
				es.empty(buf, c)
			default:
				buf.WriteByte('\n')
				es.block(buf, c, ind+pad, false)
				continue
			}
			buf.WriteByte('\n')
			continue
		}
		es.sep(buf, typ, "-")
		buf.WriteByte(' ')
		switch {
		case ctyp == ir.ScalarType:
			es.scalar(buf, es.t.Value(c))
		case es.t.Len(c) == 0:
			es.empty(buf, c)
		default:
			es.block(buf, c, ind+"  ", true)
			continue
		}
		buf.WriteByte('\n')
	}
}

func (es *EncState) flow(buf *bytes.Buffer, id ir.ID) {
	typ := es.t.Type(id)
	switch typ {
	case ir.ScalarType:
		es.scalar(buf, es.t.Value(id))
		return
	case ir.MappingType:
		es.sep(buf, typ, "{")
	default:
		es.sep(buf, typ, "[")
	}
	i := 0
	for c := range es.t.Children(id) {
		if i > 0 {
			es.sep(buf, typ, ", ")
		}
		i++
		if typ == ir.MappingType {
			es.key(buf, es.t.Key(c))
			es.sep(buf, typ, ": ")
		}
		es.flow(buf, c)
	}
	if typ == ir.MappingType {
		es.sep(buf, typ, "}")
	} else {
		es.sep(buf, typ, "]")
	}
}

func (es *EncState) json(buf *bytes.Buffer, id ir.ID) {
	typ := es.t.Type(id)
	switch typ {
	case ir.ScalarType:
		buf.Write(jsonString(es.t.Value(id)))
		return
	case ir.MappingType:
		buf.WriteByte('{')
	default:
		buf.WriteByte('[')
	}
	i := 0
	for c := range es.t.Children(id) {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		if typ == ir.MappingType {
			buf.Write(jsonString(es.t.Key(c)))
			buf.WriteByte(':')
		}
		es.json(buf, c)
	}
	if typ == ir.MappingType {
		buf.WriteByte('}')
	} else {
		buf.WriteByte(']')
	}
}

func jsonString(s string) []byte {
	d, _ := json.Marshal(s)
	return d
}

// NeedsQuote reports whether s must be double quoted to read back as the
// same string in block and flow YAML.
func NeedsQuote(s string) bool {
	if s == "" {
		return true
	}
	switch s {
	case "~", "null", "Null", "NULL", "<<":
		return true
	}
	if strings.HasPrefix(s, "---") || strings.HasPrefix(s, "...") {
		return true
	}
	switch s[0] {
	case ',', '[', ']', '{', '}', '#', '&', '*', '!', '|', '>', '\'', '"', '%', '@', '`', ' ', '\t':
		return true
	case '-', '?', ':':
		if len(s) == 1 || s[1] == ' ' || s[1] == '\t' {
			return true
		}
	}
	if last := s[len(s)-1]; last == ' ' || last == '\t' {
		return true
	}
	if strings.ContainsAny(s, ":#,[]{}") {
		return true
	}
	if !utf8.ValidString(s) {
		return true
	}
	for _, r := range s {
		if r != ' ' && !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}

// Quote double quotes s with YAML compatible escapes.
func Quote(s string) string {
	return strconv.Quote(s)
}
