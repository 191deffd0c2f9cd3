package parse

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/signadot/ydb/ir"
	"github.com/signadot/ydb/result"
)

// Decoder reads a stream of YAML documents, one document per Decode call.
type Decoder struct {
	r    *bufio.Reader
	opts []ParseOption
	buf  bytes.Buffer
	eof  bool
}

func NewDecoder(r io.Reader, opts ...ParseOption) *Decoder {
	return &Decoder{r: bufio.NewReader(r), opts: opts}
}

// Decode returns the next non-empty document, or io.EOF once the stream is
// exhausted.
func (d *Decoder) Decode() (*ir.Tree, error) {
	if d == nil || d.r == nil {
		return nil, result.New(result.YAMLInitFailed, "decoder not initialized")
	}
	for {
		doc, ok, err := d.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		docs, err := ParseAll(doc, d.opts...)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			continue
		}
		return docs[0], nil
	}
}

// next returns the text of the next document.
func (d *Decoder) next() ([]byte, bool, error) {
	if d.eof {
		if d.buf.Len() == 0 {
			return nil, false, nil
		}
		res := bytes.Clone(d.buf.Bytes())
		d.buf.Reset()
		return res, true, nil
	}
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, false, result.Wrap(result.SystemFailed, err)
		}
		if err == io.EOF {
			d.eof = true
			d.buf.WriteString(line)
			return d.next()
		}
		trimmed := strings.TrimRight(line, "\r\n")
		switch {
		case trimmed == "...":
			res := bytes.Clone(d.buf.Bytes())
			d.buf.Reset()
			return res, true, nil
		case trimmed == "---" || strings.HasPrefix(trimmed, "--- "):
			res := bytes.Clone(d.buf.Bytes())
			d.buf.Reset()
			d.buf.WriteString(line)
			if len(bytes.TrimSpace(res)) == 0 {
				continue
			}
			return res, true, nil
		default:
			d.buf.WriteString(line)
		}
	}
}
