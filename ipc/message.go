package ipc

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/signadot/ydb/result"
)

type MsgType uint8

const (
	TypeRequest MsgType = iota + 1
	TypeResponse
	TypeFailed
	TypePublish
	// TypeWhisper carries a delta to the peer owning Target, relayed hop
	// by hop.
	TypeWhisper
)

var msgTypeNames = map[MsgType]string{
	TypeRequest:  "request",
	TypeResponse: "response",
	TypeFailed:   "failed",
	TypePublish:  "publish",
	TypeWhisper:  "whisper",
}

func (t MsgType) String() string {
	if s, ok := msgTypeNames[t]; ok {
		return s
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

type Op uint8

const (
	OpInit Op = iota + 1
	OpMerge
	OpDelete
	OpSync
)

var opNames = map[Op]string{
	OpInit:   "init",
	OpMerge:  "merge",
	OpDelete: "delete",
	OpSync:   "sync",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Message is one frame of the wire protocol. Body holds a single line flow
// YAML document, or nothing.
type Message struct {
	Seq     uint32
	Type    MsgType
	Op      Op
	Origin  string
	Flags   Flags
	Digest  string
	Timeout time.Duration
	// Target is the path a whisper is addressed to.
	Target string
	Body   []byte
}

const (
	frameStart = "---\n"
	bodyMark   = "#_-_-_-_\n"
	frameEnd   = "...\n"
)

// AppendFrame appends the wire form of m to dst.
func (m *Message) AppendFrame(dst []byte) []byte {
	dst = append(dst, frameStart...)
	dst = appendHeader(dst, "seq", strconv.FormatUint(uint64(m.Seq), 10))
	dst = appendHeader(dst, "type", m.Type.String())
	dst = appendHeader(dst, "op", m.Op.String())
	if m.Origin != "" {
		dst = appendHeader(dst, "origin", m.Origin)
	}
	if m.Op == OpInit {
		dst = appendHeader(dst, "flags", m.Flags.String())
	}
	if m.Digest != "" {
		dst = appendHeader(dst, "digest", m.Digest)
	}
	if m.Timeout > 0 {
		dst = appendHeader(dst, "timeout", strconv.FormatInt(m.Timeout.Milliseconds(), 10))
	}
	if m.Target != "" {
		dst = appendHeader(dst, "target", strconv.Quote(m.Target))
	}
	dst = append(dst, bodyMark...)
	if body := bytes.TrimRight(m.Body, "\n"); len(body) > 0 {
		dst = append(dst, body...)
		dst = append(dst, '\n')
	}
	return append(dst, frameEnd...)
}

func appendHeader(dst []byte, k, v string) []byte {
	dst = append(dst, '#')
	dst = append(dst, k...)
	dst = append(dst, ": "...)
	dst = append(dst, v...)
	return append(dst, '\n')
}

// ParseMessage decodes one frame as produced by [ScanMessages], that is
// without the closing "..." line. The message does not retain frame.
func ParseMessage(frame []byte) (*Message, error) {
	rest := bytes.TrimLeft(frame, " \t\r\n")
	if !bytes.HasPrefix(rest, []byte(frameStart)) {
		return nil, result.New(result.InvalidMsg, "missing document start")
	}
	rest = rest[len(frameStart):]
	m := &Message{}
	for {
		line, tail, ok := bytes.Cut(rest, []byte{'\n'})
		if !ok {
			return nil, result.New(result.InvalidMsg, "missing body marker")
		}
		rest = tail
		if string(line)+"\n" == bodyMark {
			break
		}
		if err := m.header(string(line)); err != nil {
			return nil, err
		}
	}
	if m.Type == 0 || m.Op == 0 {
		return nil, result.New(result.InvalidMsg, "missing type or op")
	}
	if body := bytes.TrimSpace(rest); len(body) > 0 {
		m.Body = bytes.Clone(body)
	}
	return m, nil
}

func (m *Message) header(line string) error {
	if !strings.HasPrefix(line, "#") {
		return result.Errorf(result.InvalidMsg, "bad header line %q", line)
	}
	k, v, ok := strings.Cut(line[1:], ":")
	if !ok {
		return result.Errorf(result.InvalidMsg, "bad header line %q", line)
	}
	v = strings.TrimSpace(v)
	switch strings.TrimSpace(k) {
	case "seq":
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return result.Errorf(result.InvalidMsg, "seq %q", v)
		}
		m.Seq = uint32(n)
	case "type":
		t, ok := lookup(msgTypeNames, v)
		if !ok {
			return result.Errorf(result.InvalidMsg, "type %q", v)
		}
		m.Type = t
	case "op":
		o, ok := lookup(opNames, v)
		if !ok {
			return result.Errorf(result.InvalidMsg, "op %q", v)
		}
		m.Op = o
	case "origin":
		m.Origin = v
	case "flags":
		f, err := ParseFlags(v)
		if err != nil {
			return result.Errorf(result.InvalidMsg, "flags: %w", err)
		}
		m.Flags = f
	case "digest":
		m.Digest = v
	case "timeout":
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			return result.Errorf(result.InvalidMsg, "timeout %q", v)
		}
		m.Timeout = time.Duration(ms) * time.Millisecond
	case "target":
		s, err := strconv.Unquote(v)
		if err != nil {
			return result.Errorf(result.InvalidMsg, "target %s", v)
		}
		m.Target = s
	}
	// unknown headers are comments
	return nil
}

func lookup[T comparable](names map[T]string, v string) (T, bool) {
	for k, name := range names {
		if name == v {
			return k, true
		}
	}
	var zero T
	return zero, false
}

// ScanMessages is a [bufio.SplitFunc] returning one frame per token. A
// partial frame left at EOF is discarded.
func ScanMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if bytes.HasPrefix(data, []byte(frameEnd)) {
		return len(frameEnd), data[:0], nil
	}
	if i := bytes.Index(data, []byte("\n"+frameEnd)); i >= 0 {
		return i + 1 + len(frameEnd), data[:i+1], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
