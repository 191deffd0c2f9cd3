package ipc

import (
	"strings"

	"github.com/signadot/ydb/result"
)

// Flags select the role and behavior of a connection.
type Flags uint16

const (
	// Publisher listens for subscribers; without it the connection dials.
	Publisher Flags = 1 << iota
	// Writable subscribers send their local changes to the publisher.
	Writable
	// Unsubscribe asks the publisher not to send any data.
	Unsubscribe
	// SyncBeforeRead asks the publisher for fresh data before each read.
	SyncBeforeRead
	// LeafOnly stops deltas received on the connection from being
	// published further.
	LeafOnly
	// Protect rejects delete deltas received on the connection.
	Protect
	// Debug logs every frame of the connection.
	Debug
)

var flagNames = []struct {
	flag  Flags
	names []string
}{
	{Writable, []string{"writable", "w"}},
	{Unsubscribe, []string{"unsubscribe", "u"}},
	{SyncBeforeRead, []string{"sync-before-read", "sync"}},
	{LeafOnly, []string{"leaf", "leaf-only"}},
	{Protect, []string{"protect", "no-delete"}},
	{Debug, []string{"debug", "d"}},
}

// ParseFlags parses a list of flag names separated by ',', ':' or spaces.
// "pub" and "sub" select the role; subscriber is the default.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ':' || r == ' ' || r == '|'
	}) {
		switch tok {
		case "pub", "p", "publisher":
			f |= Publisher
			continue
		case "sub", "s", "subscriber":
			f &^= Publisher
			continue
		}
		found := false
		for _, fn := range flagNames {
			for _, name := range fn.names {
				if tok == name {
					f |= fn.flag
					found = true
				}
			}
		}
		if !found {
			return 0, result.Errorf(result.InvalidArgs, "unknown flag %q", tok)
		}
	}
	return f, nil
}

func (f Flags) Has(g Flags) bool {
	return f&g == g
}

func (f Flags) String() string {
	parts := []string{"sub"}
	if f.Has(Publisher) {
		parts[0] = "pub"
	}
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.names[0])
		}
	}
	return strings.Join(parts, ",")
}
