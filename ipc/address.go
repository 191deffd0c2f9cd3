package ipc

import (
	"net"
	"strings"

	"github.com/signadot/ydb/result"
)

type Scheme string

const (
	SchemeUnix     Scheme = "us"
	SchemeAbstract Scheme = "uss"
	SchemeTCP      Scheme = "tcp"
	SchemeWS       Scheme = "ws"
	SchemeFile     Scheme = "file"
)

// DefaultWSPath is the websocket path used when a ws:// address has none.
const DefaultWSPath = "/ydb"

// Address is a parsed connection address.
type Address struct {
	Scheme Scheme
	Target string
}

func ParseAddress(s string) (Address, error) {
	scheme, target, ok := strings.Cut(s, "://")
	if !ok || target == "" {
		return Address{}, result.Errorf(result.InvalidArgs, "address %q: want scheme://target", s)
	}
	a := Address{Scheme: Scheme(scheme), Target: target}
	switch a.Scheme {
	case SchemeUnix, SchemeAbstract, SchemeFile:
	case SchemeTCP:
		if _, _, err := net.SplitHostPort(target); err != nil {
			return Address{}, result.Errorf(result.InvalidArgs, "address %q: %w", s, err)
		}
	case SchemeWS:
		host, _ := a.wsHostPath()
		if _, _, err := net.SplitHostPort(host); err != nil {
			return Address{}, result.Errorf(result.InvalidArgs, "address %q: %w", s, err)
		}
	default:
		return Address{}, result.Errorf(result.InvalidArgs, "address %q: unknown scheme %q", s, scheme)
	}
	return a, nil
}

func (a Address) String() string {
	return string(a.Scheme) + "://" + a.Target
}

// network returns the arguments for net.Dial and net.Listen.
func (a Address) network() (string, string) {
	switch a.Scheme {
	case SchemeUnix:
		return "unix", a.Target
	case SchemeAbstract:
		return "unix", "@" + a.Target
	case SchemeWS:
		host, _ := a.wsHostPath()
		return "tcp", host
	default:
		return "tcp", a.Target
	}
}

func (a Address) wsHostPath() (string, string) {
	host, path, ok := strings.Cut(a.Target, "/")
	if !ok || path == "" {
		return host, DefaultWSPath
	}
	return host, "/" + path
}
