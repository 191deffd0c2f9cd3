package result

import "fmt"

// Code is a ydb result code.
type Code int

const (
	OK Code = 0

	// warnings
	Timeout      Code = 1
	MoreRecv     Code = 2
	Adjusted     Code = 3
	Disconnected Code = 4
	HookFailed   Code = 5

	warningMax Code = 63

	// errors
	Failed            Code = 64
	Ctrl              Code = 65
	SystemFailed      Code = 66
	InvalidArgs       Code = 67
	TypeError         Code = 68
	InvalidParent     Code = 69
	NoEntry           Code = 70
	MemAlloc          Code = 71
	FullBuf           Code = 72
	InvalidToken      Code = 73
	YAMLInitFailed    Code = 74
	YAMLParsingFailed Code = 75
	MergeFailed       Code = 76
	DeleteFailed      Code = 77
	InvalidMsg        Code = 78
	EntryExists       Code = 79
	NoConn            Code = 80
	ConnFailed        Code = 81
	ConnClosed        Code = 82
	Func              Code = 83
	HookAdd           Code = 84
	UnknownTarget     Code = 85
	DeniedDelete      Code = 86
)

var codeNames = map[Code]string{
	OK:                "ok",
	Timeout:           "timeout",
	MoreRecv:          "more data to receive",
	Adjusted:          "updated with adjustment",
	Disconnected:      "peer disconnected",
	HookFailed:        "hook failed",
	Failed:            "failed",
	Ctrl:              "control error",
	SystemFailed:      "system failed",
	InvalidArgs:       "invalid arguments",
	TypeError:         "type mismatch",
	InvalidParent:     "invalid parent",
	NoEntry:           "no entry",
	MemAlloc:          "memory allocation failed",
	FullBuf:           "buffer full",
	InvalidToken:      "invalid yaml token",
	YAMLInitFailed:    "yaml init failed",
	YAMLParsingFailed: "yaml parsing failed",
	MergeFailed:       "merge failed",
	DeleteFailed:      "delete failed",
	InvalidMsg:        "invalid message",
	EntryExists:       "entry exists",
	NoConn:            "no connection",
	ConnFailed:        "connection failed",
	ConnClosed:        "connection closed",
	Func:              "function failed",
	HookAdd:           "hook registration failed",
	UnknownTarget:     "unknown target",
	DeniedDelete:      "delete denied",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("result(%d)", int(c))
}

// Error implements error so a bare code can be returned and matched.
func (c Code) Error() string {
	return c.String()
}

// IsWarning reports whether c lies in the warning band.
func (c Code) IsWarning() bool {
	return c > OK && c <= warningMax
}

// IsError reports whether c lies in the error band.
func (c Code) IsError() bool {
	return c > warningMax
}

// Codes returns every defined code in ascending order.
func Codes() []Code {
	return []Code{
		OK, Timeout, MoreRecv, Adjusted, Disconnected, HookFailed,
		Failed, Ctrl, SystemFailed, InvalidArgs, TypeError, InvalidParent,
		NoEntry, MemAlloc, FullBuf, InvalidToken, YAMLInitFailed,
		YAMLParsingFailed, MergeFailed, DeleteFailed, InvalidMsg, EntryExists,
		NoConn, ConnFailed, ConnClosed, Func, HookAdd, UnknownTarget,
		DeniedDelete,
	}
}
