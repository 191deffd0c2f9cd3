package result

import (
	"errors"
	"fmt"
)

// Error is a failure or warning carrying a [Code].
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by code, against either a bare [Code] or another *Error.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch t := target.(type) {
	case Code:
		return e.Code == t
	case *Error:
		return t != nil && e.Code == t.Code
	}
	return false
}

// New returns an *Error with code c and message msg.
func New(c Code, msg string) error {
	return &Error{Code: c, Msg: msg}
}

// Errorf formats a message for code c. A %w verb in format is kept as the
// wrapped cause.
func Errorf(c Code, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	res := &Error{Code: c, Msg: err.Error()}
	if u := errors.Unwrap(err); u != nil {
		res.Err = u
		res.Msg = trimCause(res.Msg, u.Error())
	}
	return res
}

// Wrap attaches code c to err. A nil err stays nil.
func Wrap(c Code, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: c, Err: err}
}

// CodeOf classifies err. A nil error is [OK]; an error without a code is
// [Failed].
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Failed
}

// IsWarning reports whether err is a non-nil warning.
func IsWarning(err error) bool {
	return CodeOf(err).IsWarning()
}

// IsError reports whether err is a non-nil error that is not a warning.
func IsError(err error) bool {
	return err != nil && !CodeOf(err).IsWarning()
}

// Join combines errs like errors.Join, keeping the most severe code of its
// members so CodeOf still classifies the result.
func Join(errs ...error) error {
	joined := errors.Join(errs...)
	if joined == nil {
		return nil
	}
	var (
		worst = OK
		last  error
		n     int
	)
	for _, err := range errs {
		if err == nil {
			continue
		}
		n++
		last = err
		if c := CodeOf(err); c > worst {
			worst = c
		}
	}
	if n == 1 {
		return last
	}
	return &Error{Code: worst, Err: joined}
}

func trimCause(msg, cause string) string {
	if len(msg) > len(cause)+2 && msg[len(msg)-len(cause):] == cause && msg[len(msg)-len(cause)-2:len(msg)-len(cause)] == ": " {
		return msg[:len(msg)-len(cause)-2]
	}
	return msg
}
