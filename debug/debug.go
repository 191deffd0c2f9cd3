// Package debug holds switches for verbose tracing, read once from the
// environment.
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Frames bool
	Merge  bool
	Hooks  bool
}

var d *debug

func init() {
	d = &debug{}
	d.Frames = boolEnv("YDB_DEBUG_FRAMES")
	d.Merge = boolEnv("YDB_DEBUG_MERGE")
	d.Hooks = boolEnv("YDB_DEBUG_HOOKS")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

// Frames reports whether every wire frame is logged.
func Frames() bool {
	return d.Frames
}

// Merge reports whether every change applied by a mutation is logged.
func Merge() bool {
	return d.Merge
}

func Hooks() bool {
	return d.Hooks
}

// Set overrides the switches, for tests.
func Set(frames, merge, hooks bool) {
	d.Frames, d.Merge, d.Hooks = frames, merge, hooks
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(append(d, '\n'))
}
