// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ExtraFunc is one side-channel command a slave publishes for the master to
// invoke out-of-band of the message stream.
type ExtraFunc struct {
	Name string
	// Desc may contain "{function_name}" as a placeholder for the command
	// prefix the master presents; use Describe to substitute it.
	Desc string
	Func func(ctx context.Context, args []string) (string, error)
}

// Describe substitutes the invocation name into the description
// placeholder.
func (f ExtraFunc) Describe(invocation string) string {
	return strings.ReplaceAll(f.Desc, "{function_name}", invocation)
}

// extraNameRegex is the extra-command name grammar.
var extraNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,19}$`)

// ExtraFuncs collects a slave's extra functions at construction time.
// The zero value is ready to use. Slaves add each command with Add and
// expose the result through ExtraProvider by returning Functions().
type ExtraFuncs struct {
	funcs map[string]ExtraFunc
}

// Add registers one extra function. The name must match the extra-command
// grammar and be unique within the table.
func (e *ExtraFuncs) Add(name, desc string, fn func(ctx context.Context, args []string) (string, error)) error {
	if !extraNameRegex.MatchString(name) {
		return fmt.Errorf("extra function name %q does not match the command grammar", name)
	}
	if _, dup := e.funcs[name]; dup {
		return fmt.Errorf("extra function %q is already registered", name)
	}
	if e.funcs == nil {
		e.funcs = make(map[string]ExtraFunc)
	}
	e.funcs[name] = ExtraFunc{Name: name, Desc: desc, Func: fn}
	return nil
}

// MustAdd is Add for construction-time tables where a bad name is a bug.
func (e *ExtraFuncs) MustAdd(name, desc string, fn func(ctx context.Context, args []string) (string, error)) {
	if err := e.Add(name, desc, fn); err != nil {
		panic(err)
	}
}

// Functions returns a copy of the table keyed by function name.
func (e *ExtraFuncs) Functions() map[string]ExtraFunc {
	out := make(map[string]ExtraFunc, len(e.funcs))
	for name, fn := range e.funcs {
		out[name] = fn
	}
	return out
}
