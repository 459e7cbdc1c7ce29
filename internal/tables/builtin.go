package tables

import (
	_ "embed"
	"sync"
)

//go:embed builtin.yaml
var builtinYAML []byte

var (
	builtinOnce sync.Once
	builtinSet  *Set
	builtinErr  error
)

// Builtin returns the embedded English table set. The result is shared and
// must not be modified.
func Builtin() (*Set, error) {
	builtinOnce.Do(func() {
		builtinSet, builtinErr = Parse(builtinYAML)
	})
	return builtinSet, builtinErr
}

// BuiltinYAML returns a copy of the embedded table document, suitable as a
// starting point for a custom voice.
func BuiltinYAML() []byte {
	return append([]byte(nil), builtinYAML...)
}
