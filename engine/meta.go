package engine

import (
	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
)

// Metatable returns the table stored under __metatable in t. It always
// reports absent when metatables are disabled.
func (e *Engine) Metatable(t Table) (Table, bool) {
	if !e.metatables {
		return 0, false
	}
	v, _, ok := e.find(t, StringKey(MetatableKey))
	if !ok {
		return 0, false
	}
	return v.Table()
}

// FindCallable looks name up in t and returns it only if it is a callable.
func (e *Engine) FindCallable(t Table, name string) (Callable, bool) {
	v, _, err := e.FindEntry(t, StringKey(name))
	if err != nil {
		return 0, false
	}
	return v.Callable()
}

// String materializes a string value.
func (e *Engine) String(v Value) (string, error) {
	if !v.IsString() {
		return "", errors.InvalidInput(errors.PhaseLookup, "value of kind "+v.kind.String()+" is not a string")
	}
	return e.readCString(v.Address())
}

// Symbol returns the host symbol a callable is bound to.
func (e *Engine) Symbol(c Callable) (string, error) {
	return e.readCString(rotable.Address(c))
}
