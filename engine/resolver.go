package engine

import (
	"github.com/wippyai/rotable/errors"
)

// ResolveGlobal finds the table bound to a global name. Loaded modules are
// searched first in registry order, so a module shadows a compiled-in table
// of the same name. The static table-of-tables is searched second.
func (e *Engine) ResolveGlobal(name string) (Table, error) {
	if len(name) > e.maxNameLen {
		return 0, e.keyTooLong(name)
	}
	if name == "" {
		return 0, errors.NotFound(errors.PhaseLookup, "global", name)
	}

	if e.registry != nil {
		for idx, ok := e.registry.NextModule(-1); ok; idx, ok = e.registry.NextModule(idx) {
			if e.registry.ModuleName(idx) == name {
				return Table(e.registry.ModuleRootTable(idx)), nil
			}
		}
	}

	if v, _, ok := e.find(e.static, StringKey(name)); ok {
		if t, isTable := v.Table(); isTable {
			return t, nil
		}
	}
	return 0, errors.NotFound(errors.PhaseLookup, "global", name)
}
