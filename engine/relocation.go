package engine

import (
	"github.com/wippyai/rotable"
)

// RelocationOffset returns the byte offset applied to pointer payloads read
// from t: 0 in fixed storage, the owning module's offset otherwise. ok is
// false when no module owns t.
func (e *Engine) RelocationOffset(t Table) (offset int64, ok bool) {
	addr := rotable.Address(t)
	if e.fixed != nil && e.fixed(addr) {
		return 0, true
	}
	if e.registry == nil {
		return 0, false
	}
	if _, owned := e.registry.ModuleIDFor(addr); !owned {
		return 0, false
	}
	return e.registry.RelocationOffsetFor(addr), true
}

// InFixedStorage reports the storage class of t.
func (e *Engine) InFixedStorage(t Table) bool {
	return e.fixed != nil && e.fixed(rotable.Address(t))
}
