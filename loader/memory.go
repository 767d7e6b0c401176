package loader

import (
	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
)

// Read returns length bytes at a runtime address inside a loaded module.
// The returned slice is a view of module memory and must not be modified.
func (r *Registry) Read(addr rotable.Address, length uint32) ([]byte, error) {
	m := r.owner(addr)
	if m == nil {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), length)
	}
	return m.Read(addr, length)
}

func (r *Registry) ReadU8(addr rotable.Address) (uint8, error) {
	m := r.owner(addr)
	if m == nil {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 1)
	}
	return m.ReadU8(addr)
}

func (r *Registry) ReadU32(addr rotable.Address) (uint32, error) {
	m := r.owner(addr)
	if m == nil {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 4)
	}
	return m.ReadU32(addr)
}

func (r *Registry) ReadU64(addr rotable.Address) (uint64, error) {
	m := r.owner(addr)
	if m == nil {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 8)
	}
	return m.ReadU64(addr)
}

// Read returns length bytes at a runtime address inside this module.
func (m *Module) Read(addr rotable.Address, length uint32) ([]byte, error) {
	if !m.contains(addr) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), length)
	}
	data, ok := m.mem.Read(uint32(addr-m.base), length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), length)
	}
	return data, nil
}

func (m *Module) ReadU8(addr rotable.Address) (uint8, error) {
	if !m.contains(addr) {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 1)
	}
	v, ok := m.mem.ReadByte(uint32(addr - m.base))
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 1)
	}
	return v, nil
}

func (m *Module) ReadU32(addr rotable.Address) (uint32, error) {
	if !m.contains(addr) {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 4)
	}
	v, ok := m.mem.ReadUint32Le(uint32(addr - m.base))
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 4)
	}
	return v, nil
}

func (m *Module) ReadU64(addr rotable.Address) (uint64, error) {
	if !m.contains(addr) {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 8)
	}
	v, ok := m.mem.ReadUint64Le(uint32(addr - m.base))
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), 8)
	}
	return v, nil
}

// Compile-time checks that Registry and Module implement rotable.Memory
var _ rotable.Memory = (*Registry)(nil)
var _ rotable.Region = (*Module)(nil)

// Contains reports whether addr lies in the module's mapped span.
func (m *Module) Contains(addr rotable.Address) bool {
	return m.contains(addr)
}
