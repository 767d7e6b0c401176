package memory

import (
	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
)

// Space routes reads to the fixed ROM or, for every other address, to the
// memory of loaded modules.
type Space struct {
	rom     *ROM
	modules rotable.Memory
}

// NewSpace combines a ROM with the module memory reader. Either may be nil.
func NewSpace(rom *ROM, modules rotable.Memory) *Space {
	return &Space{rom: rom, modules: modules}
}

// InFixed reports whether addr lies in the fixed ROM.
func (s *Space) InFixed(addr rotable.Address) bool {
	return s.rom.Contains(addr)
}

func (s *Space) target(addr rotable.Address, length uint32) (rotable.Memory, error) {
	if s.rom.Contains(addr) {
		return s.rom, nil
	}
	if s.modules == nil {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), length)
	}
	return s.modules, nil
}

func (s *Space) Read(addr rotable.Address, length uint32) ([]byte, error) {
	m, err := s.target(addr, length)
	if err != nil {
		return nil, err
	}
	return m.Read(addr, length)
}

func (s *Space) ReadU8(addr rotable.Address) (uint8, error) {
	m, err := s.target(addr, 1)
	if err != nil {
		return 0, err
	}
	return m.ReadU8(addr)
}

func (s *Space) ReadU32(addr rotable.Address) (uint32, error) {
	m, err := s.target(addr, 4)
	if err != nil {
		return 0, err
	}
	return m.ReadU32(addr)
}

func (s *Space) ReadU64(addr rotable.Address) (uint64, error) {
	m, err := s.target(addr, 8)
	if err != nil {
		return 0, err
	}
	return m.ReadU64(addr)
}

var _ rotable.Memory = (*Space)(nil)
