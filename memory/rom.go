package memory

import (
	"encoding/binary"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
)

// ROM is a fixed read-only region. Tables inside it are never relocated.
type ROM struct {
	data []byte
	base rotable.Address
}

// NewROM creates a region holding data at base. The slice is not copied and
// must not be modified afterwards.
func NewROM(base rotable.Address, data []byte) *ROM {
	return &ROM{base: base, data: data}
}

// Base returns the first address of the region.
func (r *ROM) Base() rotable.Address { return r.base }

// Size returns the region length in bytes.
func (r *ROM) Size() uint32 { return uint32(len(r.data)) }

// Contains reports whether addr lies inside the region. It is the
// storage-class predicate handed to the engine.
func (r *ROM) Contains(addr rotable.Address) bool {
	return r != nil && addr >= r.base && uint64(addr) < uint64(r.base)+uint64(len(r.data))
}

func (r *ROM) Read(addr rotable.Address, length uint32) ([]byte, error) {
	if !r.Contains(addr) || uint64(addr)+uint64(length) > uint64(r.base)+uint64(len(r.data)) {
		return nil, errors.OutOfBounds(errors.PhaseMemory, uint32(addr), length)
	}
	off := uint32(addr - r.base)
	return r.data[off : off+length : off+length], nil
}

func (r *ROM) ReadU8(addr rotable.Address) (uint8, error) {
	b, err := r.Read(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *ROM) ReadU32(addr rotable.Address) (uint32, error) {
	b, err := r.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *ROM) ReadU64(addr rotable.Address) (uint64, error) {
	b, err := r.Read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

var _ rotable.Region = (*ROM)(nil)
