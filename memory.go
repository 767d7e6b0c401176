package rotable

// Address is a location in the interpreter's runtime address space.
// Fixed read-only storage and loaded module memories share one space.
type Address uint32

// Memory is read-only access to the runtime address space.
type Memory interface {
	Read(addr Address, length uint32) ([]byte, error)
	ReadU8(addr Address) (uint8, error)
	ReadU32(addr Address) (uint32, error)
	ReadU64(addr Address) (uint64, error)
}

// Region is a Memory covering a contiguous address range.
type Region interface {
	Memory
	Contains(addr Address) bool
}

// Relocate applies a byte relocation offset to a compiled address.
// The arithmetic wraps, so negative offsets are valid.
func Relocate(addr Address, offset int64) Address {
	return Address(int64(addr) + offset)
}
