package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
)

// EntrySize is the size in bytes of one encoded entry.
const EntrySize = 24

// Field offsets within an encoded entry.
const (
	offKeyTag       = 0
	offKeyPayload   = 4
	offValueTag     = 8
	offValuePayload = 16
)

// DefaultMaxKeyLen is the longest string key accepted by default.
const DefaultMaxKeyLen = 32

// KeyTag identifies the kind of an entry key.
type KeyTag uint8

const (
	KeyTerminator KeyTag = iota
	KeyString
	KeyNumber
)

func (t KeyTag) String() string {
	switch t {
	case KeyTerminator:
		return "terminator"
	case KeyString:
		return "string"
	case KeyNumber:
		return "number"
	default:
		return fmt.Sprintf("key(%d)", uint8(t))
	}
}

// ValueTag identifies the kind of an entry value.
type ValueTag uint8

const (
	ValueNil ValueTag = iota
	ValueBool
	ValueNumber
	ValueString
	ValueTable
	ValueCallable
	ValuePointer
)

func (t ValueTag) String() string {
	switch t {
	case ValueNil:
		return "nil"
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	case ValueTable:
		return "table"
	case ValueCallable:
		return "callable"
	case ValuePointer:
		return "pointer"
	default:
		return fmt.Sprintf("value(%d)", uint8(t))
	}
}

// IsPointer reports whether the payload of this tag holds an address.
// Only pointer payloads are subject to relocation.
func (t ValueTag) IsPointer() bool {
	return t == ValueString || t == ValueTable || t == ValueCallable || t == ValuePointer
}

// Entry is one decoded key/value slot of a table.
type Entry struct {
	ValuePayload uint64
	KeyPayload   uint32
	KeyTag       KeyTag
	ValueTag     ValueTag
}

// IsTerminator reports whether e marks the end of a table.
func (e Entry) IsTerminator() bool {
	return e.KeyTag == KeyTerminator
}

// KeyAddress returns the compiled address of a string key.
func (e Entry) KeyAddress() rotable.Address {
	return rotable.Address(e.KeyPayload)
}

// NumberKey returns the numeric key value.
func (e Entry) NumberKey() int32 {
	return int32(e.KeyPayload)
}

// EntryAt returns the address of entry i of the table starting at table.
func EntryAt(table rotable.Address, i int) rotable.Address {
	return table + rotable.Address(i*EntrySize)
}

// Encode writes e into dst, which must hold at least EntrySize bytes.
func (e Entry) Encode(dst []byte) {
	_ = dst[EntrySize-1]
	for i := range dst[:EntrySize] {
		dst[i] = 0
	}
	dst[offKeyTag] = byte(e.KeyTag)
	binary.LittleEndian.PutUint32(dst[offKeyPayload:], e.KeyPayload)
	dst[offValueTag] = byte(e.ValueTag)
	binary.LittleEndian.PutUint64(dst[offValuePayload:], e.ValuePayload)
}

// DecodeEntry parses one encoded entry.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < EntrySize {
		return Entry{}, errors.InvalidData(errors.PhaseLookup, nil,
			fmt.Sprintf("entry needs %d bytes, got %d", EntrySize, len(b)))
	}
	e := Entry{
		KeyTag:       KeyTag(b[offKeyTag]),
		KeyPayload:   binary.LittleEndian.Uint32(b[offKeyPayload:]),
		ValueTag:     ValueTag(b[offValueTag]),
		ValuePayload: binary.LittleEndian.Uint64(b[offValuePayload:]),
	}
	if e.KeyTag > KeyNumber {
		return Entry{}, errors.New(errors.PhaseLookup, errors.KindInvalidData).
			Value(e.KeyTag).
			Detail("unknown key tag %d", uint8(e.KeyTag)).
			Build()
	}
	if e.ValueTag > ValuePointer {
		return Entry{}, errors.New(errors.PhaseLookup, errors.KindInvalidData).
			Value(e.ValueTag).
			Detail("unknown value tag %d", uint8(e.ValueTag)).
			Build()
	}
	return e, nil
}

// ReadEntry reads and decodes entry i of the table at table.
func ReadEntry(mem rotable.Memory, table rotable.Address, i int) (Entry, error) {
	b, err := mem.Read(EntryAt(table, i), EntrySize)
	if err != nil {
		return Entry{}, err
	}
	return DecodeEntry(b)
}
