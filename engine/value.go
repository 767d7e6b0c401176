package engine

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/layout"
)

// Table is a handle to a table: the runtime address of its first entry.
type Table rotable.Address

// Callable is a handle to a bound lightweight callable.
type Callable rotable.Address

// Kind is the variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindTable
	KindCallable
	KindPointer
)

func (k Kind) String() string {
	return layout.ValueTag(k).String()
}

// Value is a tagged value read from a table. Scalars are stored by value;
// the reference kinds carry a runtime address.
type Value struct {
	bits uint64
	kind Kind
}

// Nil is the nil value.
var Nil = Value{}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// NumberValue returns a numeric value.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, bits: math.Float64bits(n)}
}

// StringRef returns a reference to a NUL-terminated string at addr.
func StringRef(addr rotable.Address) Value {
	return Value{kind: KindString, bits: uint64(addr)}
}

// TableRef returns a reference to a table.
func TableRef(t Table) Value {
	return Value{kind: KindTable, bits: uint64(t)}
}

// CallableRef returns a reference to a callable.
func CallableRef(c Callable) Value {
	return Value{kind: KindCallable, bits: uint64(c)}
}

// PointerValue returns an opaque pointer value.
func PointerValue(addr rotable.Address) Value {
	return Value{kind: KindPointer, bits: uint64(addr)}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }
func (v Value) IsBool() bool { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsTable() bool { return v.kind == KindTable }
func (v Value) IsCallable() bool { return v.kind == KindCallable }
func (v Value) IsPointer() bool { return v.kind == KindPointer }

// IsRef reports whether the value carries an address.
func (v Value) IsRef() bool {
	return layout.ValueTag(v.kind).IsPointer()
}

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool {
	return v.kind == KindBool && v.bits != 0
}

// Number returns the numeric payload; 0 for other kinds.
func (v Value) Number() float64 {
	if v.kind != KindNumber {
		return 0
	}
	return math.Float64frombits(v.bits)
}

// Address returns the runtime address of a reference value; 0 for scalars.
func (v Value) Address() rotable.Address {
	if !v.IsRef() {
		return 0
	}
	return rotable.Address(v.bits)
}

// Table returns the referenced table.
func (v Value) Table() (Table, bool) {
	if v.kind != KindTable {
		return 0, false
	}
	return Table(v.bits), true
}

// Callable returns the referenced callable.
func (v Value) Callable() (Callable, bool) {
	if v.kind != KindCallable {
		return 0, false
	}
	return Callable(v.bits), true
}

// Bits returns the raw payload.
func (v Value) Bits() uint64 { return v.bits }

// relocate applies offset to reference payloads. Scalars pass through.
func (v Value) relocate(offset int64) Value {
	if offset == 0 || !v.IsRef() {
		return v
	}
	v.bits = uint64(rotable.Relocate(rotable.Address(v.bits), offset))
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindNumber:
		return strconv.FormatFloat(v.Number(), 'g', -1, 64)
	default:
		return fmt.Sprintf("%s: 0x%08x", v.kind, uint32(v.bits))
	}
}

func valueFromEntry(e layout.Entry) Value {
	v := Value{kind: Kind(e.ValueTag), bits: e.ValuePayload}
	if v.IsRef() {
		v.bits &= math.MaxUint32
	}
	return v
}

// KeyKind is the variant of a Key.
type KeyKind uint8

const (
	KeyNil KeyKind = iota
	KeyString
	KeyNumber
)

// Key is a lookup or iteration key. The zero Key is nil, which starts an
// iteration and is not a valid lookup key.
type Key struct {
	str  string
	num  int32
	kind KeyKind
}

// NilKey is the absent key.
var NilKey = Key{}

// StringKey returns a key matching string-keyed entries by content.
func StringKey(s string) Key { return Key{kind: KeyString, str: s} }

// NumberKey returns a key matching number-keyed entries by value.
func NumberKey(n int32) Key { return Key{kind: KeyNumber, num: n} }

func (k Key) Kind() KeyKind { return k.kind }
func (k Key) IsNil() bool { return k.kind == KeyNil }
func (k Key) Str() string { return k.str }
func (k Key) Number() int32 { return k.num }
func (k Key) IsString() bool { return k.kind == KeyString }
func (k Key) IsNumber() bool { return k.kind == KeyNumber }

func (k Key) String() string {
	switch k.kind {
	case KeyString:
		return strconv.Quote(k.str)
	case KeyNumber:
		return strconv.FormatInt(int64(k.num), 10)
	default:
		return "nil"
	}
}
