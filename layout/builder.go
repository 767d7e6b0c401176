package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/internal/binary"
)

// Key is a build-time entry key: a string or a 32-bit number.
type Key struct {
	str string
	num int32
	tag KeyTag
}

// StringKey returns a string key.
func StringKey(s string) Key { return Key{tag: KeyString, str: s} }

// NumberKey returns a numeric key.
func NumberKey(n int32) Key { return Key{tag: KeyNumber, num: n} }

func (k Key) String() string {
	if k.tag == KeyNumber {
		return fmt.Sprintf("[%d]", k.num)
	}
	return k.str
}

// Value is a build-time entry value.
type Value struct {
	table *TableBuilder
	str   string
	num   float64
	ptr   rotable.Address
	tag   ValueTag
	b     bool
}

// Nil returns the nil value.
func Nil() Value { return Value{tag: ValueNil} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{tag: ValueBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{tag: ValueNumber, num: n} }

// String returns a string value stored in the image string pool.
func String(s string) Value { return Value{tag: ValueString, str: s} }

// Ref returns a reference to another table of the same image.
func Ref(t *TableBuilder) Value { return Value{tag: ValueTable, table: t} }

// Func returns a callable bound to the given host symbol.
func Func(symbol string) Value { return Value{tag: ValueCallable, str: symbol} }

// Pointer returns an opaque pointer holding a compiled address.
func Pointer(addr rotable.Address) Value { return Value{tag: ValuePointer, ptr: addr} }

// Tag returns the value's wire tag.
func (v Value) Tag() ValueTag { return v.tag }

type pendingEntry struct {
	key   Key
	value Value
}

// TableBuilder accumulates the entries of one table in insertion order.
type TableBuilder struct {
	b       *Builder
	name    string
	entries []pendingEntry
	strKeys map[string]struct{}
	numKeys map[int32]struct{}
	addr    rotable.Address
	index   int
}

// Named sets a name used in build error paths.
func (t *TableBuilder) Named(name string) *TableBuilder {
	t.name = name
	return t
}

// Len returns the number of entries, excluding the terminator.
func (t *TableBuilder) Len() int {
	return len(t.entries)
}

// Address returns the compiled address of the table. It is valid only
// after a successful Build.
func (t *TableBuilder) Address() rotable.Address {
	return t.addr
}

func (t *TableBuilder) path() []string {
	if t.name != "" {
		return []string{t.name}
	}
	return []string{fmt.Sprintf("table#%d", t.index)}
}

// Set appends an entry. Errors are deferred to Build.
func (t *TableBuilder) Set(k Key, v Value) *TableBuilder {
	if err := t.check(k, v); err != nil {
		t.b.fail(err)
		return t
	}
	if k.tag == KeyString {
		t.strKeys[k.str] = struct{}{}
	} else {
		t.numKeys[k.num] = struct{}{}
	}
	t.entries = append(t.entries, pendingEntry{key: k, value: v})
	return t
}

func (t *TableBuilder) check(k Key, v Value) error {
	switch k.tag {
	case KeyString:
		if strings.IndexByte(k.str, 0) >= 0 {
			return errors.InvalidData(errors.PhaseBuild, t.path(), fmt.Sprintf("key %q contains NUL", k.str))
		}
		if len(k.str) > t.b.maxKeyLen {
			return errors.New(errors.PhaseBuild, errors.KindKeyTooLong).
				Path(t.path()...).
				Value(k.str).
				Detail("key %q longer than %d bytes", k.str, t.b.maxKeyLen).
				Build()
		}
		if _, dup := t.strKeys[k.str]; dup {
			return errors.Duplicate(errors.PhaseBuild, t.path(), "key", k.str)
		}
	case KeyNumber:
		if _, dup := t.numKeys[k.num]; dup {
			return errors.Duplicate(errors.PhaseBuild, t.path(), "key", k.String())
		}
	default:
		return errors.InvalidKeyKind(errors.PhaseBuild, k.tag)
	}

	switch v.tag {
	case ValueString, ValueCallable:
		if strings.IndexByte(v.str, 0) >= 0 {
			return errors.InvalidData(errors.PhaseBuild, t.path(), fmt.Sprintf("value of %s contains NUL", k))
		}
	case ValueTable:
		if v.table == nil || v.table.b != t.b {
			return errors.InvalidData(errors.PhaseBuild, t.path(), fmt.Sprintf("%s refers to a table of another image", k))
		}
	}
	return nil
}

// Builder compiles tables into a contiguous image at a fixed origin.
// Pointers inside the image are compiled addresses relative to that origin.
type Builder struct {
	err       error
	tables    []*TableBuilder
	origin    rotable.Address
	maxKeyLen int
}

// NewBuilder creates a builder for an image compiled at origin.
func NewBuilder(origin rotable.Address) *Builder {
	return &Builder{origin: origin, maxKeyLen: DefaultMaxKeyLen}
}

// WithMaxKeyLen sets the longest accepted string key.
func (b *Builder) WithMaxKeyLen(n int) *Builder {
	if n > 0 {
		b.maxKeyLen = n
	}
	return b
}

// Table starts a new, empty table.
func (b *Builder) Table() *TableBuilder {
	t := &TableBuilder{
		b:       b,
		index:   len(b.tables),
		strKeys: make(map[string]struct{}),
		numKeys: make(map[int32]struct{}),
	}
	b.tables = append(b.tables, t)
	return t
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Image is a compiled, position-dependent block of tables.
type Image struct {
	Data   []byte
	Origin rotable.Address
	Root   rotable.Address
}

// End returns the first address past the image.
func (img Image) End() rotable.Address {
	return img.Origin + rotable.Address(len(img.Data))
}

// Build lays out every table followed by the string pool and returns the
// image. root is the table whose address is recorded as the image root.
func (b *Builder) Build(root *TableBuilder) (Image, error) {
	if b.err != nil {
		return Image{}, b.err
	}
	if root == nil || root.b != b {
		return Image{}, errors.InvalidInput(errors.PhaseBuild, "root table does not belong to this builder")
	}

	// Tables first, in declaration order.
	size := uint64(0)
	for _, t := range b.tables {
		t.addr = b.origin + rotable.Address(size)
		size += uint64(len(t.entries)+1) * EntrySize
	}

	// Interned string pool after the tables.
	pool := make(map[string]rotable.Address)
	var order []string
	intern := func(s string) {
		if _, ok := pool[s]; ok {
			return
		}
		pool[s] = b.origin + rotable.Address(size)
		order = append(order, s)
		size += uint64(len(s) + 1)
	}
	for _, t := range b.tables {
		for _, e := range t.entries {
			if e.key.tag == KeyString {
				intern(e.key.str)
			}
			if e.value.tag == ValueString || e.value.tag == ValueCallable {
				intern(e.value.str)
			}
		}
	}

	if uint64(b.origin)+size > math.MaxUint32 {
		return Image{}, errors.New(errors.PhaseBuild, errors.KindOutOfBounds).
			Detail("image of %d bytes at origin 0x%08x overflows the address space", size, uint32(b.origin)).
			Build()
	}

	w := binary.NewWriter()
	var slot [EntrySize]byte
	for _, t := range b.tables {
		for _, pe := range t.entries {
			encodeEntry(pe, pool).Encode(slot[:])
			w.WriteBytes(slot[:])
		}
		Entry{}.Encode(slot[:])
		w.WriteBytes(slot[:])
	}
	for _, s := range order {
		w.WriteCString(s)
	}

	return Image{
		Data:   w.Bytes(),
		Origin: b.origin,
		Root:   root.addr,
	}, nil
}

func encodeEntry(pe pendingEntry, pool map[string]rotable.Address) Entry {
	e := Entry{KeyTag: pe.key.tag, ValueTag: pe.value.tag}
	if pe.key.tag == KeyString {
		e.KeyPayload = uint32(pool[pe.key.str])
	} else {
		e.KeyPayload = uint32(pe.key.num)
	}

	v := pe.value
	switch v.tag {
	case ValueBool:
		if v.b {
			e.ValuePayload = 1
		}
	case ValueNumber:
		e.ValuePayload = math.Float64bits(v.num)
	case ValueString, ValueCallable:
		e.ValuePayload = uint64(pool[v.str])
	case ValueTable:
		e.ValuePayload = uint64(v.table.addr)
	case ValuePointer:
		e.ValuePayload = uint64(v.ptr)
	}
	return e
}
