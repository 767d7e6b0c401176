package engine

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
)

// FindEntry looks k up in t and returns the value with pointer payloads
// relocated, plus the entry position. A miss returns an error matching
// ErrNotFound. A string key longer than MaxNameLen is rejected without
// scanning. FindEntry panics if k is the nil key.
func (e *Engine) FindEntry(t Table, k Key) (Value, int, error) {
	switch k.kind {
	case KeyString:
		if len(k.str) > e.maxNameLen {
			return Nil, -1, e.keyTooLong(k.str)
		}
	case KeyNumber:
	default:
		panic(errors.InvalidKeyKind(errors.PhaseLookup, k.kind))
	}

	v, pos, ok := e.find(t, k)
	if !ok {
		return Nil, -1, ErrNotFound
	}
	return v, pos, nil
}

// find is the linear key-match shared by every lookup. Read failures end the
// scan as a miss.
func (e *Engine) find(t Table, k Key) (Value, int, bool) {
	offset, ok := e.RelocationOffset(t)
	if !ok {
		e.log.Debug("table not owned by fixed storage or any module",
			zap.Uint32("table", uint32(t)))
		return Nil, -1, false
	}

	for i := 0; ; i++ {
		ent, err := layout.ReadEntry(e.mem, rotable.Address(t), i)
		if err != nil {
			e.log.Debug("table scan stopped",
				zap.Uint32("table", uint32(t)),
				zap.Int("entry", i),
				zap.Error(err))
			return Nil, -1, false
		}
		if ent.IsTerminator() {
			return Nil, -1, false
		}

		switch {
		case k.kind == KeyString && ent.KeyTag == layout.KeyString:
			if !e.keyEquals(rotable.Relocate(ent.KeyAddress(), offset), k.str) {
				continue
			}
		case k.kind == KeyNumber && ent.KeyTag == layout.KeyNumber:
			if ent.NumberKey() != k.num {
				continue
			}
		default:
			continue
		}
		return valueFromEntry(ent).relocate(offset), i, true
	}
}

// keyEquals compares the NUL-terminated string at addr with s over its full
// length, reading exactly len(s)+1 bytes.
func (e *Engine) keyEquals(addr rotable.Address, s string) bool {
	b, err := e.mem.Read(addr, uint32(len(s)+1))
	if err != nil {
		return false
	}
	return b[len(s)] == 0 && string(b[:len(s)]) == s
}

// readCString materializes the NUL-terminated string at addr.
func (e *Engine) readCString(addr rotable.Address) (string, error) {
	var buf bytes.Buffer
	for n := 0; n <= e.maxStringLen; n++ {
		c, err := e.mem.ReadU8(addr + rotable.Address(n))
		if err != nil {
			return "", err
		}
		if c == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(c)
	}
	return "", errors.New(errors.PhaseLookup, errors.KindInvalidData).
		Value(uint32(addr)).
		Detail("string at 0x%08x exceeds %d bytes", uint32(addr), e.maxStringLen).
		Build()
}
