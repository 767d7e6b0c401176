package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/layout"
)

// Next returns the entry following prev in storage order. A nil prev yields
// the first entry. Exhaustion, an unknown prev, or a table that is no
// longer readable all yield (NilKey, Nil), and every later call does too.
//
// No cursor is kept: prev is located again on each call, so a full walk of
// n entries costs O(n^2) entry reads.
func (e *Engine) Next(t Table, prev Key) (Key, Value) {
	pos := 0
	switch prev.kind {
	case KeyNil:
	case KeyString, KeyNumber:
		if prev.kind == KeyString && len(prev.str) > e.maxNameLen {
			return NilKey, Nil
		}
		_, at, ok := e.find(t, prev)
		if !ok {
			return NilKey, Nil
		}
		pos = at + 1
	default:
		return NilKey, Nil
	}
	return e.entryAt(t, pos)
}

// entryAt materializes entry pos. String keys are copied out of table
// storage so they stay valid when passed back to Next.
func (e *Engine) entryAt(t Table, pos int) (Key, Value) {
	offset, ok := e.RelocationOffset(t)
	if !ok {
		return NilKey, Nil
	}
	ent, err := layout.ReadEntry(e.mem, rotable.Address(t), pos)
	if err != nil {
		e.log.Debug("iteration stopped",
			zap.Uint32("table", uint32(t)),
			zap.Int("entry", pos),
			zap.Error(err))
		return NilKey, Nil
	}

	var key Key
	switch ent.KeyTag {
	case layout.KeyString:
		s, err := e.readCString(rotable.Relocate(ent.KeyAddress(), offset))
		if err != nil {
			e.log.Debug("unreadable key",
				zap.Uint32("table", uint32(t)),
				zap.Int("entry", pos),
				zap.Error(err))
			return NilKey, Nil
		}
		key = StringKey(s)
	case layout.KeyNumber:
		key = NumberKey(ent.NumberKey())
	default:
		return NilKey, Nil
	}
	return key, valueFromEntry(ent).relocate(offset)
}

// Each walks t with Next until exhaustion or until fn returns false.
func (e *Engine) Each(t Table, fn func(Key, Value) bool) {
	for k, v := e.Next(t, NilKey); !k.IsNil(); k, v = e.Next(t, k) {
		if !fn(k, v) {
			return
		}
	}
}
