package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/wippyai/rotable"
	rterrors "github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
	"github.com/wippyai/rotable/memory"
)

const romBase = rotable.Address(0x1000)

type fakeModule struct {
	name    string
	img     layout.Image
	base    rotable.Address
	removed bool
}

func (m *fakeModule) contains(addr rotable.Address) bool {
	return !m.removed && addr >= m.base && uint64(addr) < uint64(m.base)+uint64(len(m.img.Data))
}

func (m *fakeModule) offset() int64 {
	return int64(m.base) - int64(m.img.Origin)
}

// fakeRegistry places images at fixed bases without a WASM runtime.
type fakeRegistry struct {
	modules []*fakeModule
}

func (r *fakeRegistry) add(name string, img layout.Image, base rotable.Address) *fakeModule {
	m := &fakeModule{name: name, img: img, base: base}
	r.modules = append(r.modules, m)
	return m
}

func (r *fakeRegistry) NextModule(prev int) (int, bool) {
	for i := prev + 1; i < len(r.modules); i++ {
		if !r.modules[i].removed {
			return i, true
		}
	}
	return -1, false
}

func (r *fakeRegistry) ModuleName(idx int) string { return r.modules[idx].name }

func (r *fakeRegistry) ModuleRootTable(idx int) rotable.Address {
	m := r.modules[idx]
	return rotable.Relocate(m.img.Root, m.offset())
}

func (r *fakeRegistry) ModuleIDFor(addr rotable.Address) (int, bool) {
	for i, m := range r.modules {
		if m.contains(addr) {
			return i, true
		}
	}
	return -1, false
}

func (r *fakeRegistry) RelocationOffsetFor(addr rotable.Address) int64 {
	if i, ok := r.ModuleIDFor(addr); ok {
		return r.modules[i].offset()
	}
	return 0
}

func (r *fakeRegistry) region(addr rotable.Address, length uint32) ([]byte, error) {
	for _, m := range r.modules {
		if m.contains(addr) && uint64(addr)+uint64(length) <= uint64(m.base)+uint64(len(m.img.Data)) {
			off := addr - m.base
			return m.img.Data[off : off+rotable.Address(length)], nil
		}
	}
	return nil, rterrors.OutOfBounds(rterrors.PhaseMemory, uint32(addr), length)
}

func (r *fakeRegistry) Read(addr rotable.Address, length uint32) ([]byte, error) {
	return r.region(addr, length)
}

func (r *fakeRegistry) ReadU8(addr rotable.Address) (uint8, error) {
	b, err := r.region(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *fakeRegistry) ReadU32(rotable.Address) (uint32, error) { return 0, errors.New("unused") }
func (r *fakeRegistry) ReadU64(rotable.Address) (uint64, error) { return 0, errors.New("unused") }

type fixture struct {
	eng     *Engine
	reg     *fakeRegistry
	rom     *memory.ROM
	romImg  layout.Image
	globals *layout.TableBuilder
}

// newFixture builds a ROM holding the tables produced by fill and an
// engine over it. fill receives the builder and registers globals.
func newFixture(t *testing.T, cfg Config, fill func(b *layout.Builder, globals *layout.TableBuilder)) *fixture {
	t.Helper()
	b := layout.NewBuilder(romBase).WithMaxKeyLen(64)
	globals := b.Table().Named("globals")
	if fill != nil {
		fill(b, globals)
	}
	img, err := b.Build(globals)
	if err != nil {
		t.Fatalf("build ROM: %v", err)
	}

	rom := memory.NewROM(img.Origin, img.Data)
	reg := &fakeRegistry{}
	cfg.StaticRoot = Table(img.Root)
	cfg.FixedStorage = rom.Contains
	eng := New(memory.NewSpace(rom, reg), reg, &cfg)
	return &fixture{eng: eng, reg: reg, rom: rom, romImg: img, globals: globals}
}

func buildModule(t *testing.T, origin rotable.Address, fill func(b *layout.Builder) *layout.TableBuilder) layout.Image {
	t.Helper()
	b := layout.NewBuilder(origin)
	root := fill(b)
	img, err := b.Build(root)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	return img
}

func mustResolve(t *testing.T, eng *Engine, name string) Table {
	t.Helper()
	tbl, err := eng.ResolveGlobal(name)
	if err != nil {
		t.Fatalf("ResolveGlobal(%q): %v", name, err)
	}
	return tbl
}

func TestFindEntry(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		tbl.Set(layout.StringKey("a"), layout.Number(1)).
			Set(layout.NumberKey(7), layout.Bool(true)).
			Set(layout.StringKey("ab"), layout.Number(2)).
			Set(layout.NumberKey(-3), layout.Nil())
		g.Set(layout.StringKey("t"), layout.Ref(tbl))
	})
	tbl := mustResolve(t, f.eng, "t")

	tests := []struct {
		name    string
		key     Key
		wantPos int
		check   func(Value) bool
	}{
		{"string a", StringKey("a"), 0, func(v Value) bool { return v.IsNumber() && v.Number() == 1 }},
		{"number 7", NumberKey(7), 1, func(v Value) bool { return v.IsBool() && v.Bool() }},
		{"string ab", StringKey("ab"), 2, func(v Value) bool { return v.Number() == 2 }},
		{"negative number", NumberKey(-3), 3, func(v Value) bool { return v.IsNil() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, pos, err := f.eng.FindEntry(tbl, tt.key)
			if err != nil {
				t.Fatalf("FindEntry(%v): %v", tt.key, err)
			}
			if pos != tt.wantPos {
				t.Errorf("pos = %d, want %d", pos, tt.wantPos)
			}
			if !tt.check(v) {
				t.Errorf("unexpected value %v", v)
			}
		})
	}

	misses := []Key{
		StringKey("b"),
		StringKey("abc"),
		StringKey(""),
		NumberKey(8),
		NumberKey(0),
	}
	for _, k := range misses {
		if _, pos, err := f.eng.FindEntry(tbl, k); !errors.Is(err, ErrNotFound) || pos != -1 {
			t.Errorf("FindEntry(%v) = pos %d, err %v; want not found", k, pos, err)
		}
	}
}

func TestFindEntryNumericKeyOnStringTable(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		// Values chosen so a confused scanner comparing payloads could hit.
		tbl.Set(layout.StringKey("five"), layout.Number(5)).
			Set(layout.StringKey("x"), layout.Number(5))
		g.Set(layout.StringKey("s"), layout.Ref(tbl))
	})
	tbl := mustResolve(t, f.eng, "s")
	if _, _, err := f.eng.FindEntry(tbl, NumberKey(5)); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestFindEntryKeyTooLong(t *testing.T) {
	f := newFixture(t, Config{MaxNameLen: 8}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		tbl.Set(layout.StringKey("abcdefghi"), layout.Number(9)).
			Set(layout.StringKey("abcdefgh"), layout.Number(8))
		g.Set(layout.StringKey("t"), layout.Ref(tbl))
		g.Set(layout.StringKey("abcdefghi"), layout.Ref(tbl))
	})
	tbl := mustResolve(t, f.eng, "t")

	_, _, err := f.eng.FindEntry(tbl, StringKey("abcdefghi"))
	if !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("err = %v, want key_too_long", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, should also match not found", err)
	}

	v, _, err := f.eng.FindEntry(tbl, StringKey("abcdefgh"))
	if err != nil || v.Number() != 8 {
		t.Errorf("max-length key: v=%v err=%v, want 8", v, err)
	}

	if _, err := f.eng.ResolveGlobal("abcdefghi"); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("ResolveGlobal err = %v, want key_too_long", err)
	}
}

func TestFindEntryNilKeyPanics(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	defer func() {
		r := recover()
		err, ok := r.(*rterrors.Error)
		if !ok || err.Kind != rterrors.KindInvalidKeyKind {
			t.Errorf("recover() = %v, want invalid_key_kind error", r)
		}
	}()
	f.eng.FindEntry(f.eng.StaticRoot(), NilKey)
}

func TestNextScenario(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		tbl.Set(layout.StringKey("a"), layout.Number(1)).
			Set(layout.StringKey("b"), layout.Number(2))
		g.Set(layout.StringKey("t"), layout.Ref(tbl))
	})
	tbl := mustResolve(t, f.eng, "t")

	k, v := f.eng.Next(tbl, NilKey)
	if k != StringKey("a") || v.Number() != 1 {
		t.Fatalf("Next(nil) = (%v, %v), want (a, 1)", k, v)
	}
	k, v = f.eng.Next(tbl, k)
	if k != StringKey("b") || v.Number() != 2 {
		t.Fatalf("Next(a) = (%v, %v), want (b, 2)", k, v)
	}
	k, v = f.eng.Next(tbl, k)
	if !k.IsNil() || !v.IsNil() {
		t.Fatalf("Next(b) = (%v, %v), want (nil, nil)", k, v)
	}
	// Exhaustion is idempotent.
	k, v = f.eng.Next(tbl, StringKey("b"))
	if !k.IsNil() || !v.IsNil() {
		t.Errorf("Next(b) again = (%v, %v), want (nil, nil)", k, v)
	}
}

func TestNextCompleteness(t *testing.T) {
	keys := []layout.Key{
		layout.StringKey("one"),
		layout.NumberKey(2),
		layout.StringKey("three"),
		layout.NumberKey(-4),
		layout.StringKey("five"),
	}
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		for i, k := range keys {
			tbl.Set(k, layout.Number(float64(i)))
		}
		g.Set(layout.StringKey("t"), layout.Ref(tbl))
		g.Set(layout.StringKey("empty"), layout.Ref(b.Table()))
	})

	tbl := mustResolve(t, f.eng, "t")
	var got []Key
	f.eng.Each(tbl, func(k Key, v Value) bool {
		if v.Number() != float64(len(got)) {
			t.Errorf("value for %v = %v, want %d", k, v, len(got))
		}
		got = append(got, k)
		return true
	})

	want := []Key{StringKey("one"), NumberKey(2), StringKey("three"), NumberKey(-4), StringKey("five")}
	if len(got) != len(want) {
		t.Fatalf("iterated %d entries, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, got[i], want[i])
		}
	}

	empty := mustResolve(t, f.eng, "empty")
	if k, v := f.eng.Next(empty, NilKey); !k.IsNil() || !v.IsNil() {
		t.Errorf("Next on empty table = (%v, %v), want (nil, nil)", k, v)
	}

	if k, _ := f.eng.Next(tbl, StringKey("missing")); !k.IsNil() {
		t.Errorf("Next from unknown key = %v, want nil", k)
	}

	count := 0
	f.eng.Each(tbl, func(Key, Value) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("Each did not stop early: %d calls", count)
	}
}

func TestModuleRelocation(t *testing.T) {
	const base = rotable.Address(0x40000)
	var inner, root *layout.TableBuilder
	img := buildModule(t, 0x100, func(b *layout.Builder) *layout.TableBuilder {
		inner = b.Table()
		inner.Set(layout.NumberKey(1), layout.String("deep"))
		root = b.Table()
		root.Set(layout.StringKey("pi"), layout.Number(math.Pi)).
			Set(layout.StringKey("on"), layout.Bool(true)).
			Set(layout.StringKey("name"), layout.String("relocated")).
			Set(layout.StringKey("inner"), layout.Ref(inner)).
			Set(layout.StringKey("raw"), layout.Pointer(0x180)).
			Set(layout.StringKey("go"), layout.Func("host.go"))
		return root
	})

	f := newFixture(t, Config{}, nil)
	f.reg.add("mod", img, base)
	offset := int64(base) - 0x100

	tbl := mustResolve(t, f.eng, "mod")
	if Table(rotable.Relocate(root.Address(), offset)) != tbl {
		t.Fatalf("root table = 0x%x, want relocated 0x%x", tbl, rotable.Relocate(root.Address(), offset))
	}
	if got, ok := f.eng.RelocationOffset(tbl); !ok || got != offset {
		t.Errorf("RelocationOffset = %d, %v; want %d", got, ok, offset)
	}
	if f.eng.InFixedStorage(tbl) {
		t.Error("module table reported as fixed storage")
	}

	v, _, err := f.eng.FindEntry(tbl, StringKey("pi"))
	if err != nil || v.Bits() != math.Float64bits(math.Pi) {
		t.Errorf("pi = %v (%v), want bit-identical pi", v, err)
	}
	v, _, _ = f.eng.FindEntry(tbl, StringKey("on"))
	if v.Bits() != 1 {
		t.Errorf("bool payload = %d, want 1", v.Bits())
	}

	v, _, _ = f.eng.FindEntry(tbl, StringKey("inner"))
	innerTbl, ok := v.Table()
	if !ok || rotable.Address(innerTbl) != rotable.Relocate(inner.Address(), offset) {
		t.Fatalf("inner = %v, want table at compiled+offset", v)
	}
	dv, _, err := f.eng.FindEntry(innerTbl, NumberKey(1))
	if err != nil {
		t.Fatalf("inner[1]: %v", err)
	}
	if s, err := f.eng.String(dv); err != nil || s != "deep" {
		t.Errorf("inner[1] = %q, %v; want deep", s, err)
	}

	v, _, _ = f.eng.FindEntry(tbl, StringKey("name"))
	if s, err := f.eng.String(v); err != nil || s != "relocated" {
		t.Errorf("name = %q, %v", s, err)
	}

	v, _, _ = f.eng.FindEntry(tbl, StringKey("raw"))
	if !v.IsPointer() || v.Address() != rotable.Relocate(0x180, offset) {
		t.Errorf("raw = %v, want pointer at 0x180+offset", v)
	}

	c, ok := f.eng.FindCallable(tbl, "go")
	if !ok {
		t.Fatal("FindCallable(go) not found")
	}
	if sym, err := f.eng.Symbol(c); err != nil || sym != "host.go" {
		t.Errorf("Symbol = %q, %v", sym, err)
	}

	var keys []string
	f.eng.Each(tbl, func(k Key, _ Value) bool {
		keys = append(keys, k.Str())
		return true
	})
	if len(keys) != 6 || keys[0] != "pi" || keys[5] != "go" {
		t.Errorf("iterated keys = %v", keys)
	}
}

func TestScalarsIdenticalAcrossStorage(t *testing.T) {
	fill := func(tbl *layout.TableBuilder) {
		tbl.Set(layout.StringKey("n"), layout.Number(-0.125)).
			Set(layout.StringKey("b"), layout.Bool(true)).
			Set(layout.StringKey("z"), layout.Nil())
	}
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		fill(tbl)
		g.Set(layout.StringKey("fixed"), layout.Ref(tbl))
	})
	img := buildModule(t, 0, func(b *layout.Builder) *layout.TableBuilder {
		tbl := b.Table()
		fill(tbl)
		return tbl
	})
	f.reg.add("moved", img, 0x90000)

	fixed := mustResolve(t, f.eng, "fixed")
	moved := mustResolve(t, f.eng, "moved")
	if off, _ := f.eng.RelocationOffset(fixed); off != 0 {
		t.Errorf("fixed offset = %d, want 0", off)
	}

	for _, key := range []string{"n", "b", "z"} {
		a, _, errA := f.eng.FindEntry(fixed, StringKey(key))
		b, _, errB := f.eng.FindEntry(moved, StringKey(key))
		if errA != nil || errB != nil {
			t.Fatalf("%s: %v / %v", key, errA, errB)
		}
		if a != b {
			t.Errorf("%s: fixed %v != relocated %v", key, a, b)
		}
	}
}

func TestModuleShadowing(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		tbl.Set(layout.StringKey("from"), layout.String("rom"))
		g.Set(layout.StringKey("m"), layout.Ref(tbl))
		g.Set(layout.StringKey("only"), layout.Ref(tbl))
	})

	romTable := mustResolve(t, f.eng, "m")
	if !f.eng.InFixedStorage(romTable) {
		t.Fatal("static m should be in fixed storage")
	}

	img := buildModule(t, 0, func(b *layout.Builder) *layout.TableBuilder {
		tbl := b.Table()
		tbl.Set(layout.StringKey("from"), layout.String("module"))
		return tbl
	})
	first := f.reg.add("m", img, 0x20000)
	f.reg.add("m", img, 0x30000)

	got := mustResolve(t, f.eng, "m")
	if got == romTable {
		t.Fatal("module did not shadow static table")
	}
	if rotable.Address(got) != rotable.Relocate(img.Root, 0x20000) {
		t.Errorf("resolved 0x%x, want first loaded module", got)
	}
	v, _, _ := f.eng.FindEntry(got, StringKey("from"))
	if s, _ := f.eng.String(v); s != "module" {
		t.Errorf("from = %q, want module", s)
	}

	if mustResolve(t, f.eng, "only") != romTable {
		t.Error("unshadowed static lookup changed")
	}

	first.removed = true
	if rotable.Address(mustResolve(t, f.eng, "m")) != rotable.Relocate(img.Root, 0x30000) {
		t.Error("second module should take over after first is removed")
	}
}

func TestResolveGlobalMisses(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		g.Set(layout.StringKey("num"), layout.Number(3))
		g.Set(layout.StringKey(""), layout.Ref(b.Table()))
	})

	for _, name := range []string{"absent", "num", ""} {
		_, err := f.eng.ResolveGlobal(name)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("ResolveGlobal(%q) err = %v, want not found", name, err)
		}
	}
}

func TestUnloadedModuleExhaustsIteration(t *testing.T) {
	img := buildModule(t, 0, func(b *layout.Builder) *layout.TableBuilder {
		tbl := b.Table()
		tbl.Set(layout.StringKey("a"), layout.Number(1)).
			Set(layout.StringKey("b"), layout.Number(2))
		return tbl
	})
	f := newFixture(t, Config{}, nil)
	m := f.reg.add("gone", img, 0x50000)

	tbl := mustResolve(t, f.eng, "gone")
	k, _ := f.eng.Next(tbl, NilKey)
	if k != StringKey("a") {
		t.Fatalf("first key = %v", k)
	}

	m.removed = true
	if k, v := f.eng.Next(tbl, k); !k.IsNil() || !v.IsNil() {
		t.Errorf("Next after unload = (%v, %v), want (nil, nil)", k, v)
	}
	if _, _, err := f.eng.FindEntry(tbl, StringKey("b")); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindEntry after unload err = %v, want not found", err)
	}
}

func TestMetatable(t *testing.T) {
	fill := func(b *layout.Builder, g *layout.TableBuilder) {
		meta := b.Table()
		meta.Set(layout.StringKey("__index"), layout.Func("index"))
		withMeta := b.Table()
		withMeta.Set(layout.StringKey(MetatableKey), layout.Ref(meta))
		badMeta := b.Table()
		badMeta.Set(layout.StringKey(MetatableKey), layout.Number(1))
		g.Set(layout.StringKey("meta"), layout.Ref(meta))
		g.Set(layout.StringKey("with"), layout.Ref(withMeta))
		g.Set(layout.StringKey("bad"), layout.Ref(badMeta))
	}

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, Config{Metatables: true}, fill)
		mt, ok := f.eng.Metatable(mustResolve(t, f.eng, "with"))
		if !ok || mt != mustResolve(t, f.eng, "meta") {
			t.Errorf("Metatable = 0x%x, %v", mt, ok)
		}
		if _, ok := f.eng.Metatable(mustResolve(t, f.eng, "bad")); ok {
			t.Error("non-table __metatable should be absent")
		}
		if _, ok := f.eng.Metatable(mustResolve(t, f.eng, "meta")); ok {
			t.Error("table without __metatable should be absent")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, Config{}, fill)
		if _, ok := f.eng.Metatable(mustResolve(t, f.eng, "with")); ok {
			t.Error("Metatable should be absent when disabled")
		}
	})
}

func TestFindCallableFilters(t *testing.T) {
	f := newFixture(t, Config{}, func(b *layout.Builder, g *layout.TableBuilder) {
		tbl := b.Table()
		tbl.Set(layout.StringKey("fn"), layout.Func("print")).
			Set(layout.StringKey("tbl"), layout.Ref(tbl)).
			Set(layout.StringKey("num"), layout.Number(1)).
			Set(layout.StringKey("ptr"), layout.Pointer(0x10)).
			Set(layout.StringKey("str"), layout.String("print"))
		g.Set(layout.StringKey("lib"), layout.Ref(tbl))
	})
	lib := mustResolve(t, f.eng, "lib")

	if _, ok := f.eng.FindCallable(lib, "fn"); !ok {
		t.Error("fn should be callable")
	}
	for _, name := range []string{"tbl", "num", "ptr", "str", "missing"} {
		if _, ok := f.eng.FindCallable(lib, name); ok {
			t.Errorf("FindCallable(%q) should be absent", name)
		}
	}
}

func TestStringRejectsNonString(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	_, err := f.eng.String(NumberValue(1))
	if !errors.Is(err, &rterrors.Error{Phase: rterrors.PhaseLookup, Kind: rterrors.KindInvalidInput}) {
		t.Errorf("err = %v, want invalid_input", err)
	}
}

func TestUnownedTable(t *testing.T) {
	f := newFixture(t, Config{}, nil)
	stray := Table(0x7000000)
	if _, ok := f.eng.RelocationOffset(stray); ok {
		t.Error("stray table should not have an offset")
	}
	if _, _, err := f.eng.FindEntry(stray, NumberKey(1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
	if k, _ := f.eng.Next(stray, NilKey); !k.IsNil() {
		t.Errorf("Next on stray = %v, want nil", k)
	}
}
