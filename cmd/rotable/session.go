package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/config"
	"github.com/wippyai/rotable/engine"
	"github.com/wippyai/rotable/imagestore"
	"github.com/wippyai/rotable/layout"
	"github.com/wippyai/rotable/loader"
	"github.com/wippyai/rotable/memory"
)

// namespace is a compiled ROM plus the modules to load next to it.
type namespace struct {
	rom        layout.Image
	modules    []config.ModuleImage
	maxNameLen int
	metatables bool
}

func namespaceFromConfig(path string) (*namespace, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	out, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	return &namespace{
		rom:        out.ROM,
		modules:    out.Modules,
		maxNameLen: cfg.MaxNameLen,
		metatables: cfg.Metatables,
	}, nil
}

func namespaceFromStore(path string) (*namespace, error) {
	s, err := imagestore.Open(path, nil)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	recs, err := s.All()
	if err != nil {
		return nil, err
	}
	ns := &namespace{}
	haveROM := false
	for _, r := range recs {
		switch r.Kind {
		case imagestore.KindROM:
			if haveROM {
				return nil, fmt.Errorf("%s: more than one rom record", path)
			}
			haveROM = true
			ns.rom = r.Image()
			ns.maxNameLen = r.MaxNameLen
			ns.metatables = r.Metatables
		case imagestore.KindModule:
			ns.modules = append(ns.modules, config.ModuleImage{Name: r.Name, Image: r.Image()})
		}
	}
	if !haveROM {
		return nil, fmt.Errorf("%s: no rom record", path)
	}
	return ns, nil
}

// pack writes the namespace to a fresh image store.
func (ns *namespace) pack(path string) error {
	s, err := imagestore.Open(path, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Reset(); err != nil {
		return err
	}
	rom := imagestore.NewRecord("rom", imagestore.KindROM, ns.rom)
	rom.MaxNameLen = ns.maxNameLen
	rom.Metatables = ns.metatables
	if err := s.Put(rom); err != nil {
		return err
	}
	for _, m := range ns.modules {
		if err := s.Put(imagestore.NewRecord(m.Name, imagestore.KindModule, m.Image)); err != nil {
			return err
		}
	}
	return nil
}

// session is a live namespace: ROM mapped at its origin and modules
// loaded into a wazero-backed registry.
type session struct {
	reg *loader.Registry
	eng *engine.Engine
	rom *memory.ROM
}

func openSession(ctx context.Context, ns *namespace, log *zap.Logger) (*session, error) {
	reg, err := loader.New(ctx, &loader.Config{Logger: log})
	if err != nil {
		return nil, err
	}
	for _, m := range ns.modules {
		if _, err := reg.LoadImage(ctx, m.Name, m.Image); err != nil {
			reg.Close(ctx)
			return nil, err
		}
	}

	rom := memory.NewROM(ns.rom.Origin, ns.rom.Data)
	eng := engine.New(memory.NewSpace(rom, reg), reg, &engine.Config{
		FixedStorage: rom.Contains,
		Logger:       log,
		StaticRoot:   engine.Table(ns.rom.Root),
		MaxNameLen:   ns.maxNameLen,
		Metatables:   ns.metatables,
	})
	return &session{reg: reg, eng: eng, rom: rom}, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.reg.Close(ctx)
}

// globals lists every resolvable global name: modules in registry order,
// then static tables not shadowed by a module.
func (s *session) globals() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range s.reg.Modules() {
		if !seen[m.Name()] {
			seen[m.Name()] = true
			names = append(names, m.Name())
		}
	}
	s.eng.Each(s.eng.StaticRoot(), func(k engine.Key, v engine.Value) bool {
		if k.IsString() && v.IsTable() && !seen[k.Str()] {
			seen[k.Str()] = true
			names = append(names, k.Str())
		}
		return true
	})
	return names
}

// get resolves a dotted path: a global name followed by keys. Segments
// that parse as 32-bit integers are numeric keys.
func (s *session) get(path string) (engine.Value, error) {
	segs := strings.Split(path, ".")
	t, err := s.eng.ResolveGlobal(segs[0])
	if err != nil {
		return engine.Nil, err
	}
	v := engine.TableRef(t)
	for i, seg := range segs[1:] {
		tbl, ok := v.Table()
		if !ok {
			return engine.Nil, fmt.Errorf("%s is a %s, not a table", strings.Join(segs[:i+1], "."), v.Kind())
		}
		v, _, err = s.eng.FindEntry(tbl, parseKey(seg))
		if err != nil {
			return engine.Nil, fmt.Errorf("%s: %w", strings.Join(segs[:i+2], "."), err)
		}
	}
	return v, nil
}

func parseKey(seg string) engine.Key {
	if n, err := strconv.ParseInt(seg, 10, 32); err == nil {
		return engine.NumberKey(int32(n))
	}
	return engine.StringKey(seg)
}

// format renders a value with strings and callables materialized.
func (s *session) format(v engine.Value) string {
	switch v.Kind() {
	case engine.KindNil:
		return "nil"
	case engine.KindBool:
		return strconv.FormatBool(v.Bool())
	case engine.KindNumber:
		n := v.Number()
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case engine.KindString:
		str, err := s.eng.String(v)
		if err != nil {
			return fmt.Sprintf("<bad string 0x%08x>", uint32(v.Address()))
		}
		return strconv.Quote(str)
	case engine.KindCallable:
		c, _ := v.Callable()
		sym, err := s.eng.Symbol(c)
		if err != nil {
			return fmt.Sprintf("func@0x%08x", uint32(c))
		}
		return "func " + sym
	case engine.KindTable:
		return fmt.Sprintf("table@0x%08x %s", uint32(v.Address()), s.storage(v.Address()))
	default:
		return fmt.Sprintf("pointer@0x%08x", uint32(v.Address()))
	}
}

func (s *session) storage(addr rotable.Address) string {
	if s.rom.Contains(addr) {
		return "(rom)"
	}
	if idx, ok := s.reg.ModuleIDFor(addr); ok {
		return fmt.Sprintf("(module %s)", s.reg.ModuleName(idx))
	}
	return "(unmapped)"
}

// entry is one listed key/value pair.
type entry struct {
	key   engine.Key
	value engine.Value
}

func (s *session) entries(t engine.Table) []entry {
	var out []entry
	s.eng.Each(t, func(k engine.Key, v engine.Value) bool {
		out = append(out, entry{key: k, value: v})
		return true
	})
	return out
}

func formatKey(k engine.Key) string {
	if k.IsNumber() {
		return fmt.Sprintf("[%d]", k.Number())
	}
	return k.Str()
}
