// Package rotable provides read-only table resolution for an embedded
// interpreter's global namespace.
//
// Tables live in one of two places: fixed read-only storage baked in at build
// time, or modules loaded at runtime into their own relocatable memory. Both
// are reached through one lookup API.
//
// # Architecture Overview
//
//	rotable/         Root package with the Address type and Memory interface
//	├── layout/      Entry-sequence wire format and the image Builder
//	├── engine/      Tagged values, relocation, scanner, resolver, iterator
//	├── memory/      Fixed ROM region and the composite address Space
//	├── loader/      Module registry backed by wazero linear memories
//	├── config/      TOML namespace definitions compiled to images
//	├── imagestore/  bbolt store of compiled images
//	├── errors/      Structured error types
//	└── cmd/rotable  CLI: pack, get, list and an interactive browser
//
// # Quick Start
//
//	b := layout.NewBuilder(0x1000)
//	math := b.Table()
//	math.Set(layout.StringKey("pi"), layout.Number(3.14159))
//	globals := b.Table()
//	globals.Set(layout.StringKey("math"), layout.Ref(math))
//	img, _ := b.Build(globals)
//
//	rom := memory.NewROM(img.Origin, img.Data)
//	reg, _ := loader.New(ctx, nil)
//	defer reg.Close(ctx)
//
//	eng := engine.New(memory.NewSpace(rom, reg), reg, &engine.Config{
//	    StaticRoot:   engine.Table(img.Root),
//	    FixedStorage: rom.Contains,
//	})
//	t, _ := eng.ResolveGlobal("math")
//	v, _, _ := eng.FindEntry(t, engine.StringKey("pi"))
//	fmt.Println(v.Number()) // 3.14159
//
// # Thread Safety
//
// Engine holds no mutable state and makes no internal synchronization; it is
// meant to be driven by one interpreter thread. The loader Registry is safe
// for concurrent use.
package rotable
