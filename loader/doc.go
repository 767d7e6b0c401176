// Package loader implements the module registry for runtime-loaded tables.
//
// Each module is a WASM module instantiated with wazero whose linear memory
// holds a table image at offset 0. The module exports:
//
//	memory           the linear memory
//	rotable_origin   i32, address the image was compiled against
//	rotable_root     i32, compiled address of the root table
//
// The registry maps every module memory at its own aligned base in one
// runtime address space. Pointers inside an image are compiled addresses;
// adding the module offset (base minus origin) gives the runtime address.
//
// # Example
//
//	reg, _ := loader.New(ctx, nil)
//	defer reg.Close(ctx)
//	mod, _ := reg.LoadImage(ctx, "net", img)
//	fmt.Printf("net at 0x%x, offset %d\n", mod.Base(), mod.Offset())
//
// # Thread Safety
//
// Registry is safe for concurrent use. Lookups hold no lock across calls,
// so a module unloaded mid-iteration simply stops being readable.
package loader
