package loader

import (
	"github.com/wippyai/rotable/internal/binary"
	"github.com/wippyai/rotable/layout"
)

// Export names a table module must provide.
const (
	ExportMemory = "memory"
	ExportOrigin = "rotable_origin"
	ExportRoot   = "rotable_root"
)

// PageSize is the WASM linear memory page size.
const PageSize = 65536

const (
	wasmMagic   = 0x6d736100 // "\0asm"
	wasmVersion = 1

	sectionGlobal = 6
	sectionMemory = 5
	sectionExport = 7
	sectionData   = 11

	kindMemory = 0x02
	kindGlobal = 0x03

	valTypeI32 = 0x7f
	opI32Const = 0x41
	opEnd      = 0x0b
)

// EncodeImage wraps a table image into a WASM module holding the image at
// linear memory offset 0 and exporting its compiled origin and root.
func EncodeImage(img layout.Image) []byte {
	w := binary.NewWriter()
	w.WriteU32LE(wasmMagic)
	w.WriteU32LE(wasmVersion)

	pages := (uint32(len(img.Data)) + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}

	// Memory section
	sec := binary.NewWriter()
	sec.WriteU32(1)
	sec.Byte(0x00) // min only
	sec.WriteU32(pages)
	writeSection(w, sectionMemory, sec.Bytes())

	// Global section: immutable i32 origin and root
	sec = binary.NewWriter()
	sec.WriteU32(2)
	for _, v := range []uint32{uint32(img.Origin), uint32(img.Root)} {
		sec.Byte(valTypeI32)
		sec.Byte(0x00)
		sec.Byte(opI32Const)
		sec.WriteS32(int32(v))
		sec.Byte(opEnd)
	}
	writeSection(w, sectionGlobal, sec.Bytes())

	// Export section
	sec = binary.NewWriter()
	sec.WriteU32(3)
	sec.WriteName(ExportMemory)
	sec.Byte(kindMemory)
	sec.WriteU32(0)
	sec.WriteName(ExportOrigin)
	sec.Byte(kindGlobal)
	sec.WriteU32(0)
	sec.WriteName(ExportRoot)
	sec.Byte(kindGlobal)
	sec.WriteU32(1)
	writeSection(w, sectionExport, sec.Bytes())

	// Data section: one active segment at offset 0
	sec = binary.NewWriter()
	sec.WriteU32(1)
	sec.WriteU32(0)
	sec.Byte(opI32Const)
	sec.WriteS32(0)
	sec.Byte(opEnd)
	sec.WriteU32(uint32(len(img.Data)))
	sec.WriteBytes(img.Data)
	writeSection(w, sectionData, sec.Bytes())

	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}
