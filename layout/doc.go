// Package layout defines the binary entry-sequence format shared by fixed
// tables and loaded modules, and the Builder that compiles tables into it.
//
// A table is a run of 24-byte entries ended by a terminator entry whose key
// tag is KeyTerminator:
//
//	offset  size  field
//	0       1     key tag (terminator, string, number)
//	4       4     key payload (string address or int32)
//	8       1     value tag (nil, bool, number, string, table, callable, pointer)
//	16      8     value payload (float64 bits, 0/1, or address)
//
// Strings are NUL terminated. Addresses are compiled against the image
// origin; a module placed elsewhere at runtime relocates pointer payloads by
// base minus origin. Scalar payloads are never relocated.
package layout
