// Package config handles TOML namespace definitions.
//
// A definition lists static tables, compiled into one ROM image whose root
// maps each table name to the table, and table modules, each compiled into
// its own image at a chosen origin:
//
//	max_name_len = 32
//	metatables = true
//
//	[rom]
//	base = 4096
//
//	[[static]]
//	name = "math"
//	  [[static.entries]]
//	  key = "pi"
//	  number = 3.14159
//
//	[[module]]
//	name = "net"
//	origin = 0
//	  [[module.entries]]
//	  key = "port"
//	  number = 80
//
// An entry has a key (string) or an index (int32) and at most one of
// number, bool, string, func, ref, table or pointer. No value means nil.
// ref names another table of the same image: a static table for ROM
// entries, an entry of the module's tables list for module entries.
package config
