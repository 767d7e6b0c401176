// Package engine resolves names and keys against read-only tables.
//
// Tables live either in fixed storage or in a loaded module's relocatable
// memory. Every lookup first asks where the table lives: fixed tables have
// offset 0, module tables use the offset their ModuleRegistry reports. The
// offset is added to string keys and to pointer-valued payloads (strings,
// tables, callables, light pointers); bool and number payloads are returned
// untouched.
//
// # Operations
//
//   - ResolveGlobal: loaded modules by name, then the static table-of-tables
//   - FindEntry: linear match of a string or number key
//   - Next: stateless iteration by re-locating the previous key
//   - Metatable: the __metatable entry, when enabled
//   - FindCallable: FindEntry filtered to callables
//
// Values are returned by value; no scratch state is shared between calls.
// Engine makes no internal synchronization and is meant to be driven from
// one interpreter thread.
package engine
