package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
)

// DefaultMaxStringLen bounds how far a string payload is read before it
// is treated as unterminated.
const DefaultMaxStringLen = 4096

// MetatableKey is the reserved key holding a table's metatable.
const MetatableKey = "__metatable"

var (
	// ErrNotFound is matched by every not-found result.
	ErrNotFound = &errors.Error{Phase: errors.PhaseLookup, Kind: errors.KindNotFound, Detail: "entry not found"}

	// ErrKeyTooLong is matched when a string key exceeds the configured
	// maximum. Such errors also match ErrNotFound.
	ErrKeyTooLong = &errors.Error{Phase: errors.PhaseLookup, Kind: errors.KindKeyTooLong}
)

// ModuleRegistry is the host capability that knows which modules are
// loaded, where they live and how far they were relocated.
type ModuleRegistry interface {
	// NextModule returns the index following prev in registry order.
	// Pass -1 to start.
	NextModule(prev int) (int, bool)
	// ModuleName returns the registered name of a module.
	ModuleName(idx int) string
	// ModuleRootTable returns the runtime address of a module's root table.
	ModuleRootTable(idx int) rotable.Address
	// RelocationOffsetFor returns the byte offset of the module owning addr.
	RelocationOffsetFor(addr rotable.Address) int64
	// ModuleIDFor returns the index of the module owning addr.
	ModuleIDFor(addr rotable.Address) (int, bool)
}

// Config holds configuration for engine creation
type Config struct {
	// FixedStorage reports whether an address lies in fixed read-only
	// storage. Tables there are never relocated.
	FixedStorage func(rotable.Address) bool

	// Logger overrides the package logger.
	Logger *zap.Logger

	// StaticRoot is the compiled table-of-tables in fixed storage.
	StaticRoot Table

	// MaxNameLen is the longest accepted string key. 0 means
	// layout.DefaultMaxKeyLen.
	MaxNameLen int

	// MaxStringLen bounds string materialization. 0 means
	// DefaultMaxStringLen.
	MaxStringLen int

	// Metatables enables the __metatable lookup.
	Metatables bool
}

// Engine resolves globals and reads entries from read-only tables.
// It keeps no state between calls.
type Engine struct {
	mem          rotable.Memory
	registry     ModuleRegistry
	fixed        func(rotable.Address) bool
	log          *zap.Logger
	static       Table
	maxNameLen   int
	maxStringLen int
	metatables   bool
}

// New creates an engine reading tables from mem. registry may be nil when no
// modules can be loaded.
func New(mem rotable.Memory, registry ModuleRegistry, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	e := &Engine{
		mem:          mem,
		registry:     registry,
		fixed:        cfg.FixedStorage,
		log:          cfg.Logger,
		static:       cfg.StaticRoot,
		maxNameLen:   cfg.MaxNameLen,
		maxStringLen: cfg.MaxStringLen,
		metatables:   cfg.Metatables,
	}
	if e.log == nil {
		e.log = Logger()
	}
	if e.maxNameLen <= 0 {
		e.maxNameLen = layout.DefaultMaxKeyLen
	}
	if e.maxStringLen <= 0 {
		e.maxStringLen = DefaultMaxStringLen
	}
	return e
}

// MaxNameLen returns the longest accepted string key.
func (e *Engine) MaxNameLen() int {
	return e.maxNameLen
}

// StaticRoot returns the compiled table-of-tables.
func (e *Engine) StaticRoot() Table {
	return e.static
}

func (e *Engine) keyTooLong(key string) error {
	return errors.KeyTooLong(errors.PhaseLookup, key, e.maxNameLen, ErrNotFound)
}
