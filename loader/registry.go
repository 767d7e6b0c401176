package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/engine"
	"github.com/wippyai/rotable/errors"
	"github.com/wippyai/rotable/layout"
)

// Defaults for the runtime placement arena.
const (
	DefaultArenaBase rotable.Address = 0x10000000
	DefaultAlign     uint32          = PageSize
)

// Config holds configuration for registry creation
type Config struct {
	// Logger overrides the package logger.
	Logger *zap.Logger

	// ArenaBase is the first runtime address handed to a module.
	// 0 means DefaultArenaBase.
	ArenaBase rotable.Address

	// Align is the placement alignment. It must be a power of two.
	// 0 means DefaultAlign.
	Align uint32

	// MemoryLimitPages caps each module memory in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Module is a table module placed in the runtime address space.
type Module struct {
	compiled wazero.CompiledModule
	instance api.Module
	mem      api.Memory
	name     string
	index    int
	base     rotable.Address
	size     uint32
	origin   rotable.Address
	root     rotable.Address
}

// Name returns the registered module name.
func (m *Module) Name() string { return m.name }

// Index returns the registry slot of the module.
func (m *Module) Index() int { return m.index }

// Base returns the runtime address of the module memory.
func (m *Module) Base() rotable.Address { return m.base }

// Size returns the number of bytes mapped at Base.
func (m *Module) Size() uint32 { return m.size }

// Origin returns the address the module image was compiled against.
func (m *Module) Origin() rotable.Address { return m.origin }

// Offset returns the relocation offset: base minus compiled origin.
func (m *Module) Offset() int64 {
	return int64(m.base) - int64(m.origin)
}

// Root returns the runtime address of the module's root table.
func (m *Module) Root() rotable.Address {
	return rotable.Relocate(m.root, m.Offset())
}

func (m *Module) contains(addr rotable.Address) bool {
	return addr >= m.base && uint64(addr) < uint64(m.base)+uint64(m.size)
}

// Registry loads table modules into wazero linear memories and places them
// in a shared runtime address space. Registry is safe for concurrent use.
type Registry struct {
	runtime wazero.Runtime
	log     *zap.Logger
	modules []*Module
	next    uint64
	align   uint32
	mu      sync.RWMutex
	closed  bool
}

// New creates a registry with its own wazero runtime.
func New(ctx context.Context, cfg *Config) (*Registry, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	align := cfg.Align
	if align == 0 {
		align = DefaultAlign
	}
	if align&(align-1) != 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("alignment %d is not a power of two", align))
	}
	base := cfg.ArenaBase
	if base == 0 {
		base = DefaultArenaBase
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	log := cfg.Logger
	if log == nil {
		log = Logger()
	}

	return &Registry{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		log:     log,
		next:    alignUp(uint64(base), align),
		align:   align,
	}, nil
}

func alignUp(v uint64, align uint32) uint64 {
	a := uint64(align)
	return (v + a - 1) &^ (a - 1)
}

// LoadImage wraps a compiled image into a WASM module and loads it.
func (r *Registry) LoadImage(ctx context.Context, name string, img layout.Image) (*Module, error) {
	return r.LoadWasm(ctx, name, EncodeImage(img))
}

// LoadWasm instantiates a WASM module exporting a memory plus the
// rotable_origin and rotable_root globals, and registers it under name.
// Modules are searched in load order, so an earlier module shadows a later
// one with the same name.
func (r *Registry) LoadWasm(ctx context.Context, name string, wasm []byte) (*Module, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module name is empty")
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, errors.NotInitialized(errors.PhaseLoad, "registry")
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("compile module %q", name), err)
	}
	// Anonymous instances let the same module be loaded more than once.
	inst, err := r.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		compiled.Close(ctx)
		return nil, errors.Instantiation(name, err)
	}

	m, err := describe(name, inst)
	if err != nil {
		r.closeInstance(ctx, name, inst, compiled)
		return nil, err
	}
	m.compiled = compiled

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.closeInstance(ctx, name, inst, compiled)
		return nil, errors.NotInitialized(errors.PhaseLoad, "registry")
	}
	base := r.next
	end := base + uint64(m.size)
	if end > 1<<32 {
		r.mu.Unlock()
		r.closeInstance(ctx, name, inst, compiled)
		return nil, errors.New(errors.PhaseLoad, errors.KindOutOfBounds).
			Detail("no room for %d bytes of module %q at 0x%x", m.size, name, base).
			Build()
	}
	m.base = rotable.Address(base)
	m.index = len(r.modules)
	r.modules = append(r.modules, m)
	r.next = alignUp(end, r.align)
	r.mu.Unlock()

	r.log.Info("module loaded",
		zap.String("name", name),
		zap.Int("index", m.index),
		zap.Uint32("base", uint32(m.base)),
		zap.Uint32("size", m.size),
		zap.Int64("offset", m.Offset()))
	return m, nil
}

func describe(name string, inst api.Module) (*Module, error) {
	mem := inst.ExportedMemory(ExportMemory)
	if mem == nil {
		return nil, errors.Load(fmt.Sprintf("module %q does not export %q", name, ExportMemory), nil)
	}
	origin := inst.ExportedGlobal(ExportOrigin)
	root := inst.ExportedGlobal(ExportRoot)
	if origin == nil || root == nil {
		return nil, errors.Load(fmt.Sprintf("module %q must export globals %q and %q", name, ExportOrigin, ExportRoot), nil)
	}
	if origin.Type() != api.ValueTypeI32 || root.Type() != api.ValueTypeI32 {
		return nil, errors.Load(fmt.Sprintf("module %q: %s and %s must be i32", name, ExportOrigin, ExportRoot), nil)
	}
	m := &Module{
		instance: inst,
		mem:      mem,
		name:     name,
		size:     mem.Size(),
		origin:   rotable.Address(uint32(origin.Get())),
		root:     rotable.Address(uint32(root.Get())),
	}
	if uint64(m.root) < uint64(m.origin) || uint64(m.root)+layout.EntrySize > uint64(m.origin)+uint64(m.size) {
		return nil, errors.Load(fmt.Sprintf("module %q: root 0x%x outside image", name, uint32(m.root)), nil)
	}
	return m, nil
}

func (r *Registry) closeInstance(ctx context.Context, name string, inst api.Module, compiled wazero.CompiledModule) {
	if err := inst.Close(ctx); err != nil {
		r.log.Warn("failed to close module instance",
			zap.String("name", name),
			zap.Error(err))
	}
	if err := compiled.Close(ctx); err != nil {
		r.log.Warn("failed to close compiled module",
			zap.String("name", name),
			zap.Error(err))
	}
}

// Unload removes the most recently loaded module registered under name.
// Its slot is not reused, so other module indices stay stable.
func (r *Registry) Unload(ctx context.Context, name string) error {
	r.mu.Lock()
	var m *Module
	for i := len(r.modules) - 1; i >= 0; i-- {
		if r.modules[i] != nil && r.modules[i].name == name {
			m = r.modules[i]
			r.modules[i] = nil
			break
		}
	}
	r.mu.Unlock()

	if m == nil {
		return errors.NotFound(errors.PhaseLoad, "module", name)
	}
	r.closeInstance(ctx, name, m.instance, m.compiled)
	r.log.Info("module unloaded",
		zap.String("name", name),
		zap.Int("index", m.index))
	return nil
}

// Modules returns the loaded modules in registry order.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Close unloads every module and releases the wazero runtime.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.modules = nil
	r.mu.Unlock()
	return r.runtime.Close(ctx)
}

func (r *Registry) module(idx int) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx < 0 || idx >= len(r.modules) {
		return nil
	}
	return r.modules[idx]
}

func (r *Registry) owner(addr rotable.Address) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		if m != nil && m.contains(addr) {
			return m
		}
	}
	return nil
}

// NextModule returns the next live slot after prev.
func (r *Registry) NextModule(prev int) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := prev + 1; i < len(r.modules); i++ {
		if i >= 0 && r.modules[i] != nil {
			return i, true
		}
	}
	return -1, false
}

// ModuleName returns the name of slot idx, or "" if it is empty.
func (r *Registry) ModuleName(idx int) string {
	if m := r.module(idx); m != nil {
		return m.name
	}
	return ""
}

// ModuleRootTable returns the runtime root table address of slot idx.
func (r *Registry) ModuleRootTable(idx int) rotable.Address {
	if m := r.module(idx); m != nil {
		return m.Root()
	}
	return 0
}

// ModuleIDFor returns the slot of the module whose memory holds addr.
func (r *Registry) ModuleIDFor(addr rotable.Address) (int, bool) {
	if m := r.owner(addr); m != nil {
		return m.index, true
	}
	return -1, false
}

// RelocationOffsetFor returns the relocation offset of the module whose
// memory holds addr, or 0 if none does.
func (r *Registry) RelocationOffsetFor(addr rotable.Address) int64 {
	if m := r.owner(addr); m != nil {
		return m.Offset()
	}
	return 0
}

var _ engine.ModuleRegistry = (*Registry)(nil)
