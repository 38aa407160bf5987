package hostabi

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/errors"
)

// AllocatorExports names the guest exports used to allocate guest memory.
// Malloc and Free are used when both are exported; otherwise Realloc must
// be exported with the canonical ABI signature
// (old_ptr, old_size, align, new_size) -> ptr.
type AllocatorExports struct {
	Malloc  string
	Free    string
	Realloc string
}

// DefaultAllocatorExports are the libc names with cabi_realloc as fallback.
var DefaultAllocatorExports = AllocatorExports{
	Malloc:  "malloc",
	Free:    "free",
	Realloc: "cabi_realloc",
}

const allocAlign = 8

// Allocator allocates inside a guest by calling its exports. It implements
// dxcompat.Arena over the guest's memory.
//
// Block sizes are tracked on the host so that cabi_realloc receives the
// original size and realloc-less guests can still grow blocks.
type Allocator struct {
	ctx     context.Context
	mem     *Memory
	malloc  api.Function
	free    api.Function
	realloc api.Function
	sizes   map[uint32]uint32
	mu      sync.Mutex
}

// NewAllocator binds to the allocator exports of mod.
func NewAllocator(ctx context.Context, mod api.Module, names AllocatorExports) (*Allocator, error) {
	mem := WrapMemory(mod.Memory())
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseABI, "memory export", "memory")
	}
	a := &Allocator{ctx: ctx, mem: mem, sizes: make(map[uint32]uint32)}
	if names.Malloc != "" && names.Free != "" {
		a.malloc = mod.ExportedFunction(names.Malloc)
		a.free = mod.ExportedFunction(names.Free)
	}
	if names.Realloc != "" {
		a.realloc = mod.ExportedFunction(names.Realloc)
	}
	if (a.malloc == nil || a.free == nil) && a.realloc == nil {
		return nil, errors.NotFound(errors.PhaseABI, "allocator export", names.Malloc+"/"+names.Realloc)
	}
	return a, nil
}

// bind sets the context for subsequent guest calls.
func (a *Allocator) bind(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
}

// Memory returns the guest memory the allocator hands out.
func (a *Allocator) Memory() dxcompat.Memory {
	return a.mem
}

func (a *Allocator) usesMalloc() bool {
	return a.malloc != nil && a.free != nil
}

func (a *Allocator) call(fn api.Function, params ...uint64) (uint32, bool) {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	results, err := fn.Call(ctx, params...)
	if err != nil {
		Logger().Warn("guest allocator call failed",
			zap.String("func", fn.Definition().Name()),
			zap.Error(err))
		return 0, false
	}
	if len(results) == 0 {
		return 0, true
	}
	return api.DecodeU32(results[0]), true
}

func (a *Allocator) Allocate(size uint32) uint32 {
	if size == 0 {
		return dxcompat.Null
	}
	var ptr uint32
	var ok bool
	if a.usesMalloc() {
		ptr, ok = a.call(a.malloc, api.EncodeU32(size))
	} else {
		ptr, ok = a.call(a.realloc, 0, 0, allocAlign, api.EncodeU32(size))
	}
	if !ok || ptr == dxcompat.Null {
		return dxcompat.Null
	}
	a.mu.Lock()
	a.sizes[ptr] = size
	a.mu.Unlock()
	return ptr
}

func (a *Allocator) Reallocate(ptr, size uint32) uint32 {
	if ptr == dxcompat.Null {
		return a.Allocate(size)
	}
	if size == 0 {
		a.Free(ptr)
		return dxcompat.Null
	}
	a.mu.Lock()
	old, known := a.sizes[ptr]
	a.mu.Unlock()
	if !known {
		return dxcompat.Null
	}

	if !a.usesMalloc() {
		np, ok := a.call(a.realloc, api.EncodeU32(ptr), api.EncodeU32(old), allocAlign, api.EncodeU32(size))
		if !ok || np == dxcompat.Null {
			return dxcompat.Null
		}
		a.mu.Lock()
		delete(a.sizes, ptr)
		a.sizes[np] = size
		a.mu.Unlock()
		return np
	}

	np := a.Allocate(size)
	if np == dxcompat.Null {
		return dxcompat.Null
	}
	data, err := a.mem.ReadCopy(ptr, min(old, size))
	if err == nil {
		err = a.mem.Write(np, data)
	}
	if err != nil {
		a.Free(np)
		return dxcompat.Null
	}
	a.Free(ptr)
	return np
}

// Free releases ptr. Pointers the allocator did not hand out are ignored.
func (a *Allocator) Free(ptr uint32) {
	if ptr == dxcompat.Null {
		return
	}
	a.mu.Lock()
	size, known := a.sizes[ptr]
	delete(a.sizes, ptr)
	a.mu.Unlock()
	if !known {
		return
	}
	if a.usesMalloc() {
		a.call(a.free, api.EncodeU32(ptr))
		return
	}
	a.call(a.realloc, api.EncodeU32(ptr), api.EncodeU32(size), allocAlign, 0)
}

// Outstanding returns the number of live blocks.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sizes)
}
