package hostabi

import (
	"context"
	"strconv"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/capi"
	"github.com/wippyai/dxcompat/errors"
)

// Guest struct layouts, wasm32 little-endian u32 fields.
const (
	optionsFields   = 5 // code, code_len, args, args_len, include_callbacks
	callbacksFields = 3 // include_ctx, include_func, free_func
)

// guest is the per-module state of a Host: its memory and, once needed,
// its allocator.
type guest struct {
	mod   api.Module
	mem   *Memory
	alloc *Allocator
}

func (g *guest) allocator(ctx context.Context, names AllocatorExports) (*Allocator, error) {
	if g.alloc == nil {
		a, err := NewAllocator(ctx, g.mod, names)
		if err != nil {
			return nil, err
		}
		g.alloc = a
	}
	g.alloc.bind(ctx)
	return g.alloc, nil
}

// readOptions decodes a dxc_compile_options struct at ptr.
func (g *guest) readOptions(ctx context.Context, ptr uint32, names AllocatorExports) (*capi.CompileOptions, error) {
	if ptr == 0 {
		return nil, errors.NilPointer(errors.PhaseABI, "options")
	}
	var f [optionsFields]uint32
	for i := range f {
		v, err := g.mem.ReadU32(ptr + uint32(i)*4)
		if err != nil {
			return nil, err
		}
		f[i] = v
	}
	code, codeLen, args, argsLen, callbacks := f[0], f[1], f[2], f[3], f[4]

	if code == 0 {
		return nil, errors.NilPointer(errors.PhaseABI, "code")
	}
	var err error
	opts := &capi.CompileOptions{}
	if opts.Code, err = g.mem.ReadCopy(code, codeLen); err != nil {
		return nil, err
	}

	if argsLen > 0 && args == 0 {
		return nil, errors.NilPointer(errors.PhaseABI, "args")
	}
	for i := uint32(0); i < argsLen; i++ {
		p, err := g.mem.ReadU32(args + 4*i)
		if err != nil {
			return nil, err
		}
		s, err := g.mem.ReadCString(p)
		if err != nil {
			return nil, errors.New(errors.PhaseABI, errors.KindInvalidData).
				Path("options", "args", strconv.FormatUint(uint64(i), 10)).
				Detail("bad argument").
				Cause(err).
				Build()
		}
		opts.Args = append(opts.Args, s)
	}

	if callbacks != 0 {
		if opts.IncludeCallbacks, err = g.readCallbacks(ctx, callbacks, names); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// readCallbacks decodes dxc_include_callbacks. Function fields name guest
// exports; a null or unknown name leaves that callback nil.
func (g *guest) readCallbacks(ctx context.Context, ptr uint32, names AllocatorExports) (*capi.IncludeCallbacks, error) {
	alloc, err := g.allocator(ctx, names)
	if err != nil {
		return nil, err
	}
	var f [callbacksFields]uint32
	for i := range f {
		v, err := g.mem.ReadU32(ptr + uint32(i)*4)
		if err != nil {
			return nil, err
		}
		f[i] = v
	}

	inc := &guestInclude{ctx: ctx, g: g, alloc: alloc, userCtx: f[0], pending: make(map[*capi.IncludeResult]uint32)}
	inc.include = g.export(f[1])
	inc.free = g.export(f[2])

	cb := &capi.IncludeCallbacks{Context: inc}
	if inc.include != nil {
		cb.Include = guestIncludeLoad
	}
	if inc.free != nil {
		cb.Free = guestIncludeFree
	}
	return cb, nil
}

func (g *guest) export(namePtr uint32) api.Function {
	if namePtr == 0 {
		return nil
	}
	name, err := g.mem.ReadCString(namePtr)
	if err != nil {
		Logger().Warn("unreadable callback name", zap.Error(err))
		return nil
	}
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		Logger().Warn("callback not exported", zap.String("name", name))
	}
	return fn
}

// guestInclude routes include callbacks of one compile call into the guest.
type guestInclude struct {
	ctx     context.Context
	g       *guest
	alloc   *Allocator
	userCtx uint32
	include api.Function
	free    api.Function
	pending map[*capi.IncludeResult]uint32
}

func guestIncludeLoad(ctx any, name string) *capi.IncludeResult {
	return ctx.(*guestInclude).load(name)
}

func guestIncludeFree(ctx any, r *capi.IncludeResult) int {
	return ctx.(*guestInclude).release(r)
}

func (gi *guestInclude) load(name string) *capi.IncludeResult {
	log := Logger().With(zap.String("include", name))
	nameLen := uint32(len(name))
	namePtr := gi.alloc.Allocate(max(nameLen, 1))
	if namePtr == 0 {
		log.Warn("cannot allocate include name")
		return nil
	}
	defer gi.alloc.Free(namePtr)
	if err := gi.g.mem.Write(namePtr, []byte(name)); err != nil {
		log.Warn("cannot write include name", zap.Error(err))
		return nil
	}

	res, err := gi.include.Call(gi.ctx, api.EncodeU32(gi.userCtx), api.EncodeU32(namePtr), api.EncodeU32(nameLen))
	if err != nil {
		log.Warn("include callback trapped", zap.Error(err))
		return nil
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 {
		return nil
	}

	// A non-zero result goes back through free even when it is unreadable.
	r := &capi.IncludeResult{}
	gi.pending[r] = ptr
	data, err := gi.g.mem.ReadU32(ptr)
	if err != nil {
		log.Warn("bad include result", zap.Error(err))
		return r
	}
	length, err := gi.g.mem.ReadU32(ptr + 4)
	if err != nil {
		log.Warn("bad include result", zap.Error(err))
		return r
	}
	if data != 0 && length > 0 {
		if r.HeaderData, err = gi.g.mem.ReadCopy(data, length); err != nil {
			log.Warn("bad include body", zap.Error(err))
		}
	}
	return r
}

func (gi *guestInclude) release(r *capi.IncludeResult) int {
	ptr := gi.pending[r]
	delete(gi.pending, r)
	res, err := gi.free.Call(gi.ctx, api.EncodeU32(gi.userCtx), api.EncodeU32(ptr))
	if err != nil {
		Logger().Warn("include free callback trapped", zap.Error(err))
		return -1
	}
	if len(res) == 0 {
		return 0
	}
	return int(api.DecodeI32(res[0]))
}
