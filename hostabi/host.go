package hostabi

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/bstr"
	"github.com/wippyai/dxcompat/capi"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

// ModuleName is the import module guests use for the dxc functions.
const ModuleName = "dxc"

// Host serves the plain API to WebAssembly guests. Handles are scoped to
// the Host and shared by every guest bound to it.
type Host struct {
	api     *capi.API
	ownsAPI bool
	log     *zap.Logger
	exports AllocatorExports
	guests  map[api.Module]*guest
	copies  map[uint32]guestCopy
	mu      sync.Mutex
}

// guestCopy is a length-prefixed copy of a handle's payload in guest memory.
type guestCopy struct {
	g    *guest
	addr uint32
}

// Option configures a Host.
type Option func(*Host)

// WithAPI serves an existing API instead of a private one. The Host does
// not close it.
func WithAPI(a *capi.API) Option {
	return func(h *Host) {
		h.api = a
	}
}

// WithLogger sets the host logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) {
		h.log = l
	}
}

// WithAllocator selects the guest allocator exports.
func WithAllocator(names AllocatorExports) Option {
	return func(h *Host) {
		h.exports = names
	}
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{
		exports: DefaultAllocatorExports,
		guests:  make(map[api.Module]*guest),
		copies:  make(map[uint32]guestCopy),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = Logger()
	}
	if h.api == nil {
		h.api = capi.New(capi.WithLogger(h.log))
		h.ownsAPI = true
	}
	return h
}

// API returns the plain API the host serves.
func (h *Host) API() *capi.API {
	return h.api
}

// Instantiate registers the dxc host module in r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	b := r.NewHostModuleBuilder(ModuleName)
	for _, f := range h.functions() {
		b.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(errors.PhaseABI, ModuleName, "host functions", err)
	}
	return mod, nil
}

// Close drops guest state and closes the API if the Host created it.
// Guest copies are not freed; their memory goes away with the guests.
func (h *Host) Close() error {
	h.mu.Lock()
	h.guests = make(map[api.Module]*guest)
	h.copies = make(map[uint32]guestCopy)
	h.mu.Unlock()
	if h.ownsAPI {
		return h.api.Close()
	}
	return nil
}

type hostFunc struct {
	name    string
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

func i32s(n int) []api.ValueType {
	types := make([]api.ValueType, n)
	for i := range types {
		types[i] = api.ValueTypeI32
	}
	return types
}

// call wraps a handler taking n i32 arguments and returning one i32.
func call(name string, n int, fn func(ctx context.Context, mod api.Module, args []uint32) uint32) hostFunc {
	return hostFunc{
		name: name,
		fn: func(ctx context.Context, mod api.Module, stack []uint64) {
			args := make([]uint32, n)
			for i := range args {
				args[i] = api.DecodeU32(stack[i])
			}
			stack[0] = api.EncodeU32(fn(ctx, mod, args))
		},
		params:  i32s(n),
		results: i32s(1),
	}
}

// proc wraps a handler taking one i32 argument and returning nothing.
func proc(name string, fn func(ctx context.Context, mod api.Module, arg uint32)) hostFunc {
	return hostFunc{
		name: name,
		fn: func(ctx context.Context, mod api.Module, stack []uint64) {
			fn(ctx, mod, api.DecodeU32(stack[0]))
		},
		params: i32s(1),
	}
}

func (h *Host) functions() []hostFunc {
	return []hostFunc{
		call("dxc_initialize", 0, func(context.Context, api.Module, []uint32) uint32 {
			return h.initialize()
		}),
		proc("dxc_finalize", func(_ context.Context, _ api.Module, c uint32) {
			h.api.Finalize(capi.Compiler(c))
		}),
		call("dxc_compile", 2, func(ctx context.Context, mod api.Module, a []uint32) uint32 {
			return h.compile(ctx, mod, a[0], a[1])
		}),
		call("dxc_compile_result_status", 1, func(_ context.Context, _ api.Module, a []uint32) uint32 {
			return uint32(com.HResultOf(h.api.ResultStatus(capi.CompileResult(a[0]))))
		}),
		call("dxc_compile_result_get_error", 1, func(_ context.Context, _ api.Module, a []uint32) uint32 {
			return uint32(h.api.ResultGetError(capi.CompileResult(a[0])))
		}),
		call("dxc_compile_result_get_object", 1, func(_ context.Context, _ api.Module, a []uint32) uint32 {
			return uint32(h.api.ResultGetObject(capi.CompileResult(a[0])))
		}),
		proc("dxc_compile_result_release", func(_ context.Context, _ api.Module, r uint32) {
			h.api.ResultRelease(capi.CompileResult(r))
		}),
		call("dxc_compile_object_get_bytes", 1, func(ctx context.Context, mod api.Module, a []uint32) uint32 {
			return h.objectBytes(ctx, mod, a[0])
		}),
		call("dxc_compile_object_get_bytes_length", 1, func(_ context.Context, _ api.Module, a []uint32) uint32 {
			return uint32(h.api.ObjectBytesLength(capi.CompileObject(a[0])))
		}),
		proc("dxc_compile_object_release", func(ctx context.Context, _ api.Module, o uint32) {
			h.objectRelease(ctx, o)
		}),
		call("dxc_compile_error_get_string", 1, func(ctx context.Context, mod api.Module, a []uint32) uint32 {
			return h.errorString(ctx, mod, a[0])
		}),
		call("dxc_compile_error_get_string_length", 1, func(_ context.Context, _ api.Module, a []uint32) uint32 {
			return uint32(h.api.ErrorStringLength(capi.CompileError(a[0])))
		}),
		proc("dxc_compile_error_release", func(ctx context.Context, _ api.Module, e uint32) {
			h.errorRelease(ctx, e)
		}),
	}
}

func (h *Host) initialize() uint32 {
	c, err := h.api.Initialize()
	if err != nil {
		h.log.Warn("dxc_initialize failed", zap.Error(err))
		return 0
	}
	return uint32(c)
}

// guest returns the state for mod, creating it on first use.
func (h *Host) guest(mod api.Module) (*guest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.guests[mod]; ok {
		return g, nil
	}
	mem := WrapMemory(mod.Memory())
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseABI, "memory export", "memory")
	}
	g := &guest{mod: mod, mem: mem}
	h.guests[mod] = g
	return g, nil
}

func (h *Host) compile(ctx context.Context, mod api.Module, c, optsPtr uint32) uint32 {
	g, err := h.guest(mod)
	if err != nil {
		h.log.Warn("dxc_compile failed", zap.Error(err))
		return 0
	}
	opts, err := g.readOptions(ctx, optsPtr, h.exports)
	if err != nil {
		h.log.Warn("dxc_compile: bad options", zap.Error(err))
		return 0
	}
	r, err := h.api.Compile(capi.Compiler(c), opts)
	if err != nil {
		h.log.Warn("dxc_compile failed", zap.Error(err))
		return 0
	}
	return uint32(r)
}

func (h *Host) objectBytes(ctx context.Context, mod api.Module, o uint32) uint32 {
	if addr, ok := h.cached(o); ok {
		return addr
	}
	data := h.api.ObjectBytes(capi.CompileObject(o))
	if data == nil {
		return 0
	}
	return h.copyOut(ctx, mod, o, data)
}

func (h *Host) errorString(ctx context.Context, mod api.Module, e uint32) uint32 {
	if addr, ok := h.cached(e); ok {
		return addr
	}
	if h.api.ErrorStringLength(capi.CompileError(e)) == 0 {
		return 0
	}
	return h.copyOut(ctx, mod, e, []byte(h.api.ErrorString(capi.CompileError(e))))
}

func (h *Host) objectRelease(ctx context.Context, o uint32) {
	h.dropCopy(ctx, o)
	h.api.ObjectRelease(capi.CompileObject(o))
}

func (h *Host) errorRelease(ctx context.Context, e uint32) {
	h.dropCopy(ctx, e)
	h.api.ErrorRelease(capi.CompileError(e))
}

func (h *Host) cached(handle uint32) (uint32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.copies[handle]
	return c.addr, ok
}

// copyOut stores data in guest memory as a narrow length-prefixed string
// owned by handle.
func (h *Host) copyOut(ctx context.Context, mod api.Module, handle uint32, data []byte) uint32 {
	g, err := h.guest(mod)
	if err != nil {
		h.log.Warn("cannot reach guest memory", zap.Error(err))
		return 0
	}
	alloc, err := g.allocator(ctx, h.exports)
	if err != nil {
		h.log.Warn("guest has no allocator", zap.Error(err))
		return 0
	}
	addr := bstr.AllocLen(g.mem, alloc, data, uint32(len(data)), bstr.Narrow)
	if addr == 0 {
		h.log.Warn("guest allocation failed", zap.Int("size", len(data)))
		return 0
	}
	h.mu.Lock()
	h.copies[handle] = guestCopy{g: g, addr: addr}
	h.mu.Unlock()
	return addr
}

func (h *Host) dropCopy(ctx context.Context, handle uint32) {
	h.mu.Lock()
	c, ok := h.copies[handle]
	delete(h.copies, handle)
	h.mu.Unlock()
	if !ok {
		return
	}
	c.g.alloc.bind(ctx)
	bstr.Free(c.g.alloc, c.addr)
}
