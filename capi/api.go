package capi

import (
	stderrors "errors"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/dllsupport"
	"github.com/wippyai/dxcompat/dxc"
	"github.com/wippyai/dxcompat/errors"
	"github.com/wippyai/dxcompat/resource"
)

// API owns the library-load state and the handle table of one plain API
// instance.
type API struct {
	process *dllsupport.Process
	table   *resource.Table
	log     *zap.Logger
}

type config struct {
	binding *dllsupport.Binding
	log     *zap.Logger
	fs      afero.Fs
}

// Option configures an API.
type Option func(*config)

// WithBinding loads b instead of a private in-process compiler module.
func WithBinding(b dllsupport.Binding) Option {
	return func(c *config) {
		c.binding = &b
	}
}

// WithLogger sets the logger for the API and its compiler module.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithIncludeFS sets the filesystem searched when Compile is called without
// include callbacks.
func WithIncludeFS(fs afero.Fs) Option {
	return func(c *config) {
		c.fs = fs
	}
}

// New creates an API. Without WithBinding it gets its own compiler module,
// so separate APIs never share setup state.
func New(opts ...Option) *API {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log
	if log == nil {
		log = Logger()
	}

	binding := cfg.binding
	if binding == nil {
		mopts := []dxc.Option{dxc.WithLogger(log)}
		if cfg.fs != nil {
			mopts = append(mopts, dxc.WithFS(cfg.fs))
		}
		b := dxc.NewModule(mopts...).Binding()
		binding = &b
	}

	a := &API{
		process: dllsupport.NewProcess(*binding, dllsupport.WithLogger(log)),
		table:   resource.NewTable(),
		log:     log,
	}
	a.table.Subscribe(&handleLog{log: log})
	return a
}

// Process returns the load state shared by every compiler of a.
func (a *API) Process() *dllsupport.Process {
	return a.process
}

// Initialize loads the compiler library and creates a compiler.
func (a *API) Initialize() (Compiler, error) {
	lib := dllsupport.NewLibrary(a.process)
	if err := lib.Initialize(); err != nil {
		a.log.Error("compiler library initialization failed", zap.Error(err))
		return 0, setupError(err)
	}

	c, err := dllsupport.CreateInstance[dxc.Compiler3](lib, dxc.CLSID_DxcCompiler)
	if err != nil {
		lib.Cleanup()
		a.log.Error("compiler instance creation failed", zap.Error(err))
		return 0, setupError(err)
	}
	u, err := dllsupport.CreateInstance[dxc.Utils](lib, dxc.CLSID_DxcUtils)
	if err != nil {
		c.Release()
		lib.Cleanup()
		a.log.Error("utils instance creation failed", zap.Error(err))
		return 0, setupError(err)
	}

	h, err := a.table.Insert(kindCompiler, &compilerEntry{compiler: c, utils: u, lib: lib})
	if err != nil {
		c.Release()
		u.Release()
		lib.Cleanup()
		return 0, errors.Wrap(errors.PhaseSetup, errors.KindInvalidHandle, err, "cannot allocate compiler handle")
	}
	return Compiler(h), nil
}

func setupError(err error) error {
	if stderrors.Is(err, errors.ErrSetupFailed) {
		return err
	}
	return errors.SetupFailed(dllsupport.CompilerLib, err)
}

// Finalize releases c and shuts the library down. Unknown handles are
// ignored.
func (a *API) Finalize(c Compiler) {
	if _, ok := a.table.RemoveTyped(resource.Handle(c), kindCompiler); !ok {
		a.log.Warn("finalize of unknown compiler", zap.Uint32("handle", uint32(c)))
		return
	}
	a.process.Teardown()
}

// CompileOptions is the input of one Compile call. Code is UTF-8 source;
// Args are DXC-style command-line arguments.
type CompileOptions struct {
	Code             []byte
	Args             []string
	IncludeCallbacks *IncludeCallbacks
}

// Compile runs the compiler. A shader that fails to compile still yields a
// result carrying diagnostics; an error means no result could be produced.
func (a *API) Compile(c Compiler, opts *CompileOptions) (CompileResult, error) {
	if opts == nil {
		return 0, errors.NilPointer(errors.PhaseCompile, "options")
	}
	if opts.Code == nil {
		return 0, errors.NilPointer(errors.PhaseCompile, "code")
	}
	v, ok := a.table.GetTyped(resource.Handle(c), kindCompiler)
	if !ok {
		return 0, errors.InvalidHandle(errors.PhaseCompile, "compiler", uint32(c))
	}
	entry := v.(*compilerEntry)

	var inc dxc.IncludeHandler
	if opts.IncludeCallbacks != nil {
		inc = &delegateIncludeHandler{cb: opts.IncludeCallbacks, utils: entry.utils.Get()}
	}

	out, err := entry.compiler.Get().Compile(
		dxc.Buffer{Data: opts.Code, Encoding: dxc.CP_UTF8}, opts.Args, inc, dxc.IID_IDxcResult)
	if err != nil {
		a.log.Error("compiler invocation failed", zap.Error(err))
		return 0, errors.CompileFailed(err)
	}
	res, err := com.As[dxc.Result](com.Attach(out), dxc.IID_IDxcResult)
	if err != nil {
		a.log.Error("compiler returned no result interface", zap.Error(err))
		return 0, err
	}

	h, err := a.table.Insert(kindResult, &ref[dxc.Result]{ptr: res})
	if err != nil {
		res.Release()
		return 0, errors.Wrap(errors.PhaseCompile, errors.KindInvalidHandle, err, "cannot allocate result handle")
	}
	return CompileResult(h), nil
}

func (a *API) result(r CompileResult) (dxc.Result, bool) {
	v, ok := a.table.GetTyped(resource.Handle(r), kindResult)
	if !ok {
		return nil, false
	}
	return v.(*ref[dxc.Result]).ptr.Get(), true
}

// ResultStatus returns the compile status of r: nil on success, an error
// matching errors.ErrCompileFailed otherwise.
func (a *API) ResultStatus(r CompileResult) error {
	res, ok := a.result(r)
	if !ok {
		return errors.InvalidHandle(errors.PhaseQuery, "result", uint32(r))
	}
	return res.Status()
}

// ResultGetError returns the diagnostics of r, or 0 when there are none.
func (a *API) ResultGetError(r CompileResult) CompileError {
	res, ok := a.result(r)
	if !ok || !res.HasOutput(dxc.OutErrors) {
		return 0
	}
	u, err := res.GetOutput(dxc.OutErrors, dxc.IID_IDxcBlobUtf8)
	if err != nil {
		a.log.Debug("errors output unavailable", zap.Error(err))
		return 0
	}
	text := com.Attach(u.(dxc.BlobUtf8))
	if text.Get().StringLength() == 0 {
		text.Release()
		return 0
	}
	h, err := a.table.Insert(kindError, &ref[dxc.BlobUtf8]{ptr: text})
	if err != nil {
		text.Release()
		return 0
	}
	return CompileError(h)
}

// ResultGetObject returns the object code of r, or 0 when there is none.
func (a *API) ResultGetObject(r CompileResult) CompileObject {
	res, ok := a.result(r)
	if !ok || !res.HasOutput(dxc.OutObject) {
		return 0
	}
	u, err := res.GetOutput(dxc.OutObject, dxc.IID_IDxcBlob)
	if err != nil {
		a.log.Debug("object output unavailable", zap.Error(err))
		return 0
	}
	obj := com.Attach(u.(dxc.Blob))
	if obj.Get().Size() == 0 {
		obj.Release()
		return 0
	}
	h, err := a.table.Insert(kindObject, &ref[dxc.Blob]{ptr: obj})
	if err != nil {
		obj.Release()
		return 0
	}
	return CompileObject(h)
}

// ResultRelease releases r.
func (a *API) ResultRelease(r CompileResult) {
	a.release(resource.Handle(r), kindResult)
}

func (a *API) object(o CompileObject) (dxc.Blob, bool) {
	v, ok := a.table.GetTyped(resource.Handle(o), kindObject)
	if !ok {
		return nil, false
	}
	return v.(*ref[dxc.Blob]).ptr.Get(), true
}

// ObjectBytes returns the object code of o. The slice is valid until o is
// released.
func (a *API) ObjectBytes(o CompileObject) []byte {
	obj, ok := a.object(o)
	if !ok {
		return nil
	}
	return obj.Bytes()
}

// ObjectBytesLength returns the size of the object code of o.
func (a *API) ObjectBytesLength(o CompileObject) int {
	obj, ok := a.object(o)
	if !ok {
		return 0
	}
	return int(obj.Size())
}

// ObjectRelease releases o.
func (a *API) ObjectRelease(o CompileObject) {
	a.release(resource.Handle(o), kindObject)
}

func (a *API) errorText(e CompileError) (dxc.BlobUtf8, bool) {
	v, ok := a.table.GetTyped(resource.Handle(e), kindError)
	if !ok {
		return nil, false
	}
	return v.(*ref[dxc.BlobUtf8]).ptr.Get(), true
}

// ErrorString returns the diagnostic text of e.
func (a *API) ErrorString(e CompileError) string {
	text, ok := a.errorText(e)
	if !ok {
		return ""
	}
	return text.String()
}

// ErrorStringLength returns the length in bytes of the text of e.
func (a *API) ErrorStringLength(e CompileError) int {
	text, ok := a.errorText(e)
	if !ok {
		return 0
	}
	return int(text.StringLength())
}

// ErrorRelease releases e.
func (a *API) ErrorRelease(e CompileError) {
	a.release(resource.Handle(e), kindError)
}

func (a *API) release(h resource.Handle, kind resource.TypeID) {
	if h == 0 {
		return
	}
	if _, ok := a.table.RemoveTyped(h, kind); !ok {
		a.log.Warn("release of unknown handle",
			zap.String("kind", kindName(kind)),
			zap.Uint32("handle", uint32(h)))
	}
}

// Live returns the number of outstanding handles.
func (a *API) Live() int {
	return a.table.Len()
}

// Close releases every outstanding handle and shuts the library down.
func (a *API) Close() error {
	err := a.table.Close()
	a.process.Teardown()
	return err
}

// handleLog traces handle lifecycle at debug level.
type handleLog struct {
	log *zap.Logger
}

func (h *handleLog) OnResourceEvent(e resource.Event) {
	h.log.Debug("handle "+e.Type.String(),
		zap.String("kind", kindName(e.TypeID)),
		zap.Uint32("handle", uint32(e.Handle)))
}
