package dxc

import (
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/dllsupport"
	"github.com/wippyai/dxcompat/errors"
)

// Module is one linked-in copy of the compiler library: its one-time setup
// state and class factory.
//
// Instances can only be created between InvokeDllMain and
// InvokeDllShutdown. Objects created earlier stay usable after shutdown.
type Module struct {
	fs        afero.Fs
	log       *zap.Logger
	loaded    bool
	mains     int
	shutdowns int
	mu        sync.Mutex
}

// Option configures a Module.
type Option func(*Module)

// WithFS sets the filesystem used by default include handlers.
func WithFS(fs afero.Fs) Option {
	return func(m *Module) {
		if fs != nil {
			m.fs = fs
		}
	}
}

// WithLogger sets the module logger. Without it the package logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// NewModule creates an unloaded module reading includes from the OS
// filesystem.
func NewModule(opts ...Option) *Module {
	m := &Module{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) logger() *zap.Logger {
	if m.log != nil {
		return m.log
	}
	return Logger()
}

// InvokeDllMain runs the library's process-attach setup.
func (m *Module) InvokeDllMain() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = true
	m.mains++
	m.logger().Debug("dxcompiler attached")
	return true
}

// InvokeDllShutdown runs the library's process-detach teardown.
func (m *Module) InvokeDllShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		m.logger().Warn("dxcompiler shutdown without attach")
		return
	}
	m.loaded = false
	m.shutdowns++
	m.logger().Debug("dxcompiler detached")
}

// Attached reports whether setup has run without a matching shutdown.
func (m *Module) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// CreateInstance creates an object of class clsid viewed through iid.
func (m *Module) CreateInstance(clsid, iid com.GUID) (com.Unknown, error) {
	return m.create(nil, clsid, iid)
}

// CreateInstance2 is CreateInstance with an allocator for object payloads.
// The allocator must be an Arena so payloads have memory to live in; nil
// falls back to Go memory.
func (m *Module) CreateInstance2(alloc dxcompat.Allocator, clsid, iid com.GUID) (com.Unknown, error) {
	if alloc == nil {
		return m.create(nil, clsid, iid)
	}
	arena, ok := alloc.(dxcompat.Arena)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseLoad, "allocator does not expose its memory")
	}
	return m.create(arena, clsid, iid)
}

func (m *Module) create(arena dxcompat.Arena, clsid, iid com.GUID) (com.Unknown, error) {
	if !m.Attached() {
		return nil, errors.NotInitialized(errors.PhaseLoad, "dxcompiler")
	}

	var obj com.Unknown
	switch clsid {
	case CLSID_DxcCompiler:
		obj = newCompiler(m, arena)
	case CLSID_DxcUtils:
		obj = newUtils(m, arena)
	default:
		return nil, errors.NotFound(errors.PhaseLoad, "class", clsid.String())
	}
	defer obj.Release()
	return obj.QueryInterface(iid)
}

// Binding describes the module to dllsupport.
func (m *Module) Binding() dllsupport.Binding {
	return dllsupport.Binding{
		Setup:    m.InvokeDllMain,
		Shutdown: m.InvokeDllShutdown,
		Create:   m.CreateInstance,
		Create2:  m.CreateInstance2,
	}
}

var defaultModule = NewModule()

// Default returns the process-wide module used by the package functions.
func Default() *Module {
	return defaultModule
}

// DxcCreateInstance creates an instance from the default module.
func DxcCreateInstance(clsid, iid com.GUID) (com.Unknown, error) {
	return defaultModule.CreateInstance(clsid, iid)
}

// DxcCreateInstance2 creates an instance from the default module using alloc.
func DxcCreateInstance2(alloc dxcompat.Allocator, clsid, iid com.GUID) (com.Unknown, error) {
	return defaultModule.CreateInstance2(alloc, clsid, iid)
}

// InvokeDllMain runs setup of the default module.
func InvokeDllMain() bool {
	return defaultModule.InvokeDllMain()
}

// InvokeDllShutdown runs teardown of the default module.
func InvokeDllShutdown() {
	defaultModule.InvokeDllShutdown()
}

// Binding returns the dllsupport binding of the default module.
func Binding() dllsupport.Binding {
	return defaultModule.Binding()
}

// Counts returns how many times setup and teardown have run.
func (m *Module) Counts() (mains, shutdowns int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mains, m.shutdowns
}
