package dllsupport

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

// Entry point names a Library can be asked to resolve.
const (
	CreateInstanceEntry  = "DxcCreateInstance"
	CreateInstance2Entry = "DxcCreateInstance2"
)

// CreateInstanceFunc creates an object of class clsid viewed through iid.
type CreateInstanceFunc func(clsid, iid com.GUID) (com.Unknown, error)

// CreateInstance2Func is CreateInstanceFunc with a caller-supplied allocator.
type CreateInstance2Func func(alloc dxcompat.Allocator, clsid, iid com.GUID) (com.Unknown, error)

// Binding describes a statically linked compiler library: its one-time
// setup and teardown routines and its instance-creation entry points.
type Binding struct {
	Setup    func() bool
	Shutdown func()
	Create   CreateInstanceFunc
	Create2  CreateInstance2Func
}

// Process tracks whether the one-time setup of a Binding has run.
//
// Many Library values may share one Process; only the first successful load
// runs Setup. Each successful setup starts a new generation so a Library can
// tell whether the load it performed is still the active one.
type Process struct {
	binding    Binding
	log        *zap.Logger
	loaded     bool
	generation uint64
	setups     int
	shutdowns  int
	mu         sync.Mutex
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithLogger sets the logger for the process and its libraries.
func WithLogger(l *zap.Logger) ProcessOption {
	return func(p *Process) {
		if l != nil {
			p.log = l
		}
	}
}

// NewProcess creates an unloaded process for binding.
func NewProcess(binding Binding, opts ...ProcessOption) *Process {
	p := &Process{binding: binding, log: Logger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Binding returns the library binding.
func (p *Process) Binding() Binding {
	return p.binding
}

// Loaded reports whether setup has run and teardown has not.
func (p *Process) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// SetupCount returns how many times setup has succeeded.
func (p *Process) SetupCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setups
}

// ShutdownCount returns how many times teardown has run.
func (p *Process) ShutdownCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdowns
}

// Teardown runs Shutdown if the process is loaded and clears the flag.
// It reports whether teardown ran.
func (p *Process) Teardown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.teardownLocked()
}

// load runs setup on first use. It returns the generation of the active load
// and whether this call performed it.
func (p *Process) load() (uint64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return p.generation, false, nil
	}
	if p.binding.Setup != nil && !p.binding.Setup() {
		return 0, false, errors.SetupFailed(CompilerLib, nil)
	}
	p.loaded = true
	p.generation++
	p.setups++
	p.log.Debug("compiler library loaded", zap.Uint64("generation", p.generation))
	return p.generation, true, nil
}

// unload tears down only if gen is still the active load.
func (p *Process) unload(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || p.generation != gen {
		return false
	}
	return p.teardownLocked()
}

func (p *Process) teardownLocked() bool {
	if !p.loaded {
		return false
	}
	p.loaded = false
	p.shutdowns++
	if p.binding.Shutdown != nil {
		p.binding.Shutdown()
	}
	p.log.Debug("compiler library unloaded", zap.Uint64("generation", p.generation))
	return true
}
