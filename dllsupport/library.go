package dllsupport

import (
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

// State is the load state of a Library.
type State int

const (
	Uninitialized State = iota
	Initialized
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Library emulates a dynamically loaded compiler library on top of the
// statically linked entry points of its Process.
//
// Initialize resolves the library the way a loader would; the validator
// library is always reported missing. A Library is not safe for concurrent
// use; share the Process instead.
type Library struct {
	process   *Process
	name      string
	create    CreateInstanceFunc
	create2   CreateInstance2Func
	state     State
	ownsSetup bool
	setupGen  uint64
}

// NewLibrary returns an uninitialized library bound to p.
func NewLibrary(p *Process) *Library {
	return &Library{process: p}
}

// Initialize loads the compiler library.
func (l *Library) Initialize() error {
	return l.InitializeForDLL(CompilerLib, CreateInstanceEntry)
}

// InitializeForDLL loads library name and resolves its entry point.
func (l *Library) InitializeForDLL(name, entry string) error {
	l.name = name
	log := l.process.log.With(zap.String("library", name))

	switch {
	case name == ValidatorLib:
		// no validator is linked in; signing is skipped
		l.state = Failed
		return errors.NotFound(errors.PhaseLoad, "library", name)
	case name != CompilerLib:
		log.Warn("unknown library")
		l.state = Failed
		return errors.NotFound(errors.PhaseLoad, "library", name)
	case entry != CreateInstanceEntry:
		log.Error("unknown entry point", zap.String("entry", entry))
		l.state = Failed
		return errors.NotFound(errors.PhaseLoad, "entry point", entry)
	case l.process.binding.Create == nil:
		log.Error("binding has no instance-creation entry point")
		l.state = Failed
		return errors.NotFound(errors.PhaseLoad, "entry point", entry)
	}

	gen, performed, err := l.process.load()
	if err != nil {
		log.Error("one-time setup failed", zap.Error(err))
		l.state = Failed
		return err
	}

	l.create = l.process.binding.Create
	l.create2 = l.process.binding.Create2
	l.state = Initialized
	if performed {
		l.ownsSetup = true
		l.setupGen = gen
	}
	return nil
}

// CreateInstance creates an object of class clsid viewed through iid and
// stores it in out. out is cleared on failure.
func (l *Library) CreateInstance(clsid, iid com.GUID, out *com.Unknown) error {
	if out == nil {
		return errors.NilPointer(errors.PhaseLoad, "out")
	}
	*out = nil
	if l.state != Initialized {
		return errors.NotInitialized(errors.PhaseLoad, l.describe())
	}
	u, err := l.create(clsid, iid)
	if err != nil {
		return err
	}
	*out = u
	return nil
}

// CreateInstance2 is CreateInstance with a caller-supplied allocator.
func (l *Library) CreateInstance2(alloc dxcompat.Allocator, clsid, iid com.GUID, out *com.Unknown) error {
	if out == nil {
		return errors.NilPointer(errors.PhaseLoad, "out")
	}
	*out = nil
	if l.state != Initialized {
		return errors.NotInitialized(errors.PhaseLoad, l.describe())
	}
	if l.create2 == nil {
		return errors.Unsupported(errors.PhaseLoad, CreateInstance2Entry)
	}
	u, err := l.create2(alloc, clsid, iid)
	if err != nil {
		return err
	}
	*out = u
	return nil
}

// HasCreateWithMalloc reports whether CreateInstance2 is available.
func (l *Library) HasCreateWithMalloc() bool {
	return l.create2 != nil
}

// IsEnabled reports whether the library is initialized.
func (l *Library) IsEnabled() bool {
	return l.state == Initialized
}

// Name returns the library name recorded by the last initialization.
func (l *Library) Name() string {
	return l.name
}

// State returns the load state.
func (l *Library) State() State {
	return l.state
}

// Cleanup unloads the library. If this library performed the process setup
// and that load is still active, the process is torn down. Calling Cleanup
// more than once is a no-op.
func (l *Library) Cleanup() {
	if l.ownsSetup && l.name == CompilerLib {
		if l.process.unload(l.setupGen) {
			l.process.log.Debug("library cleanup tore down the process", zap.String("library", l.name))
		}
	}
	l.ownsSetup = false
	l.setupGen = 0
	l.create = nil
	l.create2 = nil
	l.state = Uninitialized
}

// Move transfers the library into a new value, including responsibility for
// the process teardown, and leaves l uninitialized.
func (l *Library) Move() *Library {
	moved := &Library{
		process:   l.process,
		name:      l.name,
		create:    l.create,
		create2:   l.create2,
		state:     l.state,
		ownsSetup: l.ownsSetup,
		setupGen:  l.setupGen,
	}
	*l = Library{process: l.process}
	return moved
}

// Detach marks the library uninitialized without tearing anything down.
func (l *Library) Detach() {
	l.state = Uninitialized
}

func (l *Library) describe() string {
	if l.name == "" {
		return "library"
	}
	return l.name
}

// CreateInstance creates an object of class clsid through l and returns it
// viewed as T.
func CreateInstance[T com.Unknown](l *Library, clsid com.GUID) (com.Ptr[T], error) {
	iid, ok := com.IIDOf[T]()
	if !ok {
		return com.Ptr[T]{}, errors.NotFound(errors.PhaseQuery, "interface", "unregistered")
	}
	var u com.Unknown
	if err := l.CreateInstance(clsid, iid, &u); err != nil {
		return com.Ptr[T]{}, err
	}
	return com.As[T](com.Attach(u), iid)
}

// CreateInstance2 is CreateInstance with a caller-supplied allocator.
func CreateInstance2[T com.Unknown](l *Library, alloc dxcompat.Allocator, clsid com.GUID) (com.Ptr[T], error) {
	iid, ok := com.IIDOf[T]()
	if !ok {
		return com.Ptr[T]{}, errors.NotFound(errors.PhaseQuery, "interface", "unregistered")
	}
	var u com.Unknown
	if err := l.CreateInstance2(alloc, clsid, iid, &u); err != nil {
		return com.Ptr[T]{}, err
	}
	return com.As[T](com.Attach(u), iid)
}
