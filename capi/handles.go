package capi

import (
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/dllsupport"
	"github.com/wippyai/dxcompat/dxc"
	"github.com/wippyai/dxcompat/resource"
)

// Compiler is a handle to an initialized compiler. Zero is null.
type Compiler resource.Handle

// CompileResult is a handle to the outcome of one Compile call.
type CompileResult resource.Handle

// CompileObject is a handle to compiled object code.
type CompileObject resource.Handle

// CompileError is a handle to diagnostic text.
type CompileError resource.Handle

const (
	kindCompiler resource.TypeID = iota + 1
	kindResult
	kindObject
	kindError
)

func kindName(id resource.TypeID) string {
	switch id {
	case kindCompiler:
		return "compiler"
	case kindResult:
		return "result"
	case kindObject:
		return "object"
	case kindError:
		return "error"
	}
	return "unknown"
}

// compilerEntry owns the compiler, the utils used to build include blobs
// and the library handle that loaded them.
type compilerEntry struct {
	compiler com.Ptr[dxc.Compiler3]
	utils    com.Ptr[dxc.Utils]
	lib      *dllsupport.Library
}

func (e *compilerEntry) Drop() {
	e.compiler.Release()
	e.utils.Release()
	e.lib.Cleanup()
}

// ref owns one reference to an object stored under a handle.
type ref[T com.Unknown] struct {
	ptr com.Ptr[T]
}

func (r *ref[T]) Drop() {
	r.ptr.Release()
}
