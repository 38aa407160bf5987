// Package dxcompat is a binary-compatibility and resource-lifetime layer around
// a shader compiler.
//
// It reimplements the small slice of COM the compiler API depends on
// (reference-counted interfaces, GUID interface queries, length-prefixed
// strings), emulates dynamic library loading over statically linked entry
// points, and exposes a plain handle-based API that non-Go callers can drive.
//
// # Architecture Overview
//
//	dxcompat/        Root package with the Memory and Allocator interfaces
//	├── com/         GUIDs, interface registry, reference-counted Ptr, Object base
//	├── heap/        Free-list allocator and slice-backed memory
//	├── bstr/        Length-prefixed strings living in a Memory
//	├── dllsupport/  Dynamic-load emulation with one-time process setup
//	├── dxc/         Compiler interfaces and the naga-backed implementation
//	├── capi/        Opaque-handle API: initialize, compile, results, release
//	├── hostabi/     The same API exported to WebAssembly guests (wazero)
//	├── resource/    Integer handle table backing the opaque handles
//	├── errors/      Structured error types
//	└── cmd/dxc/     CLI: compile, interactive TUI, run-guest
//
// # Quick Start
//
//	api := capi.New()
//	defer api.Close()
//
//	c, err := api.Initialize()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer api.Finalize(c)
//
//	res, err := api.Compile(c, &capi.CompileOptions{
//	    Code: []byte(src),
//	    Args: []string{"-T", "ps_6_0", "-spirv"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer api.ResultRelease(res)
//
//	if e := api.ResultGetError(res); e != 0 {
//	    fmt.Println(api.ErrorString(e))
//	    api.ErrorRelease(e)
//	}
//
// # Thread Safety
//
// The handle API follows a single-threaded-per-call-chain contract. Callers
// that share an API or a handle across goroutines synchronise externally.
// Reference counts and the process load flag are internally atomic or locked,
// which is stricter than the contract requires, but handle reuse after release
// is still undefined.
package dxcompat
