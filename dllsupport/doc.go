// Package dllsupport emulates dynamic loading of the compiler library over
// entry points that are linked into the binary.
//
// Callers written against a loader keep their shape:
//
//	lib := dllsupport.NewLibrary(process)
//	if err := lib.Initialize(); err != nil {
//		return err
//	}
//	defer lib.Cleanup()
//	compiler, err := dllsupport.CreateInstance[dxc.Compiler3](lib, dxc.CLSID_DxcCompiler)
//
// The Process holds the one-time setup state that a real loader keeps per
// process. The first Library to initialize runs the binding's Setup; the
// library that ran it runs Shutdown from Cleanup. Asking for the validator
// library always fails, as if it were not installed.
package dllsupport
