// Package dxc is the compiler library behind the object model: DXC-style
// interfaces (Blob, Result, Compiler3, Utils, IncludeHandler) implemented on
// top of the naga WGSL compiler.
//
// Compile takes DXC command-line arguments. -T selects the profile and the
// shader model, -E the entry point (main by default). The object output is
// HLSL text unless -spirv, -msl or -glsl asks for another target:
//
//	m := dxc.NewModule()
//	m.InvokeDllMain()
//	defer m.InvokeDllShutdown()
//
//	u, _ := m.CreateInstance(dxc.CLSID_DxcCompiler, dxc.IID_IDxcCompiler3)
//	c := com.Attach(u.(dxc.Compiler3))
//	defer c.Release()
//
//	out, _ := c.Get().Compile(dxc.Buffer{Data: src}, []string{"-T", "ps_6_0", "-spirv"}, nil, dxc.IID_IDxcResult)
//
// Source lines of the form #include "file" are expanded before compilation
// through the include handler passed to Compile, or through a handler that
// reads the -I directories of the module filesystem.
package dxc
