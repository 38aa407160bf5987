//go:build windows

package dllsupport

// Library identities as the loader would see them.
const (
	CompilerLib  = "dxcompiler.dll"
	ValidatorLib = "dxil.dll"
)
