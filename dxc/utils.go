package dxc

import (
	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
)

// utils implements Utils.
type utils struct {
	com.Object
	module *Module
	arena  dxcompat.Arena
}

func newUtils(m *Module, arena dxcompat.Arena) *utils {
	u := &utils{module: m, arena: arena}
	u.Init(u, nil, IID_IDxcUtils)
	return u
}

// CreateBlob copies data into a new blob. CP_ACP marks the encoding as
// unknown.
func (u *utils) CreateBlob(data []byte, codePage uint32) (BlobEncoding, error) {
	b, err := newBlob(data, codePage != CP_ACP, codePage, u.arena)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// CreateDefaultIncludeHandler returns a handler reading from the module
// filesystem relative to the working directory.
func (u *utils) CreateDefaultIncludeHandler() (IncludeHandler, error) {
	return newFSIncludeHandler(u.module.fs, nil, u.arena), nil
}
