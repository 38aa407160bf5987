package dxc

import (
	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

// blob implements BlobUtf8. UTF-8 blobs answer all three blob interfaces;
// blobs in other code pages answer Blob and BlobEncoding only.
//
// Payloads live either in Go memory or, for objects created with an arena,
// inside the arena's memory at addr.
type blob struct {
	com.Object
	data     []byte
	arena    dxcompat.Arena
	addr     uint32
	size     uint32
	known    bool
	codePage uint32
}

func newBlob(data []byte, known bool, codePage uint32, arena dxcompat.Arena) (*blob, error) {
	b := &blob{known: known, codePage: codePage, size: uint32(len(data))}

	if arena != nil && len(data) > 0 {
		addr := arena.Allocate(uint32(len(data)))
		if addr == dxcompat.Null {
			return nil, errors.AllocationFailed(errors.PhaseAlloc, uint32(len(data)))
		}
		if err := arena.Memory().Write(addr, data); err != nil {
			arena.Free(addr)
			return nil, err
		}
		b.arena = arena
		b.addr = addr
	} else {
		b.data = append([]byte(nil), data...)
	}

	iids := []com.GUID{IID_IDxcBlob, IID_IDxcBlobEncoding}
	if known && codePage == CP_UTF8 {
		iids = append(iids, IID_IDxcBlobUtf8)
	}
	b.Init(b, b.destroy, iids...)
	return b, nil
}

// newTextBlob stores text followed by a zero terminator.
func newTextBlob(text string, arena dxcompat.Arena) (*blob, error) {
	data := make([]byte, len(text)+1)
	copy(data, text)
	return newBlob(data, true, CP_UTF8, arena)
}

func (b *blob) destroy() {
	if b.arena != nil {
		b.arena.Free(b.addr)
		b.arena = nil
		b.addr = dxcompat.Null
	}
	b.data = nil
}

func (b *blob) Bytes() []byte {
	if b.arena == nil {
		return b.data
	}
	data, err := b.arena.Memory().Read(b.addr, b.size)
	if err != nil {
		Logger().Error("blob payload unreadable")
		return nil
	}
	return data
}

func (b *blob) Size() uint32 {
	return b.size
}

func (b *blob) Encoding() (bool, uint32) {
	return b.known, b.codePage
}

func (b *blob) String() string {
	data := b.Bytes()
	return string(data[:textLen(data)])
}

func (b *blob) StringLength() uint32 {
	return uint32(textLen(b.Bytes()))
}

// textLen is the length of data without a trailing zero terminator.
func textLen(data []byte) int {
	if n := len(data); n > 0 && data[n-1] == 0 {
		return n - 1
	}
	return len(data)
}
