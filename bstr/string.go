package bstr

import (
	"bytes"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/errors"
)

// String owns one length-prefixed string inside a Memory. The zero value and
// a nil *String are the null string.
type String struct {
	mem   dxcompat.Memory
	alloc dxcompat.Allocator
	addr  uint32
	width Width
}

// New allocates a string of size characters copied from src, truncating or
// zero-padding it as needed. size 0 yields the null string without touching
// the allocator.
func New(mem dxcompat.Memory, a dxcompat.Allocator, size int, src string, width Width) (*String, error) {
	if size < 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "negative string size")
	}
	if !width.Valid() {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "invalid string width "+width.String())
	}
	s := &String{mem: mem, alloc: a, width: width}
	if size == 0 {
		return s, nil
	}
	if uint64(size) > 0xFFFFFFFF {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "string size overflows 32 bits")
	}

	payload, _, err := Encode(src, width)
	if err != nil {
		return nil, err
	}
	if need := size * int(width); len(payload) < need {
		payload = append(payload, make([]byte, need-len(payload))...)
	}

	addr := AllocLen(mem, a, payload, uint32(size), width)
	if addr == dxcompat.Null {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, HeaderSize+uint32(size+1)*uint32(width))
	}
	s.addr = addr
	return s, nil
}

// FromString allocates a string holding all of text.
func FromString(mem dxcompat.Memory, a dxcompat.Allocator, text string, width Width) (*String, error) {
	payload, length, err := Encode(text, width)
	if err != nil {
		return nil, err
	}
	s := &String{mem: mem, alloc: a, width: width}
	if length == 0 {
		return s, nil
	}
	addr := AllocLen(mem, a, payload, length, width)
	if addr == dxcompat.Null {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, HeaderSize+(length+1)*uint32(width))
	}
	s.addr = addr
	return s, nil
}

// Attach adopts the string at addr. The returned String frees it.
func Attach(mem dxcompat.Memory, a dxcompat.Allocator, addr uint32, width Width) *String {
	return &String{mem: mem, alloc: a, addr: addr, width: width}
}

// IsNull reports whether s holds no string.
func (s *String) IsNull() bool {
	return s == nil || s.addr == dxcompat.Null
}

// Addr returns the address of the first character, or 0.
func (s *String) Addr() uint32 {
	if s == nil {
		return dxcompat.Null
	}
	return s.addr
}

// Width returns the character width.
func (s *String) Width() Width {
	if s == nil {
		return Narrow
	}
	return s.width
}

// Len returns the length in characters.
func (s *String) Len() uint32 {
	if s.IsNull() {
		return 0
	}
	return Len(s.mem, s.addr, s.width)
}

// Bytes returns a copy of the character data without the terminator.
func (s *String) Bytes() ([]byte, error) {
	if s.IsNull() {
		return nil, nil
	}
	return Payload(s.mem, s.addr)
}

// Text decodes the character data to UTF-8.
func (s *String) Text() (string, error) {
	data, err := s.Bytes()
	if err != nil {
		return "", err
	}
	return Decode(data, s.Width())
}

// Equal compares character data. Null and empty strings are equal; strings
// of different widths are not.
func (s *String) Equal(o *String) bool {
	if s.Len() == 0 && o.Len() == 0 {
		return true
	}
	if s.Width() != o.Width() {
		return false
	}
	a, err := s.Bytes()
	if err != nil {
		return false
	}
	b, err := o.Bytes()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Copy allocates an independent duplicate of s with the same allocator.
func (s *String) Copy() (*String, error) {
	if s.IsNull() {
		return &String{width: s.Width()}, nil
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	length := uint32(len(data)) / uint32(s.width)
	addr := AllocLen(s.mem, s.alloc, data, length, s.width)
	if addr == dxcompat.Null {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, HeaderSize+uint32(len(data))+uint32(s.width))
	}
	return &String{mem: s.mem, alloc: s.alloc, addr: addr, width: s.width}, nil
}

// Detach returns the address and leaves s null. The caller now owns it.
func (s *String) Detach() uint32 {
	if s == nil {
		return dxcompat.Null
	}
	addr := s.addr
	s.addr = dxcompat.Null
	return addr
}

// Free releases the string. Freeing a null string is a no-op.
func (s *String) Free() {
	if s.IsNull() {
		return
	}
	Free(s.alloc, s.addr)
	s.addr = dxcompat.Null
}
