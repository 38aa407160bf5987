package heap

import (
	"encoding/binary"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/errors"
)

var _ dxcompat.Memory = (*SliceMemory)(nil)

// SliceMemory is a Memory backed by a Go byte slice.
type SliceMemory struct {
	data []byte
}

// NewSliceMemory allocates a zeroed memory of size bytes.
func NewSliceMemory(size uint32) *SliceMemory {
	return &SliceMemory{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.data))
}

func (m *SliceMemory) check(offset, length uint32) error {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseAlloc, offset, length)
	}
	return nil
}

// Read returns a view of length bytes at offset. The view aliases memory.
func (m *SliceMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

// Write copies data to offset.
func (m *SliceMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *SliceMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *SliceMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *SliceMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *SliceMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *SliceMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *SliceMemory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *SliceMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *SliceMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}
