package hostabi

import (
	"bytes"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/dxcompat/errors"
)

// Memory adapts a guest's linear memory to dxcompat.Memory.
type Memory struct {
	mem api.Memory
}

// WrapMemory wraps mem. It returns nil when the guest has no memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{mem: mem}
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Read returns a view of guest memory. The view is invalidated when the
// guest grows its memory.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseABI, offset, length)
	}
	return data, nil
}

// ReadCopy is Read into a fresh slice.
func (m *Memory) ReadCopy(offset, length uint32) ([]byte, error) {
	data, err := m.Read(offset, length)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// ReadCString reads a NUL-terminated string starting at offset.
func (m *Memory) ReadCString(offset uint32) (string, error) {
	if offset == 0 {
		return "", errors.NilPointer(errors.PhaseABI, "string")
	}
	size := m.mem.Size()
	if offset >= size {
		return "", errors.OutOfBounds(errors.PhaseABI, offset, 1)
	}
	data, _ := m.mem.Read(offset, size-offset)
	n := bytes.IndexByte(data, 0)
	if n < 0 {
		return "", errors.InvalidData(errors.PhaseABI, []string{"string"}, "missing terminator")
	}
	return string(data[:n]), nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseABI, offset, uint32(len(data)))
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseABI, offset, 1)
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseABI, offset, 2)
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseABI, offset, 4)
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseABI, offset, 8)
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseABI, offset, 1)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseABI, offset, 2)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseABI, offset, 4)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseABI, offset, 8)
	}
	return nil
}
