package dxcompat

// Memory is a byte-addressed, little-endian address space. Addresses are 32-bit
// so the same code serves Go-side heaps and WebAssembly linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of a Memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator hands out blocks of a Memory.
//
// Address 0 is the null block. Allocate and Reallocate return 0 when they
// cannot satisfy a request; callers check before dereferencing. Free(0) is a
// no-op and Reallocate(0, n) behaves like Allocate(n).
type Allocator interface {
	Allocate(size uint32) uint32
	Reallocate(ptr, size uint32) uint32
	Free(ptr uint32)
}

// Null is the null address.
const Null uint32 = 0

// Arena is an Allocator that also exposes the Memory its addresses refer to.
// Objects created with an Arena keep their payloads inside it.
type Arena interface {
	Allocator
	Memory() Memory
}
