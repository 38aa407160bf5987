package heap

import (
	"sync"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/errors"
)

const (
	headerSize = 8
	alignment  = 8
	minBlock   = headerSize + alignment

	stateFree uint32 = 0
	stateUsed uint32 = 1
)

var _ dxcompat.Arena = (*Heap)(nil)

// Heap is a first-fit free-list allocator over [base, limit) of a Memory.
//
// Every block starts with an 8-byte header: the block size including the
// header, then its state. Payload addresses are 8-byte aligned and never 0.
// Adjacent free blocks are merged when a block is freed.
type Heap struct {
	mem    dxcompat.Memory
	base   uint32
	limit  uint32
	allocs uint64
	frees  uint64
	mu     sync.Mutex
}

// Stats describes the current block layout.
type Stats struct {
	Blocks      int
	UsedBlocks  int
	FreeBlocks  int
	UsedBytes   uint32
	FreeBytes   uint32
	LargestFree uint32
	Allocs      uint64
	Frees       uint64
}

// New creates a heap managing [base, limit) of mem. A zero base is moved up
// so no payload lands on the null address.
func New(mem dxcompat.Memory, base, limit uint32) (*Heap, error) {
	if mem == nil {
		return nil, errors.NilPointer(errors.PhaseAlloc, "heap memory")
	}
	if base == 0 {
		base = alignment
	}
	base = alignUp(base)
	limit &^= alignment - 1
	if limit <= base || limit-base < minBlock {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "heap region too small")
	}
	if sizer, ok := mem.(dxcompat.MemorySizer); ok && limit > sizer.Size() {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, base, limit-base)
	}

	h := &Heap{mem: mem, base: base, limit: limit}
	if err := h.writeHeader(base, limit-base, stateFree); err != nil {
		return nil, err
	}
	return h, nil
}

// NewProcessHeap creates a heap over a fresh SliceMemory of size bytes.
func NewProcessHeap(size uint32) (*Heap, error) {
	return New(NewSliceMemory(size), 0, size)
}

// Memory returns the memory the heap manages.
func (h *Heap) Memory() dxcompat.Memory {
	return h.mem
}

// Allocate returns the address of a block of at least size bytes, or 0.
// Zero-size requests return 0.
func (h *Heap) Allocate(size uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocate(size)
}

// Free releases the block at ptr. Null, unknown and already freed addresses
// are ignored.
func (h *Heap) Free(ptr uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.free(ptr)
}

// Reallocate resizes the block at ptr, preserving the common prefix of its
// contents. It behaves like Allocate when ptr is 0 and like Free (returning
// 0) when size is 0. On failure the original block is left intact.
func (h *Heap) Reallocate(ptr, size uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ptr == dxcompat.Null {
		return h.allocate(size)
	}
	if size == 0 {
		h.free(ptr)
		return dxcompat.Null
	}

	b := ptr - headerSize
	blockSize, ok := h.find(b)
	if !ok {
		return dxcompat.Null
	}
	need, ok := h.blockFor(size)
	if !ok {
		return dxcompat.Null
	}

	if need <= blockSize {
		if rest := blockSize - need; rest >= minBlock {
			if h.writeHeader(b, need, stateUsed) != nil {
				return dxcompat.Null
			}
			h.markFree(b+need, rest)
		}
		return ptr
	}

	if next := b + blockSize; next < h.limit {
		nsize, nstate, err := h.readHeader(next)
		if err == nil && nstate == stateFree && blockSize+nsize >= need {
			total := blockSize + nsize
			if rest := total - need; rest >= minBlock {
				_ = h.writeHeader(b, need, stateUsed)
				_ = h.writeHeader(b+need, rest, stateFree)
			} else {
				_ = h.writeHeader(b, total, stateUsed)
			}
			return ptr
		}
	}

	np := h.allocate(size)
	if np == dxcompat.Null {
		return dxcompat.Null
	}
	n := min(blockSize-headerSize, size)
	data, err := h.mem.Read(ptr, n)
	if err != nil {
		h.free(np)
		return dxcompat.Null
	}
	if err := h.mem.Write(np, append([]byte(nil), data...)); err != nil {
		h.free(np)
		return dxcompat.Null
	}
	h.free(ptr)
	return np
}

// UsableSize returns the payload capacity of the live block at ptr, or 0.
func (h *Heap) UsableSize(ptr uint32) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ptr < headerSize {
		return 0
	}
	size, ok := h.find(ptr - headerSize)
	if !ok {
		return 0
	}
	return size - headerSize
}

// Stats walks the heap and reports its layout.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{Allocs: h.allocs, Frees: h.frees}
	for b := h.base; b < h.limit; {
		size, state, err := h.readHeader(b)
		if err != nil || size == 0 {
			break
		}
		s.Blocks++
		if state == stateUsed {
			s.UsedBlocks++
			s.UsedBytes += size
		} else {
			s.FreeBlocks++
			s.FreeBytes += size
			s.LargestFree = max(s.LargestFree, size)
		}
		b += size
	}
	return s
}

func (h *Heap) allocate(size uint32) uint32 {
	need, ok := h.blockFor(size)
	if !ok {
		return dxcompat.Null
	}
	for b := h.base; b < h.limit; {
		bsize, state, err := h.readHeader(b)
		if err != nil || bsize == 0 {
			return dxcompat.Null
		}
		if state == stateFree && bsize >= need {
			used := bsize
			if rest := bsize - need; rest >= minBlock {
				used = need
				if h.writeHeader(b+need, rest, stateFree) != nil {
					return dxcompat.Null
				}
			}
			if h.writeHeader(b, used, stateUsed) != nil {
				return dxcompat.Null
			}
			h.allocs++
			return b + headerSize
		}
		b += bsize
	}
	return dxcompat.Null
}

func (h *Heap) free(ptr uint32) {
	if ptr < h.base+headerSize || ptr >= h.limit {
		return
	}
	target := ptr - headerSize

	var prev, prevSize, prevState uint32
	hasPrev := false
	for b := h.base; b < h.limit; {
		size, state, err := h.readHeader(b)
		if err != nil || size == 0 || b > target {
			return
		}
		if b == target {
			if state != stateUsed {
				return
			}
			h.frees++
			if hasPrev && prevState == stateFree {
				h.markFree(prev, prevSize+size)
			} else {
				h.markFree(b, size)
			}
			return
		}
		prev, prevSize, prevState, hasPrev = b, size, state, true
		b += size
	}
}

// markFree writes a free header at b, absorbing the following block when it
// is free too.
func (h *Heap) markFree(b, size uint32) {
	if next := b + size; next < h.limit {
		if nsize, nstate, err := h.readHeader(next); err == nil && nstate == stateFree {
			size += nsize
		}
	}
	_ = h.writeHeader(b, size, stateFree)
}

// find returns the size of the live block starting at b.
func (h *Heap) find(b uint32) (uint32, bool) {
	for cur := h.base; cur < h.limit; {
		size, state, err := h.readHeader(cur)
		if err != nil || size == 0 || cur > b {
			return 0, false
		}
		if cur == b {
			return size, state == stateUsed
		}
		cur += size
	}
	return 0, false
}

func (h *Heap) blockFor(size uint32) (uint32, bool) {
	if size == 0 || size > h.limit-h.base-headerSize {
		return 0, false
	}
	return alignUp(size) + headerSize, true
}

func (h *Heap) readHeader(b uint32) (size, state uint32, err error) {
	if size, err = h.mem.ReadU32(b); err != nil {
		return 0, 0, err
	}
	if state, err = h.mem.ReadU32(b + 4); err != nil {
		return 0, 0, err
	}
	return size, state, nil
}

func (h *Heap) writeHeader(b, size, state uint32) error {
	if err := h.mem.WriteU32(b, size); err != nil {
		return err
	}
	return h.mem.WriteU32(b+4, state)
}

func alignUp(n uint32) uint32 {
	return (n + alignment - 1) &^ (alignment - 1)
}
