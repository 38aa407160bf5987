package bstr

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/errors"
)

// HeaderSize is the size of the byte-length prefix stored before the payload.
const HeaderSize = 4

// Width is the size of one character unit in bytes.
type Width uint32

const (
	Narrow Width = 1
	Wide16 Width = 2
	Wide32 Width = 4
)

// Valid reports whether w is one of the supported widths.
func (w Width) Valid() bool {
	return w == Narrow || w == Wide16 || w == Wide32
}

func (w Width) String() string {
	switch w {
	case Narrow:
		return "narrow"
	case Wide16:
		return "utf16"
	case Wide32:
		return "utf32"
	}
	return "invalid"
}

func (w Width) encoding() encoding.Encoding {
	switch w {
	case Wide16:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case Wide32:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	}
	return nil
}

// AllocLen allocates a string of length characters and returns the address
// of its first character, or 0 when the allocator fails.
//
// The block holds a 4-byte little-endian byte count, length*width payload
// bytes and a zero terminator of one character. When src is non-nil its first
// length*width bytes are copied into the payload; otherwise the payload is
// left as the allocator returned it.
func AllocLen(mem dxcompat.Memory, a dxcompat.Allocator, src []byte, length uint32, width Width) uint32 {
	if !width.Valid() {
		return dxcompat.Null
	}
	byteLen := uint64(length) * uint64(width)
	total := HeaderSize + byteLen + uint64(width)
	if total > 0xFFFFFFFF {
		return dxcompat.Null
	}

	block := a.Allocate(uint32(total))
	if block == dxcompat.Null {
		return dxcompat.Null
	}
	addr := block + HeaderSize

	if err := mem.WriteU32(block, uint32(byteLen)); err != nil {
		a.Free(block)
		return dxcompat.Null
	}
	if src != nil {
		n := min(uint64(len(src)), byteLen)
		if err := mem.Write(addr, src[:n]); err != nil {
			a.Free(block)
			return dxcompat.Null
		}
	}
	if err := mem.Write(addr+uint32(byteLen), make([]byte, width)); err != nil {
		a.Free(block)
		return dxcompat.Null
	}
	return addr
}

// Len returns the number of characters of the string at addr. Null is 0.
func Len(mem dxcompat.Memory, addr uint32, width Width) uint32 {
	if !width.Valid() {
		return 0
	}
	return ByteLen(mem, addr) / uint32(width)
}

// ByteLen returns the payload size in bytes of the string at addr.
func ByteLen(mem dxcompat.Memory, addr uint32) uint32 {
	if addr < HeaderSize {
		return 0
	}
	n, err := mem.ReadU32(addr - HeaderSize)
	if err != nil {
		return 0
	}
	return n
}

// Payload returns a copy of the character bytes of the string at addr,
// without the terminator.
func Payload(mem dxcompat.Memory, addr uint32) ([]byte, error) {
	if addr == dxcompat.Null {
		return nil, nil
	}
	if addr < HeaderSize {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, addr, HeaderSize)
	}
	n, err := mem.ReadU32(addr - HeaderSize)
	if err != nil {
		return nil, err
	}
	data, err := mem.Read(addr, n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// Free returns the block of the string at addr to a. Null is a no-op.
func Free(a dxcompat.Allocator, addr uint32) {
	if addr < HeaderSize {
		return
	}
	a.Free(addr - HeaderSize)
}

// Encode converts UTF-8 text to width-sized units and returns the payload and
// its length in characters.
func Encode(s string, width Width) ([]byte, uint32, error) {
	if !width.Valid() {
		return nil, 0, errors.InvalidInput(errors.PhaseAlloc, "invalid string width "+width.String())
	}
	if !utf8.ValidString(s) {
		return nil, 0, errors.InvalidUTF8(errors.PhaseAlloc, nil, []byte(s))
	}
	if width == Narrow {
		return []byte(s), uint32(len(s)), nil
	}
	out, err := width.encoding().NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, 0, errors.Wrap(errors.PhaseAlloc, errors.KindInvalidData, err, "encode "+width.String())
	}
	return out, uint32(len(out)) / uint32(width), nil
}

// Decode converts a width-sized payload back to UTF-8.
func Decode(payload []byte, width Width) (string, error) {
	if !width.Valid() {
		return "", errors.InvalidInput(errors.PhaseAlloc, "invalid string width "+width.String())
	}
	if len(payload)%int(width) != 0 {
		return "", errors.InvalidData(errors.PhaseAlloc, nil, "payload is not a whole number of characters")
	}
	if width == Narrow {
		if !utf8.Valid(payload) {
			return "", errors.InvalidUTF8(errors.PhaseAlloc, nil, payload)
		}
		return string(payload), nil
	}
	out, err := width.encoding().NewDecoder().Bytes(payload)
	if err != nil {
		return "", errors.Wrap(errors.PhaseAlloc, errors.KindInvalidData, err, "decode "+width.String())
	}
	return string(out), nil
}
