package hostabi

import (
	"encoding/binary"
)

// Test guests are encoded by hand: a bump allocator, include callbacks and
// a run function that compiles through the dxc imports.

const (
	dataBase  = 1024
	heapStart = 16384
)

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

func i32Const(v uint32) []byte {
	return append([]byte{0x41}, sleb(int32(v))...)
}

func funcType(params, results int) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, 0x7f)
	}
	out = append(out, uleb(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, 0x7f)
	}
	return out
}

func body(instrs ...[]byte) []byte {
	code := []byte{0x00} // no locals
	for _, in := range instrs {
		code = append(code, in...)
	}
	code = append(code, 0x0b)
	return append(uleb(uint32(len(code))), code...)
}

// guestData lays out the guest's data segment.
type guestData struct {
	buf []byte
}

func (d *guestData) align() {
	for len(d.buf)%4 != 0 {
		d.buf = append(d.buf, 0)
	}
}

func (d *guestData) bytes(b []byte) uint32 {
	d.align()
	addr := uint32(dataBase + len(d.buf))
	d.buf = append(d.buf, b...)
	return addr
}

func (d *guestData) cstring(s string) uint32 {
	return d.bytes(append([]byte(s), 0))
}

func (d *guestData) u32s(vs ...uint32) uint32 {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return d.bytes(b)
}

func (d *guestData) args(args ...string) (uint32, uint32) {
	ptrs := make([]uint32, len(args))
	for i, a := range args {
		ptrs[i] = d.cstring(a)
	}
	return d.u32s(ptrs...), uint32(len(args))
}

func (d *guestData) options(code string, callbacks uint32, args ...string) uint32 {
	c := d.bytes([]byte(code))
	a, n := d.args(args...)
	return d.u32s(c, uint32(len(code)), a, n, callbacks)
}

type guestLayout struct {
	plain     uint32 // fragment shader, SPIR-V
	hlsl      uint32 // fragment shader, default target
	broken    uint32 // invalid source
	included  uint32 // include through callbacks, ctx 1
	nilInc    uint32 // include through callbacks, ctx 0 returns null
	badInc    uint32 // include through callbacks, ctx 2 returns an unreadable result
	badArg    uint32 // second argument pointer is out of bounds
	noFree    uint32 // include callbacks naming a missing free export
	incResult uint32
}

// badIncResult lies outside the guest's single memory page.
const badIncResult = 0xFFFFFFF0

const fragmentSource = `@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const colorSource = `fn color() -> vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

const includingSource = `#include "color.wgsl"
@fragment
fn main() -> @location(0) vec4<f32> {
    return color();
}
`

func buildLayout() (*guestData, guestLayout) {
	d := &guestData{}
	var l guestLayout

	incBody := d.bytes([]byte(colorSource))
	l.incResult = d.u32s(incBody, uint32(len(colorSource)))
	incName := d.cstring("include")
	freeName := d.cstring("include_free")
	missing := d.cstring("no_such_export")
	withCtx := d.u32s(1, incName, freeName)
	nullCtx := d.u32s(0, incName, freeName)
	noFreeCb := d.u32s(1, incName, missing)
	badCtx := d.u32s(2, incName, freeName)

	l.plain = d.options(fragmentSource, 0, "-T", "ps_6_0", "-spirv")
	l.hlsl = d.options(fragmentSource, 0, "-T", "ps_6_0")
	l.broken = d.options("fn main( {", 0, "-T", "ps_6_0")
	l.included = d.options(includingSource, withCtx, "-T", "ps_6_0")
	l.nilInc = d.options("#include \"empty.wgsl\"\n"+fragmentSource, nullCtx, "-T", "ps_6_0")
	l.noFree = d.options(includingSource, noFreeCb, "-T", "ps_6_0")
	l.badInc = d.options(includingSource, badCtx, "-T", "ps_6_0")
	src := d.bytes([]byte(fragmentSource))
	l.badArg = d.u32s(src, uint32(len(fragmentSource)), d.u32s(d.cstring("-T"), badIncResult), 2, 0)
	return d, l
}

// buildGuest encodes the guest module. With withMalloc false it exports
// only cabi_realloc.
func buildGuest(withMalloc bool) ([]byte, guestLayout) {
	d, l := buildLayout()

	types := vec(
		funcType(0, 1), // 0: () -> i32
		funcType(2, 1), // 1: (i32, i32) -> i32
		funcType(1, 1), // 2: (i32) -> i32
		funcType(1, 0), // 3: (i32) -> ()
		funcType(3, 1), // 4: (i32, i32, i32) -> i32
		funcType(4, 1), // 5: (i32, i32, i32, i32) -> i32
	)

	imp := func(field string, typ uint32) []byte {
		out := append(name(ModuleName), name(field)...)
		return append(append(out, 0x00), uleb(typ)...)
	}
	imports := vec(
		imp("dxc_initialize", 0),                      // 0
		imp("dxc_compile", 1),                         // 1
		imp("dxc_compile_result_get_object", 2),       // 2
		imp("dxc_compile_object_get_bytes_length", 2), // 3
	)

	// Defined functions start at index 4.
	funcs := vec(
		uleb(2), // 4 malloc
		uleb(3), // 5 free
		uleb(0), // 6 frees
		uleb(4), // 7 include
		uleb(1), // 8 include_free
		uleb(0), // 9 include_frees
		uleb(0), // 10 run
		uleb(5), // 11 cabi_realloc
		uleb(0), // 12 last_include_free
	)

	memory := vec([]byte{0x00, 0x01})

	global := func(v uint32) []byte {
		return append(append([]byte{0x7f, 0x01}, i32Const(v)...), 0x0b)
	}
	globals := vec(global(heapStart), global(0), global(0), global(0))

	exp := func(field string, kind byte, idx uint32) []byte {
		return append(append(name(field), kind), uleb(idx)...)
	}
	exportList := [][]byte{
		exp("memory", 0x02, 0),
		exp("frees", 0x00, 6),
		exp("include", 0x00, 7),
		exp("include_free", 0x00, 8),
		exp("include_frees", 0x00, 9),
		exp("run", 0x00, 10),
		exp("cabi_realloc", 0x00, 11),
		exp("last_include_free", 0x00, 12),
	}
	if withMalloc {
		exportList = append(exportList, exp("malloc", 0x00, 4), exp("free", 0x00, 5))
	}
	exports := vec(exportList...)

	bump := [][]byte{
		{0x23, 0x00}, // global.get bump
		{0x23, 0x00},
		{0x20, 0x00}, // local.get size
		{0x6a},
		i32Const(7), {0x6a},
		append([]byte{0x41}, sleb(-8)...), {0x71},
		{0x24, 0x00}, // global.set bump
	}
	count := func(g byte) [][]byte {
		return [][]byte{{0x23, g}, i32Const(1), {0x6a}, {0x24, g}}
	}

	mallocBody := body(bump...)
	freeBody := body(count(1)...)
	freesBody := body([]byte{0x23, 0x01})
	includeBody := body(
		[]byte{0x20, 0x00}, i32Const(2), []byte{0x46}, // ctx == 2
		[]byte{0x04, 0x7f}, // if (result i32)
		i32Const(badIncResult),
		[]byte{0x05},                   // else
		[]byte{0x20, 0x00, 0x04, 0x7f}, // local.get ctx; if (result i32)
		i32Const(l.incResult),
		[]byte{0x05}, // else
		i32Const(0),
		[]byte{0x0b, 0x0b},
	)
	includeFree := append(count(2), []byte{0x20, 0x01, 0x24, 0x03}) // last freed pointer
	includeFreeBody := body(append(includeFree, i32Const(0))...)
	lastIncludeFreeBody := body([]byte{0x23, 0x03})
	includeFreesBody := body([]byte{0x23, 0x02})
	runBody := body(
		[]byte{0x10, 0x00}, // dxc_initialize
		i32Const(l.plain),
		[]byte{0x10, 0x01}, // dxc_compile
		[]byte{0x10, 0x02}, // get_object
		[]byte{0x10, 0x03}, // get_bytes_length
	)
	// cabi_realloc(old, old_size, align, new_size): new_size 0 frees,
	// otherwise bump-allocates new_size bytes without copying.
	realloc := [][]byte{
		{0x20, 0x03, 0x45, 0x04, 0x7f}, // local.get new_size; i32.eqz; if (result i32)
	}
	realloc = append(realloc, count(1)...)
	realloc = append(realloc, i32Const(0), []byte{0x05})
	realloc = append(realloc,
		[]byte{0x23, 0x00},
		[]byte{0x23, 0x00},
		[]byte{0x20, 0x03},
		[]byte{0x6a},
		i32Const(7), []byte{0x6a},
		append([]byte{0x41}, sleb(-8)...), []byte{0x71},
		[]byte{0x24, 0x00},
		[]byte{0x0b},
	)
	reallocBody := body(realloc...)

	code := vec(mallocBody, freeBody, freesBody, includeBody, includeFreeBody, includeFreesBody, runBody, reallocBody, lastIncludeFreeBody)

	segment := append([]byte{0x00}, i32Const(dataBase)...)
	segment = append(segment, 0x0b)
	segment = append(segment, uleb(uint32(len(d.buf)))...)
	segment = append(segment, d.buf...)
	data := vec(segment)

	mod := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	mod = append(mod, section(1, types)...)
	mod = append(mod, section(2, imports)...)
	mod = append(mod, section(3, funcs)...)
	mod = append(mod, section(5, memory)...)
	mod = append(mod, section(6, globals)...)
	mod = append(mod, section(7, exports)...)
	mod = append(mod, section(10, code)...)
	mod = append(mod, section(11, data)...)
	return mod, l
}
