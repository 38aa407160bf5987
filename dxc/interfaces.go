package dxc

import (
	"github.com/wippyai/dxcompat/com"
)

// Class identifiers.
var (
	CLSID_DxcCompiler = com.MustParseGUID("73e22d93-e6ce-47f3-b5bf-f0664f39c1b0")
	CLSID_DxcUtils    = com.MustParseGUID("6245d6af-66e0-48fd-80b4-4d271796748c")
	CLSID_DxcLibrary  = CLSID_DxcUtils
)

// Interface identifiers.
var (
	IID_IDxcBlob           = com.MustRegister[Blob](com.MustParseGUID("8BA5FB08-5195-40e2-AC58-0D989C3A0102"))
	IID_IDxcBlobEncoding   = com.MustRegister[BlobEncoding](com.MustParseGUID("7241d424-2646-4191-97c0-98e96e42fc68"))
	IID_IDxcBlobUtf8       = com.MustRegister[BlobUtf8](com.MustParseGUID("3DA636C9-BA71-4024-A301-30CBF125305B"))
	IID_IDxcIncludeHandler = com.MustRegister[IncludeHandler](com.MustParseGUID("7f61fc7d-950d-467f-b3e3-3c02fb49187c"))
	IID_IDxcResult         = com.MustRegister[Result](com.MustParseGUID("58346CDA-DDE7-4497-9461-6F87AF5E0659"))
	IID_IDxcCompiler3      = com.MustRegister[Compiler3](com.MustParseGUID("228B4687-5A6A-4730-900C-9702B2203F54"))
	IID_IDxcUtils          = com.MustRegister[Utils](com.MustParseGUID("4605C4CB-2019-492A-ADA4-65F20BB7D67F"))
)

// Code pages understood by blobs and source buffers.
const (
	CP_ACP   uint32 = 0
	CP_UTF16 uint32 = 1200
	CP_UTF32 uint32 = 12000
	CP_UTF8  uint32 = 65001
)

// Blob is an immutable byte buffer.
type Blob interface {
	com.Unknown
	Bytes() []byte
	Size() uint32
}

// BlobEncoding is a Blob that may carry text in a known code page.
type BlobEncoding interface {
	Blob
	Encoding() (known bool, codePage uint32)
}

// BlobUtf8 is a BlobEncoding holding UTF-8 text. The buffer may include a
// trailing zero that StringLength does not count.
type BlobUtf8 interface {
	BlobEncoding
	String() string
	StringLength() uint32
}

// IncludeHandler resolves #include targets. The returned blob carries a
// reference owned by the caller.
type IncludeHandler interface {
	com.Unknown
	LoadSource(name string) (Blob, error)
}

// OutKind names one output channel of a Result.
type OutKind uint32

const (
	OutNone OutKind = iota
	OutObject
	OutErrors
	OutText

	// OutHLSL is the text output channel under its historical name.
	OutHLSL = OutText
)

func (k OutKind) String() string {
	switch k {
	case OutNone:
		return "none"
	case OutObject:
		return "object"
	case OutErrors:
		return "errors"
	case OutText:
		return "text"
	}
	return "unknown"
}

// Result is the outcome of one Compile call.
//
// Status is nil when compilation succeeded. GetOutput returns the requested
// channel viewed through iid with a new reference; absent channels are
// reported as not found.
type Result interface {
	com.Unknown
	Status() error
	HasOutput(kind OutKind) bool
	GetOutput(kind OutKind, iid com.GUID) (com.Unknown, error)
	NumOutputs() int
	OutputByIndex(i int) OutKind
	PrimaryOutput() OutKind
}

// Buffer is source text handed to Compile. Encoding is a code page, or
// CP_ACP to detect from a byte-order mark and otherwise assume UTF-8.
type Buffer struct {
	Data     []byte
	Encoding uint32
}

// Compiler3 compiles a source buffer with command-line style arguments.
//
// A failed compilation is not a Go error: the returned Result carries the
// failure status and diagnostics. Errors are reserved for calls that could
// not produce a result at all.
type Compiler3 interface {
	com.Unknown
	Compile(src Buffer, args []string, inc IncludeHandler, iid com.GUID) (com.Unknown, error)
}

// Utils creates blobs and include handlers.
type Utils interface {
	com.Unknown
	CreateBlob(data []byte, codePage uint32) (BlobEncoding, error)
	CreateDefaultIncludeHandler() (IncludeHandler, error)
}
