package capi

import (
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/dxc"
	"github.com/wippyai/dxcompat/errors"
)

// IncludeResult is the body of one included file.
type IncludeResult struct {
	HeaderData []byte
}

// IncludeCallbacks resolve #include lines through the caller.
//
// Include returns the body of name or nil for an empty body. Free is called
// exactly once for every Include call with whatever Include returned.
type IncludeCallbacks struct {
	Context any
	Include func(ctx any, name string) *IncludeResult
	Free    func(ctx any, r *IncludeResult) int
}

// delegateIncludeHandler adapts IncludeCallbacks to dxc.IncludeHandler for
// the duration of one Compile call. It is not reference counted.
type delegateIncludeHandler struct {
	cb    *IncludeCallbacks
	utils dxc.Utils
}

func (h *delegateIncludeHandler) AddRef() uint32  { return 1 }
func (h *delegateIncludeHandler) Release() uint32 { return 1 }

func (h *delegateIncludeHandler) QueryInterface(iid com.GUID) (com.Unknown, error) {
	if iid == dxc.IID_IDxcIncludeHandler || iid == com.IID_IUnknown {
		return h, nil
	}
	return nil, errors.NoInterface(iid.String())
}

func (h *delegateIncludeHandler) LoadSource(name string) (dxc.Blob, error) {
	if h.cb.Include == nil || h.cb.Free == nil {
		return nil, errors.NilPointer(errors.PhaseInclude, "include callbacks")
	}

	r := h.cb.Include(h.cb.Context, name)
	var data []byte
	if r != nil {
		data = r.HeaderData
	}
	b, err := h.utils.CreateBlob(data, dxc.CP_UTF8)
	h.cb.Free(h.cb.Context, r)
	if err != nil {
		return nil, err
	}
	return b, nil
}
