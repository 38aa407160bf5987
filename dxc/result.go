package dxc

import (
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

type output struct {
	kind OutKind
	blob *blob
}

// result implements Result. It owns one reference to each output blob.
type result struct {
	com.Object
	status  error
	outputs []output
}

func newResult(status error) *result {
	r := &result{status: status}
	r.Init(r, r.destroy, IID_IDxcResult)
	return r
}

// add stores b under kind, taking a new reference.
func (r *result) add(kind OutKind, b *blob) {
	b.AddRef()
	r.outputs = append(r.outputs, output{kind: kind, blob: b})
}

func (r *result) destroy() {
	for _, o := range r.outputs {
		o.blob.Release()
	}
	r.outputs = nil
}

func (r *result) Status() error {
	return r.status
}

func (r *result) HasOutput(kind OutKind) bool {
	return r.find(kind) != nil
}

func (r *result) GetOutput(kind OutKind, iid com.GUID) (com.Unknown, error) {
	b := r.find(kind)
	if b == nil {
		return nil, errors.NotFound(errors.PhaseQuery, "output", kind.String())
	}
	return b.QueryInterface(iid)
}

func (r *result) NumOutputs() int {
	return len(r.outputs)
}

func (r *result) OutputByIndex(i int) OutKind {
	if i < 0 || i >= len(r.outputs) {
		return OutNone
	}
	return r.outputs[i].kind
}

func (r *result) PrimaryOutput() OutKind {
	if r.HasOutput(OutObject) {
		return OutObject
	}
	return OutNone
}

func (r *result) find(kind OutKind) *blob {
	for _, o := range r.outputs {
		if o.kind == kind {
			return o.blob
		}
	}
	return nil
}
