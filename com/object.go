package com

import (
	"sync/atomic"

	"github.com/wippyai/dxcompat/errors"
)

// Object implements the reference-counting half of Unknown for embedding.
//
// The embedding type calls Init once with itself as outer. The count starts
// at one, owned by whoever receives the new object. destroy runs exactly once,
// when the count drops from one to zero; releasing a destroyed object panics.
//
//	type blob struct {
//		com.Object
//		data []byte
//	}
//
//	func newBlob(data []byte) *blob {
//		b := &blob{data: data}
//		b.Init(b, nil, IID_IDxcBlob)
//		return b
//	}
type Object struct {
	outer    Unknown
	destroy  func()
	iids     []GUID
	tearoffs map[GUID]Unknown
	refs     atomic.Int32
	dead     atomic.Bool
}

// Init wires the object. iids lists the identifiers outer answers to in
// addition to IID_IUnknown.
func (o *Object) Init(outer Unknown, destroy func(), iids ...GUID) {
	o.outer = outer
	o.destroy = destroy
	o.iids = iids
	o.refs.Store(1)
}

// Expose answers iid with a separate implementation that shares this
// object's count. The tear-off must forward AddRef and Release to the outer
// object and answer IID_IUnknown with it.
func (o *Object) Expose(iid GUID, impl Unknown) {
	if o.tearoffs == nil {
		o.tearoffs = make(map[GUID]Unknown)
	}
	o.tearoffs[iid] = impl
}

// AddRef takes a reference and returns the new count.
func (o *Object) AddRef() uint32 {
	if o.dead.Load() {
		panic("com: AddRef on destroyed object")
	}
	return uint32(o.refs.Add(1))
}

// Release drops a reference and returns the new count.
func (o *Object) Release() uint32 {
	n := o.refs.Add(-1)
	switch {
	case n == 0:
		o.dead.Store(true)
		if o.destroy != nil {
			o.destroy()
		}
	case n < 0:
		panic("com: Release on destroyed object")
	}
	return uint32(n)
}

// QueryInterface answers IID_IUnknown, the iids given to Init and exposed
// tear-offs.
func (o *Object) QueryInterface(iid GUID) (Unknown, error) {
	if iid == IID_IUnknown {
		o.outer.AddRef()
		return o.outer, nil
	}
	for _, g := range o.iids {
		if g == iid {
			o.outer.AddRef()
			return o.outer, nil
		}
	}
	if impl, ok := o.tearoffs[iid]; ok {
		impl.AddRef()
		return impl, nil
	}
	return nil, errors.NoInterface(iid.String())
}

// RefCount returns the current count. Diagnostics only.
func (o *Object) RefCount() uint32 {
	n := o.refs.Load()
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Destroyed reports whether the count has reached zero.
func (o *Object) Destroyed() bool {
	return o.dead.Load()
}
