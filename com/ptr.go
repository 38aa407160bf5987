package com

import (
	"fmt"

	"github.com/wippyai/dxcompat/errors"
)

// Ptr owns at most one reference to an object viewed through T.
//
// The zero Ptr is the null handle. Copy and Assign take a new reference,
// Move and MoveFrom transfer the existing one, Release drops it. Go has no
// destructors, so owners call Release (usually deferred) when done.
type Ptr[T Unknown] struct {
	obj T
	ok  bool
}

// NewPtr wraps raw and takes a new reference to it.
func NewPtr[T Unknown](raw T) Ptr[T] {
	if isNil(raw) {
		return Ptr[T]{}
	}
	raw.AddRef()
	return Ptr[T]{obj: raw, ok: true}
}

// Attach wraps raw without taking a reference: the caller's reference now
// belongs to the returned handle.
func Attach[T Unknown](raw T) Ptr[T] {
	if isNil(raw) {
		return Ptr[T]{}
	}
	return Ptr[T]{obj: raw, ok: true}
}

// Get returns the raw reference without changing ownership.
func (p *Ptr[T]) Get() T {
	return p.obj
}

// IsNil reports whether p is the null handle.
func (p *Ptr[T]) IsNil() bool {
	return !p.ok
}

// Attach releases the currently held reference, then takes ownership of raw
// without adding a reference. Attaching the object p already holds is a
// caller bug: the held reference would be released out from under it.
func (p *Ptr[T]) Attach(raw T) {
	if p.ok && !isNil(raw) && sameObject(p.obj, raw) {
		panic("com: Attach of the object already held")
	}
	old := *p
	*p = Attach(raw)
	old.Release()
}

// Detach clears p and returns its reference without releasing it.
func (p *Ptr[T]) Detach() T {
	var zero T
	obj := p.obj
	p.obj, p.ok = zero, false
	return obj
}

// Release drops the held reference and nulls p. Releasing a null handle is a
// no-op, so Release is idempotent.
func (p *Ptr[T]) Release() {
	if !p.ok {
		return
	}
	obj := p.Detach()
	obj.Release()
}

// Copy returns a second handle to the same object with its own reference.
func (p *Ptr[T]) Copy() Ptr[T] {
	if !p.ok {
		return Ptr[T]{}
	}
	p.obj.AddRef()
	return Ptr[T]{obj: p.obj, ok: true}
}

// Assign makes p refer to q's object with its own reference and releases
// whatever p held before.
func (p *Ptr[T]) Assign(q Ptr[T]) {
	if q.ok {
		q.obj.AddRef()
	}
	old := *p
	*p = q
	old.Release()
}

// Move transfers the reference into the returned handle and empties p.
func (p *Ptr[T]) Move() Ptr[T] {
	out := *p
	*p = Ptr[T]{}
	return out
}

// MoveFrom releases what p holds and takes q's reference, emptying q.
func (p *Ptr[T]) MoveFrom(q *Ptr[T]) {
	if p == q {
		return
	}
	old := *p
	*p = q.Move()
	old.Release()
}

// Equal compares raw identity. Two null handles are equal.
func (p *Ptr[T]) Equal(q Ptr[T]) bool {
	if !p.ok || !q.ok {
		return p.ok == q.ok
	}
	return sameObject(p.obj, q.obj)
}

// IsEqualObject compares object identity after normalising both sides
// through IID_IUnknown, so two different interface views of one object
// compare equal.
func (p *Ptr[T]) IsEqualObject(other Unknown) bool {
	if !p.ok || isNil(other) {
		return !p.ok && isNil(other)
	}

	punk1, err := p.obj.QueryInterface(IID_IUnknown)
	if err != nil {
		return false
	}
	defer punk1.Release()

	punk2, err := other.QueryInterface(IID_IUnknown)
	if err != nil {
		return false
	}
	defer punk2.Release()

	return sameObject(punk1, punk2)
}

// QueryInterface asks the object for iid. On success the returned handle
// owns a new reference; on failure it is null and err is set.
func (p *Ptr[T]) QueryInterface(iid GUID) (Ptr[Unknown], error) {
	if !p.ok {
		return Ptr[Unknown]{}, errors.NilPointer(errors.PhaseQuery, "query on null handle")
	}
	u, err := p.obj.QueryInterface(iid)
	if err != nil {
		return Ptr[Unknown]{}, err
	}
	if isNil(u) {
		return Ptr[Unknown]{}, errors.NoInterface(iid.String())
	}
	return Attach(u), nil
}

// Query asks p's object for the interface registered for Q.
func Query[Q Unknown, T Unknown](p *Ptr[T]) (Ptr[Q], error) {
	iid, ok := IIDOf[Q]()
	if !ok {
		var zero Q
		return Ptr[Q]{}, errors.New(errors.PhaseQuery, errors.KindNotFound).
			Subject(fmt.Sprintf("%T", &zero)).
			Detail("interface type is not registered").
			Build()
	}
	return QueryIID[Q](p, iid)
}

// QueryIID asks p's object for iid and views the answer as Q.
func QueryIID[Q Unknown, T Unknown](p *Ptr[T], iid GUID) (Ptr[Q], error) {
	u, err := p.QueryInterface(iid)
	if err != nil {
		return Ptr[Q]{}, err
	}
	return As[Q](u, iid)
}

// As converts an owned Unknown into a typed handle, releasing it when the
// object does not implement Q. Used at the end of a successful query.
func As[Q Unknown](u Ptr[Unknown], iid GUID) (Ptr[Q], error) {
	if u.IsNil() {
		return Ptr[Q]{}, errors.NoInterface(iid.String())
	}
	q, ok := u.Get().(Q)
	if !ok {
		u.Release()
		return Ptr[Q]{}, errors.NoInterface(iid.String())
	}
	return Attach(q), nil
}

func sameObject(a, b any) bool {
	return a == b
}

func (p Ptr[T]) String() string {
	if !p.ok {
		return "com.Ptr(nil)"
	}
	return fmt.Sprintf("com.Ptr(%T)", p.obj)
}
