package com

import (
	"reflect"
	"sync"

	"github.com/wippyai/dxcompat/errors"
)

// Registry maps interface types to their identifiers so queries can be
// written against Go types while objects answer by GUID.
type Registry struct {
	byType map[reflect.Type]GUID
	byGUID map[GUID]reflect.Type
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]GUID),
		byGUID: make(map[GUID]reflect.Type),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process registry used by Query and IIDOf.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register binds an interface type to iid. Re-registering the same pair is
// allowed; binding either side to something else is an error.
func (r *Registry) Register(t reflect.Type, iid GUID) error {
	if t == nil || t.Kind() != reflect.Interface {
		return errors.InvalidInput(errors.PhaseQuery, "only interface types can be registered")
	}
	if iid.IsNil() {
		return errors.InvalidInput(errors.PhaseQuery, "cannot register the nil GUID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[t]; ok && existing != iid {
		return errors.New(errors.PhaseQuery, errors.KindRegistration).
			Subject(t.String()).
			Detail("already registered as %s", existing).
			Build()
	}
	if existing, ok := r.byGUID[iid]; ok && existing != t {
		return errors.New(errors.PhaseQuery, errors.KindRegistration).
			Subject(iid.String()).
			Detail("already bound to %s", existing).
			Build()
	}
	r.byType[t] = iid
	r.byGUID[iid] = t
	return nil
}

// Lookup returns the identifier registered for t.
func (r *Registry) Lookup(t reflect.Type) (GUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.byType[t]
	return g, ok
}

// TypeOf returns the interface type registered for iid.
func (r *Registry) TypeOf(iid GUID) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byGUID[iid]
	return t, ok
}

// Len returns the number of registered interfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// MustRegister binds interface type T to iid in the default registry and
// panics on conflict. Intended for package init.
func MustRegister[T any](iid GUID) GUID {
	if err := defaultRegistry.Register(reflect.TypeFor[T](), iid); err != nil {
		panic(err)
	}
	return iid
}

// IIDOf returns the identifier of interface type T in the default registry.
func IIDOf[T any]() (GUID, bool) {
	return defaultRegistry.Lookup(reflect.TypeFor[T]())
}

// Register binds interface type T to iid in reg.
func Register[T any](reg *Registry, iid GUID) error {
	return reg.Register(reflect.TypeFor[T](), iid)
}
