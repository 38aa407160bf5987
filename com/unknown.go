package com

import (
	"reflect"

	"github.com/wippyai/dxcompat/errors"
)

// IID_IUnknown identifies the base capability every object answers to.
var IID_IUnknown = MustParseGUID("00000000-0000-0000-C000-000000000046")

// ErrNoInterface matches failed queries with errors.Is.
var ErrNoInterface = &errors.Error{Phase: errors.PhaseQuery, Kind: errors.KindNoInterface}

// Unknown is the base capability set of every polymorphic object.
//
// QueryInterface returns the object viewed through iid with a new reference
// already taken, or a nil Unknown and an error. It never returns both.
type Unknown interface {
	AddRef() uint32
	Release() uint32
	QueryInterface(iid GUID) (Unknown, error)
}

func init() {
	MustRegister[Unknown](IID_IUnknown)
}

func isNil(u any) bool {
	if u == nil {
		return true
	}
	v := reflect.ValueOf(u)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
