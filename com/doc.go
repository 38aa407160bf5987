// Package com provides the slice of the Component Object Model the compiler
// API is written against: GUID identifiers, the Unknown capability set, a
// registry from Go interface types to GUIDs, the embeddable Object base and
// the reference-owning Ptr handle.
//
// # Ownership
//
// Objects start life with one reference owned by their creator. A Ptr owns
// at most one reference:
//
//	p := com.Attach(newThing())   // adopt the creator's reference
//	q := p.Copy()                 // second owner, count 2
//	r := q.Move()                 // q is empty, count still 2
//	r.Release()                   // count 1
//	p.Release()                   // count 0, object destroyed
//
// # Queries
//
// Interfaces are registered once, usually in package init:
//
//	var IID_IDxcBlob = com.MustRegister[Blob](com.MustParseGUID("8BA5FB08-..."))
//
// Query then works in terms of Go types and returns a null handle on
// mismatch:
//
//	blob, err := com.Query[Blob](&p)
package com
