// Package resource maps small integer handles to Go values.
//
// Handles are what the plain API and the guest ABI hand to callers in place
// of object references:
//
//	table := resource.NewTable()
//	h, err := table.Insert(kindResult, value)
//
//	v, ok := table.GetTyped(h, kindResult)
//	table.Remove(h) // calls value.Drop() when implemented
//
// Each slot carries a generation, so a handle that was removed stays invalid
// even after its slot is reused. Zero is never a valid handle.
//
// Observers see every insert and removal and are typically used for debug
// logging and leak accounting.
package resource
