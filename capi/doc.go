// Package capi is the plain handle-based API over the compiler.
//
// Callers that cannot hold Go object references (the guest ABI, foreign
// bindings) work with small integer handles instead:
//
//	api := capi.New()
//	defer api.Close()
//
//	c, err := api.Initialize()
//	r, err := api.Compile(c, &capi.CompileOptions{
//		Code: source,
//		Args: []string{"-T", "ps_6_0", "-spirv"},
//	})
//	if e := api.ResultGetError(r); e != 0 {
//		fmt.Print(api.ErrorString(e))
//		api.ErrorRelease(e)
//	}
//	if o := api.ResultGetObject(r); o != 0 {
//		spirv := api.ObjectBytes(o)
//		api.ObjectRelease(o)
//	}
//	api.ResultRelease(r)
//	api.Finalize(c)
//
// Every handle owns one reference to the underlying object. Object and
// error handles stay valid after the result that produced them is released.
// Text crosses the API as UTF-8.
package capi
