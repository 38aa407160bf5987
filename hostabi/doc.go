// Package hostabi exposes the plain compiler API to WebAssembly guests as
// the wazero host module "dxc".
//
// All parameters and results are i32. Handles are those of package capi.
// Guests pass compile options as a dxc_compile_options struct:
//
//	struct dxc_compile_options {
//	    const char *code; uint32_t code_len;
//	    const char **args; uint32_t args_len;   // NUL-terminated UTF-8
//	    struct dxc_include_callbacks *include_callbacks; // nullable
//	};
//	struct dxc_include_callbacks {
//	    void *include_ctx;
//	    const char *include_func; // name of a guest export
//	    const char *free_func;    // name of a guest export
//	};
//	struct dxc_include_result { const char *header_data; uint32_t header_length; };
//
// Wasm has no host-callable function pointers, so callbacks are named by
// export: include_func(ctx, name_ptr, name_len) returns a dxc_include_result
// pointer or 0, and free_func(ctx, result_ptr) is called once per include.
//
// Object bytes and error strings are copied into guest memory as
// length-prefixed strings (a u32 byte length at ptr-4, a zero terminator
// after the payload) allocated with the guest's malloc, or cabi_realloc when
// malloc is not exported. Copies are cached per handle and freed when the
// handle is released.
//
// Usage:
//
//	h := hostabi.New()
//	defer h.Close()
//	if _, err := h.Instantiate(ctx, runtime); err != nil {
//		return err
//	}
//	guest, err := runtime.Instantiate(ctx, wasmBytes)
package hostabi
