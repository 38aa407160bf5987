package com

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/dxcompat/errors"
)

// HRESULT is the status code carried across the guest ABI.
type HRESULT int32

// Status codes in use at the boundary. Values match the Windows SDK.
const (
	S_OK          HRESULT = 0
	S_FALSE       HRESULT = 1
	E_NOTIMPL     HRESULT = -2147467263 // 0x80004001
	E_NOINTERFACE HRESULT = -2147467262 // 0x80004002
	E_POINTER     HRESULT = -2147467261 // 0x80004003
	E_FAIL        HRESULT = -2147467259 // 0x80004005
	E_HANDLE      HRESULT = -2147024890 // 0x80070006
	E_OUTOFMEMORY HRESULT = -2147024882 // 0x8007000E
	E_INVALIDARG  HRESULT = -2147024809 // 0x80070057
)

// Succeeded reports whether hr is a success code.
func Succeeded(hr HRESULT) bool { return hr >= 0 }

// Failed reports whether hr is a failure code.
func Failed(hr HRESULT) bool { return hr < 0 }

func (hr HRESULT) String() string {
	switch hr {
	case S_OK:
		return "S_OK"
	case S_FALSE:
		return "S_FALSE"
	case E_NOTIMPL:
		return "E_NOTIMPL"
	case E_NOINTERFACE:
		return "E_NOINTERFACE"
	case E_POINTER:
		return "E_POINTER"
	case E_FAIL:
		return "E_FAIL"
	case E_HANDLE:
		return "E_HANDLE"
	case E_OUTOFMEMORY:
		return "E_OUTOFMEMORY"
	case E_INVALIDARG:
		return "E_INVALIDARG"
	}
	return fmt.Sprintf("HRESULT(0x%08X)", uint32(hr))
}

// HResultOf maps an error onto the closest status code.
func HResultOf(err error) HRESULT {
	if err == nil {
		return S_OK
	}
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return E_FAIL
	}
	switch e.Kind {
	case errors.KindNilPointer:
		return E_POINTER
	case errors.KindNoInterface:
		return E_NOINTERFACE
	case errors.KindAllocation:
		return E_OUTOFMEMORY
	case errors.KindInvalidInput, errors.KindInvalidData, errors.KindInvalidUTF8:
		return E_INVALIDARG
	case errors.KindInvalidHandle:
		return E_HANDLE
	case errors.KindUnsupported:
		return E_NOTIMPL
	}
	return E_FAIL
}
