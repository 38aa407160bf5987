package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseLoad,
				Kind:    KindNotFound,
				Path:    []string{"options", "include_callbacks"},
				Subject: "libdxcompiler.so",
				Detail:  "unknown entry point",
			},
			contains: []string{"[load]", "not_found", "options.include_callbacks", "libdxcompiler.so", "unknown entry point"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseABI,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[abi]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindAllocation,
				Detail: "heap exhausted",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "allocation", "heap exhausted", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseCompile,
		Kind:  KindCompileFailed,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through the chain")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:   PhaseSetup,
		Kind:    KindSetupFailed,
		Subject: "libdxcompiler.so",
	}

	if !err.Is(&Error{Phase: PhaseSetup, Kind: KindSetupFailed}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseCompile, Kind: KindSetupFailed}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseSetup, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}
}

func TestSentinels(t *testing.T) {
	setup := SetupFailed("libdxcompiler.so", nil)
	compile := CompileFailed(errors.New("boom"))

	if !errors.Is(setup, ErrSetupFailed) {
		t.Error("SetupFailed should match ErrSetupFailed")
	}
	if errors.Is(setup, ErrCompileFailed) {
		t.Error("SetupFailed should not match ErrCompileFailed")
	}
	if !errors.Is(compile, ErrCompileFailed) {
		t.Error("CompileFailed should match ErrCompileFailed")
	}
	if errors.Is(compile, ErrSetupFailed) {
		t.Error("CompileFailed should not match ErrSetupFailed")
	}

	var target *Error
	if !errors.As(compile, &target) || target.Kind != KindCompileFailed {
		t.Errorf("errors.As = %v", target)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLoad, KindNotFound).
		Path("entry").
		Subject("libdxcompiler.so").
		Value("DxcCreateInstance3").
		Cause(cause).
		Detail("unknown entry point %q", "DxcCreateInstance3").
		Build()

	if err.Phase != PhaseLoad {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLoad)
	}
	if err.Kind != KindNotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, KindNotFound)
	}
	if len(err.Path) != 1 || err.Path[0] != "entry" {
		t.Errorf("Path = %v, want [entry]", err.Path)
	}
	if err.Subject != "libdxcompiler.so" {
		t.Errorf("Subject = %v", err.Subject)
	}
	if err.Value != "DxcCreateInstance3" {
		t.Errorf("Value = %v", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != `unknown entry point "DxcCreateInstance3"` {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseAlloc, 1024)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseABI, nil, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})

	t.Run("NoInterface", func(t *testing.T) {
		err := NoInterface("{00000000-0000-0000-c000-000000000046}")
		if err.Phase != PhaseQuery || err.Kind != KindNoInterface {
			t.Errorf("got %v", err)
		}
	})

	t.Run("InvalidHandle", func(t *testing.T) {
		err := InvalidHandle(PhaseABI, "compile_result", 7)
		if err.Value != uint32(7) {
			t.Errorf("Value = %v", err.Value)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseLoad, "library", "libdxil.so")
		if !strings.Contains(err.Error(), "libdxil.so") {
			t.Errorf("Error() = %v", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		cause := errors.New("inner")
		err := Wrap(PhaseInclude, KindNotFound, cause, "resolve header")
		if !errors.Is(err, cause) {
			t.Error("Wrap should keep cause")
		}
	})
}
