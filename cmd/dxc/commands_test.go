package main

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fragmentSource = `@fragment
fn main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const colorSource = `fn color() -> vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

const includingSource = `#include "color.wgsl"
@fragment
fn main() -> @location(0) vec4<f32> {
    return color();
}
`

type testState struct {
	*globalState
	out *bytes.Buffer
	err *bytes.Buffer
	env map[string]string
}

func newTestState(t *testing.T) *testState {
	t.Helper()
	ts := &testState{
		out: &bytes.Buffer{},
		err: &bytes.Buffer{},
		env: map[string]string{"DXC_LOG_LEVEL": "error"},
	}
	ts.globalState = &globalState{
		fs:     afero.NewMemMapFs(),
		stdout: ts.out,
		stderr: ts.err,
		lookupEnv: func(k string) (string, bool) {
			v, ok := ts.env[k]
			return v, ok
		},
		isTTY: func() bool { return false },
		cfg:   defaultConfig(),
		log:   zap.NewNop(),
	}
	return ts
}

func (ts *testState) write(t *testing.T, path, content string) {
	t.Helper()
	if err := afero.WriteFile(ts.fs, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (ts *testState) run(args ...string) error {
	root := newRootCommand(ts.globalState)
	root.SetArgs(args)
	return root.Execute()
}

func TestCompile_TextToStdout(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/shaders/frag.wgsl", fragmentSource)

	if err := ts.run("compile", "-T", "ps_6_0", "/shaders/frag.wgsl"); err != nil {
		t.Fatalf("compile: %v (stderr %q)", err, ts.err)
	}
	if ts.out.Len() == 0 {
		t.Error("no HLSL written to stdout")
	}
}

func TestCompile_ObjectFile(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/shaders/frag.wgsl", fragmentSource)

	if err := ts.run("compile", "-T", "ps_6_0", "-spirv", "-Fo", "/out/frag.spv", "/shaders/frag.wgsl"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	data, err := afero.ReadFile(ts.fs, "/out/frag.spv")
	if err != nil {
		t.Fatalf("object file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0x03, 0x02, 0x23, 0x07}) {
		t.Errorf("not SPIR-V: % x", data[:min(len(data), 8)])
	}
	if ts.out.Len() != 0 {
		t.Error("object also written to stdout")
	}
}

func TestCompile_BinaryToStdoutIsDumped(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/frag.wgsl", fragmentSource)

	if err := ts.run("compile", "-T", "ps_6_0", "-spirv", "/frag.wgsl"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.HasPrefix(ts.out.String(), "00000000  03 02 23 07") {
		t.Errorf("stdout = %q", ts.out.String())
	}
}

func TestCompile_Failure(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/broken.wgsl", "fn main( {")

	err := ts.run("compile", "-T", "ps_6_0", "/broken.wgsl")
	if !stderrors.Is(err, errors.ErrCompileFailed) {
		t.Fatalf("compile = %v", err)
	}
	if !strings.Contains(ts.err.String(), "error") {
		t.Errorf("diagnostics not on stderr: %q", ts.err)
	}

	ts.err.Reset()
	err = ts.run("compile", "-T", "ps_6_0", "-Fe", "/out/errors.txt", "/broken.wgsl")
	if !stderrors.Is(err, errors.ErrCompileFailed) {
		t.Fatalf("compile = %v", err)
	}
	text, rerr := afero.ReadFile(ts.fs, "/out/errors.txt")
	if rerr != nil || !strings.Contains(string(text), "error") {
		t.Errorf("error file = %q, %v", text, rerr)
	}
	if ts.err.Len() != 0 {
		t.Errorf("diagnostics also on stderr: %q", ts.err)
	}
}

func TestCompile_BadInvocation(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/frag.wgsl", fragmentSource)

	tests := []struct {
		name string
		args []string
	}{
		{"no profile", []string{"compile", "/frag.wgsl"}},
		{"no input", []string{"compile", "-T", "ps_6_0"}},
		{"missing input", []string{"compile", "-T", "ps_6_0", "/nope.wgsl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ts.run(tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCompile_Help(t *testing.T) {
	ts := newTestState(t)
	if err := ts.run("compile", "--help"); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(ts.out.String(), "-Fo <file>") {
		t.Errorf("help = %q", ts.out)
	}
}

func TestCompile_Includes(t *testing.T) {
	t.Run("next to source", func(t *testing.T) {
		ts := newTestState(t)
		ts.write(t, "/shaders/main.wgsl", includingSource)
		ts.write(t, "/shaders/color.wgsl", colorSource)
		if err := ts.run("compile", "-T", "ps_6_0", "/shaders/main.wgsl"); err != nil {
			t.Fatalf("compile: %v (stderr %q)", err, ts.err)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		ts := newTestState(t)
		ts.env["DXC_INCLUDE_PATH"] = "/lib"
		ts.write(t, "/shaders/main.wgsl", includingSource)
		ts.write(t, "/lib/color.wgsl", colorSource)
		if err := ts.run("compile", "-T", "ps_6_0", "/shaders/main.wgsl"); err != nil {
			t.Fatalf("compile: %v (stderr %q)", err, ts.err)
		}
	})

	t.Run("from config file", func(t *testing.T) {
		ts := newTestState(t)
		ts.env["DXC_CONFIG"] = "/etc/dxc.yaml"
		ts.write(t, "/etc/dxc.yaml", "include_path: [/vendor]\n")
		ts.write(t, "/shaders/main.wgsl", includingSource)
		ts.write(t, "/vendor/color.wgsl", colorSource)
		if err := ts.run("compile", "-T", "ps_6_0", "/shaders/main.wgsl"); err != nil {
			t.Fatalf("compile: %v (stderr %q)", err, ts.err)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		ts := newTestState(t)
		ts.write(t, "/shaders/main.wgsl", includingSource)
		err := ts.run("compile", "-T", "ps_6_0", "/shaders/main.wgsl")
		if !stderrors.Is(err, errors.ErrCompileFailed) {
			t.Fatalf("compile = %v", err)
		}
		if !strings.Contains(ts.err.String(), "color.wgsl") {
			t.Errorf("diagnostics = %q", ts.err)
		}
	})
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/frag.wgsl", fragmentSource)
	if err := ts.run("--log-level", "loud", "interactive", "/frag.wgsl"); err == nil {
		t.Error("invalid log level accepted")
	}
}

func TestInteractive_RequiresTerminal(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/frag.wgsl", fragmentSource)
	err := ts.run("interactive", "/frag.wgsl")
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindUnsupported {
		t.Errorf("interactive without a terminal = %v", err)
	}
}

func TestRunGuest_Errors(t *testing.T) {
	ts := newTestState(t)
	if err := ts.run("run-guest", "/missing.wasm"); err == nil {
		t.Error("missing module should fail")
	}
	ts.write(t, "/junk.wasm", "not wasm")
	if err := ts.run("run-guest", "/junk.wasm"); err == nil {
		t.Error("invalid module should fail")
	}
	if err := ts.run("run-guest", "--arg", "x", "/junk.wasm"); err == nil {
		t.Error("invalid argument should fail")
	}
}

func TestRunGuest_CallsExport(t *testing.T) {
	ts := newTestState(t)
	// (module (func (export "add") (param i32 i32) (result i32)
	//   local.get 0 local.get 1 i32.add))
	wasm := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
		0x03, 0x02, 0x01, 0x00,
		0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00,
		0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
	}
	ts.write(t, "/add.wasm", string(wasm))

	if err := ts.run("run-guest", "--func", "add", "--arg", "2", "--arg", "40", "/add.wasm"); err != nil {
		t.Fatalf("run-guest: %v", err)
	}
	if got := ts.out.String(); got != "add: 42\n" {
		t.Errorf("stdout = %q", got)
	}

	ts.out.Reset()
	if err := ts.run("run-guest", "/add.wasm"); err == nil {
		t.Error("module without an entry point should fail")
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInteractiveModel_Flow(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/frag.wgsl", fragmentSource)
	m := newInteractiveModel(ts.globalState, "/frag.wgsl")

	if !strings.Contains(m.View(), "Loading") {
		t.Errorf("initial view = %q", m.View())
	}
	m.Update(m.Init()())
	if !m.loaded {
		t.Fatal("source not loaded")
	}

	m.Update(key("j"))
	if targets[m.selected].flag != "-spirv" {
		t.Fatalf("selected %s", targets[m.selected].name)
	}
	m.Update(key("enter"))
	if m.state != stateInputArgs {
		t.Fatalf("state = %d", m.state)
	}

	// "q" is text while editing arguments.
	m.Update(key("q"))
	if m.state != stateInputArgs || !strings.HasSuffix(m.args.Value(), "q") {
		t.Fatalf("q not typed: state %d, args %q", m.state, m.args.Value())
	}
	m.args.SetValue(defaultInteractiveArgs)

	_, cmd := m.Update(key("enter"))
	if cmd == nil {
		t.Fatal("enter did not start a compile")
	}
	m.Update(cmd())
	if m.state != stateShowResult || m.err != nil || m.failed {
		t.Fatalf("state = %d, err = %v, failed = %v", m.state, m.err, m.failed)
	}
	if !strings.Contains(m.View(), "succeeded") {
		t.Errorf("result view = %q", m.View())
	}

	m.Update(key("esc"))
	if m.state != stateSelectTarget {
		t.Errorf("esc left state %d", m.state)
	}
}

func TestInteractiveModel_CompileFailure(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/broken.wgsl", "fn main( {")
	m := newInteractiveModel(ts.globalState, "/broken.wgsl")
	m.Update(m.Init()())

	m.Update(key("enter"))
	_, cmd := m.Update(key("enter"))
	m.Update(cmd())
	if !m.failed {
		t.Fatal("broken shader reported success")
	}
	if !strings.Contains(m.View(), "failed") {
		t.Errorf("result view = %q", m.View())
	}
}

func TestInteractiveModel_IncludeNextToSource(t *testing.T) {
	ts := newTestState(t)
	ts.write(t, "/shaders/main.wgsl", includingSource)
	ts.write(t, "/shaders/color.wgsl", colorSource)
	m := newInteractiveModel(ts.globalState, "/shaders/main.wgsl")
	m.Update(m.Init()())

	args := m.compileArgs()
	if len(args) < 2 || args[0] != "-I" || args[1] != "/shaders" {
		t.Fatalf("compileArgs = %q", args)
	}

	m.Update(key("enter"))
	_, cmd := m.Update(key("enter"))
	m.Update(cmd())
	if m.err != nil || m.failed {
		t.Fatalf("err = %v, failed = %v, view = %q", m.err, m.failed, m.View())
	}
}

func TestInteractiveModel_MissingSource(t *testing.T) {
	ts := newTestState(t)
	m := newInteractiveModel(ts.globalState, "/nope.wgsl")
	m.Update(m.Init()())
	if m.err == nil || !strings.Contains(m.View(), "Error") {
		t.Errorf("view = %q", m.View())
	}
}
