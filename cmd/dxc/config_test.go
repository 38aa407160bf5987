package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(afero.NewMemMapFs(), "", envMap(nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, defaultConfig()) {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_Layering(t *testing.T) {
	fs := afero.NewMemMapFs()
	yaml := `log_level: debug
log_development: true
include_path:
  - /lib
  - /vendor
default_args: ["-E", "fs_main"]
`
	if err := afero.WriteFile(fs, "/etc/dxc.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(fs, "/etc/dxc.yaml", envMap(nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || !cfg.LogDevelopment {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.IncludePath, []string{"/lib", "/vendor"}) {
		t.Errorf("IncludePath = %v", cfg.IncludePath)
	}

	cfg, err = loadConfig(fs, "/etc/dxc.yaml", envMap(map[string]string{
		"DXC_LOG_LEVEL":    "error",
		"DXC_INCLUDE_PATH": "/env/a,/env/b",
	}))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("env did not override log level: %q", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.IncludePath, []string{"/env/a", "/env/b"}) {
		t.Errorf("IncludePath = %v", cfg.IncludePath)
	}
	if !reflect.DeepEqual(cfg.DefaultArgs, []string{"-E", "fs_main"}) {
		t.Errorf("unset env cleared file value: %v", cfg.DefaultArgs)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	if _, err := loadConfig(fs, "/missing.yaml", envMap(nil)); err == nil {
		t.Error("missing file should fail")
	}

	_ = afero.WriteFile(fs, "/bad.yaml", []byte("log_level: [unterminated"), 0o644)
	if _, err := loadConfig(fs, "/bad.yaml", envMap(nil)); err == nil {
		t.Error("invalid YAML should fail")
	}

	_, err := loadConfig(fs, "", envMap(map[string]string{"DXC_LOG_DEVELOPMENT": "maybe"}))
	if err == nil || !strings.Contains(err.Error(), "environment") {
		t.Errorf("invalid bool = %v", err)
	}
}

func TestConfig_CompilerArgs(t *testing.T) {
	cfg := Config{
		DefaultArgs: []string{"-Zi"},
		IncludePath: []string{"/a", "/b"},
	}
	got := cfg.compilerArgs([]string{"-T", "ps_6_0", "x.wgsl"})
	want := []string{"-Zi", "-I", "/a", "-I", "/b", "-T", "ps_6_0", "x.wgsl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("compilerArgs = %v", got)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(Config{LogLevel: "loud"}); err == nil {
		t.Error("unknown level should fail")
	}
	l, err := newLogger(Config{LogLevel: "debug", LogDevelopment: true})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Error("debug level not enabled")
	}
}
