package dxc

import (
	"testing"

	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		model   hlsl.ShaderModel
		wantErr bool
	}{
		{in: "ps_6_0", want: Profile{"ps", 6, 0}, model: hlsl.ShaderModel6_0},
		{in: "vs_5_1", want: Profile{"vs", 5, 1}, model: hlsl.ShaderModel5_1},
		{in: "cs_6_7", want: Profile{"cs", 6, 7}, model: hlsl.ShaderModel6_7},
		{in: "lib_6_3", want: Profile{"lib", 6, 3}, model: hlsl.ShaderModel6_3},
		{in: "gs_6_0", wantErr: true},
		{in: "ps_6_8", wantErr: true},
		{in: "ps_4_0", wantErr: true},
		{in: "ps_6", wantErr: true},
		{in: "ps_x_0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProfile: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String = %q", got.String())
			}
			if sm, ok := got.ShaderModel(); !ok || sm != tt.model {
				t.Errorf("ShaderModel = %v, %v", sm, ok)
			}
		})
	}
}

func TestProfileStage(t *testing.T) {
	stages := map[string]ir.ShaderStage{"vs": ir.StageVertex, "ps": ir.StageFragment, "cs": ir.StageCompute}
	for kind, want := range stages {
		got, ok := Profile{Kind: kind, Major: 6}.Stage()
		if !ok || got != want {
			t.Errorf("%s: stage = %v, %v", kind, got, ok)
		}
	}
	if _, ok := (Profile{Kind: "lib", Major: 6}).Stage(); ok {
		t.Error("library profiles should accept any stage")
	}
}

func TestParseArgs(t *testing.T) {
	a, err := ParseArgs([]string{
		"-T", "ps_6_0", "-Emain2", "-I", "inc", "/Iother", "-D", "FOO=1",
		"-spirv", "-fspv-target-env=vulkan1.2", "-Zi", "-Vd",
		"-Fo", "out.spv", "-Feerr.txt", "shader.wgsl",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if a.Profile != (Profile{"ps", 6, 0}) {
		t.Errorf("Profile = %+v", a.Profile)
	}
	if a.Entry != "main2" {
		t.Errorf("Entry = %q", a.Entry)
	}
	if len(a.IncludeDirs) != 2 || a.IncludeDirs[0] != "inc" || a.IncludeDirs[1] != "other" {
		t.Errorf("IncludeDirs = %v", a.IncludeDirs)
	}
	if len(a.Defines) != 1 || a.Defines[0] != "FOO=1" {
		t.Errorf("Defines = %v", a.Defines)
	}
	if a.Target != TargetSPIRV || a.SPIRVVersion != spirv.Version1_5 {
		t.Errorf("Target = %s, version = %v", a.Target, a.SPIRVVersion)
	}
	if !a.Debug || !a.SkipValidation {
		t.Error("-Zi and -Vd not recorded")
	}
	if a.ObjectFile != "out.spv" || a.ErrorFile != "err.txt" {
		t.Errorf("outputs = %q, %q", a.ObjectFile, a.ErrorFile)
	}
	if a.SourceName != "shader.wgsl" {
		t.Errorf("SourceName = %q", a.SourceName)
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	a, err := ParseArgs([]string{"-Tvs_6_0"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if a.Entry != DefaultEntry || a.Target != TargetHLSL || a.SPIRVVersion != spirv.Version1_0 {
		t.Errorf("defaults = %+v", a)
	}

	for _, target := range []struct {
		flag string
		want Target
	}{{"-msl", TargetMSL}, {"-glsl", TargetGLSL}} {
		a, err := ParseArgs([]string{"-T", "cs_6_0", target.flag})
		if err != nil || a.Target != target.want {
			t.Errorf("%s: target = %v, %v", target.flag, a, err)
		}
	}
}

func TestParseArgs_Errors(t *testing.T) {
	tests := map[string][]string{
		"missing profile":   {"-E", "main"},
		"unknown flag":      {"-T", "ps_6_0", "-O3"},
		"missing value":     {"-T", "ps_6_0", "-E"},
		"bad profile":       {"-T", "hs_6_0"},
		"unknown spirv env": {"-T", "ps_6_0", "-fspv-target-env=vulkan9"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseArgs(args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseArgs_SlashPrefix(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		source string
		target Target
		incs   int
	}{
		{name: "absolute path", args: []string{"-T", "ps_6_0", "/shaders/frag.wgsl"}, source: "/shaders/frag.wgsl"},
		{name: "root file", args: []string{"-T", "ps_6_0", "/frag.wgsl"}, source: "/frag.wgsl"},
		{name: "path after flags", args: []string{"/Tps_6_0", "/spirv", "/shaders/frag.wgsl"}, source: "/shaders/frag.wgsl", target: TargetSPIRV},
		{name: "slash include", args: []string{"-T", "ps_6_0", "/Iinc", "-I", "/abs/inc", "/x/y.wgsl"}, source: "/x/y.wgsl", incs: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs: %v", err)
			}
			if a.SourceName != tt.source {
				t.Errorf("SourceName = %q, want %q", a.SourceName, tt.source)
			}
			if a.Target != tt.target {
				t.Errorf("Target = %s", a.Target)
			}
			if len(a.IncludeDirs) != tt.incs {
				t.Errorf("IncludeDirs = %v", a.IncludeDirs)
			}
		})
	}
}
