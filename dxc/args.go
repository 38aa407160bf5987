package dxc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/wippyai/dxcompat/errors"
)

// Target selects the artifact placed in the object output.
type Target int

const (
	TargetHLSL Target = iota
	TargetSPIRV
	TargetMSL
	TargetGLSL
)

func (t Target) String() string {
	switch t {
	case TargetHLSL:
		return "hlsl"
	case TargetSPIRV:
		return "spirv"
	case TargetMSL:
		return "msl"
	case TargetGLSL:
		return "glsl"
	}
	return "unknown"
}

// Textual reports whether the target produces source text.
func (t Target) Textual() bool {
	return t != TargetSPIRV
}

// DefaultEntry is the entry point used when -E is absent.
const DefaultEntry = "main"

// Profile is a parsed -T value such as ps_6_0.
type Profile struct {
	Kind  string
	Major int
	Minor int
}

func (p Profile) String() string {
	return fmt.Sprintf("%s_%d_%d", p.Kind, p.Major, p.Minor)
}

// ShaderModel maps the profile version onto an HLSL shader model.
func (p Profile) ShaderModel() (hlsl.ShaderModel, bool) {
	switch {
	case p.Major == 5 && p.Minor <= 1:
		return hlsl.ShaderModel5_0 + hlsl.ShaderModel(p.Minor), true
	case p.Major == 6 && p.Minor <= 7:
		return hlsl.ShaderModel6_0 + hlsl.ShaderModel(p.Minor), true
	}
	return 0, false
}

// Stage returns the pipeline stage the profile compiles for. Library
// profiles accept any stage.
func (p Profile) Stage() (ir.ShaderStage, bool) {
	switch p.Kind {
	case "vs":
		return ir.StageVertex, true
	case "ps":
		return ir.StageFragment, true
	case "cs":
		return ir.StageCompute, true
	}
	return 0, false
}

var profileKinds = map[string]bool{"vs": true, "ps": true, "cs": true, "lib": true}

// ParseProfile parses kind_major_minor.
func ParseProfile(s string) (Profile, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 3 {
		return Profile{}, errors.InvalidInput(errors.PhaseCompile, "invalid profile "+s)
	}
	if !profileKinds[parts[0]] {
		return Profile{}, errors.Unsupported(errors.PhaseCompile, "profile "+s)
	}
	major, err := strconv.Atoi(parts[1])
	if err != nil {
		return Profile{}, errors.InvalidInput(errors.PhaseCompile, "invalid profile "+s)
	}
	minor, err := strconv.Atoi(parts[2])
	if err != nil {
		return Profile{}, errors.InvalidInput(errors.PhaseCompile, "invalid profile "+s)
	}
	p := Profile{Kind: parts[0], Major: major, Minor: minor}
	if _, ok := p.ShaderModel(); !ok {
		return Profile{}, errors.Unsupported(errors.PhaseCompile, "shader model of profile "+s)
	}
	return p, nil
}

// Arguments is the parsed form of a compile argument list.
type Arguments struct {
	Profile        Profile
	Entry          string
	SourceName     string
	IncludeDirs    []string
	Defines        []string
	Target         Target
	SPIRVVersion   spirv.Version
	Debug          bool
	SkipValidation bool
	ObjectFile     string
	ErrorFile      string
}

var spirvEnvs = map[string]spirv.Version{
	"vulkan1.0": spirv.Version1_0,
	"vulkan1.1": spirv.Version1_3,
	"vulkan1.2": spirv.Version1_5,
	"vulkan1.3": spirv.Version1_6,
}

// flags taking a value, either attached (-Tps_6_0) or as the next argument
var valueFlags = []string{"T", "E", "I", "D", "Fo", "Fe"}

// ParseArgs parses DXC-style arguments. Both "-" and "/" prefixes are
// accepted; a "/" argument is a flag only when it names a known flag and
// holds no further path separator, so absolute paths name the source file.
// A non-flag argument names the source file.
func ParseArgs(args []string) (*Arguments, error) {
	out := &Arguments{Entry: DefaultEntry, SPIRVVersion: spirv.Version1_0}
	haveProfile := false

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "" {
			continue
		}
		if arg[0] != '-' && !slashFlag(arg) {
			out.SourceName = arg
			continue
		}
		flag := arg[1:]

		switch flag {
		case "spirv":
			out.Target = TargetSPIRV
			continue
		case "msl":
			out.Target = TargetMSL
			continue
		case "glsl":
			out.Target = TargetGLSL
			continue
		case "Zi":
			out.Debug = true
			continue
		case "Vd":
			out.SkipValidation = true
			continue
		}

		if env, ok := strings.CutPrefix(flag, "fspv-target-env="); ok {
			v, known := spirvEnvs[env]
			if !known {
				return nil, errors.Unsupported(errors.PhaseCompile, "target environment "+env)
			}
			out.SPIRVVersion = v
			continue
		}

		name, value, ok := splitValueFlag(flag)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseCompile, "unknown argument "+arg)
		}
		if value == "" {
			if i+1 >= len(args) {
				return nil, errors.InvalidInput(errors.PhaseCompile, "missing value for "+arg)
			}
			i++
			value = args[i]
		}

		switch name {
		case "T":
			p, err := ParseProfile(value)
			if err != nil {
				return nil, err
			}
			out.Profile = p
			haveProfile = true
		case "E":
			out.Entry = value
		case "I":
			out.IncludeDirs = append(out.IncludeDirs, value)
		case "D":
			out.Defines = append(out.Defines, value)
		case "Fo":
			out.ObjectFile = value
		case "Fe":
			out.ErrorFile = value
		}
	}

	if !haveProfile {
		return nil, errors.InvalidInput(errors.PhaseCompile, "target profile (-T) is required")
	}
	return out, nil
}

var switchFlags = map[string]bool{"spirv": true, "msl": true, "glsl": true, "Zi": true, "Vd": true}

// slashFlag reports whether arg is a "/"-prefixed flag rather than a path.
func slashFlag(arg string) bool {
	if arg[0] != '/' {
		return false
	}
	flag := arg[1:]
	if flag == "" || strings.ContainsAny(flag, `/\`) {
		return false
	}
	if switchFlags[flag] || strings.HasPrefix(flag, "fspv-target-env=") {
		return true
	}
	_, _, ok := splitValueFlag(flag)
	return ok
}

// splitValueFlag matches the longest value flag prefixing flag.
func splitValueFlag(flag string) (name, value string, ok bool) {
	for _, name := range []string{"Fo", "Fe"} {
		if v, found := strings.CutPrefix(flag, name); found {
			return name, v, true
		}
	}
	for _, name := range valueFlags {
		if len(name) != 1 {
			continue
		}
		if v, found := strings.CutPrefix(flag, name); found {
			return name, v, true
		}
	}
	return "", "", false
}
