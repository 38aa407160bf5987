package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/capi"
	"github.com/wippyai/dxcompat/dxc"
	"github.com/wippyai/dxcompat/errors"
)

func newCompileCommand(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "compile [compiler arguments] file",
		Short: "Compile a shader",
		Long: `Compile a WGSL shader. Every argument goes to the compiler, so global
flags are not accepted here; use DXC_CONFIG and the DXC_* environment
variables instead.

  -T <profile>   target profile, e.g. ps_6_0 (required)
  -E <name>      entry point (default main)
  -I <dir>       include directory
  -D <name[=v]>  define
  -spirv -msl -glsl
                 output target (default HLSL)
  -Fo <file>     write the object to file
  -Fe <file>     write diagnostics to file`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
				return cmd.Help()
			}
			return runCompile(gs, args)
		},
	}
}

// compileOutcome is everything one compile produced, copied out of the
// API handles.
type compileOutcome struct {
	status      error
	object      []byte
	diagnostics string
}

// compileSource runs one compile through the plain API with the
// configured defaults applied to args.
func compileSource(gs *globalState, code []byte, args []string) (*compileOutcome, error) {
	a := capi.New(capi.WithLogger(gs.log), capi.WithIncludeFS(gs.fs))
	defer a.Close()

	c, err := a.Initialize()
	if err != nil {
		return nil, err
	}
	defer a.Finalize(c)

	r, err := a.Compile(c, &capi.CompileOptions{Code: code, Args: args})
	if err != nil {
		return nil, err
	}
	defer a.ResultRelease(r)

	out := &compileOutcome{status: a.ResultStatus(r)}
	if e := a.ResultGetError(r); e != 0 {
		out.diagnostics = a.ErrorString(e)
		a.ErrorRelease(e)
	}
	if o := a.ResultGetObject(r); o != 0 {
		out.object = append([]byte(nil), a.ObjectBytes(o)...)
		a.ObjectRelease(o)
	}
	return out, nil
}

func runCompile(gs *globalState, args []string) error {
	full := gs.cfg.compilerArgs(args)
	parsed, err := dxc.ParseArgs(full)
	if err != nil {
		return err
	}
	if parsed.SourceName == "" {
		return errors.InvalidInput(errors.PhaseConfig, "no input file")
	}
	code, err := afero.ReadFile(gs.fs, parsed.SourceName)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+parsed.SourceName)
	}
	// Includes resolve next to the source before the configured path.
	full = append([]string{"-I", filepath.Dir(parsed.SourceName)}, full...)

	gs.log.Debug("compiling",
		zap.String("source", parsed.SourceName),
		zap.Strings("args", full))

	out, err := compileSource(gs, code, full)
	if err != nil {
		return err
	}

	if out.diagnostics != "" {
		if parsed.ErrorFile != "" {
			if err := afero.WriteFile(gs.fs, parsed.ErrorFile, []byte(out.diagnostics), 0o644); err != nil {
				return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "cannot write "+parsed.ErrorFile)
			}
		} else {
			fmt.Fprint(gs.stderr, out.diagnostics)
		}
	}
	if out.status != nil {
		return out.status
	}

	switch {
	case parsed.ObjectFile != "":
		if err := afero.WriteFile(gs.fs, parsed.ObjectFile, out.object, 0o644); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "cannot write "+parsed.ObjectFile)
		}
	case parsed.Target.Textual():
		_, _ = gs.stdout.Write(out.object)
	default:
		dumper := hex.Dumper(gs.stdout)
		_, _ = dumper.Write(out.object)
		_ = dumper.Close()
	}
	return nil
}
