package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat/capi"
	"github.com/wippyai/dxcompat/errors"
	"github.com/wippyai/dxcompat/hostabi"
)

type runGuestFlags struct {
	funcName string
	args     []string
}

func newRunGuestCommand(gs *globalState) *cobra.Command {
	var f runGuestFlags
	cmd := &cobra.Command{
		Use:   "run-guest module.wasm [-- guest argv...]",
		Short: "Run a WebAssembly guest against the dxc host module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuest(cmd.Context(), gs, f, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&f.funcName, "func", "", "export to call (default _start, run or main)")
	cmd.Flags().StringSliceVar(&f.args, "arg", nil, "i32 argument for the export, repeatable")
	return cmd
}

func runGuest(ctx context.Context, gs *globalState, f runGuestFlags, path string, argv []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	params := make([]uint64, len(f.args))
	for i, s := range f.args {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid argument "+s)
		}
		params[i] = api.EncodeI32(int32(v))
	}

	wasm, err := afero.ReadFile(gs.fs, path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+path)
	}

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		return errors.Registration(errors.PhaseABI, wasi_snapshot_preview1.ModuleName, "WASI preview1", err)
	}

	a := capi.New(capi.WithLogger(gs.log), capi.WithIncludeFS(gs.fs))
	defer a.Close()
	host := hostabi.New(hostabi.WithAPI(a), hostabi.WithLogger(gs.log))
	defer host.Close()
	if _, err := host.Instantiate(ctx, r); err != nil {
		return err
	}

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return errors.Wrap(errors.PhaseABI, errors.KindInvalidData, err, "cannot compile "+path)
	}

	config := wazero.NewModuleConfig().
		WithName("guest").
		WithArgs(append([]string{path}, argv...)...).
		WithStdout(gs.stdout).
		WithStderr(gs.stderr).
		WithStartFunctions()
	mod, err := r.InstantiateModule(ctx, compiled, config)
	if err != nil {
		return errors.Wrap(errors.PhaseABI, errors.KindInvalidData, err, "cannot instantiate "+path)
	}
	defer mod.Close(ctx)

	name := f.funcName
	if name == "" {
		name = entryPoint(mod)
		if name == "" {
			return errors.NotFound(errors.PhaseConfig, "entry point", "_start, run or main")
		}
	}
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return errors.NotFound(errors.PhaseConfig, "export", name)
	}

	gs.log.Debug("calling guest", zap.String("module", path), zap.String("func", name))
	results, err := fn.Call(ctx, params...)
	if err != nil {
		var exit *sys.ExitError
		if stderrors.As(err, &exit) && exit.ExitCode() == 0 {
			return nil
		}
		return errors.Wrap(errors.PhaseABI, errors.KindInvalidData, err, "call "+name)
	}
	if len(results) > 0 {
		fmt.Fprintf(gs.stdout, "%s: %d\n", name, api.DecodeI32(results[0]))
	}
	if live := a.Live(); live > 0 {
		gs.log.Warn("guest left handles outstanding", zap.Int("handles", live))
	}
	return nil
}

func entryPoint(mod api.Module) string {
	for _, name := range []string{"_start", "run", "main"} {
		if mod.ExportedFunction(name) != nil {
			return name
		}
	}
	return ""
}
