package dxc

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
	"go.uber.org/zap"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/bstr"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

const defaultSourceName = "shader.wgsl"

// compiler implements Compiler3 on top of naga.
type compiler struct {
	com.Object
	module *Module
	arena  dxcompat.Arena
}

func newCompiler(m *Module, arena dxcompat.Arena) *compiler {
	c := &compiler{module: m, arena: arena}
	c.Init(c, nil, IID_IDxcCompiler3)
	return c
}

func (c *compiler) Compile(src Buffer, args []string, inc IncludeHandler, iid com.GUID) (com.Unknown, error) {
	if iid != IID_IDxcResult && iid != com.IID_IUnknown {
		return nil, errors.NoInterface(iid.String())
	}
	res, err := c.compile(src, args, inc)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	return res.QueryInterface(iid)
}

func (c *compiler) compile(src Buffer, args []string, inc IncludeHandler) (*result, error) {
	log := c.module.logger()
	var diags diagnostics

	parsed, err := ParseArgs(args)
	if err != nil {
		diags.errorf(defaultSourceName, "%s", message(err))
		return c.failed(err, diags)
	}
	diags.name = parsed.SourceName
	if diags.name == "" {
		diags.name = defaultSourceName
	}
	for _, d := range parsed.Defines {
		diags.warnf("define %q ignored: WGSL has no preprocessor", d)
	}

	text, err := decodeSource(src)
	if err != nil {
		diags.errorf(diags.name, "%s", message(err))
		return c.failed(err, diags)
	}

	handler := inc
	if handler == nil {
		h := newFSIncludeHandler(c.module.fs, parsed.IncludeDirs, c.arena)
		defer h.Release()
		handler = h
	}
	pp := newPreprocessor(handler)
	text, err = pp.expand(text, 0)
	if err != nil {
		diags.errorf(diags.name, "%s", message(err))
		return c.failed(err, diags)
	}

	artifact, err := generate(text, parsed)
	if err != nil {
		diags.compileError(err)
		log.Debug("compile failed",
			zap.String("profile", parsed.Profile.String()),
			zap.String("target", parsed.Target.String()),
			zap.Error(err))
		return c.failed(err, diags)
	}

	log.Debug("compiled",
		zap.String("profile", parsed.Profile.String()),
		zap.String("target", parsed.Target.String()),
		zap.Strings("includes", pp.order),
		zap.Int("bytes", len(artifact)))
	return c.succeeded(artifact, parsed.Target, diags)
}

func (c *compiler) failed(cause error, diags diagnostics) (*result, error) {
	res := newResult(errors.CompileFailed(cause))
	if err := c.attachErrors(res, diags); err != nil {
		res.Release()
		return nil, err
	}
	return res, nil
}

func (c *compiler) succeeded(artifact []byte, target Target, diags diagnostics) (*result, error) {
	res := newResult(nil)

	var obj *blob
	var err error
	if target.Textual() {
		obj, err = newTextBlob(string(artifact), c.arena)
	} else {
		obj, err = newBlob(artifact, false, CP_ACP, c.arena)
	}
	if err != nil {
		res.Release()
		return nil, err
	}
	res.add(OutObject, obj)
	if target.Textual() {
		res.add(OutText, obj)
	}
	obj.Release()

	if err := c.attachErrors(res, diags); err != nil {
		res.Release()
		return nil, err
	}
	return res, nil
}

func (c *compiler) attachErrors(res *result, diags diagnostics) error {
	b, err := newTextBlob(diags.String(), c.arena)
	if err != nil {
		return err
	}
	res.add(OutErrors, b)
	b.Release()
	return nil
}

// generate runs the naga pipeline and returns the artifact for a.Target.
func generate(source string, a *Arguments) ([]byte, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	if !a.SkipValidation {
		verrs, err := naga.Validate(module)
		if err != nil {
			return nil, err
		}
		if len(verrs) > 0 {
			errs := make([]error, len(verrs))
			for i, v := range verrs {
				errs[i] = v
			}
			return nil, stderrors.Join(errs...)
		}
	}

	ep, err := selectEntryPoint(module, a)
	if err != nil {
		return nil, err
	}

	switch a.Target {
	case TargetSPIRV:
		opts := spirv.DefaultOptions()
		opts.Version = a.SPIRVVersion
		opts.Debug = a.Debug
		return naga.GenerateSPIRV(module, opts)
	case TargetMSL:
		code, _, err := msl.Compile(module, msl.DefaultOptions())
		return []byte(code), err
	case TargetGLSL:
		opts := glsl.DefaultOptions()
		opts.EntryPoint = ep.Name
		if a.Debug {
			opts.WriterFlags |= glsl.WriterFlagDebugInfo
		}
		code, _, err := glsl.Compile(module, opts)
		return []byte(code), err
	default:
		opts := hlsl.DefaultOptions()
		opts.ShaderModel, _ = a.Profile.ShaderModel()
		opts.EntryPoint = ep.Name
		code, _, err := hlsl.Compile(module, opts)
		return []byte(code), err
	}
}

func selectEntryPoint(module *ir.Module, a *Arguments) (*ir.EntryPoint, error) {
	for i := range module.EntryPoints {
		ep := &module.EntryPoints[i]
		if ep.Name != a.Entry {
			continue
		}
		if want, ok := a.Profile.Stage(); ok && ep.Stage != want {
			return nil, errors.InvalidInput(errors.PhaseCompile,
				fmt.Sprintf("entry point %q is not valid for profile %s", ep.Name, a.Profile))
		}
		return ep, nil
	}
	return nil, errors.NotFound(errors.PhaseCompile, "entry point", a.Entry)
}

// decodeSource converts src to UTF-8 text.
func decodeSource(src Buffer) (string, error) {
	data := src.Data
	enc := src.Encoding

	if enc == CP_ACP {
		switch {
		case bytes.HasPrefix(data, []byte{0xFF, 0xFE, 0x00, 0x00}):
			enc, data = CP_UTF32, data[4:]
		case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
			enc, data = CP_UTF16, data[2:]
		default:
			enc = CP_UTF8
		}
	}

	switch enc {
	case CP_UTF8:
		data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
		if !utf8.Valid(data) {
			return "", errors.InvalidUTF8(errors.PhaseCompile, []string{"source"}, data)
		}
		return string(data), nil
	case CP_UTF16:
		return bstr.Decode(data, bstr.Wide16)
	case CP_UTF32:
		return bstr.Decode(data, bstr.Wide32)
	}
	return "", errors.Unsupported(errors.PhaseCompile, fmt.Sprintf("source code page %d", enc))
}

// diagnostics accumulates compiler messages in file:line:col form.
type diagnostics struct {
	name  string
	lines []string
}

func (d *diagnostics) errorf(name, format string, args ...any) {
	d.lines = append(d.lines, name+": error: "+fmt.Sprintf(format, args...))
}

func (d *diagnostics) warnf(format string, args ...any) {
	d.lines = append(d.lines, d.name+": warning: "+fmt.Sprintf(format, args...))
}

// sourceError is a front-end error carrying a position and a rendering of
// the offending line.
type sourceError interface {
	error
	FormatWithContext() string
}

// sourceErrors is a front-end error list.
type sourceErrors interface {
	error
	FormatAll() string
}

// compileError records naga errors, keeping source context when the front
// end reports it.
func (d *diagnostics) compileError(err error) {
	var list sourceErrors
	if stderrors.As(err, &list) {
		d.errorf(d.name, "%s", list.Error())
		d.context(list.FormatAll())
		return
	}
	var se sourceError
	if stderrors.As(err, &se) {
		d.errorf(d.name, "%s", se.Error())
		d.context(se.FormatWithContext())
		return
	}
	var own *errors.Error
	if stderrors.As(err, &own) {
		d.errorf(d.name, "%s", message(err))
		return
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		if line != "" {
			d.errorf(d.name, "%s", line)
		}
	}
}

func (d *diagnostics) context(text string) {
	if text = strings.TrimRight(text, "\n"); text != "" {
		d.lines = append(d.lines, text)
	}
}

func (d diagnostics) String() string {
	if len(d.lines) == 0 {
		return ""
	}
	return strings.Join(d.lines, "\n") + "\n"
}

// message returns the most specific text of err.
func message(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Detail != "" {
		if e.Subject != "" && !strings.Contains(e.Detail, e.Subject) {
			return e.Subject + ": " + e.Detail
		}
		return e.Detail
	}
	return err.Error()
}
