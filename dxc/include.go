package dxc

import (
	"path"
	"regexp"
	"strings"

	"github.com/spf13/afero"

	"github.com/wippyai/dxcompat"
	"github.com/wippyai/dxcompat/com"
	"github.com/wippyai/dxcompat/errors"
)

// MaxIncludeDepth bounds nested #include expansion.
const MaxIncludeDepth = 32

var includeLine = regexp.MustCompile(`^\s*#\s*include\s*(?:"([^"]+)"|<([^>]+)>)\s*$`)

// fsIncludeHandler resolves includes from a filesystem, trying the name as
// given and then each include directory in order.
type fsIncludeHandler struct {
	com.Object
	fs    afero.Fs
	dirs  []string
	arena dxcompat.Arena
}

func newFSIncludeHandler(fs afero.Fs, dirs []string, arena dxcompat.Arena) *fsIncludeHandler {
	h := &fsIncludeHandler{fs: fs, dirs: dirs, arena: arena}
	h.Init(h, nil, IID_IDxcIncludeHandler)
	return h
}

func (h *fsIncludeHandler) LoadSource(name string) (Blob, error) {
	candidates := []string{name}
	if !path.IsAbs(name) {
		for _, dir := range h.dirs {
			candidates = append(candidates, path.Join(dir, name))
		}
	}
	for _, c := range candidates {
		data, err := afero.ReadFile(h.fs, c)
		if err != nil {
			continue
		}
		b, err := newBlob(data, true, CP_UTF8, h.arena)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, errors.NotFound(errors.PhaseInclude, "include", name)
}

// preprocessor expands #include lines through an IncludeHandler.
type preprocessor struct {
	handler  IncludeHandler
	included map[string]bool
	order    []string
}

func newPreprocessor(h IncludeHandler) *preprocessor {
	return &preprocessor{handler: h, included: make(map[string]bool)}
}

// expand returns source with every include replaced by its body. Each file
// is included at most once.
func (p *preprocessor) expand(source string, depth int) (string, error) {
	if !strings.Contains(source, "#") {
		return source, nil
	}

	lines := strings.SplitAfter(source, "\n")
	var b strings.Builder
	b.Grow(len(source))

	for _, line := range lines {
		m := includeLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			b.WriteString(line)
			continue
		}
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if p.included[name] {
			continue
		}
		if depth >= MaxIncludeDepth {
			return "", errors.New(errors.PhaseInclude, errors.KindInvalidData).
				Subject(name).
				Detail("include nesting exceeds %d levels", MaxIncludeDepth).
				Build()
		}
		p.included[name] = true
		p.order = append(p.order, name)

		body, err := p.load(name)
		if err != nil {
			return "", err
		}
		expanded, err := p.expand(body, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		if expanded != "" && !strings.HasSuffix(expanded, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func (p *preprocessor) load(name string) (string, error) {
	if p.handler == nil {
		return "", errors.NilPointer(errors.PhaseInclude, "include handler")
	}
	blob, err := p.handler.LoadSource(name)
	if err != nil {
		return "", errors.New(errors.PhaseInclude, errors.KindNotFound).
			Subject(name).
			Detail("cannot open include file").
			Cause(err).
			Build()
	}
	if blob == nil {
		return "", nil
	}
	defer blob.Release()
	data := blob.Bytes()
	return string(data[:textLen(data)]), nil
}
