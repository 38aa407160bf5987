package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wippyai/dxcompat/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	targetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type targetInfo struct {
	name string
	flag string
}

var targets = []targetInfo{
	{name: "HLSL"},
	{name: "SPIR-V", flag: "-spirv"},
	{name: "MSL", flag: "-msl"},
	{name: "GLSL", flag: "-glsl"},
}

const defaultInteractiveArgs = "-T ps_6_0 -E main"

type modelState int

const (
	stateSelectTarget modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	gs       *globalState
	err      error
	filename string
	code     []byte
	loaded   bool
	selected int
	args     textinput.Model
	output   viewport.Model
	failed   bool
	state    modelState
}

func newInteractiveModel(gs *globalState, filename string) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "args: "
	ti.Placeholder = defaultInteractiveArgs
	ti.SetValue(defaultInteractiveArgs)
	ti.Width = 60

	return &interactiveModel{
		gs:       gs,
		filename: filename,
		args:     ti,
		output:   viewport.New(80, 20),
		state:    stateSelectTarget,
	}
}

type loadedMsg struct {
	err  error
	code []byte
}

type compileResultMsg struct {
	err     error
	outcome *compileOutcome
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadSource
}

func (m *interactiveModel) loadSource() tea.Msg {
	code, err := afero.ReadFile(m.gs.fs, m.filename)
	if err != nil {
		return loadedMsg{err: errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+m.filename)}
	}
	return loadedMsg{code: code}
}

// compileArgs builds the compiler arguments for the selected target.
func (m *interactiveModel) compileArgs() []string {
	args := strings.Fields(m.args.Value())
	if f := targets[m.selected].flag; f != "" {
		args = append(args, f)
	}
	// Same include order as the compile command.
	return append([]string{"-I", filepath.Dir(m.filename)}, m.gs.cfg.compilerArgs(args)...)
}

func (m *interactiveModel) compile() tea.Msg {
	out, err := compileSource(m.gs, m.code, m.compileArgs())
	return compileResultMsg{outcome: out, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-6, 3)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectTarget && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectTarget && m.selected < len(targets)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectTarget:
				if !m.loaded {
					return m, nil
				}
				m.state = stateInputArgs
				m.args.Focus()
				return m, textinput.Blink

			case stateInputArgs:
				m.args.Blur()
				return m, m.compile

			case stateShowResult:
				m.state = stateSelectTarget
				m.err = nil
				return m, nil
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.args.Blur()
				m.state = stateSelectTarget
			case stateShowResult:
				m.state = stateSelectTarget
				m.err = nil
			}
			return m, nil
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.code = msg.code
		m.loaded = true

	case compileResultMsg:
		m.err = msg.err
		m.state = stateShowResult
		if msg.outcome != nil {
			m.failed = msg.outcome.status != nil
			m.output.SetContent(m.renderOutcome(msg.outcome))
			m.output.GotoTop()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateInputArgs:
		m.args, cmd = m.args.Update(msg)
	case stateShowResult:
		m.output, cmd = m.output.Update(msg)
	}
	return m, cmd
}

func (m *interactiveModel) renderOutcome(out *compileOutcome) string {
	var b strings.Builder
	if out.diagnostics != "" {
		b.WriteString(errorStyle.Render(out.diagnostics))
		b.WriteString("\n")
	}
	if out.status != nil {
		return b.String()
	}
	if m.textual() {
		b.WriteString(resultStyle.Render(string(out.object)))
	} else {
		fmt.Fprintf(&b, "%d bytes\n\n", len(out.object))
		b.WriteString(resultStyle.Render(hex.Dump(out.object)))
	}
	return b.String()
}

func (m *interactiveModel) textual() bool {
	return targets[m.selected].flag != "-spirv"
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.loaded {
		return "Loading shader..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("DXC"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectTarget:
		b.WriteString("Select an output target:\n\n")
		for i, t := range targets {
			line := targetStyle.Render(t.name)
			if t.flag != "" {
				line += " " + flagStyle.Render(t.flag)
			}
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + t.name))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter arguments • q quit"))

	case stateInputArgs:
		fmt.Fprintf(&b, "Compiling to %s\n\n", targetStyle.Render(targets[m.selected].name))
		b.WriteString(m.args.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter compile • esc back"))

	case stateShowResult:
		t := targets[m.selected].name
		if m.err != nil {
			fmt.Fprintf(&b, "Compiling to %s:\n\n", targetStyle.Render(t))
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		} else {
			status := resultStyle.Render("succeeded")
			if m.failed {
				status = errorStyle.Render("failed")
			}
			fmt.Fprintf(&b, "%s compile %s:\n\n", targetStyle.Render(t), status)
			b.WriteString(m.output.View())
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter continue • q quit"))
	}

	return b.String()
}

func newInteractiveCommand(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive file",
		Short: "Compile a shader from a terminal UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if !gs.isTTY() {
				return errors.Unsupported(errors.PhaseConfig, "interactive mode without a terminal")
			}
			p := tea.NewProgram(newInteractiveModel(gs, args[0]), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
}
