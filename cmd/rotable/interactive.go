package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/rotable/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
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

type modelState int

const (
	stateGlobals modelState = iota
	stateTable
	stateGoto
	stateShowResult
)

// frame is one level of table navigation.
type frame struct {
	title    string
	table    engine.Table
	entries  []entry
	selected int
}

type interactiveModel struct {
	err      error
	ns       *namespace
	log      *zap.Logger
	sess     *session
	input    textinput.Model
	result   string
	globals  []string
	stack    []frame
	selected int
	state    modelState
}

func newInteractiveModel(ns *namespace, log *zap.Logger) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "global.key.key"
	ti.Prompt = "get: "
	ti.Width = 40
	return &interactiveModel{
		ns:    ns,
		log:   log,
		input: ti,
		state: stateGlobals,
	}
}

type loadedMsg struct {
	err  error
	sess *session
}

type getResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadNamespace
}

func (m *interactiveModel) loadNamespace() tea.Msg {
	sess, err := openSession(context.Background(), m.ns, m.log)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{sess: sess}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateGoto {
			switch msg.String() {
			case "ctrl+c":
				return m, m.quit()
			case "enter":
				return m, m.getPath(m.input.Value())
			case "esc":
				m.input.Blur()
				m.popState()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, m.quit()

		case "up", "k":
			m.move(-1)

		case "down", "j":
			m.move(1)

		case "g":
			if m.sess != nil && m.state != stateShowResult {
				m.input.SetValue(m.currentPath())
				m.input.CursorEnd()
				m.input.Focus()
				m.state = stateGoto
				return m, textinput.Blink
			}

		case "enter", "right", "l":
			switch m.state {
			case stateGlobals:
				m.openGlobal()
			case stateTable:
				m.descend()
			case stateShowResult:
				m.clearResult()
			}

		case "esc", "left", "h":
			switch m.state {
			case stateTable:
				m.stack = m.stack[:len(m.stack)-1]
				if len(m.stack) == 0 {
					m.state = stateGlobals
				}
			case stateShowResult:
				m.clearResult()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess
		m.globals = m.sess.globals()

	case getResultMsg:
		m.input.Blur()
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	return m, nil
}

func (m *interactiveModel) quit() tea.Cmd {
	if m.sess != nil {
		m.sess.Close(context.Background())
	}
	return tea.Quit
}

func (m *interactiveModel) move(delta int) {
	switch m.state {
	case stateGlobals:
		if n := m.selected + delta; n >= 0 && n < len(m.globals) {
			m.selected = n
		}
	case stateTable:
		f := &m.stack[len(m.stack)-1]
		if n := f.selected + delta; n >= 0 && n < len(f.entries) {
			f.selected = n
		}
	}
}

func (m *interactiveModel) popState() {
	if len(m.stack) > 0 {
		m.state = stateTable
	} else {
		m.state = stateGlobals
	}
}

func (m *interactiveModel) clearResult() {
	m.result = ""
	m.err = nil
	m.popState()
}

func (m *interactiveModel) openGlobal() {
	if len(m.globals) == 0 {
		return
	}
	name := m.globals[m.selected]
	t, err := m.sess.eng.ResolveGlobal(name)
	if err != nil {
		m.err = err
		m.state = stateShowResult
		return
	}
	m.push(name, t)
}

func (m *interactiveModel) descend() {
	f := m.stack[len(m.stack)-1]
	if len(f.entries) == 0 {
		return
	}
	e := f.entries[f.selected]
	if t, ok := e.value.Table(); ok {
		m.push(f.title+"."+formatKey(e.key), t)
		return
	}
	m.result = fmt.Sprintf("%s.%s = %s", f.title, formatKey(e.key), m.sess.format(e.value))
	m.state = stateShowResult
}

func (m *interactiveModel) push(title string, t engine.Table) {
	m.stack = append(m.stack, frame{
		title:   title,
		table:   t,
		entries: m.sess.entries(t),
	})
	m.state = stateTable
}

func (m *interactiveModel) currentPath() string {
	if len(m.stack) == 0 {
		if len(m.globals) > 0 {
			return m.globals[m.selected]
		}
		return ""
	}
	return m.stack[len(m.stack)-1].title
}

func (m *interactiveModel) getPath(path string) tea.Cmd {
	return func() tea.Msg {
		v, err := m.sess.get(path)
		if err != nil {
			return getResultMsg{err: err}
		}
		return getResultMsg{result: path + " = " + m.sess.format(v)}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.sess == nil {
		return "Loading namespace..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("rotable"))
	b.WriteString(fmt.Sprintf(" %d globals, %d modules\n\n", len(m.globals), len(m.sess.reg.Modules())))

	switch m.state {
	case stateGlobals:
		b.WriteString("Select a global table:\n\n")
		for i, name := range m.globals {
			line := "  " + keyStyle.Render(name) + " " + kindStyle.Render(m.storageOf(name))
			if i == m.selected {
				line = selectedStyle.Render("> " + name + " " + m.storageOf(name))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • g get • q quit"))

	case stateTable:
		f := m.stack[len(m.stack)-1]
		b.WriteString(fmt.Sprintf("%s %s\n\n", keyStyle.Render(f.title), kindStyle.Render(m.sess.format(engine.TableRef(f.table)))))
		if len(f.entries) == 0 {
			b.WriteString(helpStyle.Render("  (empty)"))
			b.WriteString("\n")
		}
		for i, e := range f.entries {
			if i == f.selected {
				b.WriteString(selectedStyle.Render("> " + formatKey(e.key) + " = " + m.sess.format(e.value)))
			} else {
				b.WriteString("  " + keyStyle.Render(formatKey(e.key)) + " = " + kindStyle.Render(m.sess.format(e.value)))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • esc back • g get • q quit"))

	case stateGoto:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter resolve • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) storageOf(name string) string {
	t, err := m.sess.eng.ResolveGlobal(name)
	if err != nil {
		return "(missing)"
	}
	return m.sess.storage(engine.TableRef(t).Address())
}

func runInteractive(ctx context.Context, ns *namespace, log *zap.Logger) error {
	p := tea.NewProgram(newInteractiveModel(ns, log), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
