package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eltechnic0/arduino-control/internal/command"
	"github.com/eltechnic0/arduino-control/internal/panel"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorInfo)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	errStyle     = lipgloss.NewStyle().Foreground(colorError)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	flashStyles = map[string]lipgloss.Style{
		panel.FlashSuccess: lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
		panel.FlashError:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		panel.FlashInfo:    lipgloss.NewStyle().Bold(true).Foreground(colorInfo),
	}
)

// Options configures the model.
type Options struct {
	FlashTimeout   time.Duration
	RequestTimeout time.Duration
}

// Model is the terminal panel.
type Model struct {
	ctx   context.Context
	panel Panel
	opts  Options

	input   textinput.Model
	view    panel.View
	version uint64

	flashText string
	flashKind string
	flashGen  uint64
	lastFlash time.Time

	pending  int
	showHelp bool
	width    int
}

// New creates the terminal panel over p.
func New(ctx context.Context, p Panel, opts Options) Model {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	ti := textinput.New()
	ti.Placeholder = "vset 3 9, 100 200, 500"
	ti.Prompt = "> "
	ti.Focus()

	v := p.View()
	return Model{
		ctx:     ctx,
		panel:   p,
		opts:    opts,
		input:   ti,
		view:    v,
		version: v.Version,
	}
}

// Init fetches the connection state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, runCmd(m.ctx, m.panel, Command{Name: "refresh"}, m.opts.RequestTimeout))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleSubmit(m.input.Value())
		}

	case ActionDoneMsg:
		if m.pending > 0 {
			m.pending--
		}
		cmd := m.applyView(m.panel.View())
		if cmd == nil && msg.Err != nil {
			cmd = m.showFlash(errorText(msg.Err), panel.FlashError)
		}
		return m, cmd

	case ViewMsg:
		cmd := m.applyView(msg.View)
		return m, cmd

	case FlashExpiredMsg:
		if msg.Gen == m.flashGen {
			m.flashText, m.flashKind = "", ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit(line string) (tea.Model, tea.Cmd) {
	m.input.Reset()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}

	c, err := ParseCommand(line)
	if err != nil {
		cmd := m.showFlash(err.Error(), panel.FlashError)
		return m, cmd
	}
	switch c.Name {
	case "quit", "exit":
		return m, tea.Quit
	case "help":
		m.showHelp = !m.showHelp
		return m, nil
	}
	cmd := m.run(c)
	return m, cmd
}

func (m *Model) run(c Command) tea.Cmd {
	m.pending++
	return runCmd(m.ctx, m.panel, c, m.opts.RequestTimeout)
}

// applyView stores v and starts the flash timer when v carries a new flash.
// Views pushed out of order are dropped.
func (m *Model) applyView(v panel.View) tea.Cmd {
	if v.Version <= m.version {
		return nil
	}
	m.version = v.Version
	m.view = v
	if v.Flash == nil || v.Flash.Expires.Equal(m.lastFlash) {
		return nil
	}
	m.lastFlash = v.Flash.Expires
	return m.showFlash(v.Flash.Text, v.Flash.Kind)
}

func (m *Model) showFlash(text, kind string) tea.Cmd {
	m.flashGen++
	m.flashText, m.flashKind = text, kind
	return flashCmd(m.opts.FlashTimeout, m.flashGen)
}

func errorText(err error) string {
	if errors.Is(err, command.ErrEmpty) {
		return "nothing to send"
	}
	return err.Error()
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder

	conn := m.view.Connection
	if conn == "" {
		conn = "unknown"
	}
	connStyle := errStyle
	if conn == "Connected" {
		connStyle = okStyle
	}
	header := titleStyle.Render("Arduino Control") + "  " + connStyle.Render(conn)
	if m.pending > 0 {
		header += mutedStyle.Render(" …")
	}
	b.WriteString(header + "\n\n")

	b.WriteString(sectionStyle.Render(m.renderPins()) + "\n")
	b.WriteString(sectionStyle.Render(m.renderHistory()) + "\n")
	if len(m.view.Scripts) > 0 {
		b.WriteString(sectionStyle.Render(m.renderScripts()) + "\n")
	}
	if m.view.Calibration.Open {
		b.WriteString(sectionStyle.Render("Calibration\n"+stripTags(m.view.Calibration.HTML)) + "\n")
	}
	if m.showHelp {
		b.WriteString(sectionStyle.Render(renderHelp()) + "\n")
	}

	if m.flashText != "" {
		style, ok := flashStyles[m.flashKind]
		if !ok {
			style = flashStyles[panel.FlashInfo]
		}
		b.WriteString(style.Render(m.flashText) + "\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(mutedStyle.Render("help for commands, esc to quit"))
	return b.String()
}

func (m Model) renderPins() string {
	var b strings.Builder
	b.WriteString("Inputs  ")
	for i, pin := range m.view.ReadPins {
		val := "-"
		if i < len(m.view.Readings) && m.view.Readings[i] != "" {
			val = m.view.Readings[i]
		}
		fmt.Fprintf(&b, "A%d=%s  ", pin, val)
	}
	g := m.view.Grid
	fmt.Fprintf(&b, "\nGrid    x=%d y=%d  pins r%d t%d l%d b%d  settling %d",
		g.X, g.Y, g.Right, g.Top, g.Left, g.Bottom, g.Settling)
	verbose := "off"
	if m.view.Verbose {
		verbose = "on"
	}
	fmt.Fprintf(&b, "\nVerbose %s", verbose)
	return b.String()
}

func (m Model) renderHistory() string {
	if len(m.view.History) == 0 {
		return mutedStyle.Render("No commands yet")
	}
	lines := []string{"History"}
	for i, e := range m.view.History {
		mark := okStyle.Render("✓")
		if !e.OK {
			mark = errStyle.Render("✗")
		}
		line := fmt.Sprintf("%2d %s %s", i+1, mark, e.Label)
		if e.Message != "" {
			line += mutedStyle.Render("  " + e.Message)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderScripts() string {
	lines := []string{"Scripts"}
	for _, s := range m.view.Scripts {
		lines = append(lines, "  "+s.Text)
	}
	return strings.Join(lines, "\n")
}

func renderHelp() string {
	lines := make([]string, 0, len(commandHelp))
	for _, h := range commandHelp {
		lines = append(lines, fmt.Sprintf("%-34s %s", h[0], mutedStyle.Render(h[1])))
	}
	return strings.Join(lines, "\n")
}

// stripTags reduces the calibration fragment to its text.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
