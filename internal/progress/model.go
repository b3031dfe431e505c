// Package progress renders a live terminal view of a scenario run with
// bubbletea: a progress bar, the scenarios currently running, recent results
// and log lines.
package progress

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scenctl/internal/scenario"
	"scenctl/pkg/logging"
)

const (
	maxRecentResults = 8
	maxLogLines      = 6
	defaultBarWidth  = 40
)

// Messages sent into the program from worker goroutines

type plannedMsg struct{ total int }

type startedMsg struct {
	id string
	at time.Time
}

type finishedMsg struct{ result scenario.Result }

type logMsg struct{ entry logging.LogEntry }

// doneMsg is sent when the run function returned
type doneMsg struct{ err error }

type keyMap struct {
	Quit key.Binding
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"})
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"})
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
)

// Model is the bubbletea model of the progress view
type Model struct {
	total    int
	done     int
	passed   int
	failed   int
	errored  int
	running  map[string]time.Time
	recent   []string
	logs     []string
	finished bool
	quitting bool

	bar     progress.Model
	spinner spinner.Model
	keys    keyMap

	logChannel <-chan logging.LogEntry
	cancel     context.CancelFunc
}

// NewModel creates the view. logs may be nil; cancel is called when the
// user quits before the run finished.
func NewModel(logs <-chan logging.LogEntry, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		running:    make(map[string]time.Time),
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		spinner:    s,
		keys:       keyMap{Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "abort run"))},
		logChannel: logs,
		cancel:     cancel,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.logChannel != nil {
		cmds = append(cmds, listenForLogs(m.logChannel))
	}
	return tea.Batch(cmds...)
}

// listenForLogs waits for the next log entry
func listenForLogs(ch <-chan logging.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg{entry: entry}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && !m.finished {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		width := msg.Width - 4
		if width > 80 {
			width = 80
		}
		if width > 10 {
			m.bar.Width = width
		}
		return m, nil

	case plannedMsg:
		m.total = msg.total
		return m, nil

	case startedMsg:
		m.running[msg.id] = msg.at
		return m, nil

	case finishedMsg:
		m.record(msg.result)
		return m, nil

	case logMsg:
		m.appendLog(formatLogEntry(msg.entry))
		return m, listenForLogs(m.logChannel)

	case doneMsg:
		m.finished = true
		if msg.err != nil {
			m.appendLog("run failed: " + msg.err.Error())
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) record(r scenario.Result) {
	delete(m.running, r.ID)
	m.done++

	var line string
	switch r.Outcome.Kind {
	case scenario.KindSuccess:
		m.passed++
		line = successStyle.Render("✅") + " " + r.ID
	case scenario.KindFailure:
		m.failed++
		line = failureStyle.Render("❌") + " " + r.ID + ": " + r.Outcome.Message
	default:
		m.errored++
		line = errorStyle.Render("💥") + " " + r.ID + ": " + r.Outcome.Message
	}
	line += mutedStyle.Render(fmt.Sprintf(" (%v)", r.Duration.Round(time.Millisecond)))

	m.recent = append(m.recent, line)
	if len(m.recent) > maxRecentResults {
		m.recent = m.recent[len(m.recent)-maxRecentResults:]
	}
}

func (m *Model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func formatLogEntry(e logging.LogEntry) string {
	line := fmt.Sprintf("[%s] %s %s: %s", e.Timestamp.Format("15:04:05"), e.Level, e.Subsystem, e.Message)
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	return line
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	header := "Running scenarios"
	switch {
	case m.finished:
		header = "Run complete"
	case m.quitting:
		header = "Aborting run"
	}
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), titleStyle.Render(header))
	fmt.Fprintf(&b, "%s %d/%d\n", m.bar.ViewAs(m.percent()), m.done, m.total)
	fmt.Fprintf(&b, "%s  %s  %s\n\n",
		successStyle.Render(fmt.Sprintf("passed %d", m.passed)),
		failureStyle.Render(fmt.Sprintf("failed %d", m.failed)),
		errorStyle.Render(fmt.Sprintf("errors %d", m.errored)))

	if len(m.running) > 0 {
		ids := make([]string, 0, len(m.running))
		for id := range m.running {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString(titleStyle.Render("In progress") + "\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "  %s %s\n", id, mutedStyle.Render(time.Since(m.running[id]).Round(time.Second).String()))
		}
		b.WriteString("\n")
	}

	if len(m.recent) > 0 {
		b.WriteString(titleStyle.Render("Recent") + "\n")
		for _, line := range m.recent {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		for _, line := range m.logs {
			b.WriteString(mutedStyle.Render(line) + "\n")
		}
		b.WriteString("\n")
	}

	if !m.finished {
		b.WriteString(mutedStyle.Render(m.keys.Quit.Help().Key+": "+m.keys.Quit.Help().Desc) + "\n")
	}
	return b.String()
}
