package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/sitepipe/internal/orchestrator"
	"github.com/ShayCichocki/sitepipe/internal/watch"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// maxLogs is how many log entries the dashboard keeps.
const maxLogs = 200

// EventMsg wraps an orchestrator event for the dashboard.
type EventMsg struct {
	Event orchestrator.Event
}

// ServingMsg is sent once the dev server is listening.
type ServingMsg struct {
	URL string
}

// DoneMsg signals that serving has stopped.
type DoneMsg struct {
	Err error
}

// WatchMsg carries the watch bindings and the number of connected
// browsers. Poll sends it periodically while serving.
type WatchMsg struct {
	Bindings []watch.Status
	Clients  int
}

// LogEntry represents a log line displayed under the task list.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// TaskRow is the latest known state of one named task.
type TaskRow struct {
	Name     string
	Status   models.TaskStatus
	Duration time.Duration
	Error    string
	Runs     int
}

// App is the bubbletea model for the serve dashboard.
type App struct {
	header  *Header
	spinner spinner.Model
	cancel  context.CancelFunc

	// tasks holds rows in the order tasks were first seen.
	tasks []*TaskRow
	index map[string]*TaskRow
	logs  []LogEntry
	runs  int

	watches []watch.Status

	width    int
	height   int
	quitting bool
	done     bool
	err      error

	// Styles
	nameStyle    lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	failedStyle  lipgloss.Style
	logTimeStyle lipgloss.Style
	logStyle     lipgloss.Style
	dimStyle     lipgloss.Style
}

// New creates an App. cancel is called when the user quits.
func New(mode string, cancel context.CancelFunc) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		header:  NewHeader(mode),
		spinner: s,
		cancel:  cancel,
		index:   make(map[string]*TaskRow),

		nameStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Width(20),
		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			if a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.header.SetWidth(msg.Width)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case ServingMsg:
		a.header.SetURL(msg.URL)
		a.addLog(time.Now(), "INFO", "serving "+msg.URL)

	case EventMsg:
		a.handleEvent(msg.Event)

	case WatchMsg:
		a.watches = msg.Bindings
		a.header.SetClients(msg.Clients)

	case DoneMsg:
		a.done = true
		a.err = msg.Err
	}

	return a, nil
}

// handleEvent folds an orchestrator event into the task rows and log.
func (a *App) handleEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventRunStarted:
		a.runs++
		for _, name := range ev.Tasks {
			a.row(name)
		}

	case orchestrator.EventTaskStarted:
		r := a.row(ev.Task)
		r.Status = models.TaskStatusRunning
		r.Error = ""
		r.Runs++

	case orchestrator.EventTaskCompleted:
		r := a.row(ev.Task)
		r.Status = models.TaskStatusDone
		r.Duration = ev.Duration

	case orchestrator.EventTaskFailed:
		r := a.row(ev.Task)
		r.Status = models.TaskStatusFailed
		r.Duration = ev.Duration
		if ev.Error != nil {
			r.Error = ev.Error.Error()
			a.addLog(ev.Timestamp, "ERROR", fmt.Sprintf("'%s' errored: %v", ev.Task, ev.Error))
		}

	case orchestrator.EventLog:
		a.addLog(ev.Timestamp, "INFO", ev.Message)
	}
}

// row finds a task row by name or creates a pending one.
func (a *App) row(name string) *TaskRow {
	if r, ok := a.index[name]; ok {
		return r
	}
	r := &TaskRow{Name: name, Status: models.TaskStatusPending}
	a.index[name] = r
	a.tasks = append(a.tasks, r)
	return r
}

func (a *App) addLog(ts time.Time, level, msg string) {
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ts, Level: level, Message: msg})
	if len(a.logs) > maxLogs {
		a.logs = a.logs[len(a.logs)-maxLogs:]
	}
}

// Tasks returns a copy of the current task rows.
func (a *App) Tasks() []TaskRow {
	out := make([]TaskRow, len(a.tasks))
	for i, r := range a.tasks {
		out[i] = *r
	}
	return out
}

// Logs returns the retained log entries.
func (a *App) Logs() []LogEntry {
	return a.logs
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Stopping sitepipe.\n"
	}

	var b strings.Builder
	b.WriteString(a.header.View())
	b.WriteString("\n\n")

	b.WriteString(a.viewTasks())
	b.WriteString("\n")
	if w := a.viewWatches(); w != "" {
		b.WriteString(w)
		b.WriteString("\n")
	}
	b.WriteString(a.viewLogs())
	b.WriteString("\n")
	b.WriteString(a.viewFooter())
	b.WriteString("\n")
	return b.String()
}

func (a *App) viewTasks() string {
	if len(a.tasks) == 0 {
		return a.dimStyle.Render("  No tasks yet") + "\n"
	}

	var b strings.Builder
	for _, r := range a.tasks {
		var icon, status string
		switch r.Status {
		case models.TaskStatusRunning:
			icon = a.spinner.View()
			status = a.runningStyle.Render("running")
		case models.TaskStatusDone:
			icon = a.doneStyle.Render("✓")
			status = a.doneStyle.Render(orchestrator.FormatDuration(r.Duration))
		case models.TaskStatusFailed:
			icon = a.failedStyle.Render("✗")
			status = a.failedStyle.Render(truncate(r.Error, 60))
		default:
			icon = a.pendingStyle.Render("·")
			status = a.pendingStyle.Render("pending")
		}
		runs := ""
		if r.Runs > 1 {
			runs = a.dimStyle.Render(fmt.Sprintf(" x%d", r.Runs))
		}
		fmt.Fprintf(&b, "  %s %s %s%s\n", icon, a.nameStyle.Render(r.Name), status, runs)
	}
	return b.String()
}

// Watches returns the last reported watch bindings.
func (a *App) Watches() []watch.Status {
	return a.watches
}

func (a *App) viewWatches() string {
	if len(a.watches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Watching"))
	b.WriteString("\n")
	for _, w := range a.watches {
		var state string
		switch w.State {
		case watch.StateRunning:
			state = a.runningStyle.Render("running")
		case watch.StateTriggered:
			state = a.runningStyle.Render("triggered")
		default:
			state = a.pendingStyle.Render("idle")
		}
		if w.Pending {
			state += a.runningStyle.Render(" +queued")
		}
		if w.LastErr != nil {
			state += " " + a.failedStyle.Render(truncate(w.LastErr.Error(), 50))
		}
		runs := ""
		if w.Runs > 0 {
			runs = a.dimStyle.Render(fmt.Sprintf(" x%d", w.Runs))
		}
		fmt.Fprintf(&b, "  %s %s%s\n", a.nameStyle.Render(w.Name), state, runs)
	}
	return b.String()
}

// logLines is how many entries fit under the task list.
func (a *App) logLines() int {
	n := 8
	if a.height > 0 {
		avail := a.height - a.header.Height() - len(a.tasks) - 6
		if len(a.watches) > 0 {
			avail -= len(a.watches) + 2
		}
		if avail < n {
			n = avail
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (a *App) viewLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Log"))
	b.WriteString("\n")

	start := len(a.logs) - a.logLines()
	if start < 0 {
		start = 0
	}
	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		msg := a.logStyle.Render(entry.Message)
		if entry.Level == "ERROR" {
			msg = a.failedStyle.Render(entry.Message)
		}
		fmt.Fprintf(&b, "  %s %s\n", ts, msg)
	}
	return b.String()
}

func (a *App) viewFooter() string {
	if a.done {
		if a.err != nil {
			return a.failedStyle.Render(fmt.Sprintf("Error: %v", a.err))
		}
		return a.doneStyle.Render("Stopped. Press q to exit.")
	}
	return a.dimStyle.Render(fmt.Sprintf("%d runs | Press q to stop", a.runs))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Sender is the part of *tea.Program that Forward uses.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward relays orchestrator events to the program until the channel is
// closed.
func Forward(p Sender, events <-chan orchestrator.Event) {
	for ev := range events {
		p.Send(EventMsg{Event: ev})
	}
}

// Poll sends snapshot() to p every interval until ctx is done.
func Poll(ctx context.Context, p Sender, interval time.Duration, snapshot func() WatchMsg) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Send(snapshot())
		}
	}
}

// NewProgram creates a Bubbletea program for the dashboard.
// The returned program can receive messages via Send().
func NewProgram(mode string, cancel context.CancelFunc) (*tea.Program, *App) {
	app := New(mode, cancel)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
