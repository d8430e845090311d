// Package dashboard is the optional live-progress terminal UI for a run. It
// subscribes to an internal/eventbus.Subscription and renders task state,
// discovered ports/hostnames, and a scrolling log tail as events arrive. It
// never drives the run itself — closing the dashboard has no effect on the
// scheduler, which is the only producer on the bus.
//
// A single tea.Model is fed by events forwarded from a channel via
// program.Send, the same pattern internal/ralph/tui.go uses for its own
// loop-progress dashboard, generalized from that package's agent-run/bead
// vocabulary to this package's tool-task vocabulary. Style tokens are
// adapted from internal/ui/styles.go's theme-constant table.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/reconctl/reconctl/internal/eventbus"
)

const maxLogLines = 200

// taskRow is the dashboard's view of one task's lifecycle, rebuilt from the
// TaskStarted/TaskProgress/TaskCompleted events the scheduler publishes for
// it. It intentionally carries far less than task.Result: the dashboard
// only ever needs enough to render one line of status.
type taskRow struct {
	id         string
	toolName   string
	status     string
	skipped    bool
	skipReason string
	startedAt  time.Time
	firstSeen  int
}

// Model is a tea.Model driven entirely by eventbus.Event messages. Nothing
// but Update mutates it; construct with New and hand the result to
// tea.NewProgram.
type Model struct {
	target     string
	totalTasks int

	phase eventbus.Phase

	rows    map[string]*taskRow
	order   []string
	seenSeq int

	openPorts int
	hostnames int
	completed int

	logs     viewport.Model
	logLines []string

	spin spinner.Model

	width, height int
	quitting      bool
	err           error
}

// New builds a Model for a run against target with totalTasks scheduled
// tasks (as reported by the InitProgress event; 0 until that event arrives
// is fine, it only affects the completed/total header).
func New(target string, totalTasks int) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	vp := viewport.New(78, 10)
	vp.Style = boxStyle

	return &Model{
		target:     target,
		totalTasks: totalTasks,
		phase:      eventbus.PhasePlanning,
		rows:       make(map[string]*taskRow),
		logs:       vp,
		spin:       sp,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventbus.Event:
		m.applyEvent(msg)
		if msg.Kind == eventbus.KindShutdown || (msg.Kind == eventbus.KindPhaseChange && msg.Phase == eventbus.PhaseDone) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.logs.Width = m.width - 4
		if m.logs.Width < 20 {
			m.logs.Width = 20
		}
		m.logs.Height = 8
		m.refreshLogs()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

func (m *Model) applyEvent(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindInitProgress:
		m.target = ev.Target
		m.totalTasks = ev.TotalTasks

	case eventbus.KindPhaseChange:
		m.phase = ev.Phase

	case eventbus.KindTaskStarted:
		row := m.rowFor(ev.TaskID, ev.ToolName)
		row.status = "running"
		row.startedAt = ev.Timestamp

	case eventbus.KindTaskProgress:
		row := m.rowFor(ev.TaskID, ev.ToolName)
		if ev.Status != "" {
			row.status = ev.Status
		}

	case eventbus.KindTaskCompleted:
		row := m.rowFor(ev.TaskID, ev.ToolName)
		row.skipped = ev.Skipped
		row.skipReason = ev.SkipReason
		if ev.Skipped {
			row.status = "skipped"
		} else {
			row.status = ev.Status
		}
		m.completed++

	case eventbus.KindPortDiscovered:
		m.openPorts++
		m.appendLog(fmt.Sprintf("port %d/%s open", ev.Port, ev.Service))

	case eventbus.KindHostnameDiscovered:
		m.hostnames++
		m.appendLog(fmt.Sprintf("hostname discovered: %s", ev.Hostname))

	case eventbus.KindLogMessage:
		m.appendLog(fmt.Sprintf("[%s] %s", ev.Level, ev.Message))

	case eventbus.KindProgressUpdate:
		m.completed = ev.Completed
		m.totalTasks = ev.Total
	}
}

func (m *Model) rowFor(id, toolName string) *taskRow {
	row, ok := m.rows[id]
	if !ok {
		row = &taskRow{id: id, toolName: toolName, status: "queued", firstSeen: m.seenSeq}
		m.seenSeq++
		m.rows[id] = row
		m.order = append(m.order, id)
	}
	return row
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	m.refreshLogs()
}

func (m *Model) refreshLogs() {
	m.logs.SetContent(strings.Join(m.logLines, "\n"))
	m.logs.GotoBottom()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render("reconctl"), mutedStyle.Render(m.target))
	fmt.Fprintf(&b, "phase: %s   tasks: %d/%d   ports: %d   hostnames: %d\n\n",
		m.phase, m.completed, m.totalTasks, m.openPorts, m.hostnames)

	ids := append([]string(nil), m.order...)
	sort.Slice(ids, func(i, j int) bool { return m.rows[ids[i]].firstSeen < m.rows[ids[j]].firstSeen })
	for _, id := range ids {
		row := m.rows[id]
		b.WriteString(m.renderRow(row))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.logs.View())
	b.WriteByte('\n')
	b.WriteString(helpStyle.Render("q: quit (run keeps going in the background)"))
	return b.String()
}

func (m *Model) renderRow(row *taskRow) string {
	var icon, label string
	switch {
	case row.skipped:
		icon, label = skippedStyle.Render("○"), skippedStyle.Render("skipped: "+row.skipReason)
	case row.status == "running":
		icon, label = m.spin.View(), runningStyle.Render("running")
	case row.status == "completed":
		icon, label = doneStyle.Render("✓"), doneStyle.Render("completed")
	case row.status == "failed", row.status == "timed_out":
		icon, label = failedStyle.Render("✗"), failedStyle.Render(row.status)
	default:
		icon, label = mutedStyle.Render("•"), mutedStyle.Render(row.status)
	}
	return fmt.Sprintf("  %s %-24s %s", icon, row.toolName, label)
}
