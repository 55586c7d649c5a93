package console

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/livecontrol/pkg/account"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/types"
)

const (
	refreshInterval = time.Second
	maxNotes        = 6
	minTableHeight  = 3
)

// -- messages --

// EventMsg carries one orchestration event into the model.
type EventMsg struct{ Event *types.Event }

type tickMsg time.Time

// SnapshotFunc returns the current state of every account.
type SnapshotFunc func() []account.Snapshot

type row struct {
	id       string
	name     string
	platform string
	connect  types.ConnectStatus
	stream   types.StreamStatus
	tasks    map[task.ID]task.Status
	comments int
	last     string
}

type model struct {
	width  int
	height int

	table    table.Model
	rows     map[string]*row
	snapshot SnapshotFunc
	notes    []string
	title    string
}

func newModel(title string, snapshot SnapshotFunc) *model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(minTableHeight),
	)
	t.SetStyles(tableStyles())

	m := &model{
		table:    t,
		rows:     make(map[string]*row),
		snapshot: snapshot,
		title:    title,
	}
	m.refresh()
	return m
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *model) Init() tea.Cmd {
	if m.snapshot == nil {
		return nil
	}
	return tickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(minTableHeight, msg.Height-maxNotes-5))
		return m, nil
	case EventMsg:
		m.apply(msg.Event)
		m.syncTable()
		return m, nil
	case tickMsg:
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}

// refresh merges registry snapshots, which carry task states events do not.
func (m *model) refresh() {
	if m.snapshot == nil {
		return
	}
	for _, s := range m.snapshot() {
		r := m.row(s.AccountID)
		if s.Name != "" {
			r.name = s.Name
		}
		if s.Connect.Platform != "" {
			r.platform = s.Connect.Platform
		}
		r.connect = s.Connect.Status
		r.stream = s.Stream
		r.tasks = s.Tasks
	}
	m.syncTable()
}

func (m *model) row(id string) *row {
	r, ok := m.rows[id]
	if !ok {
		r = &row{id: id, name: id, connect: types.ConnectStatusDisconnected, stream: types.StreamStatusUnknown}
		m.rows[id] = r
	}
	return r
}

func (m *model) apply(e *types.Event) {
	if e == nil || e.AccountID == "" {
		return
	}
	r := m.row(e.AccountID)
	switch e.Type {
	case types.EventTypeAccountNameResolved:
		r.name = e.AccountName
	case types.EventTypeConnectStateChanged:
		r.connect = e.ConnectStatus
		if e.Message != "" {
			m.note(e, e.Message)
		}
	case types.EventTypeStreamStateChanged:
		r.stream = e.StreamStatus
		m.note(e, "stream "+string(e.StreamStatus))
	case types.EventTypeDisconnected:
		r.connect = types.ConnectStatusDisconnected
		r.stream = types.StreamStatusUnknown
		m.note(e, "disconnected: "+e.Message)
	case types.EventTypeTaskStopped:
		if r.tasks == nil {
			r.tasks = make(map[task.ID]task.Status)
		}
		status := task.StatusStopped
		if e.StopReason == types.StopReasonError {
			status = task.StatusError
		}
		r.tasks[task.ID(e.TaskID)] = status
		m.note(e, e.Message)
	case types.EventTypeNewComments:
		r.comments += len(e.Comments)
		for i := len(e.Comments) - 1; i >= 0; i-- {
			if c := e.Comments[i]; c.IsComment() {
				r.last = c.Nickname + ": " + c.Content
				break
			}
		}
	}
}

func (m *model) note(e *types.Event, text string) {
	name := e.AccountID
	if r, ok := m.rows[e.AccountID]; ok {
		name = r.name
	}
	line := fmt.Sprintf("%s %s %s", e.Time.Format("15:04:05"), name, text)
	m.notes = append(m.notes, line)
	if over := len(m.notes) - maxNotes; over > 0 {
		m.notes = m.notes[over:]
	}
}

func (m *model) syncTable() {
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		r := m.rows[id]
		rows = append(rows, table.Row{
			r.name,
			r.platform,
			connectLabel(r.connect),
			streamLabel(r.stream),
			tasksLabel(r.tasks),
			fmt.Sprintf("%d", r.comments),
			r.last,
		})
	}
	m.table.SetRows(rows)
}

func connectLabel(s types.ConnectStatus) string {
	switch s {
	case types.ConnectStatusConnected:
		return "● connected"
	case types.ConnectStatusConnecting:
		return "◌ connecting"
	case types.ConnectStatusError:
		return "✕ error"
	default:
		return "○ offline"
	}
}

func streamLabel(s types.StreamStatus) string {
	if s == "" {
		return string(types.StreamStatusUnknown)
	}
	if s.IsLive() {
		return "● live"
	}
	return string(s)
}

// tasksLabel lists running tasks, then failed ones marked with "!".
func tasksLabel(tasks map[task.ID]task.Status) string {
	var parts []string
	for id, st := range tasks {
		switch st {
		case task.StatusRunning, task.StatusStopping:
			parts = append(parts, task.DisplayName(id))
		case task.StatusError:
			parts = append(parts, "!"+task.DisplayName(id))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func columns(width int) []table.Column {
	cols := []table.Column{
		{Title: "Account", Width: 14},
		{Title: "Platform", Width: 11},
		{Title: "Connection", Width: 13},
		{Title: "Stream", Width: 8},
		{Title: "Tasks", Width: 24},
		{Title: "Msgs", Width: 5},
		{Title: "Last comment", Width: 10},
	}
	fixed := 0
	for _, c := range cols[:len(cols)-1] {
		fixed += c.Width + 2
	}
	cols[len(cols)-1].Width = max(10, width-fixed-2)
	return cols
}
