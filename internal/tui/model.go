// Package tui is a terminal browser for the review queue.
package tui

import (
	"context"
	"fmt"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// State represents the current screen.
type State int

const (
	StateList State = iota
	StateDetail
)

// chrome is the number of lines around the table: the title and its
// margin, the summary, the status line and the short help.
const chrome = 5

// Model holds the browser state.
type Model struct {
	ctx      context.Context
	storage  service.Storage
	engine   *engine.Engine
	queue    *queue.Queue
	detail   *model.InvoiceDetail
	lastErr  error
	theme    themes.Theme
	keymap   KeyMap
	help     help.Model
	table    table.Model
	items    []model.ReviewQueueItem
	selected model.ReviewQueueItem
	scope    queue.Scope
	status   string
	width    int
	height   int
	state    State
	quitting bool
}

// NewModel creates the browser model.
func NewModel(ctx context.Context, opts ...Option) (Model, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Storage == nil {
		return Model{}, fmt.Errorf("storage is required")
	}
	if cfg.Engine == nil {
		return Model{}, fmt.Errorf("engine is required")
	}

	t := table.New(
		table.WithColumns(columns(cfg.Width)),
		table.WithFocused(true),
		table.WithHeight(max(cfg.Height-chrome, 3)),
	)
	styles := table.DefaultStyles()
	styles.Header = cfg.Theme.Header
	styles.Selected = cfg.Theme.Selected
	t.SetStyles(styles)

	return Model{
		ctx:     ctx,
		storage: cfg.Storage,
		engine:  cfg.Engine,
		theme:   cfg.Theme,
		keymap:  DefaultKeyMap(),
		help:    help.New(),
		table:   t,
		scope:   cfg.Scope,
		width:   cfg.Width,
		height:  cfg.Height,
		state:   StateList,
		status:  "Loading review queue...",
	}, nil
}

func columns(width int) []table.Column {
	reason := max(width-62, 20)
	return []table.Column{
		{Title: "!", Width: 1},
		{Title: "Reason", Width: reason},
		{Title: "Package", Width: 12},
		{Title: "Key", Width: 12},
		{Title: "Invoice", Width: 10},
		{Title: "Amount", Width: 14},
	}
}

// Init loads the queue.
func (m Model) Init() tea.Cmd {
	return m.loadQueue()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(m.width))
		m.table.SetHeight(max(m.height-chrome, 3))
		m.help.Width = msg.Width
		return m, nil

	case queueLoadedMsg:
		m.setQueue(msg.queue)
		m.lastErr = nil
		m.status = msg.note
		return m, nil

	case invoiceLoadedMsg:
		m.detail = msg.detail
		return m, nil

	case reconciledMsg:
		s := msg.summary
		m.status = fmt.Sprintf("Reconciled %d packages: %d complete, %d review, %d blocked",
			s.Packages, s.Complete, s.Review, s.Blocked)
		return m, m.reloadQueue(m.status)

	case errorMsg:
		m.lastErr = msg.err
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.state == StateDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Back):
		m.state = StateList
		m.detail = nil
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Select):
		i := m.table.Cursor()
		if i < 0 || i >= len(m.items) {
			return m, nil
		}
		m.selected = m.items[i]
		m.detail = nil
		m.state = StateDetail
		return m, m.loadInvoice(m.selected)

	case key.Matches(msg, m.keymap.ToggleUrgent):
		m.scope.Role = toggleRole(m.scope.Role)
		return m, m.loadQueue()

	case key.Matches(msg, m.keymap.Refresh):
		m.status = "Reloading..."
		return m, m.loadQueue()

	case key.Matches(msg, m.keymap.Reconcile):
		m.status = "Reconciling..."
		return m, m.reconcileScope()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// setQueue flattens the groups into table rows, keeping group order.
func (m *Model) setQueue(q *queue.Queue) {
	m.queue = q
	m.items = make([]model.ReviewQueueItem, 0, q.Total)
	rows := make([]table.Row, 0, q.Total)
	for _, g := range q.ByReason {
		for _, it := range g.Items {
			flag := ""
			if it.Urgent {
				flag = "!"
			}
			m.items = append(m.items, it)
			rows = append(rows, table.Row{flag, it.Reason, it.PackageID, it.Key, it.InvoiceID, it.Amount.Dollars()})
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// Items returns the rows currently shown.
func (m Model) Items() []model.ReviewQueueItem {
	return m.items
}

// Scope returns the active queue scope.
func (m Model) Scope() queue.Scope {
	return m.scope
}

// State returns the current screen.
func (m Model) State() State {
	return m.state
}
