package tui

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/tally/internal/config"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/testutil"
	"github.com/Veraticus/tally/internal/testutil/packages"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, opts ...Option) Model {
	t.Helper()
	ctx := context.Background()
	db := testutil.SetupTestDB(t, packages.Feedlot("PKG-1"))
	eng, err := engine.New(config.DefaultPolicy())
	require.NoError(t, err)
	_, err = eng.ReconcileStored(ctx, db.Storage, service.PackageFilter{})
	require.NoError(t, err)

	m, err := NewModel(ctx, append([]Option{WithStorage(db.Storage), WithEngine(eng), WithSize(120, 30)}, opts...)...)
	require.NoError(t, err)
	return m
}

// step applies msg and then runs the returned command once, feeding its
// message back in.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel_RequiresDependencies(t *testing.T) {
	_, err := NewModel(context.Background())
	require.Error(t, err)

	db := testutil.SetupTestDB(t)
	_, err = NewModel(context.Background(), WithStorage(db.Storage))
	require.Error(t, err)
}

func TestModel_LoadsQueue(t *testing.T) {
	m := newTestModel(t)
	assert.Contains(t, m.View(), "Loading review queue...")

	m = step(t, m, m.Init()())
	require.Len(t, m.Items(), 2)
	assert.Equal(t, queue.ReasonMissingInvoice, m.Items()[0].Reason, "urgent group first")

	view := m.View()
	assert.Contains(t, view, "Review queue: all packages")
	assert.Contains(t, view, "2 items")
	assert.Contains(t, view, "$303.36 exposure")
}

func TestModel_DetailShowsInvoice(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.Init()())

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	require.NotNil(t, m.detail)
	assert.Equal(t, "13335", m.detail.ID)

	view := m.View()
	assert.Contains(t, view, "Line items")
	assert.Contains(t, view, "$5,448.03")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateList, m.State())
	assert.Nil(t, m.detail)
}

func TestModel_DetailWithoutInvoice(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.Init()())

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateDetail, m.State())
	assert.Nil(t, m.detail, "a charge with no invoice has nothing to fetch")
	assert.Contains(t, m.View(), "20-3927")
}

func TestModel_ToggleUrgent(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.Init()())

	m = step(t, m, runes("u"))
	assert.Equal(t, queue.RoleController, m.Scope().Role)
	require.Len(t, m.Items(), 1)
	assert.True(t, m.Items()[0].Urgent)
	assert.Contains(t, m.View(), "urgent only")

	m = step(t, m, runes("u"))
	assert.Equal(t, queue.RoleOperator, m.Scope().Role)
	assert.Len(t, m.Items(), 2)
}

func TestModel_Reconcile(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.Init()())

	next, cmd := m.Update(runes("R"))
	m = next.(Model)
	assert.Contains(t, m.View(), "Reconciling...")
	require.NotNil(t, cmd)

	m = step(t, m, cmd())
	assert.Contains(t, m.View(), "Reconciled 1 packages: 0 complete, 1 review, 0 blocked",
		"the summary survives the queue reload")
	assert.Len(t, m.Items(), 2)

	m = step(t, m, runes("r"))
	assert.NotContains(t, m.View(), "Reconciled 1 packages")
	assert.NotContains(t, m.View(), "Reloading...")
}

func TestModel_ScopeWithNoItems(t *testing.T) {
	m := newTestModel(t, WithScope(queue.Scope{Period: "1999-01"}))
	m = step(t, m, m.Init()())

	assert.Empty(t, m.Items())
	assert.Contains(t, m.View(), "Nothing needs review.")

	// Enter on an empty table stays on the list.
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateList, m.State())
}

func TestModel_ErrorAndQuit(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, errorMsg{err: errors.New("database is locked")})
	assert.Contains(t, m.View(), "Error: database is locked")

	next, cmd := m.Update(runes("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestModel_WindowResize(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.Init()())
	m = step(t, m, tea.WindowSizeMsg{Width: 80, Height: 12})
	assert.Equal(t, 80, m.width)

	// The table's header and its rule take two of the lines left after chrome.
	assert.Equal(t, 12-chrome-2, m.table.Height())
	assert.LessOrEqual(t, lipgloss.Height(m.View()), 12, "the list fits the window")
}
