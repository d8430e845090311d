package dashboard

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconctl/reconctl/internal/eventbus"
)

func TestModelTracksTaskLifecycle(t *testing.T) {
	m := New("example.com", 2)

	updated, _ := m.Update(eventbus.Event{Kind: eventbus.KindTaskStarted, TaskID: "nmap@example.com", ToolName: "nmap"})
	m = updated.(*Model)
	require.Len(t, m.order, 1)
	assert.Equal(t, "running", m.rows["nmap@example.com"].status)

	updated, _ = m.Update(eventbus.Event{Kind: eventbus.KindTaskCompleted, TaskID: "nmap@example.com", ToolName: "nmap", Status: "completed"})
	m = updated.(*Model)
	assert.Equal(t, "completed", m.rows["nmap@example.com"].status)
	assert.Equal(t, 1, m.completed)
}

func TestModelTracksSkippedTask(t *testing.T) {
	m := New("example.com", 2)
	updated, _ := m.Update(eventbus.Event{
		Kind: eventbus.KindTaskCompleted, TaskID: "nuclei@example.com:80", ToolName: "nuclei",
		Skipped: true, SkipReason: "predecessor httpx did not succeed",
	})
	m = updated.(*Model)
	row := m.rows["nuclei@example.com:80"]
	require.NotNil(t, row)
	assert.True(t, row.skipped)
	assert.Contains(t, row.skipReason, "httpx")
}

func TestModelCountsDiscoveries(t *testing.T) {
	m := New("example.com", 1)
	updated, _ := m.Update(eventbus.Event{Kind: eventbus.KindPortDiscovered, Port: 443, Service: "https"})
	m = updated.(*Model)
	updated, _ = m.Update(eventbus.Event{Kind: eventbus.KindHostnameDiscovered, Hostname: "www.example.com"})
	m = updated.(*Model)
	assert.Equal(t, 1, m.openPorts)
	assert.Equal(t, 1, m.hostnames)
	assert.Len(t, m.logLines, 2)
}

func TestModelQuitsOnShutdownEvent(t *testing.T) {
	m := New("example.com", 1)
	_, cmd := m.Update(eventbus.Event{Kind: eventbus.KindShutdown})
	require.NotNil(t, cmd)
	msg := cmd()
	_, isQuit := msg.(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestModelQuitsOnKeyPress(t *testing.T) {
	m := New("example.com", 1)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	msg := cmd()
	_, isQuit := msg.(tea.QuitMsg)
	assert.True(t, isQuit)
}
