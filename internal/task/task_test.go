package task

import (
	"testing"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRendersKnownPlaceholders(t *testing.T) {
	d := catalog.Descriptor{
		Name:    "probe",
		Command: "nmap",
		Args:    []string{"-p", "{port}", "{target}", "-oN", "{output_file}"},
	}
	tk, err := New(d, "example.test", 80, "/out")
	require.NoError(t, err)
	assert.Equal(t, "probe@example.test:80", tk.ID)
	assert.Equal(t, []string{"-p", "80", "example.test", "-oN", "/out/raw/probe_80.out"}, tk.Args)
	assert.Equal(t, "/out/raw/probe_80.out", tk.StdoutPath)
	assert.Equal(t, "/out/raw/probe_80.err", tk.StderrPath)
}

func TestNewRejectsUnknownPlaceholder(t *testing.T) {
	d := catalog.Descriptor{Name: "bad", Command: "x", Args: []string{"{nonsense}"}}
	_, err := New(d, "t", 0, "/out")
	require.Error(t, err)
}

func TestNewDeferDiscoveredPorts(t *testing.T) {
	d := catalog.Descriptor{Name: "probe", Command: "nmap", Args: []string{"-p", "{discovered_ports}", "{target}"}}
	tk, err := New(d, "t", 0, "/out")
	require.NoError(t, err)
	assert.Equal(t, "{discovered_ports}", tk.Args[1])
}

func TestResolveDiscoveredPortsIsIdempotent(t *testing.T) {
	d := catalog.Descriptor{Name: "probe", Command: "nmap", Args: []string{"-p", "{discovered_ports}", "{target}"}}
	tk, err := New(d, "t", 0, "/out")
	require.NoError(t, err)

	r1 := tk.ResolveDiscoveredPorts([]int{22, 80})
	r2 := tk.ResolveDiscoveredPorts([]int{22, 80})
	assert.Equal(t, r1.Args, r2.Args)
	assert.Equal(t, "22,80", r1.Args[1])
}

func TestCommandLine(t *testing.T) {
	tk := Task{Command: "echo", Args: []string{"A"}}
	assert.Equal(t, "echo A", tk.CommandLine())
}

func TestStateIsTerminal(t *testing.T) {
	assert.False(t, StateQueued.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateTimedOut.IsTerminal())
	assert.True(t, StateSkipped.IsTerminal())
}
