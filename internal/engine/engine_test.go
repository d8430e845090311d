package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/cmdutil"
	"github.com/reconctl/reconctl/internal/process"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() catalog.Catalog {
	return catalog.Catalog{Tools: []catalog.Descriptor{
		{
			Name:    "portscan",
			Command: "printf",
			Args:    []string{"22/tcp open ssh\n"},
			Extraction: catalog.ExtractionRecipe{
				Patterns: []catalog.Pattern{
					{Name: "nmap_open_port", Regex: `^(?P<port>\d+)/(?P<proto>tcp|udp)\s+open\s+(?P<service>\S+)`, Kind: catalog.DiscoveryPort},
				},
			},
		},
	}}
}

func TestRunWritesReportFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := cmdutil.RunConfig{
		Target:      target.New("example.com"),
		Catalog:     testCatalog(),
		OutputRoot:  dir,
		Concurrency: 4,
	}
	fixed := func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) }

	outcome, err := Run(context.Background(), cfg, nil, nil, fixed, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, outcome.ExitCode)
	assert.Equal(t, 1, outcome.Summary.Stats.CompletedTasks)

	root := filepath.Join(dir, "example_com")
	raw, err := os.ReadFile(filepath.Join(root, ReportJSONName))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "example.com", decoded["target"])

	md, err := os.ReadFile(filepath.Join(root, ReportMarkdownName))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Reconnaissance Report: example.com")
}

func TestRunReportsAllTasksFailedExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := cmdutil.RunConfig{
		Target:      target.New("example.com"),
		Catalog:     catalog.Catalog{Tools: []catalog.Descriptor{{Name: "broken", Command: "definitely-not-a-real-binary"}}},
		OutputRoot:  dir,
		Concurrency: 2,
	}
	outcome, err := Run(context.Background(), cfg, nil, nil, time.Now, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitAllTasksFailed, outcome.ExitCode)
}

func TestRunTracksChildrenOnSharedManager(t *testing.T) {
	dir := t.TempDir()
	cfg := cmdutil.RunConfig{
		Target:      target.New("example.com"),
		Catalog:     testCatalog(),
		OutputRoot:  dir,
		Concurrency: 4,
	}
	mgr := process.NewManager()

	outcome, err := Run(context.Background(), cfg, nil, nil, time.Now, mgr)
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, outcome.ExitCode)

	// Every task has finished and untracked itself by the time Run returns.
	assert.Equal(t, 0, mgr.Count())
}

func TestRunCancellationYieldsCancelledExitCode(t *testing.T) {
	dir := t.TempDir()
	cfg := cmdutil.RunConfig{
		Target: target.New("example.com"),
		Catalog: catalog.Catalog{Tools: []catalog.Descriptor{
			{Name: "slow", Command: "sleep", Args: []string{"5"}},
		}},
		OutputRoot:  dir,
		Concurrency: 1,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	outcome, err := Run(ctx, cfg, nil, nil, time.Now, nil)
	require.NoError(t, err)
	assert.Equal(t, ExitCancelled, outcome.ExitCode)
}
