package report

import (
	"testing"
	"time"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/discovery"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAggregatesStats(t *testing.T) {
	results := []task.Result{
		{ToolName: "nmap", Status: task.Status{State: task.StateCompleted, ExitCode: 0}},
		{ToolName: "ffuf", Status: task.Status{State: task.StateFailed, Error: "boom"}},
		{ToolName: "gobuster", Status: task.Status{State: task.StateSkipped, SkipReason: "predicate false"}},
	}
	findings := []finding.Finding{
		{ID: "a", ToolName: "nmap", Kind: catalog.DiscoveryPort, Severity: catalog.SeverityHigh, Title: "Open port 22"},
		{ID: "b", ToolName: "nmap", Kind: catalog.DiscoveryPort, Severity: catalog.SeverityInfo, Title: "Open port 80"},
	}
	idx := discovery.Snapshot{Ports: []discovery.PortEntry{{Port: 22, Service: "ssh"}, {Port: 80}}}

	summary := Build(target.New("example.com"), results, findings, idx, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), "test-run-1")

	assert.Equal(t, 3, summary.Stats.TotalTasks)
	assert.Equal(t, 1, summary.Stats.CompletedTasks)
	assert.Equal(t, 1, summary.Stats.FailedTasks)
	assert.Equal(t, 1, summary.Stats.SkippedTasks)
	assert.Equal(t, 2, summary.Stats.TotalFindings)
	require.Len(t, summary.Findings, 2)
	assert.Equal(t, "Open port 22", summary.Findings[0].Title, "high severity should sort before info")
}

func TestBuildAddsRemediationForCommandNotFound(t *testing.T) {
	results := []task.Result{
		{ToolName: "nuclei", Status: task.Status{State: task.StateFailed, ExitCode: 127}},
	}
	summary := Build(target.New("example.com"), results, nil, discovery.Snapshot{}, time.Now(), "test-run-2")
	require.Len(t, summary.Tasks, 1)
	assert.Contains(t, summary.Tasks[0].Remediation, "reconctl doctor")
}

func TestMarshalJSONIsDeterministic(t *testing.T) {
	summary := Build(target.New("example.com"), nil, nil, discovery.Snapshot{}, time.Unix(0, 0).UTC(), "test-run-3")
	a, err := MarshalJSON(summary)
	require.NoError(t, err)
	b, err := MarshalJSON(summary)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderMarkdownIncludesSections(t *testing.T) {
	results := []task.Result{{ToolName: "nmap", Status: task.Status{State: task.StateCompleted}}}
	findings := []finding.Finding{{ID: "a", ToolName: "nmap", Kind: catalog.DiscoveryPort, Severity: catalog.SeverityHigh, Title: "Open port 22", Port: 22}}
	idx := discovery.Snapshot{Ports: []discovery.PortEntry{{Port: 22, Service: "ssh"}}, Hosts: []string{"www.example.com"}}
	summary := Build(target.New("example.com"), results, findings, idx, time.Now(), "test-run-4")

	md := RenderMarkdown(summary)
	assert.Contains(t, md, "# Reconnaissance Report: example.com")
	assert.Contains(t, md, "## Open Ports")
	assert.Contains(t, md, "| 22 | ssh |")
	assert.Contains(t, md, "## Hostnames")
	assert.Contains(t, md, "www.example.com")
	assert.Contains(t, md, "### nmap")
	assert.Contains(t, md, "**[HIGH]** Open port 22 (port 22)")
}
