// Package report aggregates a finished run's TaskResults and Findings into
// a machine-readable JSON document and a human-readable Markdown summary.
// Both writers are pure functions of their inputs — no global state, no I/O
// beyond the two Write calls the caller makes with the returned bytes.
//
// Grounded on turborepo's internal/runsummary/run_summary.go: the same
// json-tagged struct with a stable field order, and a hand-built text
// formatter in the same strings.Builder style as
// internal/runsummary/format_text.go (no direct analog for Markdown;
// written fresh in that texture).
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/discovery"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/target"
	"github.com/reconctl/reconctl/internal/task"
)

// severityOrder ranks severities from most to least urgent for Markdown
// grouping and table ordering.
var severityOrder = map[catalog.Severity]int{
	catalog.SeverityCritical: 0,
	catalog.SeverityHigh:     1,
	catalog.SeverityMedium:   2,
	catalog.SeverityLow:      3,
	catalog.SeverityInfo:     4,
}

// Summary is the deterministic JSON shape of one run's report.
type Summary struct {
	// RunID identifies this run for cross-referencing against raw output
	// files and logs; unlike Finding.ID it is not content-addressed, since
	// a run has no notion of deduplication against a prior one.
	RunID       string          `json:"run_id"`
	Target      string          `json:"target"`
	GeneratedAt time.Time       `json:"generated_at"`
	Tasks       []TaskSummary   `json:"tasks"`
	Findings    []FindingSummary `json:"findings"`
	Ports       []discovery.PortEntry `json:"open_ports"`
	Hosts       []string        `json:"hostnames"`
	Stats       Stats           `json:"stats"`
}

// TaskSummary is the JSON projection of one task.Result.
type TaskSummary struct {
	ToolName    string `json:"tool"`
	State       string `json:"state"`
	ExitCode    int    `json:"exit_code,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Error       string `json:"error,omitempty"`
	SkipReason  string `json:"skip_reason,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// remediationForExitCode maps a failed tool's exit code to an actionable
// hint, grounded on original_source/error_handler.rs's exit-code
// classification (127 command-not-found, 126 not-executable, 128+ signal
// death) paired with the install guidance original_source/doctor.rs prints
// per tool.
func remediationForExitCode(code int) string {
	switch {
	case code == 127:
		return "binary not found on PATH; run `reconctl doctor` for install instructions"
	case code == 126:
		return "tool is not executable; check file permissions"
	case code >= 128:
		return "tool was killed by a signal; check system resources or the tool's own crash log"
	default:
		return ""
	}
}

// FindingSummary is the JSON projection of one finding.Finding.
type FindingSummary struct {
	ID          string            `json:"id"`
	Tool        string            `json:"tool"`
	Port        int               `json:"port,omitempty"`
	Kind        string            `json:"kind"`
	Severity    string            `json:"severity"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Captures    map[string]string `json:"captures,omitempty"`
	Narrative   string            `json:"narrative,omitempty"`
}

// Stats is the run's summary counters.
type Stats struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	FailedTasks    int `json:"failed_tasks"`
	SkippedTasks   int `json:"skipped_tasks"`
	TotalFindings  int `json:"total_findings"`
}

// Build projects raw run output into a Summary. now is the report's
// generation timestamp and runID its caller-assigned identifier, both
// supplied by the caller since this package never calls time.Now() or
// generates its own IDs, keeping Build a pure function of its inputs.
func Build(tgt target.Target, results []task.Result, findings []finding.Finding, idx discovery.Snapshot, now time.Time, runID string) Summary {
	summary := Summary{
		RunID:       runID,
		Target:      tgt.Host,
		GeneratedAt: now,
		Ports:       idx.Ports,
		Hosts:       idx.Hosts,
	}

	for _, r := range results {
		ts := TaskSummary{
			ToolName:   r.ToolName,
			State:      string(r.Status.State),
			ExitCode:   r.Status.ExitCode,
			Error:      r.Status.Error,
			SkipReason: r.Status.SkipReason,
		}
		if r.Status.Duration > 0 {
			ts.Duration = r.Status.Duration.String()
		}
		if r.Status.State == task.StateFailed {
			ts.Remediation = remediationForExitCode(r.Status.ExitCode)
		} else if r.Status.State == task.StateTimedOut {
			ts.Remediation = "tool exceeded its timeout; raise the catalog entry's timeout_seconds if this is expected"
		}
		summary.Tasks = append(summary.Tasks, ts)

		switch r.Status.State {
		case task.StateCompleted:
			summary.Stats.CompletedTasks++
		case task.StateFailed, task.StateTimedOut:
			summary.Stats.FailedTasks++
		case task.StateSkipped:
			summary.Stats.SkippedTasks++
		}
	}
	summary.Stats.TotalTasks = len(results)
	summary.Stats.TotalFindings = len(findings)

	sorted := append([]finding.Finding{}, findings...)
	sort.Slice(sorted, func(i, j int) bool {
		si, sj := severityOrder[sorted[i].Severity], severityOrder[sorted[j].Severity]
		if si != sj {
			return si < sj
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, f := range sorted {
		summary.Findings = append(summary.Findings, FindingSummary{
			ID:          f.ID,
			Tool:        f.ToolName,
			Port:        f.Port,
			Kind:        string(f.Kind),
			Severity:    string(f.Severity),
			Title:       f.Title,
			Description: f.Description,
			Captures:    f.Captures,
			Narrative:   f.Narrative,
		})
	}

	return summary
}

// MarshalJSON renders summary as indented, deterministic JSON.
func MarshalJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

// RenderMarkdown hand-builds a human-readable report: a header, a summary
// list of task and finding counts, an open-ports table, a hostname list, a
// task table, and one section per tool listing its findings.
func RenderMarkdown(summary Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Reconnaissance Report: %s\n\n", summary.Target)
	fmt.Fprintf(&b, "Run ID: %s\n\n", summary.RunID)
	fmt.Fprintf(&b, "Generated: %s\n\n", summary.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Total tasks: %d\n", summary.Stats.TotalTasks)
	fmt.Fprintf(&b, "- Completed: %d\n", summary.Stats.CompletedTasks)
	fmt.Fprintf(&b, "- Failed: %d\n", summary.Stats.FailedTasks)
	fmt.Fprintf(&b, "- Skipped: %d\n", summary.Stats.SkippedTasks)
	fmt.Fprintf(&b, "- Findings: %d\n\n", summary.Stats.TotalFindings)

	if len(summary.Ports) > 0 {
		b.WriteString("## Open Ports\n\n")
		b.WriteString("| Port | Service |\n|---|---|\n")
		for _, p := range summary.Ports {
			svc := p.Service
			if svc == "" {
				svc = "unknown"
			}
			fmt.Fprintf(&b, "| %d | %s |\n", p.Port, svc)
		}
		b.WriteString("\n")
	}

	if len(summary.Hosts) > 0 {
		b.WriteString("## Hostnames\n\n")
		for _, h := range summary.Hosts {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Tasks\n\n")
	b.WriteString("| Tool | State | Exit Code | Duration | Detail |\n|---|---|---|---|---|\n")
	for _, t := range summary.Tasks {
		detail := t.Error
		if detail == "" {
			detail = t.SkipReason
		}
		if t.Remediation != "" {
			if detail != "" {
				detail += "; " + t.Remediation
			} else {
				detail = t.Remediation
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n", t.ToolName, t.State, t.ExitCode, t.Duration, detail)
	}
	b.WriteString("\n")

	if len(summary.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		byTool := make(map[string][]FindingSummary)
		var toolOrder []string
		for _, f := range summary.Findings {
			if _, ok := byTool[f.Tool]; !ok {
				toolOrder = append(toolOrder, f.Tool)
			}
			byTool[f.Tool] = append(byTool[f.Tool], f)
		}
		for _, tool := range toolOrder {
			fmt.Fprintf(&b, "### %s\n\n", tool)
			for _, f := range byTool[tool] {
				fmt.Fprintf(&b, "- **[%s]** %s", strings.ToUpper(f.Severity), f.Title)
				if f.Port != 0 {
					fmt.Fprintf(&b, " (port %d)", f.Port)
				}
				b.WriteString("\n")
				if f.Description != "" {
					fmt.Fprintf(&b, "  - %s\n", f.Description)
				}
				if f.Narrative != "" {
					fmt.Fprintf(&b, "  - %s\n", f.Narrative)
				}
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
