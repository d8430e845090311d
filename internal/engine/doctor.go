// Package engine is the top-level orchestration layer: it wires the
// Dependency Graph, Scheduler, Extractor, Event Bus, and Report Writer
// together into one run, and offers a standalone preflight check.
//
// Doctor is grounded on original_source/doctor.rs's DependencyChecker: a
// preflight pass that resolves every catalog tool's binary without running
// anything, and (for a handful of well-known reconnaissance tools) prints
// the same install guidance doctor.rs's per-platform InstallMethod table
// carries. Generalized from Rust's which()-call to exec.LookPath, and from
// a hardcoded Vec<InstallMethod> per tool to a smaller lookup table since
// this is advisory output, not part of a run's pass/fail outcome.
package engine

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/reconctl/reconctl/internal/catalog"
)

// ToolAvailability reports whether one catalog tool's command resolves on
// this machine, and if not, how to install it.
type ToolAvailability struct {
	Name          string
	Command       string
	Available     bool
	ResolvedPath  string
	Error         string
	InstallHints  []string
}

// installMethod is one platform's install command for a well-known tool,
// mirroring doctor.rs's InstallMethod{platform, method, command}.
type installMethod struct {
	platform string
	command  string
}

// knownInstalls covers the reconnaissance tools doctor.rs itself names
// (nmap, naabu, httpx, nuclei, gobuster, ffuf, subfinder). A tool absent
// from this table still gets a availability check, just no install hint.
var knownInstalls = map[string][]installMethod{
	"nmap": {
		{"macOS", "brew install nmap"},
		{"Ubuntu/Debian", "sudo apt update && sudo apt install nmap"},
		{"CentOS/RHEL", "sudo yum install nmap"},
	},
	"naabu": {
		{"All Platforms", "go install -v github.com/projectdiscovery/naabu/v2/cmd/naabu@latest"},
		{"macOS", "brew install naabu"},
	},
	"httpx": {
		{"All Platforms", "go install -v github.com/projectdiscovery/httpx/cmd/httpx@latest"},
	},
	"nuclei": {
		{"All Platforms", "go install -v github.com/projectdiscovery/nuclei/v2/cmd/nuclei@latest"},
		{"macOS", "brew install nuclei"},
	},
	"gobuster": {
		{"All Platforms", "go install github.com/OJ/gobuster/v3@latest"},
		{"macOS", "brew install gobuster"},
	},
	"ffuf": {
		{"All Platforms", "go install github.com/ffuf/ffuf/v2@latest"},
		{"macOS", "brew install ffuf"},
	},
	"subfinder": {
		{"All Platforms", "go install -v github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest"},
		{"macOS", "brew install subfinder"},
	},
}

// Doctor checks every tool in cat without running any of them, reporting
// which are missing and how to install the ones doctor.rs's table knows
// about.
func Doctor(cat catalog.Catalog) []ToolAvailability {
	results := make([]ToolAvailability, 0, len(cat.Tools))
	for _, d := range cat.Tools {
		results = append(results, checkTool(d))
	}
	return results
}

func checkTool(d catalog.Descriptor) ToolAvailability {
	avail := ToolAvailability{Name: d.Name, Command: d.Command}

	if d.IsScript() {
		if filepath.IsAbs(d.Command) {
			avail.Available = true
			avail.ResolvedPath = d.Command
			return avail
		}
		avail.Error = "relative script path, resolved at run time against the run's script directory"
		avail.Available = true
		return avail
	}

	path, err := exec.LookPath(d.Command)
	if err != nil {
		avail.Error = err.Error()
		avail.InstallHints = installHintsFor(d.Command)
		return avail
	}
	avail.Available = true
	avail.ResolvedPath = path
	return avail
}

func installHintsFor(command string) []string {
	methods, ok := knownInstalls[baseToolName(command)]
	if !ok {
		return nil
	}
	hints := make([]string, 0, len(methods)+1)
	for _, m := range methods {
		if m.platform == "All Platforms" || m.platform == currentPlatformLabel() {
			hints = append(hints, fmt.Sprintf("%s: %s", m.platform, m.command))
		}
	}
	if len(hints) == 0 {
		for _, m := range methods {
			hints = append(hints, fmt.Sprintf("%s: %s", m.platform, m.command))
		}
	}
	return hints
}

// baseToolName strips common binary-name suffixes (e.g. "nuclei_v2",
// "httpx-amd64") down to the lookup key, mirroring doctor.rs's
// extract_base_tool_name.
func baseToolName(command string) string {
	name := filepath.Base(command)
	for i, r := range name {
		if r == '_' || r == '-' {
			return name[:i]
		}
	}
	return name
}

func currentPlatformLabel() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "linux":
		return "Ubuntu/Debian"
	case "windows":
		return "Windows"
	default:
		return "All Platforms"
	}
}
