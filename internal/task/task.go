// Package task holds the immutable description of one concrete tool
// invocation (Task), its terminal outcome (TaskStatus, TaskResult), and the
// placeholder-substitution logic that renders a catalog command template
// into an executable command line.
package task

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reconctl/reconctl/internal/catalog"
)

// placeholderPattern matches any {name} token in a command template.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

// discoveredPortsPlaceholder is resolved late, by the scheduler, once the
// Discovery Index holds the predecessor's findings — never at construction
// time.
const discoveredPortsPlaceholder = "discovered_ports"

// knownPlaceholders are substitutable at construction time. Anything else
// found in a template is a configuration error.
var knownPlaceholders = map[string]struct{}{
	"target":      {},
	"port":        {},
	"output_file": {},
}

// ID returns the stable task identifier derived from (tool, target, port).
func ID(toolName, targetHost string, port int) string {
	if port == 0 {
		return fmt.Sprintf("%s@%s", toolName, targetHost)
	}
	return fmt.Sprintf("%s@%s:%d", toolName, targetHost, port)
}

// Task is one concrete invocation, rendered once at construction and never
// mutated afterward (aside from the deferred {discovered_ports}
// substitution, which produces a new Task rather than mutating this one).
type Task struct {
	ID       string
	ToolName string
	Target   string
	// Port is 0 when the task is not port-scoped.
	Port int
	// Category is copied from the descriptor for concurrency sub-limits.
	Category string
	// Command is argv[0], unrendered (resolved against PATH or the script
	// directory by the process runner).
	Command string
	// Args is the rendered argument list. An element may still contain the
	// literal "{discovered_ports}" token if the descriptor used it and
	// ResolveDiscoveredPorts has not yet been called.
	Args []string
	// StdoutPath, StderrPath, StructuredPath are absolute paths under the
	// run's output root.
	StdoutPath     string
	StderrPath     string
	StructuredPath string
	// Timeout is the effective per-task wall-clock deadline.
	Timeout time.Duration
}

// New renders a Descriptor into a Task. port is 0 for non-port-scoped
// tools. outputRoot is the run's output root directory; file paths are
// derived under raw/ and structured/ subdirectories per the external
// interface layout. Unknown placeholders (anything but {target}, {port},
// {output_file}, {discovered_ports}) are a construction-time error.
func New(d catalog.Descriptor, targetHost string, port int, outputRoot string) (Task, error) {
	id := ID(d.Name, targetHost, port)
	fileBase := d.Name
	if port != 0 {
		fileBase = fmt.Sprintf("%s_%d", d.Name, port)
	}
	if abs, err := filepath.Abs(outputRoot); err == nil {
		outputRoot = abs
	}
	stdoutPath := filepath.Join(outputRoot, "raw", fileBase+".out")
	stderrPath := filepath.Join(outputRoot, "raw", fileBase+".err")
	structuredPath := filepath.Join(outputRoot, "structured", fileBase+".json")

	values := map[string]string{
		"target":      targetHost,
		"port":        strconv.Itoa(port),
		"output_file": stdoutPath,
	}

	renderedArgs := make([]string, len(d.Args))
	for i, arg := range d.Args {
		rendered, err := renderTemplate(arg, values)
		if err != nil {
			return Task{}, fmt.Errorf("task: tool %q: %w", d.Name, err)
		}
		renderedArgs[i] = rendered
	}

	return Task{
		ID:             id,
		ToolName:       d.Name,
		Target:         targetHost,
		Port:           port,
		Category:       d.Category,
		Command:        d.Command,
		Args:           renderedArgs,
		StdoutPath:     stdoutPath,
		StderrPath:     stderrPath,
		StructuredPath: structuredPath,
		Timeout:        d.EffectiveTimeout(),
	}, nil
}

// ResolveDiscoveredPorts substitutes {discovered_ports} (a comma-joined
// port list) into the task's Args, returning a new Task. Rendering the same
// Task twice with the same ports yields byte-identical Args, satisfying the
// engine's idempotence requirement.
func (t Task) ResolveDiscoveredPorts(ports []int) Task {
	if len(ports) == 0 {
		return t
	}
	strs := make([]string, len(ports))
	for i, p := range ports {
		strs[i] = strconv.Itoa(p)
	}
	joined := strings.Join(strs, ",")
	out := t
	out.Args = make([]string, len(t.Args))
	for i, a := range t.Args {
		out.Args[i] = strings.ReplaceAll(a, "{"+discoveredPortsPlaceholder+"}", joined)
	}
	return out
}

// CommandLine renders the full, human-readable command string: Command
// followed by its Args, space-joined. Used for logging and TaskResult's
// "exact command string executed".
func (t Task) CommandLine() string {
	if len(t.Args) == 0 {
		return t.Command
	}
	return t.Command + " " + strings.Join(t.Args, " ")
}

func renderTemplate(template string, values map[string]string) (string, error) {
	var outerErr error
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if name == discoveredPortsPlaceholder {
			// left intact; resolved later by ResolveDiscoveredPorts
			return match
		}
		if _, ok := knownPlaceholders[name]; !ok {
			outerErr = fmt.Errorf("unknown placeholder {%s} in template %q", name, template)
			return match
		}
		return values[name]
	})
	if outerErr != nil {
		return "", outerErr
	}
	return rendered, nil
}
