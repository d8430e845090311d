package depgraph

import (
	"fmt"
	"os"
	"strings"

	"github.com/reconctl/reconctl/internal/task"
)

// EvaluatePredicate evaluates a descriptor's declared gating predicate
// string against a predecessor's terminal Result, per spec §4.3: empty
// means no additional gating beyond reaching a terminal state,
// "has_output" checks the predecessor's stdout file is non-empty,
// "exit_success" checks a zero exit code, "contains:<literal>" checks the
// stdout file for a literal substring. An unknown predicate name is
// reported as an error so the caller can skip with a warning event.
func EvaluatePredicate(predicate string, result task.Result) (bool, error) {
	if predicate == "" {
		return true, nil
	}
	if predicate == "has_output" {
		return hasOutput(result), nil
	}
	if predicate == "exit_success" {
		return result.Status.State == task.StateCompleted && result.Status.ExitCode == 0, nil
	}
	if strings.HasPrefix(predicate, "contains:") {
		literal := strings.TrimPrefix(predicate, "contains:")
		return contains(result, literal), nil
	}
	return false, fmt.Errorf("depgraph: unknown predicate %q", predicate)
}

func hasOutput(result task.Result) bool {
	if result.Stdout != "" {
		return true
	}
	info, err := os.Stat(result.StdoutPath)
	return err == nil && info.Size() > 0
}

func contains(result task.Result, literal string) bool {
	if strings.Contains(result.Stdout, literal) {
		return true
	}
	raw, err := os.ReadFile(result.StdoutPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), literal)
}
