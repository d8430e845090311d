package extractor

import (
	"context"
	"strconv"
	"strings"

	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/llm"
)

// Jaccard similarity thresholds below which ConsistencyPass warns about
// disagreement between repeated LLM passes over the same output, per
// §9 Open Question #2's resolution (the pass exists but is off by default).
const (
	similarityWarnThreshold = 0.5
	similarityLowThreshold  = 0.8
)

// ConsistencyResult is the outcome of running k repeated LLM extraction
// passes over identical input and merging them.
type ConsistencyResult struct {
	Findings   []finding.Finding
	Similarity float64
	Warning    string
}

// ConsistencyPass runs ExtractLLM k times (1<=k<=5) over the same output and
// unions the results by Finding identity, reporting how consistent the
// passes were via Jaccard similarity over each pass's ID set. It is never
// invoked unless a caller explicitly opts in; the default pipeline makes a
// single ExtractLLM call.
func ConsistencyPass(ctx context.Context, client llm.Client, toolName, targetHost string, port int, output string, stdoutPath, stderrPath string, k int) (ConsistencyResult, error) {
	if k < 1 {
		k = 1
	}
	if k > 5 {
		k = 5
	}

	var passes [][]finding.Finding
	for i := 0; i < k; i++ {
		fs, err := ExtractLLM(ctx, client, toolName, targetHost, port, output, stdoutPath, stderrPath)
		if err != nil {
			return ConsistencyResult{}, err
		}
		passes = append(passes, fs)
	}

	merged := make(map[string]finding.Finding)
	for _, pass := range passes {
		for _, f := range pass {
			merged[identityKey(f)] = f
		}
	}

	out := make([]finding.Finding, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}

	sim := averagePairwiseJaccard(passes)
	result := ConsistencyResult{Findings: out, Similarity: sim}
	switch {
	case sim < similarityWarnThreshold:
		result.Warning = "llm extraction passes disagreed substantially (similarity below 0.5); findings may be unreliable"
	case sim < similarityLowThreshold:
		result.Warning = "llm extraction passes showed moderate disagreement (similarity below 0.8)"
	}
	return result, nil
}

// identityKey groups findings across passes the way §9 describes: by
// vulnerability name (case-insensitive) when a "vulnerability" capture is
// present, else by protocol+port for port-bearing findings, else by the
// Finding ID.
func identityKey(f finding.Finding) string {
	if name, ok := f.Captures["vulnerability"]; ok {
		return "vuln:" + strings.ToLower(name)
	}
	if f.Port != 0 {
		proto := f.Captures["proto"]
		return "port:" + proto + ":" + strconv.Itoa(f.Port)
	}
	return f.ID
}

func averagePairwiseJaccard(passes [][]finding.Finding) float64 {
	n := len(passes)
	if n < 2 {
		return 1.0
	}
	sets := make([]map[string]struct{}, n)
	for i, pass := range passes {
		s := make(map[string]struct{}, len(pass))
		for _, f := range pass {
			s[identityKey(f)] = struct{}{}
		}
		sets[i] = s
	}

	var total float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1.0
	}
	return total / float64(pairs)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
