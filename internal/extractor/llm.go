package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/llm"
)

// minLLMOutputBytes is the lower bound below which output is considered too
// short to be worth an LLM round trip, per §4.5b's "should use LLM" heuristic.
const minLLMOutputBytes = 50

// tokenCharsPerToken approximates the chars-per-token ratio used to size the
// preprocessing truncation budget; it need not be exact, only conservative.
const tokenCharsPerToken = 4

// knownTrivialErrors are substrings that mark output as a tool failure
// message rather than content worth extracting from.
var knownTrivialErrors = []string{
	"command not found",
	"no such file or directory",
	"permission denied",
	"connection refused",
}

// llmFinding is the wire shape an LLM provider is prompted to emit: one
// object per observation, with free-form captures and an optional narrative.
type llmFinding struct {
	Kind        string            `json:"kind"`
	Port        int               `json:"port"`
	Severity    string            `json:"severity"`
	Title       string            `json:"title"`
	Captures    map[string]string `json:"captures"`
	Narrative   string            `json:"narrative"`
}

type llmResponse struct {
	Findings []llmFinding `json:"findings"`
}

// ShouldUseLLM implements the heuristic of §4.5b: the trimmed output must be
// at least minLLMOutputBytes long and, when shorter than 256 bytes, must not
// contain one of knownTrivialErrors. The output's structure (line count,
// rows, key/value pairs) is not inspected; any output that passes those two
// checks qualifies.
func ShouldUseLLM(output string) bool {
	trimmed := strings.TrimSpace(output)
	if len(trimmed) < minLLMOutputBytes {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, e := range knownTrivialErrors {
		if strings.Contains(lower, e) && len(trimmed) < 256 {
			return false
		}
	}
	return true
}

// Preprocess strips boilerplate and truncates output to fit within
// tokenBudget tokens (approximated as tokenBudget*tokenCharsPerToken chars),
// per §4.5b: drop empty/duplicate lines, collapse whitespace, and if still
// over budget, truncate with a marker rather than silently dropping the tail.
func Preprocess(output string, tokenBudget int) string {
	lines := strings.Split(output, "\n")
	seen := make(map[string]struct{}, len(lines))
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		kept = append(kept, l)
	}
	joined := strings.Join(kept, "\n")

	budgetChars := tokenBudget * tokenCharsPerToken
	if budgetChars <= 0 || len(joined) <= budgetChars {
		return joined
	}
	return joined[:budgetChars] + "\n…[truncated for length]"
}

// defaultTokenBudget is used when the caller has no specific budget in mind.
const defaultTokenBudget = 4000

// ExtractLLM sends preprocessed output to client and parses the JSON
// response into Findings. It is a single pass; ConsistencyPass wraps this
// to run k passes and merge them when a caller wants higher confidence.
func ExtractLLM(ctx context.Context, client llm.Client, toolName, targetHost string, port int, output string, stdoutPath, stderrPath string) ([]finding.Finding, error) {
	if client == nil {
		return nil, nil
	}
	if !ShouldUseLLM(output) {
		return nil, nil
	}

	prompt := buildPrompt(toolName, targetHost, Preprocess(output, defaultTokenBudget))
	raw, err := client.Parse(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extractor: llm parse: %w", err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("extractor: decoding llm response: %w", err)
	}

	out := make([]finding.Finding, 0, len(resp.Findings))
	for _, lf := range resp.Findings {
		kind := catalog.DiscoveryKind(lf.Kind)
		if kind == "" {
			kind = catalog.DiscoveryCustom
		}
		sev := catalog.Severity(lf.Severity)
		if sev == "" {
			sev = catalog.SeverityInfo
		}
		p := port
		if lf.Port != 0 {
			p = lf.Port
		}
		f := finding.Finding{
			ToolName:    toolName,
			Target:      targetHost,
			Port:        p,
			Kind:        kind,
			Severity:    sev,
			Title:       lf.Title,
			Captures:    lf.Captures,
			Narrative:   lf.Narrative,
			StdoutPath:  stdoutPath,
			StderrPath:  stderrPath,
		}
		f.ID = finding.NewID(toolName, f.Kind, f.Port, f.Captures)
		out = append(out, f)
	}
	return out, nil
}

func buildPrompt(toolName, targetHost, output string) string {
	var b strings.Builder
	b.WriteString("Extract structured security findings from the following tool output.\n")
	fmt.Fprintf(&b, "Tool: %s\nTarget: %s\n\n", toolName, targetHost)
	b.WriteString("Respond with JSON matching {\"findings\":[{\"kind\":...,\"port\":...,\"severity\":...,\"title\":...,\"captures\":{...},\"narrative\":...}]}.\n\n")
	b.WriteString(output)
	return b.String()
}
