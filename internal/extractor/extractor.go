package extractor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/reconctl/reconctl/internal/catalog"
	"github.com/reconctl/reconctl/internal/finding"
	"github.com/reconctl/reconctl/internal/llm"
	"github.com/reconctl/reconctl/internal/task"
)

// Extractor runs both extraction strategies described in §4.5 over a
// completed task's result: pattern matching always runs; the LLM-assisted
// strategy runs when the descriptor requests it (Extraction.UseLLM) or
// when ShouldUseLLM's heuristic flags the output as worth a second pass,
// provided a Client is configured either way.
type Extractor struct {
	Client llm.Client
}

// Extract produces the Findings for one finished task. A task that failed
// to produce output yields no findings, not an error — extraction failure
// is never fatal to the run (§4.5, §8's error-handling design). When both
// strategies apply, they run concurrently via an errgroup.Group rather than
// one after the other, since neither reads the other's output.
func (e *Extractor) Extract(ctx context.Context, d catalog.Descriptor, t task.Task, result task.Result) ([]finding.Finding, error) {
	if result.Stdout == "" {
		return nil, nil
	}

	patterns := append(append([]catalog.Pattern{}, BuiltinPatterns()...), d.Extraction.Patterns...)

	runLLM := e.Client != nil && (d.Extraction.UseLLM || ShouldUseLLM(result.Stdout))

	var findings, llmFindings []finding.Finding
	var patternErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		findings, patternErr = ExtractPatterns(d.Name, t.Target, t.Port, result.Stdout, patterns, result.StdoutPath, result.StderrPath)
		return patternErr
	})
	if runLLM {
		g.Go(func() error {
			var err error
			llmFindings, err = ExtractLLM(gctx, e.Client, d.Name, t.Target, t.Port, result.Stdout, result.StdoutPath, result.StderrPath)
			if err != nil {
				// LLM extraction is best-effort: a provider outage must not
				// fail the run when pattern extraction already produced a
				// result, so swallow it here rather than propagate through
				// the group.
				llmFindings = nil
				return nil
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(findings, llmFindings...), nil
}
