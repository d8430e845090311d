package engine

import (
	"os"
	"path/filepath"

	"github.com/reconctl/reconctl/internal/report"
)

// ReportJSONName and ReportMarkdownName are the fixed filenames written
// under a run's target-slug directory.
const (
	ReportJSONName     = "report.json"
	ReportMarkdownName = "report.md"
)

func writeReportFiles(targetRoot string, summary report.Summary) error {
	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return err
	}
	jsonBytes, err := report.MarshalJSON(summary)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(targetRoot, ReportJSONName), jsonBytes, 0o644); err != nil {
		return err
	}
	markdown := report.RenderMarkdown(summary)
	return os.WriteFile(filepath.Join(targetRoot, ReportMarkdownName), []byte(markdown), 0o644)
}
