package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// Plain text with ASCII rules is used so output can be piped to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to list are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounters(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(summaries []*model.CrawlSummary) (int, error) {
	var sb strings.Builder

	writeRule(&sb, "CRAWL HISTORY")
	if len(summaries) == 0 {
		sb.WriteString("  No crawl runs recorded\n\n")
		return w.output.Write([]byte(sb.String()))
	}

	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("  %s  %s  stored=%d existing=%d failed=%d  %s\n",
			s.StartedAt.Local().Format(dateLayout),
			s.RunID,
			s.PagesStored,
			s.PagesExisting,
			s.TotalFailures(),
			statusText(s),
		))
		if w.verbose {
			sb.WriteString(fmt.Sprintf("      seeds: %s\n", strings.Join(s.Seeds, ", ")))
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         SITECRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run ID:         %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("Seeds:          %s\n", strings.Join(summary.Seeds, ", ")))
	sb.WriteString(fmt.Sprintf("Started:        %s\n", summary.StartedAt.Local().Format(dateLayout)))
	sb.WriteString(fmt.Sprintf("Elapsed:        %s\n", elapsedText(summary)))
	sb.WriteString(fmt.Sprintf("Workers:        %d\n", summary.Workers))
	sb.WriteString(fmt.Sprintf("Status:         %s\n", statusText(summary)))
	sb.WriteString("\n")
}

// writeCounters writes the page and failure counters.
func (w *SimpleWriter) writeCounters(sb *strings.Builder, summary *model.CrawlSummary) {
	writeRule(sb, "PAGES")

	sb.WriteString(fmt.Sprintf("  STORED:     %d\n", summary.PagesStored))
	sb.WriteString(fmt.Sprintf("  EXISTING:   %d\n", summary.PagesExisting))
	sb.WriteString(fmt.Sprintf("  KEYWORDS:   %d\n", summary.KeywordsStored))
	sb.WriteString(fmt.Sprintf("  DUPLICATES: %d\n", summary.Duplicates))
	sb.WriteString(fmt.Sprintf("  SKIPPED:    %d\n", summary.Skipped))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  FETCH FAILURES:    %d\n", summary.FetchFailures))
	sb.WriteString(fmt.Sprintf("  STORAGE FAILURES:  %d\n", summary.StorageFailures))
	sb.WriteString(fmt.Sprintf("  INTERNAL FAILURES: %d\n", summary.InternalFailures))
	sb.WriteString("\n")
}

// writeFailures lists the failure samples.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.Failures) == 0 && !w.showEmpty {
		return
	}

	writeRule(sb, "FAILURES")

	if len(summary.Failures) == 0 {
		sb.WriteString("  No failures\n\n")
		return
	}

	for _, f := range summary.Failures {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", failureIndicator(f.Kind), f.URL))
		if w.verbose {
			sb.WriteString(fmt.Sprintf("    %s\n", f.Message))
		}
	}
	if hidden := summary.TotalFailures() - len(summary.Failures); hidden > 0 {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", hidden))
	}
	sb.WriteString("\n")
}

// failureIndicator returns a short tag for the failure kind.
func failureIndicator(kind model.FailureKind) string {
	switch kind {
	case model.FailureFetch:
		return "F"
	case model.FailureStorage:
		return "S"
	default:
		return "!"
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecrawl\n")
	sb.WriteString("https://github.com/nao1215/sitecrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// writeRule writes a section title between two horizontal rules.
func writeRule(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
