package report

import (
	"io"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// dateLayout is used for every timestamp shown in a report.
const dateLayout = "2006-01-02 15:04:05 MST"

// Writer defines the interface for report output.
// Implementations write crawl summaries in various formats.
type Writer interface {
	// Write outputs the summary of one crawl run.
	// Returns the number of bytes written and any error encountered.
	Write(summary *model.CrawlSummary) (int, error)

	// WriteHistory outputs an overview of several runs, newest first.
	WriteHistory(summaries []*model.CrawlSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteHistory outputs the run history to all configured Writers.
func (m *MultiWriter) WriteHistory(summaries []*model.CrawlSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteHistory(summaries)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a run ended.
func statusText(summary *model.CrawlSummary) string {
	if summary.Cancelled {
		return "Interrupted (partial results)"
	}
	return "Complete"
}

// elapsedText renders the run duration rounded to milliseconds.
func elapsedText(summary *model.CrawlSummary) string {
	return summary.Elapsed().Round(time.Millisecond).String()
}
