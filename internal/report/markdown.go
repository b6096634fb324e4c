package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitecrawl/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown, built with
// the nao1215/markdown library.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounters(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteHistory outputs the run history as a table.
func (w *MarkdownWriter) WriteHistory(summaries []*model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl History")
	md.PlainText("")

	if len(summaries) == 0 {
		md.PlainText("No crawl runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			"`" + s.RunID + "`",
			s.StartedAt.Local().Format(dateLayout),
			elapsedText(s),
			strconv.Itoa(s.PagesStored),
			strconv.Itoa(s.PagesExisting),
			strconv.Itoa(s.TotalFailures()),
			statusText(s),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Elapsed", "Stored", "Existing", "Failures", "Status"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("sitecrawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + summary.RunID + "`"},
			{"Started", summary.StartedAt.Local().Format(dateLayout)},
			{"Elapsed", elapsedText(summary)},
			{"Workers", strconv.Itoa(summary.Workers)},
			{"Status", w.getStatusText(summary)},
		},
	})
	md.PlainText("")

	md.H2("Seeds")
	md.PlainText("")
	seeds := make([]string, len(summary.Seeds))
	for i, s := range summary.Seeds {
		seeds[i] = "`" + s + "`"
	}
	md.BulletList(seeds...)
	md.PlainText("")
}

// getStatusText returns the status text based on the run outcome.
func (w *MarkdownWriter) getStatusText(summary *model.CrawlSummary) string {
	if summary.Cancelled {
		return "⚠️ " + statusText(summary)
	}
	return "✅ " + statusText(summary)
}

// writeCounters writes the outcome table, chart and alert.
func (w *MarkdownWriter) writeCounters(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Pages")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Stored", strconv.Itoa(summary.PagesStored)},
			{"🔵 Already stored", strconv.Itoa(summary.PagesExisting)},
			{"⚪ Duplicate claims", strconv.Itoa(summary.Duplicates)},
			{"⚪ Skipped (page limit)", strconv.Itoa(summary.Skipped)},
			{"🟠 Fetch failures", strconv.Itoa(summary.FetchFailures)},
			{"🔴 Storage failures", strconv.Itoa(summary.StorageFailures)},
			{"🔴 Internal failures", strconv.Itoa(summary.InternalFailures)},
			{"**Keywords stored**", "**" + strconv.Itoa(summary.KeywordsStored) + "**"},
		},
	})
	md.PlainText("")

	if summary.PagesProcessed()+summary.TotalFailures() > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of page outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.PagesStored > 0 {
		chart.LabelAndIntValue("Stored", uint64(summary.PagesStored))
	}
	if summary.PagesExisting > 0 {
		chart.LabelAndIntValue("Already stored", uint64(summary.PagesExisting))
	}
	if summary.FetchFailures > 0 {
		chart.LabelAndIntValue("Fetch failures", uint64(summary.FetchFailures))
	}
	if n := summary.StorageFailures + summary.InternalFailures; n > 0 {
		chart.LabelAndIntValue("Other failures", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	switch {
	case summary.StorageFailures > 0:
		md.Cautionf(
			"%d page(s) could not be written to the database.",
			summary.StorageFailures,
		)
	case summary.Cancelled:
		md.Warningf("The crawl was interrupted before the frontier was exhausted.")
	case summary.TotalFailures() > 0:
		md.Importantf(
			"%d page(s) could not be fetched or processed.",
			summary.TotalFailures(),
		)
	case summary.PagesProcessed() == 0:
		md.Note("No page was stored during this run.")
	default:
		md.Tip("All reachable pages were crawled successfully.")
	}
	md.PlainText("")
}

// writeFailures writes the failure samples as a table.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Failures")
	md.PlainText("")

	if len(summary.Failures) == 0 {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Failures))
	for i, f := range summary.Failures {
		rows[i] = []string{
			truncateString(f.URL, 60),
			string(f.Kind),
			truncateString(escapePipes(f.Message), 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Message"},
		Rows:   rows,
	})
	md.PlainText("")

	if hidden := summary.TotalFailures() - len(summary.Failures); hidden > 0 {
		md.PlainTextf("%d more failure(s) not listed.", hidden)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// escapePipes keeps a table cell from being split.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
