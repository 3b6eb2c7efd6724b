package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/prism/internal/schema"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func sentimentColor(s schema.Sentiment) string {
	switch s {
	case schema.SentimentBullish:
		return colorGreen
	case schema.SentimentBearish:
		return colorRed
	default:
		return colorYellow
	}
}

// printAnalysis writes a terminal rendering of one report.
func printAnalysis(w io.Writer, name string, r schema.AnalysisResult, fallback bool) {
	fmt.Fprintf(w, "\n%s  %s  %s\n",
		colorize(colorBold, name),
		colorize(sentimentColor(r.Sentiment), string(r.Sentiment)),
		colorize(colorDim, r.DocumentType),
	)
	if fallback {
		fmt.Fprintln(w, colorize(colorYellow, "  analysis failed; showing the fallback report"))
	}
	fmt.Fprintf(w, "  Credibility %g/10  Complexity %g/10 (%s)\n", r.CredibilityScore, r.ComplexityScore, r.ComplexityLabel)
	fmt.Fprintf(w, "\n  %s\n", r.Summary)

	printList(w, "Key findings", r.KeyFindings)
	if len(r.Metrics) > 0 {
		fmt.Fprintf(w, "\n  %s\n", colorize(colorBold, "Metrics"))
		for _, m := range r.Metrics {
			fmt.Fprintf(w, "    %s %s: %s\n", trendSymbol(m.Trend), m.Label, m.Value)
		}
	}
	printList(w, "Risk signals", r.RiskSignals)
	printList(w, "Knowledge gaps", r.KnowledgeGaps)
	if r.InvestorTakeaway != "" {
		fmt.Fprintf(w, "\n  %s %s\n", colorize(colorBold, "Takeaway:"), r.InvestorTakeaway)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n  %s\n", colorize(colorBold, title))
	for _, it := range items {
		fmt.Fprintf(w, "    • %s\n", it)
	}
}

func trendSymbol(t schema.Trend) string {
	switch t {
	case schema.TrendUp:
		return colorize(colorGreen, "▲")
	case schema.TrendDown:
		return colorize(colorRed, "▼")
	default:
		return colorize(colorDim, "■")
	}
}

// historyRow is one line of "prism history list".
func historyRow(it schema.HistoryItem) string {
	summary := strings.ReplaceAll(it.Summary, "\n", " ")
	if utf8.RuneCountInString(summary) > 60 {
		summary = string([]rune(summary)[:60]) + "..."
	}
	id := it.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s  %s  %-24s %s  %s",
		colorize(colorCyan, id),
		time.UnixMilli(it.Timestamp).Local().Format("2006-01-02 15:04"),
		it.FileName,
		colorize(sentimentColor(it.Sentiment), fmt.Sprintf("%-7s", it.Sentiment)),
		summary,
	)
}
