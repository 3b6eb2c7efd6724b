// Package report renders saved analyses as Markdown and HTML documents.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/prism/internal/schema"
)

// Markdown renders item with the same sections as the dashboard.
func Markdown(item schema.HistoryItem) string {
	r := item.AnalysisResult
	var sb strings.Builder

	title := item.FileName
	if title == "" {
		title = "Untitled document"
	}
	fmt.Fprintf(&sb, "# %s\n\n", escape(title))
	if item.Timestamp > 0 {
		fmt.Fprintf(&sb, "_Analyzed %s_ · %s\n\n", time.UnixMilli(item.Timestamp).UTC().Format("2006-01-02 15:04 UTC"), escape(r.DocumentType))
	}
	if schema.IsFallback(r) {
		sb.WriteString("> **Analysis failed.** The scores below are placeholders.\n\n")
	}

	sb.WriteString("## Executive summary\n\n")
	sb.WriteString(escape(r.Summary) + "\n\n")

	sb.WriteString("| Sentiment | Complexity | Credibility |\n|---|---|---|\n")
	fmt.Fprintf(&sb, "| %s (%s%% confidence) | %s (%s/10) | %s/10 |\n\n",
		r.Sentiment, score(r.SentimentConfidence), r.ComplexityLabel, score(r.ComplexityScore), score(r.CredibilityScore))

	bullets(&sb, "Key findings", r.KeyFindings)

	if len(r.Metrics) > 0 {
		sb.WriteString("## Metrics\n\n| Metric | Value | Trend |\n|---|---|---|\n")
		for _, m := range r.Metrics {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", cell(m.Label), cell(m.Value), trendArrow(m.Trend))
		}
		sb.WriteString("\n")
	}

	if len(r.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, e := range r.Timeline {
			fmt.Fprintf(&sb, "- **%s**: %s\n", escape(e.Date), escape(e.Description))
		}
		sb.WriteString("\n")
	}

	if len(r.Entities) > 0 {
		sb.WriteString("## Entities\n\n")
		for _, e := range r.Entities {
			fmt.Fprintf(&sb, "- %s (%s)\n", escape(e.Name), e.Type)
		}
		sb.WriteString("\n")
	}

	if len(r.Relationships) > 0 {
		sb.WriteString("## Concept map\n\n")
		for _, rel := range r.Relationships {
			fmt.Fprintf(&sb, "- %s —%s→ %s\n", escape(rel.Source), escape(rel.Relation), escape(rel.Target))
		}
		sb.WriteString("\n")
	}

	bullets(&sb, "Comparisons", r.Comparisons)
	bullets(&sb, "Risk signals", r.RiskSignals)

	sb.WriteString("## What this means for you\n\n")
	sb.WriteString(escape(r.InvestorTakeaway) + "\n\n")

	bullets(&sb, "Metrics to watch", r.RelatedMetrics)
	bullets(&sb, "Questions answered", r.QuestionsAnswered)
	bullets(&sb, "Knowledge gaps", r.KnowledgeGaps)

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func bullets(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", escape(it))
	}
	sb.WriteString("\n")
}

func score(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}

func trendArrow(t schema.Trend) string {
	switch t {
	case schema.TrendUp:
		return "▲ up"
	case schema.TrendDown:
		return "▼ down"
	case schema.TrendFlat:
		return "▬ flat"
	default:
		return "?"
	}
}

// escape neutralizes characters that would turn model text into markup.
var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "<", "&lt;", ">", "&gt;", "[", `\[`, "]", `\]`, "#", `\#`,
)

func escape(s string) string {
	return mdEscaper.Replace(strings.TrimSpace(s))
}

func cell(s string) string {
	return strings.ReplaceAll(escape(strings.ReplaceAll(s, "\n", " ")), "|", `\|`)
}
