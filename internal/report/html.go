package report

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kalambet/prism/internal/schema"
)

const pageStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:860px;margin:2rem auto;padding:0 1rem;color:#1f2937;line-height:1.5}` +
	`table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #d1d5db;padding:.35rem .7rem;text-align:left}` +
	`th{background:#f3f4f6}blockquote{border-left:4px solid #f59e0b;margin:0;padding:.2rem 1rem;background:#fffbeb}` +
	`h1{margin-bottom:.2rem}h2{border-bottom:1px solid #e5e7eb;padding-bottom:.2rem}`

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTMLBody converts the Markdown report to an HTML fragment.
func HTMLBody(item schema.HistoryItem) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(item)), &buf); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return buf.String(), nil
}

// HTML renders item as a standalone page.
func HTML(item schema.HistoryItem) (string, error) {
	body, err := HTMLBody(item)
	if err != nil {
		return "", err
	}
	title := item.FileName
	if title == "" {
		title = "Prism report"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + pageStyle + "</style></head><body>" + body + "</body></html>", nil
}
