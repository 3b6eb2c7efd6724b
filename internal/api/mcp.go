package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/prism/internal/analysis"
	"github.com/kalambet/prism/internal/document"
	"github.com/kalambet/prism/internal/history"
	"github.com/kalambet/prism/internal/schema"
)

const (
	recentLimit     = 10
	maxSummaryRunes = 200
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	History    *history.Store
	Analyzer   Analyzer
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (d MCPDeps) app() AppDeps {
	return AppDeps{History: d.History, Analyzer: d.Analyzer, HTTPClient: d.HTTPClient, Logger: d.Logger}
}

// NewMCPServer creates an MCP server with the Prism tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"prism",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Prism analyzes documents (text, markdown, CSV, JSON, HTML, PDF) into a structured intelligence report and keeps the last 50 reports."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("analyze_document",
			mcp.WithDescription("Analyze a document and return a structured report: summary, key findings, sentiment, metrics, risks, entities and scores."),
			mcp.WithString("path", mcp.Description("Local file path (.txt, .md, .csv, .json, .html, .pdf)")),
			mcp.WithString("text", mcp.Description("Raw document text, used when no path is given")),
			mcp.WithString("url", mcp.Description("http(s) URL of a page or PDF, used when neither path nor text is given")),
			mcp.WithString("audience", mcp.Description("INVESTOR, DEVELOPER, RESEARCHER or TRADER"), mcp.Enum(audienceNames()...)),
			mcp.WithBoolean("save", mcp.Description("Record the report in history (default true)")),
		),
		mcpAnalyzeDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("list_history",
			mcp.WithDescription("List recent analyses, newest first (summaries only)."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of items (default 10)")),
		),
		mcpListHistory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_history_item",
			mcp.WithDescription("Return the full stored report for a history item."),
			mcp.WithString("id", mcp.Description("History item id"), mcp.Required()),
		),
		mcpGetHistoryItem(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_history",
			mcp.WithDescription("Delete every stored analysis. Requires confirm=true."),
			mcp.WithBoolean("confirm", mcp.Description("Must be true"), mcp.Required()),
		),
		mcpClearHistory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"history://recent",
			"Recent Analyses",
			mcp.WithResourceDescription("Last 10 analyses (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func audienceNames() []string {
	names := make([]string, len(analysis.Audiences))
	for i, a := range analysis.Audiences {
		names[i] = string(a)
	}
	return names
}

func mcpAnalyzeDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var audience analysis.Audience
		if raw := req.GetString("audience", ""); raw != "" {
			a, ok := analysis.ParseAudience(raw)
			if !ok {
				return mcpError(fmt.Sprintf("unknown audience %q", raw)), nil
			}
			audience = a
		}

		var (
			name string
			in   analysis.Input
		)
		switch path, text, url := req.GetString("path", ""), req.GetString("text", ""), req.GetString("url", ""); {
		case path != "":
			data, err := os.ReadFile(path)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
			}
			name = filepath.Base(path)
			if in, err = document.FromFile(name, data); err != nil {
				return mcpError(err.Error()), nil
			}
		case strings.TrimSpace(text) != "":
			name, in = pastedTextName, analysis.Input{Text: text}
		case url != "":
			client := deps.HTTPClient
			if client == nil {
				client = document.NewFetchClient()
			}
			var err error
			if name, in, err = document.Fetch(ctx, client, url); err != nil {
				return mcpError(err.Error()), nil
			}
		default:
			return mcpError("one of path, text or url is required"), nil
		}

		resp := analyzeDocument(ctx, deps.app(), name, in, audience, req.GetBool("save", true))
		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

// historySummary is the short form of a history item.
type historySummary struct {
	ID           string           `json:"id"`
	FileName     string           `json:"fileName"`
	Timestamp    string           `json:"timestamp"`
	DocumentType string           `json:"documentType"`
	Sentiment    schema.Sentiment `json:"sentiment"`
	Summary      string           `json:"summary"`
}

func summarize(items []schema.HistoryItem) []historySummary {
	out := make([]historySummary, len(items))
	for i, it := range items {
		summary := it.Summary
		if utf8.RuneCountInString(summary) > maxSummaryRunes {
			runes := []rune(summary)
			summary = string(runes[:maxSummaryRunes]) + "..."
		}
		out[i] = historySummary{
			ID:           it.ID,
			FileName:     it.FileName,
			Timestamp:    time.UnixMilli(it.Timestamp).UTC().Format(time.RFC3339),
			DocumentType: it.DocumentType,
			Sentiment:    it.Sentiment,
			Summary:      summary,
		}
	}
	return out
}

func mcpListHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", recentLimit)
		if limit <= 0 {
			limit = recentLimit
		}
		items := deps.History.List()
		if len(items) > limit {
			items = items[:limit]
		}
		b, err := json.Marshal(summarize(items))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal history: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetHistoryItem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		item, err := deps.History.Get(id)
		if errors.Is(err, history.ErrNotFound) {
			return mcpError(fmt.Sprintf("no history item %q", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get history item: %v", err)), nil
		}
		b, err := json.Marshal(item)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal item: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !req.GetBool("confirm", false) {
			return mcpError("refusing to clear history without confirm=true"), nil
		}
		if err := deps.History.Clear(); err != nil {
			return mcpError(fmt.Sprintf("failed to clear history: %v", err)), nil
		}
		return mcpText("History cleared"), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items := deps.History.List()
		if len(items) > recentLimit {
			items = items[:recentLimit]
		}

		b, err := json.Marshal(summarize(items))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal history: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
