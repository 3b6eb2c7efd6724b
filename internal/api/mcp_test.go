package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/prism/internal/history"
	"github.com/kalambet/prism/internal/kv"
	"github.com/kalambet/prism/internal/schema"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *fakeAnalyzer) {
	t.Helper()
	a := &fakeAnalyzer{result: sampleResult()}
	return MCPDeps{
		History:  history.New(kv.NewMemory()),
		Analyzer: a,
	}, a
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestMCPServer_Registers(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_AnalyzeDocument_Path(t *testing.T) {
	deps, a := newTestMCPDeps(t)
	path := filepath.Join(t.TempDir(), "memo.md")
	if err := os.WriteFile(path, []byte("# Memo\nStaking yield 5%"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := callTool(t, mcpAnalyzeDocument(deps), "analyze_document", map[string]any{
		"path":     path,
		"audience": "developer",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	if resp.Item == nil || resp.Item.FileName != "memo.md" {
		t.Fatalf("item = %+v", resp.Item)
	}
	if !strings.Contains(a.inputs[0].Text, "Staking yield") {
		t.Errorf("input = %+v", a.inputs[0])
	}
	if a.audience[0] != "DEVELOPER" {
		t.Errorf("audience = %q", a.audience[0])
	}
}

func TestMCPTool_AnalyzeDocument_TextNoSave(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result := callTool(t, mcpAnalyzeDocument(deps), "analyze_document", map[string]any{
		"text": "raw text",
		"save": false,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if n := len(deps.History.List()); n != 0 {
		t.Errorf("history has %d items, want 0", n)
	}
}

func TestMCPTool_AnalyzeDocument_Errors(t *testing.T) {
	deps, a := newTestMCPDeps(t)
	for _, args := range []map[string]any{
		{},
		{"path": filepath.Join(t.TempDir(), "missing.txt")},
		{"text": "x", "audience": "nobody"},
	} {
		if result := callTool(t, mcpAnalyzeDocument(deps), "analyze_document", args); !result.IsError {
			t.Errorf("args %v: expected error result", args)
		}
	}
	if len(a.inputs) != 0 {
		t.Error("analyzer called for rejected input")
	}
}

func TestMCPTool_ListHistory(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	for i := 0; i < 12; i++ {
		r := sampleResult()
		r.Summary = strings.Repeat("long summary ", 30)
		deps.History.Save(fmt.Sprintf("doc%d.txt", i), r)
	}

	result := callTool(t, mcpListHistory(deps), "list_history", map[string]any{"limit": 3})
	var got []historySummary
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if len(got) != 3 || got[0].FileName != "doc11.txt" {
		t.Fatalf("list = %+v", got)
	}
	if !strings.HasSuffix(got[0].Summary, "...") || len([]rune(got[0].Summary)) != maxSummaryRunes+3 {
		t.Errorf("summary not truncated: %d runes", len([]rune(got[0].Summary)))
	}

	result = callTool(t, mcpListHistory(deps), "list_history", nil)
	json.Unmarshal([]byte(toolText(t, result)), &got)
	if len(got) != recentLimit {
		t.Errorf("default limit = %d, want %d", len(got), recentLimit)
	}
}

func TestMCPTool_GetHistoryItem(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	item, _ := deps.History.Save("a.txt", sampleResult())

	result := callTool(t, mcpGetHistoryItem(deps), "get_history_item", map[string]any{"id": item.ID})
	var got schema.HistoryItem
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != item.ID || got.Summary != item.Summary {
		t.Errorf("got %+v", got)
	}

	if result := callTool(t, mcpGetHistoryItem(deps), "get_history_item", map[string]any{"id": "nope"}); !result.IsError {
		t.Error("expected error for unknown id")
	}
	if result := callTool(t, mcpGetHistoryItem(deps), "get_history_item", nil); !result.IsError {
		t.Error("expected error for missing id")
	}
}

func TestMCPTool_ClearHistory(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.History.Save("a.txt", sampleResult())

	if result := callTool(t, mcpClearHistory(deps), "clear_history", map[string]any{"confirm": false}); !result.IsError {
		t.Error("expected refusal without confirm")
	}
	if len(deps.History.List()) != 1 {
		t.Fatal("history cleared without confirm")
	}
	if result := callTool(t, mcpClearHistory(deps), "clear_history", map[string]any{"confirm": true}); result.IsError {
		t.Fatalf("clear failed: %s", toolText(t, result))
	}
	if len(deps.History.List()) != 0 {
		t.Error("history not cleared")
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	for i := 0; i < 15; i++ {
		deps.History.Save(fmt.Sprintf("doc%d.txt", i), sampleResult())
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "history://recent"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type %T", contents[0])
	}
	var got []historySummary
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != recentLimit || got[0].FileName != "doc14.txt" {
		t.Errorf("recent = %d items, first %q", len(got), got[0].FileName)
	}
}
