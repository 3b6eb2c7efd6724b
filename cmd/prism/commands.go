package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/prism/internal/api"
	"github.com/kalambet/prism/internal/config"
	"github.com/kalambet/prism/internal/schema"
)

// maxParallelAnalyses bounds concurrent uploads from one "prism analyze".
const maxParallelAnalyses = 3

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze documents",
	Long: `Analyze one or more documents and print their reports.

Examples:
  prism analyze whitepaper.pdf
  prism analyze notes.md prices.csv --audience trader
  prism analyze --url https://example.com/post --json
  prism analyze --text "TVL rose 40% week over week" --no-save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		rawURL, _ := cmd.Flags().GetString("url")
		audience, _ := cmd.Flags().GetString("audience")
		noSave, _ := cmd.Flags().GetBool("no-save")
		asJSON, _ := cmd.Flags().GetBool("json")

		reqs, err := buildAnalyzeRequests(args, text, rawURL)
		if err != nil {
			return err
		}
		save := !noSave
		for i := range reqs {
			reqs[i].Audience = audience
			reqs[i].Save = &save
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if !asJSON {
			printStep("Analyzing %d document(s)...", len(reqs))
		}
		results := analyzeAll(cmd.Context(), client, reqs)
		return reportAnalyses(cmd.OutOrStdout(), results, asJSON)
	},
}

func init() {
	analyzeCmd.Flags().String("text", "", "analyze this text instead of a file")
	analyzeCmd.Flags().String("url", "", "fetch and analyze a web page or PDF")
	analyzeCmd.Flags().String("audience", "", "INVESTOR, DEVELOPER, RESEARCHER or TRADER (default: server setting)")
	analyzeCmd.Flags().Bool("no-save", false, "do not record the reports in history")
	analyzeCmd.Flags().Bool("json", false, "print the raw JSON responses")
}

type analyzeResult struct {
	Name     string               `json:"name"`
	Response *api.AnalyzeResponse `json:"response,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func buildAnalyzeRequests(paths []string, text, rawURL string) ([]api.AnalyzeRequest, error) {
	var reqs []api.AnalyzeRequest
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		reqs = append(reqs, api.AnalyzeRequest{
			FileName: filepath.Base(p),
			Content:  base64.StdEncoding.EncodeToString(data),
		})
	}
	if text != "" {
		reqs = append(reqs, api.AnalyzeRequest{Text: text})
	}
	if rawURL != "" {
		reqs = append(reqs, api.AnalyzeRequest{URL: rawURL})
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("a file argument, --text or --url is required")
	}
	return reqs, nil
}

// analyzeAll submits reqs with bounded parallelism. One failed document does
// not stop the others; results keep the order of reqs.
func analyzeAll(ctx context.Context, client *apiClient, reqs []api.AnalyzeRequest) []analyzeResult {
	results := make([]analyzeResult, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAnalyses)

	for i, req := range reqs {
		results[i].Name = requestName(req)
		g.Go(func() error {
			resp, err := client.post(ctx, "/analyze", req)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			var out api.AnalyzeResponse
			if err := decodeJSON(resp, &out); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Response = &out
			return nil
		})
	}
	g.Wait()
	return results
}

func requestName(req api.AnalyzeRequest) string {
	switch {
	case req.FileName != "":
		return req.FileName
	case req.URL != "":
		return req.URL
	default:
		return "text"
	}
}

func reportAnalyses(w io.Writer, results []analyzeResult, asJSON bool) error {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				printError("%s: %s", r.Name, r.Error)
				continue
			}
			name := r.Name
			if r.Response.Item != nil {
				name = r.Response.Item.FileName
			}
			printAnalysis(w, name, r.Response.Result, r.Response.Fallback)
			switch {
			case r.Response.Item != nil:
				fmt.Fprintf(w, "\n  %s\n", colorize(colorDim, "saved as "+r.Response.Item.ID))
			case r.Response.SaveError != "":
				printWarning("%s: not saved: %s", name, r.Response.SaveError)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and manage past analyses",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past analyses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		items, err := fetchHistory(cmd.Context(), client)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No analyses yet.")
			return nil
		}
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		for _, it := range items {
			fmt.Fprintln(cmd.OutOrStdout(), historyRow(it))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := resolveID(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		switch format {
		case "", "text":
			resp, err := client.get(cmd.Context(), "/history/"+url.PathEscape(id))
			if err != nil {
				return err
			}
			var item schema.HistoryItem
			if err := decodeJSON(resp, &item); err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), item.FileName, item.AnalysisResult, schema.IsFallback(item.AnalysisResult))
			return nil
		case "json":
			resp, err := client.get(cmd.Context(), "/history/"+url.PathEscape(id))
			if err != nil {
				return err
			}
			var item any
			if err := decodeJSON(resp, &item); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		case "md", "html":
			resp, err := client.get(cmd.Context(), "/history/"+url.PathEscape(id)+"/report?format="+format)
			if err != nil {
				return err
			}
			body, err := readBody(resp)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		default:
			return fmt.Errorf("unknown format %q: use text, json, md or html", format)
		}
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL stored analyses. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/history")
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("History cleared")
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the history as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		items, err := fetchHistory(cmd.Context(), client)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d analyses to %s", len(items), output)
		}
		return nil
	},
}

var historyEmailCmd = &cobra.Command{
	Use:   "email <id>",
	Short: "Email a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		if to == "" {
			return fmt.Errorf("--to is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := resolveID(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/history/"+url.PathEscape(id)+"/email", map[string]string{"to": to})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Report sent to %s", to)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 0, "maximum number of analyses to list (default all)")
	historyShowCmd.Flags().String("format", "text", "output format: text, json, md or html")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")
	historyExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	historyEmailCmd.Flags().String("to", "", "recipient address")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyEmailCmd)
}

func fetchHistory(ctx context.Context, client *apiClient) ([]schema.HistoryItem, error) {
	resp, err := client.get(ctx, "/history")
	if err != nil {
		return nil, err
	}
	var items []schema.HistoryItem
	if err := decodeJSON(resp, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// resolveID expands the short id prefix shown by "history list".
func resolveID(ctx context.Context, client *apiClient, prefix string) (string, error) {
	items, err := fetchHistory(ctx, client)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, it := range items {
		if it.ID == prefix {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, prefix) {
			matches = append(matches, it.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no analysis with id %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

// --- theme ---

var themeCmd = &cobra.Command{
	Use:   "theme [light|dark]",
	Short: "Show or set the dashboard theme",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var body struct {
			Theme string `json:"theme"`
		}
		if len(args) == 0 {
			resp, err := client.get(cmd.Context(), "/theme")
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &body); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body.Theme)
			return nil
		}

		resp, err := client.put(cmd.Context(), "/theme", map[string]string{"theme": args[0]})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}
		printSuccess("Theme set to %s", body.Theme)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUnchecked()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", colorize(colorDim, "settings: "+config.Location()))
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
		}
		if err := cfg.Validate(); err != nil {
			printWarning("%v", err)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. Secrets (gemini.api_key, openai.api_key,
smtp.pass) go to the platform secret store, everything else to the config
backend.

Valid keys: ` + strings.Join(config.ValidKeys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, ".pass") {
			printSuccess("Stored %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
