package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/prism/internal/analysis"
	"github.com/kalambet/prism/internal/api"
	"github.com/kalambet/prism/internal/config"
	"github.com/kalambet/prism/internal/document"
	"github.com/kalambet/prism/internal/engine"
	"github.com/kalambet/prism/internal/history"
	"github.com/kalambet/prism/internal/kv"
	"github.com/kalambet/prism/internal/notify"
	"github.com/kalambet/prism/internal/prefs"
	"github.com/kalambet/prism/internal/schema"
	"github.com/kalambet/prism/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the prism server (foreground)",
	Long: `Start the dashboard HTTP API on 127.0.0.1 and the MCP server on stdio.

Logs go to stderr; stdout is reserved for MCP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(!noMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running prism server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prism system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("no-mcp", false, "do not serve MCP on stdio")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "prism.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openBackend opens the key-value store history and preferences live in.
func openBackend(cfg config.Config) (kv.Backend, func() error, error) {
	switch cfg.Storage.Backend {
	case "file":
		f, err := kv.NewFile(filepath.Join(cfg.Storage.DataDir, "kv"))
		if err != nil {
			return nil, nil, err
		}
		return f, func() error { return nil }, nil
	default:
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func runServer(serveMCP bool) error {
	fmt.Fprintf(os.Stderr, "prism version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Ensure API token exists in platform secret store.
	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("prism is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("prism is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	historyStore := history.New(backend)
	prefsMgr := prefs.NewManager(backend)

	// Build and prepare the generative engine.
	gen, err := engine.New(ctx, engine.Options{
		Provider:      cfg.Engine.Provider,
		GeminiAPIKey:  cfg.Gemini.APIKey,
		GeminiModel:   cfg.Gemini.Model,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OllamaModel:   cfg.Ollama.Model,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIModel:   cfg.OpenAI.Model,
	})
	if err != nil {
		return fmt.Errorf("creating %s engine: %w", cfg.Engine.Provider, err)
	}
	if p, ok := gen.(engine.Preparer); ok {
		if err := p.Prepare(ctx, os.Stderr); err != nil {
			return err
		}
	}

	audience, ok := analysis.ParseAudience(cfg.Analysis.Audience)
	if !ok {
		slog.Warn("unknown default audience, using INVESTOR", "value", cfg.Analysis.Audience)
	}
	analyzer := analysis.NewClient(gen,
		analysis.WithTextExtractor(document.ToText),
		analysis.WithTimeout(cfg.Analysis.TimeoutDuration()),
		analysis.WithDefaultAudience(audience),
		analysis.WithLogger(slog.Default()),
	)

	mailer := notify.NewEmailSender(notify.EmailConfig{
		SMTPServer: cfg.SMTP.Server,
		SMTPPort:   cfg.SMTP.Port,
		SMTPUser:   cfg.SMTP.User,
		SMTPPass:   cfg.SMTP.Pass,
		FromEmail:  cfg.SMTP.From,
	})
	if !mailer.Enabled() {
		slog.Info("email disabled: smtp.server and smtp.from are not set")
	}

	fetchClient := document.NewFetchClient()

	appHandler := api.NewAppHandler(api.AppDeps{
		History:        historyStore,
		Analyzer:       analyzer,
		Prefs:          prefsMgr,
		Mailer:         mailer,
		HTTPClient:     fetchClient,
		Token:          apiToken,
		AllowedOrigins: cfg.Server.Origins(),
		Logger:         slog.Default(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
		// Analyses can take up to analysis.timeout.
		WriteTimeout: cfg.Analysis.TimeoutDuration() + 30*time.Second,
	}

	if serveMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			History:    historyStore,
			Analyzer:   analyzer,
			HTTPClient: fetchClient,
			Logger:     slog.Default(),
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("prism listening", "addr", addr, "engine", cfg.Engine.Provider, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("prism is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop prism (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to prism (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Engine", "%s (%s)", cfg.Engine.Provider, engineModel(cfg))
	if err := cfg.Validate(); err != nil {
		printStatus("Config", "%s", colorize(colorYellow, err.Error()))
	}
	if cfg.Engine.Provider == engine.ProviderOllama {
		if ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version"); err != nil {
			printStatus("Ollama", "not running")
		} else {
			ollamaResp.Body.Close()
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		}
	}

	if running {
		token, err := config.GetAPIToken(config.NewKeychain())
		if err == nil {
			c := &apiClient{baseURL: serverURL, token: token, httpClient: client}
			if resp, err := c.get(ctx, "/history"); err == nil {
				var items []schema.HistoryItem
				if decodeJSON(resp, &items) == nil {
					printStatus("History", "%d of %d", len(items), history.DefaultLimit)
				}
			}
		}
	}

	printStatus("Storage", "%s in %s", cfg.Storage.Backend, cfg.Storage.DataDir)
	if cfg.SMTP.Server != "" && cfg.SMTP.From != "" {
		printStatus("Email", "via %s:%d", cfg.SMTP.Server, cfg.SMTP.Port)
	} else {
		printStatus("Email", "disabled")
	}
	return nil
}

func engineModel(cfg config.Config) string {
	switch cfg.Engine.Provider {
	case engine.ProviderOllama:
		return cfg.Ollama.Model
	case engine.ProviderOpenAI:
		return cfg.OpenAI.Model
	default:
		return cfg.Gemini.Model
	}
}
