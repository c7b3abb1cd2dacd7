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

	"github.com/kalambet/coursechat/internal/api"
	"github.com/kalambet/coursechat/internal/config"
	"github.com/kalambet/coursechat/internal/docproc"
	"github.com/kalambet/coursechat/internal/engine"
	"github.com/kalambet/coursechat/internal/generate"
	"github.com/kalambet/coursechat/internal/llm"
	"github.com/kalambet/coursechat/internal/monitor"
	"github.com/kalambet/coursechat/internal/rag"
	"github.com/kalambet/coursechat/internal/retrieval"
	"github.com/kalambet/coursechat/internal/search"
	"github.com/kalambet/coursechat/internal/session"
	"github.com/kalambet/coursechat/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the coursechat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running coursechat server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show coursechat system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "coursechat.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "coursechat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	// Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("coursechat is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("coursechat is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Check embedding engine readiness, pulling the model if missing.
	eng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	if err := engine.EnsureReady(ctx, eng, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Retrieval stack.
	embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel)
	vectorStore := retrieval.NewVectorStore(retrieval.NewStore(store.DB()), embedder, cfg.Chat.MaxResults)

	// Quality monitors.
	retrievalMonitor := monitor.NewRetrievalMonitor()
	documentMonitor := monitor.NewDocumentMonitor(log, nil)
	healthMonitor := monitor.NewHealthMonitor(log, documentMonitor, retrievalMonitor)

	// Tools.
	searchTool := search.NewCourseSearchTool(vectorStore).WithMetrics(retrievalMonitor)
	tools := search.NewToolManager()
	if err := tools.Register(searchTool); err != nil {
		return fmt.Errorf("registering search tool: %w", err)
	}

	// Generation.
	var client *llm.Client
	if cfg.Anthropic.BaseURL != "" {
		client = llm.NewClientWithBaseURL(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL)
	} else {
		client = llm.NewClient(cfg.Anthropic.APIKey)
	}
	generator := generate.New(client, cfg.Anthropic.Model)

	processor := docproc.NewProcessor(cfg.Chunking.Size, cfg.Chunking.Overlap)
	sessions := session.NewManager(cfg.Chat.MaxHistory)
	system := rag.NewSystem(log, processor, vectorStore, generator, sessions, tools)

	// Ingest the docs folder on startup; a missing folder is not fatal.
	if _, statErr := os.Stat(cfg.Storage.DocsDir); statErr == nil {
		courses, chunks, err := system.AddCourseFolder(ctx, cfg.Storage.DocsDir, false)
		if err != nil {
			log.Warn("startup ingestion failed", "error", err)
		} else {
			log.Info("startup ingestion complete", "courses_added", courses, "chunks_added", chunks)
		}
	} else {
		log.Warn("docs folder not found, skipping startup ingestion", "path", cfg.Storage.DocsDir)
	}

	handler := api.NewAppHandler(api.AppDeps{
		System:  system,
		DocsDir: cfg.Storage.DocsDir,
		Token:   cfg.Server.AuthToken,
		Health: func(context.Context) monitor.HealthReport {
			chunks, err := vectorStore.AllChunks()
			if err != nil {
				log.Error("loading chunks for health report", "error", err)
			}
			return healthMonitor.Report(cfg.Storage.DocsDir, chunks)
		},
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server on stdio transport.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Search:  searchTool,
		Catalog: vectorStore,
		Version: version,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("MCP stdio server error", "error", err)
		}
	}()
	log.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "coursechat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("coursechat is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop coursechat (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to coursechat (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Chat model", "%s", cfg.Anthropic.Model)

	if resp != nil && resp.StatusCode == 200 {
		coursesResp, err := client.Get(serverURL + "/api/courses")
		if err == nil {
			var analytics struct {
				TotalCourses int `json:"total_courses"`
			}
			if decodeErr := decodeJSON(coursesResp, &analytics); decodeErr == nil {
				printStatus("Courses", "%d", analytics.TotalCourses)
			}
		}
	}

	printStatus("Docs dir", "%s", cfg.Storage.DocsDir)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
