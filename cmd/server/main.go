// Command server runs the antwort pipeline orchestration server: it wires
// configuration, the tool executors standing in for the three external
// providers (transcription, draft, export), the in-process upstream-runtime
// adapter, the Run Store, and the HTTP transport into one process.
//
// Configuration can be provided via:
//   - YAML config file (--config flag, ANTWORT_CONFIG env, ./config.yaml, /etc/antwort/config.yaml)
//   - Environment variables with ANTWORT_ prefix (override config file values)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rhuss/antwort/pkg/config"
	"github.com/rhuss/antwort/pkg/debug"
	"github.com/rhuss/antwort/pkg/observability"
	"github.com/rhuss/antwort/pkg/pipeline"
	"github.com/rhuss/antwort/pkg/runstore"
	"github.com/rhuss/antwort/pkg/tools"
	"github.com/rhuss/antwort/pkg/tools/builtins"
	mcptools "github.com/rhuss/antwort/pkg/tools/mcp"
	"github.com/rhuss/antwort/pkg/tools/registry"
	transporthttp "github.com/rhuss/antwort/pkg/transport/http"
	"github.com/rhuss/antwort/pkg/upstream"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	debug.Init("", "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store := runstore.New(runstore.Config{
		TTL:           cfg.Store.TTL,
		RingCap:       cfg.Store.RingCap,
		SweepInterval: cfg.Store.SweepInterval,
	})
	defer store.Close()

	executor, reg, closeExecutor, err := buildExecutor(cfg)
	if err != nil {
		return fmt.Errorf("building tool executor: %w", err)
	}
	defer closeExecutor()

	runtime := &upstream.LocalRuntime{
		Executor: executor,
		Scripts:  scriptForRequest(cfg.Pipeline),
		AllowedTools: []string{
			cfg.Pipeline.TranscribeTool,
			cfg.Pipeline.DraftTool,
			cfg.Pipeline.ExportTool,
		},
	}

	handlers := &transporthttp.Handlers{
		Store:   store,
		Runtime: runtime,
		PipelineConfig: pipeline.Config{
			TranscribeTool: cfg.Pipeline.TranscribeTool,
			DraftTool:      cfg.Pipeline.DraftTool,
			ExportTool:     cfg.Pipeline.ExportTool,
			TodoTool:       cfg.Pipeline.TodoTool,
			ReviewRoundCap: cfg.Pipeline.ReviewRoundCap,
			MaxTurns:       cfg.Pipeline.MaxTurns,
			ToolTimeout:    cfg.Pipeline.ToolTimeout,
		},
		ProjectRoot:    cfg.Server.ProjectRoot,
		PromptPath:     cfg.Pipeline.PromptPath,
		GuidelinesPath: cfg.Pipeline.GuidelinesPath,
		Heartbeat:      cfg.Store.Heartbeat,
	}

	mux := http.NewServeMux()
	mux.Handle("/", handlers.Routes())
	mux.Handle("/tools/", http.StripPrefix("/tools", reg.HTTPHandler()))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
		slog.Info("metrics endpoint enabled", "path", cfg.Observability.Metrics.Path)
	}

	var topHandler http.Handler = corsMiddleware(mux)
	if cfg.Observability.Metrics.Enabled {
		topHandler = observability.MetricsMiddleware(topHandler)
	}

	srv := transporthttp.NewServer(topHandler,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
	)

	slog.Info("server starting", "port", cfg.Server.Port, "project_root", cfg.Server.ProjectRoot)
	return srv.ListenAndServe()
}

// buildExecutor assembles the composite tool executor serving the three
// tool-provider concerns: transcription and draft are always local
// function-style providers (pkg/tools/builtins), registered on the
// returned *registry.FunctionRegistry so their (currently empty) provider
// routes and metrics are still reachable at /tools/; export is bound to an
// MCP server when cfg.MCP.Servers is non-empty, falling back to a local
// provider that writes the draft text straight to ProjectRoot otherwise.
// The returned close func releases the registry and any MCP client
// connections.
func buildExecutor(cfg *config.Config) (tools.ToolExecutor, *registry.FunctionRegistry, func(), error) {
	reg := registry.New()
	reg.Register(builtins.NewTranscribeProvider(cfg.Pipeline.TranscribeTool, 3))
	reg.Register(builtins.NewDraftProvider(cfg.Pipeline.DraftTool))

	composite := &tools.CompositeExecutor{Executors: []tools.ToolExecutor{reg}}
	closeFn := func() {
		if err := reg.Close(); err != nil {
			slog.Warn("error closing builtin registry", "error", err)
		}
	}

	if len(cfg.MCP.Servers) == 0 {
		reg.Register(builtins.NewExportProvider(cfg.Pipeline.ExportTool, cfg.Server.ProjectRoot))
		return composite, reg, closeFn, nil
	}

	mcpExecutor, err := createMCPExecutor(cfg)
	if err != nil {
		return nil, nil, closeFn, err
	}
	composite.Executors = append(composite.Executors, mcpExecutor)
	closeFn = func() {
		if err := reg.Close(); err != nil {
			slog.Warn("error closing builtin registry", "error", err)
		}
		if err := mcpExecutor.Close(); err != nil {
			slog.Warn("error closing MCP executor", "error", err)
		}
	}
	return composite, reg, closeFn, nil
}

// createMCPExecutor connects to every configured MCP server and returns an
// executor routing export tool calls to them.
func createMCPExecutor(cfg *config.Config) (*mcptools.MCPExecutor, error) {
	ctx := context.Background()
	clients := make(map[string]*mcptools.MCPClient, len(cfg.MCP.Servers))

	for _, serverCfg := range cfg.MCP.Servers {
		if serverCfg.Name == "" {
			return nil, fmt.Errorf("MCP server config missing 'name'")
		}
		if serverCfg.URL == "" {
			return nil, fmt.Errorf("MCP server %q missing 'url'", serverCfg.Name)
		}

		mcpCfg := mcptools.ServerConfig{
			Name:      serverCfg.Name,
			Transport: serverCfg.Transport,
			URL:       serverCfg.URL,
			Headers:   serverCfg.Headers,
			Auth:      buildMCPAuthConfig(serverCfg.Auth),
		}

		client := mcptools.NewMCPClient(mcpCfg)
		if err := client.Connect(ctx); err != nil {
			for _, c := range clients {
				_ = c.Close()
			}
			return nil, fmt.Errorf("connecting to MCP server %q: %w", serverCfg.Name, err)
		}

		clients[serverCfg.Name] = client
		authType := serverCfg.Auth.Type
		if authType == "" {
			authType = "none"
		}
		slog.Info("MCP server connected", "name", serverCfg.Name, "url", serverCfg.URL, "transport", serverCfg.Transport, "auth", authType)
	}

	return mcptools.NewMCPExecutor(clients), nil
}

// buildMCPAuthConfig converts a config.MCPAuthConfig to the mcp package's
// MCPAuthConfig.
func buildMCPAuthConfig(authCfg config.MCPAuthConfig) mcptools.MCPAuthConfig {
	return mcptools.MCPAuthConfig{
		Type:             authCfg.Type,
		TokenURL:         authCfg.TokenURL,
		ClientID:         authCfg.ClientID,
		ClientIDFile:     authCfg.ClientIDFile,
		ClientSecret:     authCfg.ClientSecret,
		ClientSecretFile: authCfg.ClientSecretFile,
		Scopes:           authCfg.Scopes,
	}
}

// scriptForRequest builds the LocalRuntime's per-run script: a transcribe
// call, a draft call, and an export call with fixed arguments, matching the
// transcribe -> draft -> review -> export sequence the Pipeline Driver
// expects to observe. The reviewer phase has no provider of its own (it is
// an out-of-scope external collaborator), so the script emits no reviewer
// verdict: the driver marks review successful when it observes the export
// call, and the run ends with a {"status":"ok"} final result.
func scriptForRequest(cfg config.PipelineConfig) func(upstream.Request) upstream.Script {
	return func(req upstream.Request) upstream.Script {
		return upstream.Script{
			Steps: []upstream.Step{
				{ToolName: cfg.TranscribeTool, Input: map[string]any{"audioPath": "audio"}},
				{ToolName: cfg.DraftTool, Input: map[string]any{"transcript": "transcript"}},
				{ToolName: cfg.ExportTool, Input: map[string]any{"draft": "draft", "outputPath": "out.docx"}},
			},
			FinalText: `{"status":"ok"}`,
		}
	}
}

// corsMiddleware adds permissive CORS headers so a browser-hosted client
// can call the runs API and open its SSE stream cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
