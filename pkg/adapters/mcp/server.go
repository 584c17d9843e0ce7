package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/internal/logging"
	"github.com/aretw0/covidash/internal/presentation/graph"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionResponse is returned by open_session.
type SessionResponse struct {
	ID   string      `json:"id" jsonschema_description:"The session ID to pass to the other tools"`
	View domain.View `json:"view" jsonschema_description:"Every artifact of the current selection"`
}

// ApplyResponse is returned by apply_inputs.
type ApplyResponse struct {
	Diff *domain.SelectionDiff `json:"diff" jsonschema_description:"The inputs that changed"`
	View domain.View           `json:"view" jsonschema_description:"Every artifact of the new selection"`
}

// Engine defines the interface required by the MCP server.
type Engine interface {
	Start(ctx context.Context, sessionID string) (string, error)
	Apply(ctx context.Context, sessionID string, p domain.InputPatch) (*domain.SelectionDiff, error)
	View(ctx context.Context, sessionID string) (domain.View, error)
	Choices(ctx context.Context, sessionID string) (domain.Choices, error)
	Refresh(ctx context.Context, sessionID string) error
	Inspect(ctx context.Context, sessionID string) ([]reactive.NodeInfo, error)
	Close(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// Server wraps the covidash Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("covidash-mcp", strings.TrimSpace(version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it
// gracefully when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Open a dashboard session, restoring its stored inputs if the ID is known. Returns the session ID and the current view."),
		mcp.WithString("session_id", mcp.Description("Session to open or resume (optional, a new ID is generated when omitted)")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("apply_inputs",
		mcp.WithDescription("Change one or more dashboard inputs at once. Omitted inputs keep their value."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("metric", mcp.Description("Metric to show"), mcp.Enum(string(domain.MetricCases), string(domain.MetricDeaths))),
		mcp.WithString("start", mcp.Description("First day of the range, YYYY-MM-DD")),
		mcp.WithString("end", mcp.Description("Last day of the range, YYYY-MM-DD")),
		mcp.WithBoolean("population_adjust", mcp.Description("Show values as percent of the state population")),
		mcp.WithString("state", mcp.Description("State whose trend is charted, or \""+domain.ShowAll+"\"")),
		mcp.WithOutputSchema[ApplyResponse](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("get_view",
		mcp.WithDescription("Get the map values, the table and the trend of the current inputs."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[domain.View](),
	), mcp.NewStructuredToolHandler(s.handleView))

	s.mcpServer.AddTool(mcp.NewTool("get_choices",
		mcp.WithDescription("List the states and the date bounds the inputs can be set to."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[domain.Choices](),
	), mcp.NewStructuredToolHandler(s.handleChoices))

	s.mcpServer.AddTool(mcp.NewTool("refresh_session",
		mcp.WithDescription("Refetch the data of a session, keeping its inputs."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	), s.handleRefresh)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the reactive dependency graph of a session for introspection."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("format", mcp.Description("json (default) or mermaid"), mcp.Enum("json", "mermaid")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("close_session",
		mcp.WithDescription("Close a session. Its inputs stay stored unless purge is set."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithBoolean("purge", mcp.Description("Also forget the stored inputs")),
	), s.handleClose)
}

func sessionID(args map[string]any) (string, error) {
	id, _ := args["session_id"].(string)
	if id == "" {
		return "", fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}
	return id, nil
}

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (SessionResponse, error) {
	requested, _ := args["session_id"].(string)
	id, err := s.engine.Start(ctx, requested)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("open failed: %w", err)
	}
	v, err := s.engine.View(ctx, id)
	if err != nil {
		return SessionResponse{ID: id}, fmt.Errorf("view failed: %w", err)
	}
	return SessionResponse{ID: id, View: v}, nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ApplyResponse, error) {
	id, err := sessionID(args)
	if err != nil {
		return ApplyResponse{}, err
	}
	inputs := make(map[string]any, len(args))
	for k, v := range args {
		if k != "session_id" {
			inputs[k] = v
		}
	}
	patch, err := config.DecodePatch(inputs)
	if err != nil {
		return ApplyResponse{}, err
	}

	diff, err := s.engine.Apply(ctx, id, patch)
	if err != nil {
		if diff == nil || !errors.Is(err, reactive.ErrEvaluation) {
			return ApplyResponse{}, fmt.Errorf("apply failed: %w", err)
		}
		s.logger.Warn("MCP apply_inputs: Render failed", "session_id", id, "err", err)
	}
	v, err := s.engine.View(ctx, id)
	if err != nil {
		return ApplyResponse{Diff: diff}, fmt.Errorf("inputs applied but the view failed: %w", err)
	}
	return ApplyResponse{Diff: diff, View: v}, nil
}

func (s *Server) handleView(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.View, error) {
	id, err := sessionID(args)
	if err != nil {
		return domain.View{}, err
	}
	return s.engine.View(ctx, id)
}

func (s *Server) handleChoices(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.Choices, error) {
	id, err := sessionID(args)
	if err != nil {
		return domain.Choices{}, err
	}
	return s.engine.Choices(ctx, id)
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := sessionID(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Refresh(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return mcp.NewToolResultText("refreshed " + id), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := sessionID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.engine.Inspect(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("inspect failed: %v", err)), nil
	}
	if format, _ := args["format"].(string); format == "mermaid" {
		return mcp.NewToolResultText(graph.GenerateMermaid(nodes, &graph.GraphOverlay{Dirty: true, Epochs: true})), nil
	}
	jsonBytes, _ := json.Marshal(nodes)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	id, err := sessionID(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if purge, _ := args["purge"].(bool); purge {
		err = s.engine.Delete(ctx, id)
	} else {
		err = s.engine.Close(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("close failed: %v", err)), nil
	}
	return mcp.NewToolResultText("closed " + id), nil
}

func (s *Server) registerResources() {
	// EXPOSE: covidash://sessions
	s.mcpServer.AddResource(mcp.NewResource("covidash://sessions", "Stored dashboard sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.engine.Sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "covidash://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
