package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/result"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is the part of lattice.Client exposed as tools.
type Client interface {
	RunPolicy(ctx context.Context, policy domain.Policy, query string, params domain.Params, delay time.Duration) (*result.Cursor, error)
	Release(ctx context.Context, id domain.ResultID) error
	Pending() []domain.ResultID
}

// RunQueryArgs are the arguments of the run_query tool.
type RunQueryArgs struct {
	Query   string `json:"query"`
	Params  string `json:"params,omitempty"`
	Policy  string `json:"policy,omitempty"`
	DelayMS int64  `json:"delay_ms,omitempty"`
}

// QueryResult is the structured output of run_query.
type QueryResult struct {
	ResultID domain.ResultID  `json:"result_id,omitempty" jsonschema_description:"Set for manual results; pass it to release_result"`
	Policy   domain.Policy    `json:"policy" jsonschema_description:"Disposal policy applied to the session"`
	Records  []map[string]any `json:"records" jsonschema_description:"Rows returned by the query"`
}

// PendingResult is the structured output of list_results.
type PendingResult struct {
	Pending []domain.ResultID `json:"pending" jsonschema_description:"Manual results still holding a session"`
}

// Server exposes a Client as an MCP server.
type Server struct {
	client    Client
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(client Client, version string, opts ...Option) *Server {
	s := &Server{
		client:    client,
		mcpServer: server.NewMCPServer("lattice-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	runTool := mcp.NewTool("run_query",
		mcp.WithDescription("Run a graph query. Non-manual results are read in full; a manual result keeps its session open until release_result."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Cypher query text")),
		mcp.WithString("params", mcp.Description("JSON object of query parameters (optional)")),
		mcp.WithString("policy", mcp.Description("immediate, close_on_exhaust (default), deferred or manual")),
		mcp.WithNumber("delay_ms", mcp.Description("Close delay for the deferred policy, in milliseconds")),
		mcp.WithOutputSchema[QueryResult](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunQuery))

	s.mcpServer.AddTool(mcp.NewTool("release_result",
		mcp.WithDescription("Close the session held by a manual result."),
		mcp.WithString("result_id", mcp.Required(), mcp.Description("ID returned by run_query")),
	), s.handleRelease)

	s.mcpServer.AddTool(mcp.NewTool("list_results",
		mcp.WithDescription("List manual results that still hold a session."),
		mcp.WithOutputSchema[PendingResult](),
	), mcp.NewStructuredToolHandler(s.handleList))
}

func (s *Server) handleRunQuery(ctx context.Context, _ mcp.CallToolRequest, args RunQueryArgs) (QueryResult, error) {
	if args.Query == "" {
		return QueryResult{}, errors.New("query is required")
	}
	policy, err := domain.ParsePolicy(args.Policy)
	if err != nil {
		return QueryResult{}, err
	}

	var params domain.Params
	if args.Params != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(args.Params), &raw); err != nil {
			return QueryResult{}, fmt.Errorf("params must be a JSON object: %w", err)
		}
		if params, err = domain.ParamsFromMap(raw); err != nil {
			return QueryResult{}, err
		}
	}

	cur, err := s.client.RunPolicy(ctx, policy, args.Query, params, time.Duration(args.DelayMS)*time.Millisecond)
	if err != nil {
		s.logger.Error("run_query failed", "policy", policy, "err", err)
		return QueryResult{}, err
	}
	records, err := cur.List(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	out := QueryResult{Policy: policy, Records: make([]map[string]any, len(records))}
	for i, rec := range records {
		out.Records[i] = rec.AsMap()
	}
	if policy == domain.PolicyManual {
		out.ResultID = cur.ID()
	}
	return out, nil
}

func (s *Server) handleRelease(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("result_id", "")
	if id == "" {
		return mcp.NewToolResultError("result_id is required"), nil
	}
	if err := s.client.Release(ctx, domain.ResultID(id)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("release failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("released %s", id)), nil
}

func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest, _ struct{}) (PendingResult, error) {
	pending := s.client.Pending()
	if pending == nil {
		pending = []domain.ResultID{}
	}
	return PendingResult{Pending: pending}, nil
}
