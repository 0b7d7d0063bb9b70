package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("csp-risk.mcpserver")

// clientIDArg is accepted by every tool and keys the rate limiter
const clientIDArg = "client_id"

// toolFunc computes the JSON-serializable result of one tool call
type toolFunc func(ctx context.Context, args arguments) (interface{}, error)

type registeredTool struct {
	tool mcp.Tool
	fn   toolFunc
}

// Server exposes engine operations as MCP tools
type Server struct {
	engine *core.Engine
	cfg    ServerConfig
	mcp    *server.MCPServer
	tools  map[string]registeredTool

	limiter   *RateLimiter
	validator *InputValidator
	requests  *RequestLogger
	reporter  *ErrorReporter
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRequestIDGenerator sets the request id generator
func WithRequestIDGenerator(newID func() string) Option {
	return func(s *Server) { s.newID = newID }
}

// WithClock sets the clock used for rate limiting and durations
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer registers every engine tool on a new MCP server. A configured
// pattern pack is imported before the server is returned.
func NewServer(engine *core.Engine, cfg *ServerConfig, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		engine: engine,
		cfg:    *cfg,
		tools:  make(map[string]registeredTool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.limiter = NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst)
	s.validator = NewInputValidator(cfg.MaxInputBytes)
	s.requests = NewRequestLogger(s.logger, cfg.AuditLevel)
	s.reporter = NewErrorReporter(s.logger)

	s.mcp = server.NewMCPServer(cfg.Name, cfg.Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()

	if cfg.PatternPackPath != "" {
		if _, err := s.ReloadPatternPack(); err != nil {
			return nil, err
		}
	}

	s.logger.Info("MCP server initialized",
		"name", cfg.Name,
		"version", cfg.Version,
		"tools", len(s.tools),
		"rate_limit", cfg.RequestsPerSecond,
		"audit_level", cfg.AuditLevel)
	return s, nil
}

// addTool registers a tool with the MCP server and the local table
func (s *Server) addTool(tool mcp.Tool, fn toolFunc) {
	if tool.InputSchema.Properties == nil {
		tool.InputSchema.Properties = make(map[string]interface{})
	}
	tool.InputSchema.Properties[clientIDArg] = map[string]interface{}{
		"type":        "string",
		"description": "Caller identity used for rate limiting",
	}
	s.tools[tool.Name] = registeredTool{tool: tool, fn: fn}
	s.mcp.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.CallTool(ctx, request.Params.Name, request.Params.Arguments), nil
	})
}

// ToolNames lists the registered tools
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// CallTool runs one tool call through rate limiting, validation, tracing and
// request logging. Failures are returned as error results, never as errors.
func (s *Server) CallTool(ctx context.Context, name string, rawArgs map[string]interface{}) *mcp.CallToolResult {
	requestID := s.newID()
	start := s.now()

	ctx, span := tracer.Start(ctx, "mcpserver."+name,
		trace.WithAttributes(
			attribute.String("tool.name", name),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	fail := func(category ErrorCategory, err error, details map[string]interface{}) *mcp.CallToolResult {
		toolErr := newToolError(name, category, err, requestID, details)
		s.reporter.ReportError(toolErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errorResult(toolErr)
	}

	registered, ok := s.tools[name]
	if !ok {
		return fail(ErrorCategoryNotFound, &core.RiskError{Op: name, Kind: core.KindNotFound, Err: fmt.Errorf("unknown tool %q", name)}, nil)
	}

	args := arguments{tool: name, raw: rawArgs}
	clientID, _ := args.String(clientIDArg)
	span.SetAttributes(attribute.String("client.id", clientID))

	s.requests.LogRequest(requestID, name, map[string]interface{}{
		"client_id": clientID,
		"arguments": len(rawArgs),
	}, AuditLevelStandard)
	s.requests.LogRequest(requestID, name, rawArgs, AuditLevelVerbose)

	if allowed, retryAfter := s.limiter.AllowAt(clientID, start); !allowed {
		return fail(ErrorCategoryRateLimit,
			fmt.Errorf("rate limit exceeded for client %q", clientID),
			map[string]interface{}{"retry_after_ms": retryAfter.Milliseconds()})
	}

	if err := s.validator.ValidateArguments(registered.tool, rawArgs); err != nil {
		var tooLarge *inputTooLargeError
		if errors.As(err, &tooLarge) {
			return fail(ErrorCategoryInputTooLarge, err, map[string]interface{}{"limit_bytes": tooLarge.limit})
		}
		return fail(ErrorCategoryValidation, &core.RiskError{Op: name, Kind: core.KindInvalidInput, Err: err}, nil)
	}

	value, err := registered.fn(ctx, args)
	if err != nil {
		return fail(categorizeError(err), err, nil)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fail(ErrorCategorySystem, fmt.Errorf("failed to encode %s result: %w", name, err), nil)
	}

	duration := s.now().Sub(start)
	s.requests.LogResponse(requestID, name, map[string]interface{}{
		"result_bytes": len(payload),
	}, duration, AuditLevelStandard)
	span.SetStatus(codes.Ok, "")
	return mcp.NewToolResultText(string(payload))
}

// toolErrorBody is the JSON text of an error result
type toolErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Category  string `json:"category"`
	RequestID string `json:"request_id"`
}

func errorResult(toolErr *ToolError) *mcp.CallToolResult {
	body := toolErrorBody{
		Error:     toolErr.OriginalErr.Error(),
		Kind:      string(core.KindOf(toolErr.OriginalErr)),
		Category:  string(toolErr.Category),
		RequestID: toolErr.RequestID,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(toolErr.Error())
	}
	return mcp.NewToolResultError(string(payload))
}

// ReloadPatternPack imports the configured pattern pack into the engine
func (s *Server) ReloadPatternPack() ([]string, error) {
	pack, err := core.LoadPatternPack(s.cfg.PatternPackPath)
	if err != nil {
		return nil, err
	}
	ids, err := s.engine.ImportPatternPack(pack)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pattern pack loaded",
		"path", s.cfg.PatternPackPath,
		"pack", pack.Metadata.Name,
		"version", pack.Metadata.Version,
		"patterns", len(ids))
	return ids, nil
}

// ServeStdio serves tools over stdin/stdout until the process is signalled.
// When configured, the pattern pack is watched and reloaded while serving.
func (s *Server) ServeStdio(ctx context.Context) error {
	if s.cfg.WatchPatternPack {
		watcher, err := NewPatternPackWatcher(s.cfg.PatternPackPath, s.ReloadPatternPack, s.logger)
		if err != nil {
			return err
		}
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go watcher.Run(watchCtx)
	}

	s.logger.Info("serving MCP over stdio", "name", s.cfg.Name)
	return server.ServeStdio(s.mcp)
}
