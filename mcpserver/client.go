package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SamuelRCrider/csp-risk/core"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolCaller is the part of the MCP client used by Client
type toolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Client calls the tools of a remote csp-risk MCP server with retries
type Client struct {
	caller toolCaller
	cfg    ClientConfig
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewClient starts the server executable over stdio and initializes the session.
// An empty command falls back to DiscoverServers.
func NewClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.Command == "" {
		servers, err := DiscoverServers()
		if err != nil {
			return nil, err
		}
		cfg.Command = servers[0]
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	stdio, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP stdio client: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    DefaultServerName + "-client",
		Version: "0.1.0",
	}
	if _, err := stdio.Initialize(ctx, initRequest); err != nil {
		stdio.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	logger.Info("connected to csp-risk MCP server", "command", cfg.Command)
	return newClient(stdio, cfg, logger), nil
}

func newClient(caller toolCaller, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		caller: caller,
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Close terminates the server process
func (c *Client) Close() error {
	return c.caller.Close()
}

// Call invokes a tool and decodes its JSON result into out. Transport failures
// are retried with exponential backoff; tool errors are returned as engine
// errors carrying the remote error kind.
func (c *Client) Call(ctx context.Context, tool string, args map[string]interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying tool call",
				"tool", tool,
				"attempt", attempt,
				"backoff_ms", backoff.Milliseconds(),
				"previous_error", err)
			c.sleep(backoff)
		}

		result, err = c.caller.CallTool(ctx, request)
		if err == nil {
			break
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return newToolError(tool, ErrorCategoryTimeout, fmt.Errorf("tool call timeout or canceled: %w", err), "", nil)
		}
	}
	if err != nil {
		return newToolError(tool, categorizeError(err),
			fmt.Errorf("tool call failed after %d attempts: %w", c.cfg.RetryCount+1, err), "", nil)
	}

	text := resultText(result)
	if result.IsError {
		return remoteError(tool, text)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", tool, err)
	}
	return nil
}

func resultText(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

// remoteError rebuilds an engine error from an error result body
func remoteError(tool, text string) error {
	var body toolErrorBody
	if err := json.Unmarshal([]byte(text), &body); err != nil || body.Error == "" {
		return newToolError(tool, ErrorCategoryRemote, errors.New(text), "", nil)
	}

	var cause error = errors.New(body.Error)
	if body.Kind != "" {
		cause = &core.RiskError{Op: tool, Kind: core.ErrorKind(body.Kind), Err: cause}
	}
	return newToolError(tool, ErrorCategory(body.Category), cause, body.RequestID, nil)
}

// AssessDataset runs assess_dataset remotely
func (c *Client) AssessDataset(ctx context.Context, input *core.DatasetInput) (*core.RiskAssessmentResult, error) {
	dataset, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var result core.RiskAssessmentResult
	if err := c.Call(ctx, ToolAssessDataset, map[string]interface{}{"dataset": string(dataset)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssessTransferRisk runs assess_transfer_risk remotely
func (c *Client) AssessTransferRisk(ctx context.Context, source string, destinations []string) (core.GeographicRiskAssessment, error) {
	var result core.GeographicRiskAssessment
	err := c.Call(ctx, ToolAssessTransferRisk, map[string]interface{}{
		"source":       source,
		"destinations": strings.Join(destinations, ","),
	}, &result)
	return result, err
}

// ListCustomPatterns runs list_custom_patterns remotely
func (c *Client) ListCustomPatterns(ctx context.Context) ([]core.CustomPattern, error) {
	var patterns []core.CustomPattern
	err := c.Call(ctx, ToolListCustomPatterns, nil, &patterns)
	return patterns, err
}
