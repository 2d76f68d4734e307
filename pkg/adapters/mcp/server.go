// Package mcp exposes the agent as a Model Context Protocol server so other
// agent hosts can drive it as a tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dugoutlabs/dugout/internal/version"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
)

// Agent is the surface the MCP layer needs from the assistant.
type Agent interface {
	Ask(ctx context.Context, sessionID, query string) (*engine.Result, error)
	Resume(ctx context.Context, sessionID string, value any) (*engine.Result, error)
	Sessions(ctx context.Context) ([]string, error)
}

// AskResponse is the structured result of the ask and resume tools.
type AskResponse struct {
	SessionID string            `json:"session_id" jsonschema_description:"Session the result belongs to"`
	Terminal  bool              `json:"terminal" jsonschema_description:"True when the answer is final"`
	Answer    string            `json:"answer,omitempty" jsonschema_description:"The assistant's answer when terminal"`
	Interrupt *domain.Interrupt `json:"interrupt,omitempty" jsonschema_description:"Pending question when not terminal; answer it with the resume tool"`
}

// Server wraps the agent and exposes it as an MCP server.
type Server struct {
	agent     Agent
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server over the agent.
func NewServer(agent Agent) *Server {
	s := &Server{
		agent:     agent,
		mcpServer: server.NewMCPServer("dugout-mcp", version.Version),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	askTool := mcp.NewTool("ask",
		mcp.WithDescription("Ask the baseball assistant a question within a session. "+
			"A non-terminal result carries an interrupt that must be answered with the resume tool."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier; reuse it for follow-up questions")),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to ask")),
		mcp.WithOutputSchema[AskResponse](),
	)
	s.mcpServer.AddTool(askTool, mcp.NewStructuredToolHandler(s.handleAsk))

	resumeTool := mcp.NewTool("resume",
		mcp.WithDescription("Answer a session's pending interrupt: a player id for disambiguation, "+
			"true or false for approvals."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session with the pending interrupt")),
		mcp.WithString("value", mcp.Required(), mcp.Description("The resume value as JSON (e.g. 12345, true, or {\"player_id\": 12345})")),
		mcp.WithOutputSchema[AskResponse](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List known session identifiers."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.agent.Sessions(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list sessions failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (AskResponse, error) {
	sessionID, _ := args["session_id"].(string)
	query, _ := args["query"].(string)
	if sessionID == "" || query == "" {
		return AskResponse{}, fmt.Errorf("session_id and query are required")
	}

	res, err := s.agent.Ask(ctx, sessionID, query)
	if err != nil {
		return AskResponse{}, fmt.Errorf("ask failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (AskResponse, error) {
	sessionID, _ := args["session_id"].(string)
	raw, _ := args["value"].(string)
	if sessionID == "" || raw == "" {
		return AskResponse{}, fmt.Errorf("session_id and value are required")
	}

	// The value arrives as a JSON string; decode it so the paused step sees
	// the same shapes the library API accepts. Undecodable input is passed
	// through as the raw string.
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	res, err := s.agent.Resume(ctx, sessionID, value)
	if err != nil {
		return AskResponse{}, fmt.Errorf("resume failed: %w", err)
	}
	return toResponse(res), nil
}

func toResponse(res *engine.Result) AskResponse {
	return AskResponse{
		SessionID: res.SessionID,
		Terminal:  res.Terminal(),
		Answer:    res.Answer,
		Interrupt: res.Interrupt,
	}
}
