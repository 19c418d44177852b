// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the puzzle source as MCP tools so an assistant
// can read puzzle inputs and, when enabled, submit answers. It uses the
// mark3labs/mcp-go library to handle the protocol details.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/aocd/config"
	"github.com/isdmx/aocd/source"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	source    source.Source
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, src source.Source) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		source: src,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("mcp.transport", s.config.MCP.Transport),
		zap.Int("mcp.http_port", s.config.MCP.HTTPPort),
		zap.Bool("mcp.submit_enabled", s.config.MCP.SubmitEnabled),
		zap.String("site.base_url", s.config.Site.BaseURL),
	)

	s.mcpServer = server.NewMCPServer("aocd", "Advent of Code puzzle inputs and answers")

	s.registerGetPuzzleInputTool()
	s.registerSubmitAnswerTool()

	return s, nil
}

func puzzleProperties() map[string]any {
	return map[string]any{
		"year": map[string]any{
			"type":        "integer",
			"description": "Event year, e.g. 2021",
		},
		"day": map[string]any{
			"type":        "integer",
			"description": "Puzzle day, 1 to 25",
			"minimum":     1,
			"maximum":     25,
		},
	}
}

func (s *MCPServer) registerGetPuzzleInputTool() {
	tool := mcp.Tool{
		Name:        "get_puzzle_input",
		Description: "Get the puzzle input for a day",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: puzzleProperties(),
			Required:   []string{"year", "day"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleGetPuzzleInput)
}

func (s *MCPServer) registerSubmitAnswerTool() {
	properties := puzzleProperties()
	properties["part"] = map[string]any{
		"type":        "integer",
		"description": "Puzzle part",
		"enum":        []int{1, 2},
	}
	properties["answer"] = map[string]any{
		"type":        "string",
		"description": "Answer to submit; numeric answers are compared as numbers",
	}

	tool := mcp.Tool{
		Name:        "submit_answer",
		Description: "Submit an answer for a puzzle part and report whether it is correct",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   []string{"year", "day", "part", "answer"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleSubmitAnswer)
}

func (s *MCPServer) handleGetPuzzleInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := request.RequireInt("year")
	if err != nil {
		return nil, fmt.Errorf("year parameter is required: %w", err)
	}
	day, err := request.RequireInt("day")
	if err != nil {
		return nil, fmt.Errorf("day parameter is required: %w", err)
	}

	s.logger.Info("puzzle input requested", zap.Int("year", year), zap.Int("day", day))

	input, err := s.source.Input(ctx, year, day)
	if err != nil {
		s.logger.Error("failed to get puzzle input", zap.Error(err), zap.Int("year", year), zap.Int("day", day))
		return errorResult(fmt.Sprintf("Failed to get puzzle input: %v", err)), nil
	}

	return textResult(input), nil
}

func (s *MCPServer) handleSubmitAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.config.MCP.SubmitEnabled {
		return errorResult("Submitting answers is disabled; set mcp.submit_enabled to allow it"), nil
	}

	year, err := request.RequireInt("year")
	if err != nil {
		return nil, fmt.Errorf("year parameter is required: %w", err)
	}
	day, err := request.RequireInt("day")
	if err != nil {
		return nil, fmt.Errorf("day parameter is required: %w", err)
	}
	part, err := request.RequireInt("part")
	if err != nil {
		return nil, fmt.Errorf("part parameter is required: %w", err)
	}
	raw, err := request.RequireString("answer")
	if err != nil {
		return nil, fmt.Errorf("answer parameter is required: %w", err)
	}

	answer := source.ParseAnswer(raw)
	if answer.IsZero() {
		return errorResult("Answer must not be empty"), nil
	}

	s.logger.Info("answer submission requested",
		zap.Int("year", year), zap.Int("day", day), zap.Int("part", part))

	correct, err := s.source.Submit(ctx, year, day, part, answer)
	if err != nil {
		s.logger.Error("answer submission failed", zap.Error(err),
			zap.Int("year", year), zap.Int("day", day), zap.Int("part", part))
		return errorResult(fmt.Sprintf("Submission failed: %v", err)), nil
	}

	return textResult(fmt.Sprintf(`{"correct":%t}`, correct)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.MCP.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// Serve starts the server on the configured transport
func (s *MCPServer) Serve() error {
	if s.config.MCP.Transport == "http" {
		return s.ServeHTTP()
	}
	return s.ServeStdio()
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
