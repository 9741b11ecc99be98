// Package mcptools exposes read-only template queries and score evaluation
// as MCP tools, so assistants can look up rubrics and score against them.
//
// Every tool follows the same shape:
//   - a struct holding the template service and the caller it acts as
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes a call and returns a text result
//
// Domain failures come back as tool errors, never as protocol errors.
package mcptools

import (
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// NewServer registers every tool on a new MCP server acting as caller.
func NewServer(svc *templates.Service, caller core.Caller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"scorecard",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	list := NewListTemplatesTool(svc, caller)
	s.AddTool(list.Definition(), list.Handle)

	published := NewPublishedVersionTool(svc, caller)
	s.AddTool(published.Definition(), published.Handle)

	validate := NewValidateTool(svc, caller)
	s.AddTool(validate.Definition(), validate.Handle)

	evaluate := NewEvaluateTool(svc, caller)
	s.AddTool(evaluate.Definition(), evaluate.Handle)

	return s
}

const instructions = "Scorecard holds the grading templates of one organization. " +
	"Use list_templates to find a template, get_published_version to read the frozen criteria " +
	"a scorer should use, and evaluate_scores to compute a result against a published version. " +
	"validate_template reports why a draft cannot be published yet."

// toolError renders err for the caller. Domain errors keep their code.
func toolError(action string, err error) *mcp.CallToolResult {
	var derr *core.DomainError
	if errors.As(err, &derr) {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed [%s]: %s", action, derr.Code, derr.Message))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
