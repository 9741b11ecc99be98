package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// ListTemplatesTool handles the list_templates MCP tool.
type ListTemplatesTool struct {
	svc    *templates.Service
	caller core.Caller
}

// NewListTemplatesTool creates a ListTemplatesTool.
func NewListTemplatesTool(svc *templates.Service, caller core.Caller) *ListTemplatesTool {
	return &ListTemplatesTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for list_templates.
func (t *ListTemplatesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_templates",
		mcp.WithDescription("List the organization's grading templates, newest first."),
		mcp.WithString("status",
			mcp.Description("Filter by status: draft, active or archived"),
			mcp.Enum(string(core.TemplateStatusDraft), string(core.TemplateStatusActive), string(core.TemplateStatusArchived)),
		),
		mcp.WithString("use_case",
			mcp.Description("Filter by use case, e.g. sales or support"),
		),
		mcp.WithString("query",
			mcp.Description("Fuzzy match on template name"),
		),
	)
}

// Handle processes the list_templates tool call.
func (t *ListTemplatesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := templates.ListFilter{
		Status:  core.TemplateStatus(req.GetString("status", "")),
		UseCase: req.GetString("use_case", ""),
		Query:   req.GetString("query", ""),
	}
	list, err := t.svc.ListTemplates(ctx, t.caller, filter)
	if err != nil {
		return toolError("listing templates", err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No templates found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d templates:\n\n", len(list))
	for _, tpl := range list {
		def := ""
		if tpl.IsDefault {
			def = " (default)"
		}
		fmt.Fprintf(&b, "- **%s**%s `%s`\n", tpl.Name, def, tpl.ID)
		fmt.Fprintf(&b, "  status: %s, method: %s, version: %d", tpl.Status, tpl.ScoringMethod, tpl.Version)
		if tpl.UseCase != "" {
			fmt.Fprintf(&b, ", use case: %s", tpl.UseCase)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ValidateTool handles the validate_template MCP tool.
type ValidateTool struct {
	svc    *templates.Service
	caller core.Caller
}

// NewValidateTool creates a ValidateTool.
func NewValidateTool(svc *templates.Service, caller core.Caller) *ValidateTool {
	return &ValidateTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for validate_template.
func (t *ValidateTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_template",
		mcp.WithDescription("Check whether a template's current criteria can be published. Nothing is changed."),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Template ID"),
		),
	)
}

// Handle processes the validate_template tool call.
func (t *ValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("template_id", "")
	if id == "" {
		return mcp.NewToolResultError("'template_id' is required"), nil
	}
	res, err := t.svc.ValidateTemplate(ctx, t.caller, id)
	if err != nil {
		return toolError("validating template", err), nil
	}

	var b strings.Builder
	if res.Valid {
		fmt.Fprintf(&b, "Template is publishable. Total weight: %g\n", res.TotalWeight)
		return mcp.NewToolResultText(b.String()), nil
	}
	fmt.Fprintf(&b, "Template is NOT publishable. Total weight: %g\n\n", res.TotalWeight)
	for _, issue := range res.Errors {
		fmt.Fprintf(&b, "- `%s` %s: %s\n", issue.Path, issue.Code, issue.Message)
	}
	return mcp.NewToolResultText(b.String()), nil
}
