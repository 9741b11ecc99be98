package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
	"github.com/hugo-lorenzo-mato/scorecard/internal/service/templates"
)

// PublishedVersionTool handles the get_published_version MCP tool.
type PublishedVersionTool struct {
	svc    *templates.Service
	caller core.Caller
}

// NewPublishedVersionTool creates a PublishedVersionTool.
func NewPublishedVersionTool(svc *templates.Service, caller core.Caller) *PublishedVersionTool {
	return &PublishedVersionTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for get_published_version.
func (t *PublishedVersionTool) Definition() mcp.Tool {
	return mcp.NewTool("get_published_version",
		mcp.WithDescription(
			"Read the frozen criteria of a published template version. "+
				"Criterion IDs listed here are the ones evaluate_scores expects.",
		),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Template ID"),
		),
		mcp.WithNumber("version",
			mcp.Description("Version number (default: latest)"),
		),
	)
}

// Handle processes the get_published_version tool call.
func (t *PublishedVersionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("template_id", "")
	if id == "" {
		return mcp.NewToolResultError("'template_id' is required"), nil
	}

	var (
		v   *core.TemplateVersion
		err error
	)
	if n := intArg(req, "version", 0); n > 0 {
		v, err = t.svc.GetVersion(ctx, t.caller, id, n)
	} else {
		v, err = t.svc.LatestVersion(ctx, t.caller, id)
	}
	if err != nil {
		return toolError("reading version", err), nil
	}
	snap, err := core.DecodeSnapshot(v.Snapshot)
	if err != nil {
		return toolError("reading version", err), nil
	}

	groups := make(map[string]string, len(snap.Groups))
	for _, g := range snap.Groups {
		groups[g.ID] = g.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s v%d\n\n", snap.Template.Name, v.VersionNumber)
	fmt.Fprintf(&b, "- **Method**: %s\n", snap.Template.ScoringMethod)
	fmt.Fprintf(&b, "- **Pass threshold**: %g%%\n", snap.Template.PassThreshold)
	if v.ChangeSummary != "" {
		fmt.Fprintf(&b, "- **Change summary**: %s\n", v.ChangeSummary)
	}
	fmt.Fprintf(&b, "- **Published**: %s by %s\n\n", v.CreatedAt.Format("2006-01-02 15:04"), v.CreatedBy)

	b.WriteString("### Criteria\n\n")
	for _, c := range snap.Criteria {
		fmt.Fprintf(&b, "- `%s` **%s** (%s, weight %g, max %g)", c.ID, c.Name, c.Type, c.Weight, c.MaxScore)
		if c.GroupID != nil {
			fmt.Fprintf(&b, " in %s", groups[*c.GroupID])
		}
		if c.IsAutoFail && c.AutoFailThreshold != nil {
			fmt.Fprintf(&b, ", auto-fail below %g", *c.AutoFailThreshold)
		}
		b.WriteString("\n")
		if c.ScoringGuide != "" {
			fmt.Fprintf(&b, "  guide: %s\n", c.ScoringGuide)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// EvaluateTool handles the evaluate_scores MCP tool.
type EvaluateTool struct {
	svc    *templates.Service
	caller core.Caller
}

// NewEvaluateTool creates an EvaluateTool.
func NewEvaluateTool(svc *templates.Service, caller core.Caller) *EvaluateTool {
	return &EvaluateTool{svc: svc, caller: caller}
}

// Definition returns the MCP tool definition for evaluate_scores.
func (t *EvaluateTool) Definition() mcp.Tool {
	return mcp.NewTool("evaluate_scores",
		mcp.WithDescription("Compute the outcome of a score set against a published template version. Nothing is stored."),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("Template ID"),
		),
		mcp.WithNumber("version",
			mcp.Description("Version number (default: latest)"),
		),
		mcp.WithArray("scores",
			mcp.Required(),
			mcp.Description(`Scores as objects: {"criterion_id": "...", "score": 4, "not_applicable": false, "comment": "..."}`),
			mcp.Items(map[string]any{"type": "object"}),
		),
	)
}

// Handle processes the evaluate_scores tool call.
func (t *EvaluateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("template_id", "")
	if id == "" {
		return mcp.NewToolResultError("'template_id' is required"), nil
	}
	raw, ok := req.GetArguments()["scores"]
	if !ok {
		return mcp.NewToolResultError("'scores' is required"), nil
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid 'scores': %v", err)), nil
	}

	out, err := t.svc.Evaluate(ctx, t.caller, id, intArg(req, "version", 0), scores)
	if err != nil {
		return toolError("evaluating scores", err), nil
	}

	var b strings.Builder
	if out.Delegated {
		fmt.Fprintf(&b, "Custom formula template; evaluate externally with: %s\n\n", out.Formula)
	} else {
		verdict := "FAILED"
		if out.Passed {
			verdict = "PASSED"
		}
		fmt.Fprintf(&b, "**%s** with %.2f%% (%s)\n", verdict, out.Percentage, out.Method)
		if out.AutoFailed {
			b.WriteString("An auto-fail criterion fell below its threshold.\n")
		}
		b.WriteString("\n")
	}
	for _, c := range out.Criteria {
		switch {
		case c.NotApplicable:
			fmt.Fprintf(&b, "- %s: n/a\n", c.Name)
		case c.Skipped:
			fmt.Fprintf(&b, "- %s: skipped\n", c.Name)
		case c.Unscored:
			fmt.Fprintf(&b, "- %s: not scored (0/%g)\n", c.Name, c.MaxScore)
		default:
			fmt.Fprintf(&b, "- %s: %g/%g", c.Name, c.Score, c.MaxScore)
			if c.AutoFailed {
				b.WriteString(" (auto-fail)")
			}
			b.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// decodeScores accepts either the decoded array or a JSON string.
func decodeScores(raw any) ([]scoring.Score, error) {
	var data []byte
	if s, ok := raw.(string); ok {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return nil, err
		}
	}
	var scores []scoring.Score
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
