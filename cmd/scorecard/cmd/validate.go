package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/rubricfile"
	"github.com/hugo-lorenzo-mato/scorecard/internal/scoring"
)

var validateCmd = &cobra.Command{
	Use:   "validate [rubric.yaml]",
	Short: "Check whether a rubric file or stored template can be published",
	Long: `Run the publish checks without publishing.

With a file argument the rubric is checked offline. With --template the
stored template is checked against the configured database.

Examples:
  scorecard validate rubrics/sales.yaml
  scorecard validate --template 5f0c... --org acme`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var (
	validateTemplate  string
	validateOrg       string
	validateTolerance float64
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateTemplate, "template", "", "Stored template ID to validate")
	validateCmd.Flags().StringVar(&validateOrg, "org", "", "Organization owning --template")
	validateCmd.Flags().Float64Var(&validateTolerance, "tolerance", scoring.DefaultTolerance,
		"Allowed deviation of the weight total from 100 (file mode)")
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// errNotPublishable makes the command exit non-zero after the report.
var errNotPublishable = errors.New("not publishable")

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		title string
		res   scoring.Result
	)
	switch {
	case len(args) == 1 && validateTemplate != "":
		return fmt.Errorf("pass either a rubric file or --template, not both")
	case len(args) == 1:
		rb, err := rubricfile.ParseFile(args[0])
		if err != nil {
			return err
		}
		if res, err = rb.Preview(scoring.NewValidator(validateTolerance)); err != nil {
			return err
		}
		title = fmt.Sprintf("%s (%s)", rb.Name, args[0])
	case validateTemplate != "":
		if validateOrg == "" {
			return fmt.Errorf("--org is required with --template")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, os.Stderr, false)
		if err != nil {
			return err
		}
		defer a.Close()

		caller := core.Caller{UserID: "cli", OrganizationID: validateOrg, Role: core.RoleMember}
		if res, err = a.service.ValidateTemplate(ctx, caller, validateTemplate); err != nil {
			return err
		}
		title = validateTemplate
	default:
		return fmt.Errorf("pass a rubric file or --template")
	}

	renderReport(cmd.OutOrStdout(), title, res)
	if !res.Valid {
		return errNotPublishable
	}
	return nil
}

func renderReport(w io.Writer, title string, res scoring.Result) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if res.Valid {
		fmt.Fprintf(w, "%s total weight %g\n", okStyle.Render("✓ publishable"), res.TotalWeight)
		return
	}
	fmt.Fprintf(w, "%s total weight %g\n", errStyle.Render("✗ not publishable"), res.TotalWeight)
	for _, issue := range res.Errors {
		fmt.Fprintf(w, "  %s %s %s\n", pathStyle.Render(issue.Path), issue.Code, issue.Message)
	}
}
