package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
	"github.com/hugo-lorenzo-mato/scorecard/internal/rubricfile"
)

var importCmd = &cobra.Command{
	Use:   "import <rubric.yaml>",
	Short: "Create a template from a YAML rubric file",
	Long: `Create a draft template with its groups and criteria from a rubric
file, optionally publishing it as version 1.

Examples:
  scorecard import rubrics/sales.yaml --org acme
  scorecard import rubrics/sales.yaml --org acme --publish --default`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	importCaller  callerFlags
	importPublish bool
	importDefault bool
	importSummary string
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCaller.register(importCmd, core.RoleAdmin)
	importCmd.Flags().BoolVar(&importPublish, "publish", false, "Publish the template after import")
	importCmd.Flags().BoolVar(&importDefault, "default", false, "Make the published template the organization default")
	importCmd.Flags().StringVar(&importSummary, "summary", "", "Change summary for the published version")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importDefault && !importPublish {
		return fmt.Errorf("--default requires --publish")
	}
	caller, err := importCaller.caller()
	if err != nil {
		return err
	}
	rb, err := rubricfile.ParseFile(args[0])
	if err != nil {
		return err
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

	res, err := rubricfile.Import(ctx, a.service, caller, rb, rubricfile.Options{
		Publish:       importPublish,
		SetDefault:    importDefault,
		ChangeSummary: importSummary,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	t := res.Detail.Template
	fmt.Fprintf(out, "Imported %q as %s (%d groups, %d criteria)\n",
		t.Name, t.ID, len(res.Detail.Groups), len(res.Detail.Criteria))
	if res.Published != nil {
		fmt.Fprintf(out, "Published version %d", res.Published.Version.VersionNumber)
		if t.IsDefault {
			fmt.Fprint(out, " (organization default)")
		}
		fmt.Fprintln(out)
	}
	return nil
}
