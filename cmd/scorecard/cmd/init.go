package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/scorecard/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write a commented default configuration to ./scorecard.yaml, or to
the given path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "scorecard.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteDefault(path, initForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
