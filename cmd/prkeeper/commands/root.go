// Package commands implements the prkeeper CLI.
package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dryRun  bool
	verbose bool
	workDir string
)

// rootCmd is the base command for prkeeper.
var rootCmd = &cobra.Command{
	Use:   "prkeeper",
	Short: "Keep pull request labels and milestones in sync with policy",
	Long: `prkeeper computes the labels a pull request should carry from its
changed files, branch name, title, and commit history, reconciles them
against the labels actually present, and assigns a milestone derived from
the PR's base branch.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML policy file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Compute and log the plan without applying it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "Git checkout directory (defaults to the current directory)")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
