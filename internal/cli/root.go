package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rpmsync",
		Short: "Keep an RPM repository in object storage organised and indexed",
		Long: `Rpmsync moves uploaded RPM packages to their canonical location and
keeps the repodata of every directory consistent with the packages it holds.

Packages are classified by the distribution tag of their release, so
foo-1.0-1.fc34.x86_64.rpm is stored as fc/34/foo-1.0-1.fc34.x86_64.rpm.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")

	// Add subcommands
	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewOrganiseCmd())
	rootCmd.AddCommand(NewClassifyCmd())

	return rootCmd
}

// applyLogLevel applies the configured level unless --verbose was given
func applyLogLevel(cmd *cobra.Command, level string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	return nil
}
