package cli

import (
	"fmt"
	"os"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/spf13/cobra"
)

// NewClassifyCmd creates the classify command
func NewClassifyCmd() *cobra.Command {
	var root, mode string

	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Print the canonical location of RPM files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := layout.ForMode(mode, root)
			if err != nil {
				return models.NewError(models.ErrInvalidConfig, "", err)
			}
			return classify(cmd, policy, identity.RPMReader{}, args)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Key prefix of the repository")
	cmd.Flags().StringVar(&mode, "mode", layout.ModeDistribution, "Repository mode (distribution, flat)")

	return cmd
}

func classify(cmd *cobra.Command, policy layout.PathPolicy, reader identity.Reader, files []string) error {
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return models.NewError(models.ErrFileOp, file, err)
		}
		id, err := reader.Read(f)
		f.Close()
		if err != nil {
			return models.NewError(models.ErrPackageParse, file, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", file, policy.Path(id))
	}
	return nil
}
