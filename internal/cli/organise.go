package cli

import (
	"fmt"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/organiser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/src-d/go-billy.v4/osfs"
)

// NewOrganiseCmd creates the organise command
func NewOrganiseCmd() *cobra.Command {
	var dir, uploadDir, mode string

	cmd := &cobra.Command{
		Use:   "organise",
		Short: "Organise uploaded packages in a local directory",
		Long: `Moves the packages of the upload directory of a local repository to
their canonical location. Unlike process, an occupied destination is an
error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("dir is required"))
			}
			policy, err := layout.ForMode(mode, "")
			if err != nil {
				return models.NewError(models.ErrInvalidConfig, "", err)
			}

			backend := organiser.NewLocalBackend(osfs.New(dir), identity.RPMReader{})
			outcome, err := organiser.New(policy, backend, uploadDir).Organise(cmd.Context())
			if err != nil {
				return err
			}

			for _, p := range outcome.Moved {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			logrus.Infof("Organised %d packages, skipped %d", len(outcome.Moved), len(outcome.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Repository directory")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", layout.DefaultUploadDir, "Upload directory below the repository directory")
	cmd.Flags().StringVar(&mode, "mode", layout.ModeDistribution, "Repository mode (distribution, flat)")

	return cmd
}
