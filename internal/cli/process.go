package cli

import (
	"context"
	"fmt"

	"github.com/ralt/rpmsync/internal/config"
	"github.com/ralt/rpmsync/internal/fragment"
	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/repository"
	"github.com/ralt/rpmsync/internal/signer"
	"github.com/ralt/rpmsync/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewProcessCmd creates the process command
func NewProcessCmd() *cobra.Command {
	var overrides config.Config

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Organise uploads and refresh the repository metadata",
		Long: `Moves every package of the upload directory to its canonical location,
regenerates the metadata of every package that changed, then merges the
metadata of every directory and removes obsolete index files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			applyOverrides(cfg, &overrides)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := applyLogLevel(cmd, cfg.LogLevel); err != nil {
				return err
			}

			logrus.Info("Starting repository synchronisation...")
			shown := *cfg
			if shown.Signing.GPGPassphrase != "" {
				shown.Signing.GPGPassphrase = "***"
			}
			logrus.Debugf("Configuration: %+v", shown)

			_, err = runProcess(cmd.Context(), cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&overrides.Mode, "mode", "", "Repository mode (distribution, flat)")
	cmd.Flags().StringVar(&overrides.Root, "root", "", "Key prefix of the repository")
	cmd.Flags().StringVar(&overrides.UploadDir, "upload-dir", "", "Upload directory below the root")
	cmd.Flags().StringVar(&overrides.WorkDir, "work-dir", "", "Directory for temporary files")
	cmd.Flags().StringVar(&overrides.Store.Type, "store", "", "Store type (fs, memory)")
	cmd.Flags().StringVarP(&overrides.Store.Path, "store-path", "s", "", "Directory of the fs store")
	cmd.Flags().StringVar(&overrides.Tool.Type, "tool", "", "Metadata tool (createrepo, native)")
	cmd.Flags().StringVarP(&overrides.Signing.GPGKey, "gpg-key", "k", "", "Path to GPG private key")
	cmd.Flags().StringVarP(&overrides.Signing.GPGPassphrase, "gpg-passphrase", "p", "", "GPG key passphrase")

	return cmd
}

// applyOverrides copies the flags that were set over the configuration
func applyOverrides(cfg, o *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Mode, o.Mode)
	set(&cfg.Root, o.Root)
	set(&cfg.UploadDir, o.UploadDir)
	set(&cfg.WorkDir, o.WorkDir)
	set(&cfg.Store.Type, o.Store.Type)
	set(&cfg.Store.Path, o.Store.Path)
	set(&cfg.Tool.Type, o.Tool.Type)
	set(&cfg.Signing.GPGKey, o.Signing.GPGKey)
	set(&cfg.Signing.GPGPassphrase, o.Signing.GPGPassphrase)
}

func runProcess(ctx context.Context, cfg *config.Config) (*repository.Report, error) {
	repo, err := newRepository(cfg)
	if err != nil {
		return nil, err
	}

	report, err := repo.Process(ctx)
	if err != nil {
		return report, err
	}

	logrus.Info("Repository synchronisation completed successfully!")
	return report, nil
}

func newRepository(cfg *config.Config) (*repository.Repository, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := layout.ForMode(cfg.Mode, cfg.Root)
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, "", err)
	}

	var gpgSigner signer.Signer
	if cfg.Signing.GPGKey != "" {
		gpgSigner, err = signer.NewGPGSigner(cfg.Signing.GPGKey, cfg.Signing.GPGPassphrase)
		if err != nil {
			return nil, models.NewError(models.ErrInvalidConfig, cfg.Signing.GPGKey,
				fmt.Errorf("failed to initialize GPG signer: %w", err))
		}
		logrus.Info("GPG signer initialized")
	}

	tool, err := fragment.New(fragment.Options{
		Type:        cfg.Tool.Type,
		Createrepo:  cfg.Tool.Createrepo,
		Mergerepo:   cfg.Tool.Mergerepo,
		Timeout:     cfg.Tool.Timeout,
		Compression: cfg.Tool.CompressType,
		Signer:      gpgSigner,
	})
	if err != nil {
		return nil, models.NewError(models.ErrInvalidConfig, "", err)
	}

	return repository.New(store, policy, tool, repository.Options{
		Root:      cfg.Root,
		UploadDir: cfg.UploadDir,
		WorkDir:   cfg.WorkDir,
	}), nil
}

func newStore(cfg *config.Config) (storage.Store, error) {
	var store storage.Store
	switch cfg.Store.Type {
	case config.StoreFS:
		store = storage.NewFSStore(cfg.Store.Path)
	case config.StoreMemory:
		logrus.Warn("Using an in-memory store, nothing will be persisted")
		store = storage.NewMemory()
	default:
		return nil, models.NewError(models.ErrInvalidConfig, "", fmt.Errorf("invalid store type: %s", cfg.Store.Type))
	}

	if cfg.Store.BreakerThreshold < 0 {
		return store, nil
	}
	return storage.NewResilient(store,
		storage.WithMaxRetries(uint64(cfg.Store.Retries)),
		storage.WithBreakerThreshold(int64(cfg.Store.BreakerThreshold)),
	), nil
}
