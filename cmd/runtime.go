package cmd

import (
	"context"
	"fmt"

	"merge-engine/core/config"
	"merge-engine/core/database"
	"merge-engine/core/logger"
	"merge-engine/core/storage"
	"merge-engine/feature/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// loadRuntime loads the configuration and the logger for a command.
func loadRuntime(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logg, nil
}

// openRepository connects to the repository database and, when enabled, the blob store.
func openRepository(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*repository.SQLRepository, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	opts := []repository.Option{repository.WithLogger(logg)}
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		blobs := storage.NewBlobs(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err := blobs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, repository.WithBlobs(blobs))
	}

	logg.Debug("Opened repository",
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("blobs", cfg.Storage.Enabled),
	)
	return repository.New(db, opts...), nil
}
