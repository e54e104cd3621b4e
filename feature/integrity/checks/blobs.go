package checks

import (
	"context"
	"fmt"

	"merge-engine/core/storage"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// BlobSource lists the content sums a repository refers to.
type BlobSource interface {
	BlobSums(ctx context.Context) ([]string, error)
}

// BlobReport compares referenced content against the objects in storage.
type BlobReport struct {
	Bucket     string   `json:"bucket"`
	Referenced int      `json:"referenced"`
	Stored     int      `json:"stored"`
	Missing    []string `json:"missing"`
	Orphaned   []string `json:"orphaned"`
	Matched    bool     `json:"matched"`
}

// CheckBlobs reports referenced sums absent from storage and stored objects no
// revision refers to.
func CheckBlobs(ctx context.Context, src BlobSource, blobs *storage.Blobs) (*BlobReport, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob storage is not configured")
	}

	referenced, err := src.BlobSums(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := blobs.List(ctx)
	if err != nil {
		return nil, err
	}

	missing, orphaned := lo.Difference(referenced, stored)
	return &BlobReport{
		Bucket:     blobs.Bucket(),
		Referenced: len(referenced),
		Stored:     len(stored),
		Missing:    append([]string{}, missing...),
		Orphaned:   append([]string{}, orphaned...),
		Matched:    len(missing) == 0 && len(orphaned) == 0,
	}, nil
}

// FixBlobs removes orphaned objects. Missing content cannot be restored.
func FixBlobs(ctx context.Context, blobs *storage.Blobs, logger *zap.Logger, orphaned []string) error {
	var result *multierror.Error
	for _, sum := range orphaned {
		if err := blobs.Remove(ctx, sum); err != nil {
			logger.Error("Failed to remove orphaned blob", zap.String("sum", sum), zap.Error(err))
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", sum, err))
			continue
		}
		logger.Info("Removed orphaned blob", zap.String("sum", sum))
	}
	return result.ErrorOrNil()
}
