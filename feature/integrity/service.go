package integrity

import (
	"context"

	"merge-engine/core/storage"
	"merge-engine/feature/integrity/checks"
	"merge-engine/feature/repository"

	"go.uber.org/zap"
)

// Report is the combined outcome of every check.
type Report struct {
	Schema  *checks.SchemaReport `json:"schema,omitempty"`
	Blobs   *checks.BlobReport   `json:"blobs,omitempty"`
	Index   *checks.IndexReport  `json:"index,omitempty"`
	Skipped []string             `json:"skipped"`
	Errors  map[string]string    `json:"errors"`
	Matched bool                 `json:"matched"`
}

// Service handles integrity checks.
type Service struct {
	repo   *repository.SQLRepository
	blobs  *storage.Blobs
	logger *zap.Logger
}

// NewService creates a new integrity service.
func NewService(repo *repository.SQLRepository, logger *zap.Logger) *Service {
	s := &Service{repo: repo, logger: logger}
	if repo != nil {
		s.blobs = repo.Blobs()
	}
	return s
}

// CheckSchema compares the repository tables with the models.
func (s *Service) CheckSchema() (*checks.SchemaReport, error) {
	return checks.CheckSchema(s.repo.DB())
}

// CheckBlobs compares the referenced content with the blob store.
func (s *Service) CheckBlobs(ctx context.Context) (*checks.BlobReport, error) {
	return checks.CheckBlobs(ctx, s.repo, s.blobs)
}

// FixBlobs removes the orphaned objects.
func (s *Service) FixBlobs(ctx context.Context, orphaned []string) error {
	return checks.FixBlobs(ctx, s.blobs, s.logger, orphaned)
}

// CheckIndex verifies the mergeinfo index at rev, or at the youngest revision
// when rev is negative.
func (s *Service) CheckIndex(ctx context.Context, rev int64) (*checks.IndexReport, error) {
	return checks.CheckIndex(ctx, s.repo, rev)
}

// HasBlobs reports whether a blob store is configured.
func (s *Service) HasBlobs() bool {
	return s.blobs != nil
}

// RunAll runs every check. A failed check is recorded in the report and the
// remaining checks still run.
func (s *Service) RunAll(ctx context.Context) *Report {
	report := &Report{Skipped: []string{}, Errors: map[string]string{}}

	// 1. Schema
	if schema, err := s.CheckSchema(); err != nil {
		report.Errors["schema"] = err.Error()
	} else {
		report.Schema = schema
	}

	// 2. Blobs, when content lives outside the database
	if !s.HasBlobs() {
		report.Skipped = append(report.Skipped, "blobs")
	} else if blobs, err := s.CheckBlobs(ctx); err != nil {
		report.Errors["blobs"] = err.Error()
	} else {
		report.Blobs = blobs
	}

	// 3. Mergeinfo index
	if index, err := s.CheckIndex(ctx, -1); err != nil {
		report.Errors["index"] = err.Error()
	} else {
		report.Index = index
	}

	report.Matched = len(report.Errors) == 0 &&
		(report.Schema == nil || report.Schema.Matched) &&
		(report.Blobs == nil || report.Blobs.Matched) &&
		(report.Index == nil || report.Index.Matched)

	if !report.Matched {
		s.logger.Warn("Integrity check found problems", zap.Any("errors", report.Errors))
	}
	return report
}
