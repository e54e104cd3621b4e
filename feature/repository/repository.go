package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"merge-engine/core/repos"
	"merge-engine/core/storage"
	"merge-engine/feature/repository/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotMigrated is returned when the repository tables hold no revision 0.
var ErrNotMigrated = errors.New("repository is not initialized")

const metaUUID = "uuid"

// liveRowsQuery selects the live state of path and its descendants at a revision.
const liveRowsQuery = `SELECT n.* FROM nodes n
WHERE (n.path = ? OR n.path LIKE ?) AND n.deleted = ?
AND n.rev = (SELECT MAX(m.rev) FROM nodes m WHERE m.path = n.path AND m.rev <= ?)
ORDER BY n.path`

// liveChildrenQuery selects the live children of a directory at a revision.
const liveChildrenQuery = `SELECT n.path FROM nodes n
WHERE n.parent = ? AND n.deleted = ?
AND n.rev = (SELECT MAX(m.rev) FROM nodes m WHERE m.path = n.path AND m.rev <= ?)
ORDER BY n.path`

// SQLRepository is a repos.Repository and repos.Committer kept in a SQL
// database. File contents go to the blob store when one is configured and
// stay inline otherwise.
type SQLRepository struct {
	db     *gorm.DB
	blobs  *storage.Blobs
	logger *zap.Logger

	// mu serializes commits made through this value.
	mu sync.Mutex
}

var (
	_ repos.Repository = (*SQLRepository)(nil)
	_ repos.Committer  = (*SQLRepository)(nil)
)

// Option configures a SQLRepository.
type Option func(*SQLRepository)

// WithBlobs stores file contents in blobs instead of the database.
func WithBlobs(blobs *storage.Blobs) Option {
	return func(r *SQLRepository) {
		r.blobs = blobs
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *SQLRepository) {
		r.logger = logger
	}
}

// New creates a repository over db. Call Migrate before first use.
func New(db *gorm.DB, opts ...Option) *SQLRepository {
	r := &SQLRepository{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns the underlying connection.
func (r *SQLRepository) DB() *gorm.DB {
	return r.db
}

// Blobs returns the blob store, or nil when contents are inline.
func (r *SQLRepository) Blobs() *storage.Blobs {
	return r.blobs
}

// Migrate creates the tables and, on an empty database, revision 0 with the
// root directory and a fresh repository UUID.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate repository schema: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Revision{}).Where("id = ?", 0).Count(&count).Error; err != nil {
			return fmt.Errorf("check revision 0: %w", err)
		}
		if count > 0 {
			return nil
		}

		if err := tx.Create(&models.Revision{ID: 0, CreatedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("create revision 0: %w", err)
		}
		root := &models.Node{Path: "/", Kind: repos.KindDir.String(), Props: repos.Props{}, Origin: "/@0"}
		if err := tx.Create(root).Error; err != nil {
			return fmt.Errorf("create root: %w", err)
		}
		id := uuid.NewString()
		if err := tx.Create(&models.Meta{Key: metaUUID, Value: id}).Error; err != nil {
			return fmt.Errorf("store repository uuid: %w", err)
		}
		r.logger.Info("Initialized repository", zap.String("uuid", id))
		return nil
	})
}

// UUID returns the repository UUID.
func (r *SQLRepository) UUID(ctx context.Context) (string, error) {
	var meta models.Meta
	err := r.db.WithContext(ctx).Where(&models.Meta{Key: metaUUID}).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotMigrated
	}
	if err != nil {
		return "", fmt.Errorf("read repository uuid: %w", err)
	}
	return meta.Value, nil
}

// Youngest returns the latest revision.
func (r *SQLRepository) Youngest(ctx context.Context) (int64, error) {
	return youngest(r.db.WithContext(ctx))
}

// Exists reports whether p exists at rev.
func (r *SQLRepository) Exists(ctx context.Context, p string, rev int64) (bool, error) {
	_, err := r.Read(ctx, p, rev)
	if errors.Is(err, repos.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Read returns the node at p and rev.
func (r *SQLRepository) Read(ctx context.Context, p string, rev int64) (*repos.Node, error) {
	db := r.db.WithContext(ctx)
	head, err := youngest(db)
	if err != nil {
		return nil, err
	}
	if rev < 0 || rev > head {
		return nil, fmt.Errorf("no such revision %d", rev)
	}

	p = repos.Clean(p)
	row, err := latest(db, p, rev)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s@%d: %w", p, rev, repos.ErrNotFound)
	}
	return r.toNode(ctx, db, row, rev)
}

// Commit applies changes as a new revision. Either every change applies or none does.
func (r *SQLRepository) Commit(ctx context.Context, log string, changes []repos.Change) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rev int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := youngest(tx)
		if err != nil {
			return err
		}
		rev = head + 1

		c := &commit{ctx: ctx, tx: tx, blobs: r.blobs, rev: rev, staged: map[string]*models.Node{}}
		for _, ch := range changes {
			if err := c.apply(ch); err != nil {
				return fmt.Errorf("commit r%d: %s %s: %w", rev, ch.Op, ch.Path, err)
			}
		}

		if err := tx.Create(&models.Revision{ID: rev, Log: log, CreatedAt: time.Now()}).Error; err != nil {
			return fmt.Errorf("create revision %d: %w", rev, err)
		}
		if rows := c.rows(); len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("store nodes of r%d: %w", rev, err)
			}
		}
		return c.index()
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("Committed revision", zap.Int64("rev", rev), zap.Int("changes", len(changes)))
	return rev, nil
}

// Log returns the message recorded for rev.
func (r *SQLRepository) Log(ctx context.Context, rev int64) (string, error) {
	var revision models.Revision
	if err := r.db.WithContext(ctx).First(&revision, rev).Error; err != nil {
		return "", fmt.Errorf("read revision %d: %w", rev, err)
	}
	return revision.Log, nil
}

// LiveNodes returns the state of every node at rev, in path order.
func (r *SQLRepository) LiveNodes(ctx context.Context, rev int64) ([]models.Node, error) {
	return liveRows(r.db.WithContext(ctx), "/", rev)
}

// BlobSums returns every blob sum any revision refers to, sorted.
func (r *SQLRepository) BlobSums(ctx context.Context) ([]string, error) {
	var sums []string
	err := r.db.WithContext(ctx).Model(&models.Node{}).
		Where("blob_sum <> ?", "").
		Distinct().Order("blob_sum").Pluck("blob_sum", &sums).Error
	if err != nil {
		return nil, fmt.Errorf("list blob sums: %w", err)
	}
	return sums, nil
}

func (r *SQLRepository) toNode(ctx context.Context, db *gorm.DB, row *models.Node, rev int64) (*repos.Node, error) {
	kind, err := repos.ParseKind(row.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s@%d: %w", row.Path, row.Rev, err)
	}

	node := &repos.Node{
		Path:       row.Path,
		Kind:       kind,
		Props:      row.Props.Clone(),
		Origin:     row.Origin,
		CreatedRev: row.CreatedRev,
	}
	if row.CopyFromPath != "" {
		node.CopyFrom = &repos.Location{Path: row.CopyFromPath, Rev: row.CopyFromRev}
	}

	switch kind {
	case repos.KindFile:
		node.Content, err = r.content(ctx, row)
		if err != nil {
			return nil, err
		}
	case repos.KindDir:
		var paths []string
		if err := db.Raw(liveChildrenQuery, row.Path, false, rev).Scan(&paths).Error; err != nil {
			return nil, fmt.Errorf("list children of %s@%d: %w", row.Path, rev, err)
		}
		node.Children = lo.Map(paths, func(p string, _ int) string { return path.Base(p) })
	}
	return node, nil
}

func (r *SQLRepository) content(ctx context.Context, row *models.Node) ([]byte, error) {
	if row.BlobSum == "" {
		return append([]byte(nil), row.Content...), nil
	}
	if r.blobs == nil {
		return nil, fmt.Errorf("content of %s@%d is in the blob store, which is not configured", row.Path, row.Rev)
	}
	return r.blobs.Get(ctx, row.BlobSum)
}

func youngest(db *gorm.DB) (int64, error) {
	var head sql.NullInt64
	if err := db.Model(&models.Revision{}).Select("MAX(id)").Row().Scan(&head); err != nil {
		return 0, fmt.Errorf("read youngest revision: %w", err)
	}
	if !head.Valid {
		return 0, ErrNotMigrated
	}
	return head.Int64, nil
}

// latest returns the live row of p at rev, or nil when nothing is there.
func latest(db *gorm.DB, p string, rev int64) (*models.Node, error) {
	var rows []models.Node
	if err := db.Where("path = ? AND rev <= ?", p, rev).Order("rev DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s@%d: %w", p, rev, err)
	}
	if len(rows) == 0 || rows[0].Deleted {
		return nil, nil
	}
	return &rows[0], nil
}

// liveRows returns the live rows of p and its descendants at rev.
func liveRows(db *gorm.DB, p string, rev int64) ([]models.Node, error) {
	like := p + "/%"
	if p == "/" {
		like = "/%"
	}
	var rows []models.Node
	if err := db.Raw(liveRowsQuery, p, like, false, rev).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("read tree %s@%d: %w", p, rev, err)
	}
	// LIKE treats '_' and '%' in p as wildcards.
	return lo.Filter(rows, func(n models.Node, _ int) bool { return repos.Within(n.Path, p) }), nil
}

func parentOf(p string) string {
	if p == "/" {
		return ""
	}
	return path.Dir(p)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func relative(base, p string) string {
	if base == "/" {
		return strings.TrimPrefix(p, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, base), "/")
}
