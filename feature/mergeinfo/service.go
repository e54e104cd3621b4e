package mergeinfo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	core "merge-engine/core/mergeinfo"
	"merge-engine/core/repos"
	"merge-engine/feature/repository"

	"go.uber.org/zap"
)

// ErrBadRequest marks errors caused by invalid query parameters.
var ErrBadRequest = errors.New("bad request")

// Index answers mergeinfo queries for a repository.
type Index interface {
	Youngest(ctx context.Context) (int64, error)
	GetMergeinfo(ctx context.Context, path string, rev int64, inherit repository.Inheritance) (core.Mergeinfo, bool, error)
	GetMergeinfoForTree(ctx context.Context, path string, rev int64) (map[string]core.Mergeinfo, error)
}

// Report is the mergeinfo of one path.
type Report struct {
	Path     string            `json:"path"`
	Revision int64             `json:"revision"`
	Mode     string            `json:"mode"`
	Found    bool              `json:"found"`
	Sources  map[string]string `json:"mergeinfo"`
}

// TreeReport is the mergeinfo of a path and its descendants.
type TreeReport struct {
	Path     string                       `json:"path"`
	Revision int64                        `json:"revision"`
	Tree     map[string]map[string]string `json:"tree"`
}

// Service resolves mergeinfo queries.
type Service struct {
	index  Index
	logger *zap.Logger
}

// NewService creates a new mergeinfo service.
func NewService(index Index, logger *zap.Logger) *Service {
	return &Service{index: index, logger: logger}
}

// Get returns the mergeinfo of p at rev ("" or HEAD for the youngest) for mode.
func (s *Service) Get(ctx context.Context, p, rev, mode string) (*Report, error) {
	inherit, err := repository.ParseInheritance(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	r, err := s.revision(ctx, rev)
	if err != nil {
		return nil, err
	}

	p = repos.Clean(p)
	mi, found, err := s.index.GetMergeinfo(ctx, p, r, inherit)
	if err != nil {
		return nil, err
	}
	return &Report{Path: p, Revision: r, Mode: inherit.String(), Found: found, Sources: encode(mi)}, nil
}

// Tree returns the mergeinfo of p and every descendant with explicit mergeinfo.
func (s *Service) Tree(ctx context.Context, p, rev string) (*TreeReport, error) {
	r, err := s.revision(ctx, rev)
	if err != nil {
		return nil, err
	}

	p = repos.Clean(p)
	tree, err := s.index.GetMergeinfoForTree(ctx, p, r)
	if err != nil {
		return nil, err
	}
	out := &TreeReport{Path: p, Revision: r, Tree: make(map[string]map[string]string, len(tree))}
	for q, mi := range tree {
		out.Tree[q] = encode(mi)
	}
	return out, nil
}

func (s *Service) revision(ctx context.Context, rev string) (int64, error) {
	youngest, err := s.index.Youngest(ctx)
	if err != nil {
		return 0, err
	}
	if rev == "" || strings.EqualFold(rev, "HEAD") {
		return youngest, nil
	}

	r, err := strconv.ParseInt(strings.TrimPrefix(rev, "r"), 10, 64)
	if err != nil || r < 0 {
		return 0, fmt.Errorf("%w: invalid revision %q", ErrBadRequest, rev)
	}
	if r > youngest {
		return 0, fmt.Errorf("%w: no such revision %d", ErrBadRequest, r)
	}
	return r, nil
}

func encode(mi core.Mergeinfo) map[string]string {
	out := make(map[string]string, len(mi))
	for _, source := range mi.Sources() {
		out[source] = mi[source].String()
	}
	return out
}
