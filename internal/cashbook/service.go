package cashbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// RepositoryPort abstracts persistence for the cashbook.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	Totals(ctx context.Context, from, to time.Time) (Summary, error)
}

// Service records manual entries and serves cached summaries.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the cashbook service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Record appends a manual entry that is not tied to a settlement.
func (s *Service) Record(ctx context.Context, entry Entry) (Entry, error) {
	var created Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = Append(ctx, tx, entry)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.Invalidate(ctx)
	return created, nil
}

// List returns entries in the range, newest first.
func (s *Service) List(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListEntries(ctx, filter)
}

// Summary returns income, expense and net over [from, to]. Concurrent callers
// for the same range share one load.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return Summary{}, fmt.Errorf("%w: valid from/to range required", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, "cashbook", "summary", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		s.logger.Warn("cashbook cache version", slog.Any("error", err))
		return s.repo.Totals(ctx, from, to)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out Summary
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &out, func(ctx context.Context) (any, error) {
			return s.repo.Totals(ctx, from, to)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

// Invalidate bumps the summary cache version. Failures only delay freshness.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cashbook cache bump", slog.Any("error", err))
	}
}
