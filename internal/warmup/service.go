// Package warmup pre-populates the cache from a backing data source so the
// first requests after a deploy or cache flush do not all fall through to it.
package warmup

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiercache/tiercache/internal/cache"
	"github.com/tiercache/tiercache/internal/config"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// Source supplies the entities worth pre-caching. The production
// implementation queries the application database; tests supply fixtures.
type Source interface {
	// FetchPopular returns the most frequently accessed entities.
	FetchPopular(ctx context.Context, limit int) ([]types.Entity, error)
	// FetchActive returns entities touched within the last windowDays days.
	FetchActive(ctx context.Context, windowDays, limit int) ([]types.Entity, error)
	// FetchSystemConfig returns system-wide configuration entities.
	FetchSystemConfig(ctx context.Context) ([]types.Entity, error)
	// FetchEntity returns a single entity by ID, or a WARMUP_SOURCE error.
	FetchEntity(ctx context.Context, id string) (types.Entity, error)
}

// Report summarizes one warmup run.
type Report struct {
	Attempted int           `json:"attempted"`
	Cached    int           `json:"cached"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Service runs the warmup pipeline: fetch candidate entities from the source,
// then cache them in sequential batches with bounded concurrency inside each
// batch. One entity failing to cache never aborts the run; it is counted and
// the pipeline moves on.
type Service struct {
	cache  *cache.Service
	source Source
	cfg    config.WarmupConfig
	logger *slog.Logger

	mu   sync.Mutex
	last Report
	runs int
}

// NewService builds the warmup pipeline.
func NewService(svc *cache.Service, source Source, cfg config.WarmupConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:  svc,
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// WarmupAll runs the full pipeline: popular entities, recently active
// entities, then system configuration. Source fetch errors end the run with
// an error; per-entity cache failures only show up in the report.
func (s *Service) WarmupAll(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	popular, err := s.source.FetchPopular(ctx, s.cfg.PopularLimit)
	if err != nil {
		return report, errors.NewError(errors.ErrCodeWarmupSource, "fetching popular entities failed").
			WithComponent("warmup").WithCause(err)
	}
	s.warmBatches(ctx, popular, &report)

	active, err := s.source.FetchActive(ctx, s.cfg.ActiveDays, s.cfg.ActiveLimit)
	if err != nil {
		return report, errors.NewError(errors.ErrCodeWarmupSource, "fetching active entities failed").
			WithComponent("warmup").WithCause(err)
	}
	s.warmBatches(ctx, active, &report)

	system, err := s.source.FetchSystemConfig(ctx)
	if err != nil {
		return report, errors.NewError(errors.ErrCodeWarmupSource, "fetching system config failed").
			WithComponent("warmup").WithCause(err)
	}
	s.warmBatches(ctx, system, &report)

	report.Duration = time.Since(start)

	s.mu.Lock()
	s.last = report
	s.runs++
	s.mu.Unlock()

	s.logger.Info("cache warmup complete",
		"attempted", report.Attempted,
		"cached", report.Cached,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// Stats returns the report of the most recent completed run and how many
// runs have completed.
func (s *Service) Stats() (Report, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}

// WarmupEntity fetches and caches one entity on demand, reporting whether it
// ended up cached.
func (s *Service) WarmupEntity(ctx context.Context, id string) bool {
	entity, err := s.source.FetchEntity(ctx, id)
	if err != nil {
		s.logger.Warn("warmup fetch failed", "id", id, "error", err)
		return false
	}
	return s.cacheEntity(ctx, entity)
}

// warmBatches caches entities in sequential batches. Within a batch, writes
// fan out across a bounded worker group; the group never carries an error, so
// every entity in the batch is attempted regardless of its neighbors.
func (s *Service) warmBatches(ctx context.Context, entities []types.Entity, report *Report) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	var cached, failed atomic.Int64

	for offset := 0; offset < len(entities); offset += batchSize {
		end := offset + batchSize
		if end > len(entities) {
			end = len(entities)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, entity := range entities[offset:end] {
			entity := entity
			g.Go(func() error {
				if s.cacheEntity(gctx, entity) {
					cached.Add(1)
				} else {
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Attempted += len(entities)
	report.Cached += int(cached.Load())
	report.Failed += int(failed.Load())
}

// cacheEntity writes one entity under its kind's prefix. System config gets
// the long warmup TTL; everything else uses the prefix default.
func (s *Service) cacheEntity(ctx context.Context, entity types.Entity) bool {
	prefix, ok := s.prefixForKind(entity.Kind)
	if !ok {
		s.logger.Warn("skipping entity of unknown kind", "id", entity.ID, "kind", entity.Kind)
		return false
	}

	if prefix == cache.PrefixSystemConfig && s.cfg.SystemConfigTTL > 0 {
		return s.cache.SetWithTTL(ctx, prefix, entity.ID, entity.Payload, s.cfg.SystemConfigTTL)
	}
	return s.cache.Set(ctx, prefix, entity.ID, entity.Payload)
}

func (s *Service) prefixForKind(kind string) (cache.Prefix, bool) {
	switch kind {
	case "recipe":
		return cache.PrefixRecipe, true
	case "user":
		return cache.PrefixProfile, true
	case "system_config":
		return cache.PrefixSystemConfig, true
	default:
		return "", false
	}
}
