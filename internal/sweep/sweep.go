// Package sweep bounds temporary-storage footprint by reclaiming assets past
// the retention age.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clipforge/internal/blob"
	"clipforge/internal/models"
	"clipforge/internal/store"
	"clipforge/internal/telemetry"
)

// Sweep scans all jobs and archives those whose temporary asset has aged out.
// Deletion failures do not block the transition, so a pass never reprocesses
// the same job endlessly; running it twice in a row archives nothing new.
type Sweep struct {
	store     store.Store
	blob      blob.Store
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func New(st store.Store, bs blob.Store, retention time.Duration, log zerolog.Logger) *Sweep {
	return &Sweep{
		store:     st,
		blob:      bs,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("component", "sweep").Logger(),
	}
}

// RunOnce performs a single pass and returns how many jobs were archived.
func (s *Sweep) RunOnce(ctx context.Context) (int, error) {
	jobs, err := s.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}

	now := s.now()
	archived := 0
	for _, job := range jobs {
		if !s.eligible(job, now) {
			continue
		}
		log := s.log.With().Str("job_id", job.ID).Logger()

		if err := s.blob.Delete(ctx, *job.TempAssetURL); err != nil {
			// Asset may already be gone; archive anyway.
			log.Warn().Err(err).Msg("blob delete failed")
		}
		if !job.Transition(models.StatusArchived, now) {
			log.Debug().Str("status", job.Status).Msg("not archivable, skipping")
			continue
		}
		if err := s.store.Put(ctx, job); err != nil {
			return archived, fmt.Errorf("persist archived job %s: %w", job.ID, err)
		}
		telemetry.AssetsArchived.Inc()
		archived++
		log.Info().Msg("temporary asset reclaimed")
	}
	return archived, nil
}

// eligible applies the sole retention rule: the asset is still staged and has
// been ready for longer than the retention age. The byte-based storage limit
// in config is advisory and deliberately not consulted here.
func (s *Sweep) eligible(job models.Job, now time.Time) bool {
	if job.Status == models.StatusArchived {
		return false
	}
	if job.ReadyAt == nil || job.TempAssetURL == nil {
		return false
	}
	return now.Sub(*job.ReadyAt) > s.retention
}

// Run executes RunOnce on a fixed interval until the context is cancelled.
func (s *Sweep) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if n, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("sweep pass failed")
		} else if n > 0 {
			s.log.Info().Int("archived", n).Msg("sweep pass complete")
		}
	}
}
