package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jpkontreras/cw-sub006/aggregates"
	"github.com/jpkontreras/cw-sub006/apperrors"
	"github.com/jpkontreras/cw-sub006/repository"
)

const reapBatchSize = 100

// Reaper periodically marks inactive sessions abandoned. Candidates come
// from the read model; the actual decision is made by the session command,
// which re-checks inactivity against the freshly replayed stream. A
// candidate that woke up between scan and command is simply skipped.
type Reaper struct {
	sessions *SessionService
	views    repository.SessionViewRepository
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger
}

// NewReaper creates the reaper. window is the inactivity cutoff.
func NewReaper(sessions *SessionService, views repository.SessionViewRepository, interval, window time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{sessions: sessions, views: views, interval: interval, window: window, logger: logger}
}

// Run scans until ctx is cancelled. Meant to be started as a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("Session sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep performs one reap pass and returns the scan error, if any.
// Per-session command failures are logged and do not stop the pass.
func (r *Reaper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.window)
	statuses := []string{string(aggregates.SessionActive), string(aggregates.SessionRecovered)}

	candidates, err := r.views.FindInactiveSince(ctx, cutoff, statuses, reapBatchSize)
	if err != nil {
		return err
	}

	var reaped int
	for _, view := range candidates {
		err := r.sessions.Abandon(ctx, view.ID)
		switch {
		case err == nil:
			reaped++
		case apperrors.IsKind(err, apperrors.KindValidationFailed),
			apperrors.IsKind(err, apperrors.KindConcurrencyConflict),
			apperrors.IsKind(err, apperrors.KindAlreadyConverted),
			apperrors.IsKind(err, apperrors.KindAlreadyTerminal):
			// Session woke up, converted or was reaped elsewhere. Skip.
		default:
			r.logger.Error("Failed to abandon session",
				zap.String("session_id", view.ID.String()), zap.Error(err))
		}
	}

	if reaped > 0 {
		r.logger.Info("Abandoned inactive sessions", zap.Int("count", reaped))
	}
	return nil
}
