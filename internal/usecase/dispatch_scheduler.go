package usecase

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stagepass/backoffice/internal/domain/convocation"
	"github.com/stagepass/backoffice/internal/platform/logging"
)

const schedulerDueBatchLimit = 25

// DispatchScheduler polls for pending batches whose scheduled time has
// arrived and hands them to the dispatch service.
type DispatchScheduler struct {
	dispatcher *DispatchService
	batches    convocation.Repository
	interval   time.Duration
	logger     *logging.Logger

	workers conc.WaitGroup
	now     func() time.Time
}

func NewDispatchScheduler(
	dispatcher *DispatchService,
	batches convocation.Repository,
	interval time.Duration,
	logger *logging.Logger,
) *DispatchScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &DispatchScheduler{
		dispatcher: dispatcher,
		batches:    batches,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the polling loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (s *DispatchScheduler) Start(ctx context.Context) {
	s.workers.Go(func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("dispatch scheduler started", "interval", s.interval.String())
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("dispatch scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	})
}

// Wait blocks until the polling loop has exited.
func (s *DispatchScheduler) Wait() {
	s.workers.Wait()
}

func (s *DispatchScheduler) runOnce(ctx context.Context) {
	due, err := s.batches.ListDue(ctx, s.now().UTC(), schedulerDueBatchLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "list due batches", "error", err)
		return
	}

	for _, batch := range due {
		if ctx.Err() != nil {
			return
		}
		result, err := s.dispatcher.DispatchBatch(ctx, batch.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "scheduled batch dispatch failed",
				"batch_id", batch.ID,
				"error", err,
			)
			continue
		}
		s.logger.InfoContext(ctx, "scheduled batch dispatched",
			"batch_id", batch.ID,
			"batch_status", string(result.BatchStatus),
			"sent_count", result.SentCount,
			"failed_count", result.FailedCount,
		)
	}
}
