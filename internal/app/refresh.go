package service

import (
	"context"
	"fmt"

	"github.com/okian/tiebreak/internal/adapters/repository"
	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/internal/domain/types"
	"github.com/okian/tiebreak/pkg/logger"
	"github.com/okian/tiebreak/pkg/metrics"
)

// refreshBatch stages the rows of one refresh request until every job has
// reported back.
type refreshBatch struct {
	key    repository.BoardKey
	want   int
	rows   []types.Standing
	failed int
}

func (b *refreshBatch) done() bool { return len(b.rows)+b.failed >= b.want }

func (s *Service) stage(requestID string, key repository.BoardKey, want int) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if _, busy := s.refreshes[requestID]; busy {
		return fmt.Errorf("%w: %q", ErrRefreshInProgress, requestID)
	}
	s.refreshes[requestID] = &refreshBatch{key: key, want: want, rows: make([]types.Standing, 0, want)}
	return nil
}

// abandon forgets a batch. Rows of its jobs that are still queued are
// discarded when they arrive.
func (s *Service) abandon(requestID string) {
	s.refreshMu.Lock()
	delete(s.refreshes, requestID)
	s.refreshMu.Unlock()
}

// abandonTournament forgets every batch of a tournament, so rows evaluated
// against a replaced tournament are never published.
func (s *Service) abandonTournament(tournamentID string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	for id, b := range s.refreshes {
		if b.key.TournamentID == tournamentID {
			delete(s.refreshes, id)
		}
	}
}

func (s *Service) abandonAll(ctx context.Context) {
	s.refreshMu.Lock()
	n := len(s.refreshes)
	clear(s.refreshes)
	s.refreshMu.Unlock()
	if n > 0 {
		s.logger.Warn(ctx, "unfinished refreshes abandoned", logger.Int("count", n))
	}
}

func (s *Service) pendingRefreshes() int {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return len(s.refreshes)
}

// record applies fn to the job's batch and detaches the batch once it is
// complete. It returns nil while the batch is still waiting for jobs.
func (s *Service) record(job model.Job, fn func(*refreshBatch)) *refreshBatch {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	b, ok := s.refreshes[job.RequestID]
	if !ok || b.key.TournamentID != job.TournamentID {
		return nil
	}
	fn(b)
	if !b.done() {
		return nil
	}
	delete(s.refreshes, job.RequestID)
	return b
}

// Upsert stages one evaluated row of a refresh and publishes the board when
// the refresh is complete. Rows of abandoned refreshes are dropped.
func (s *Service) Upsert(ctx context.Context, job model.Job, st types.Standing) error {
	b := s.record(job, func(b *refreshBatch) { b.rows = append(b.rows, st) })
	if b == nil {
		return nil
	}
	return s.publish(ctx, job.RequestID, b)
}

// RecordFailure counts a job whose evaluation failed. A refresh with any
// failed job is not published and the previous board stays in place.
func (s *Service) RecordFailure(ctx context.Context, job model.Job, _ error) {
	b := s.record(job, func(b *refreshBatch) { b.failed++ })
	if b == nil {
		return
	}
	_ = s.publish(ctx, job.RequestID, b)
}

// finish publishes a batch that needs no jobs.
func (s *Service) finish(ctx context.Context, requestID string) error {
	s.refreshMu.Lock()
	b, ok := s.refreshes[requestID]
	delete(s.refreshes, requestID)
	s.refreshMu.Unlock()
	if !ok {
		return nil
	}
	return s.publish(ctx, requestID, b)
}

func (s *Service) publish(ctx context.Context, requestID string, b *refreshBatch) error {
	if b.failed > 0 {
		s.logger.Warn(ctx, "refresh discarded",
			logger.String("request_id", requestID),
			logger.String("tournament_id", b.key.TournamentID),
			logger.Int("failed", b.failed),
		)
		return nil
	}
	store, err := s.running()
	if err != nil {
		return err
	}
	if err := store.Publish(ctx, b.key, b.rows); err != nil {
		return fmt.Errorf("publish refresh %q: %w", requestID, err)
	}
	metrics.RecordStandingsComputed()
	s.logger.Debug(ctx, "refresh published",
		logger.String("request_id", requestID),
		logger.String("tournament_id", b.key.TournamentID),
		logger.Int("rows", len(b.rows)),
	)
	return nil
}
