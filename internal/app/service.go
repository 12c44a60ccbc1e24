// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jobqueue "github.com/okian/tiebreak/internal/adapters/mq/queue"
	workerpool "github.com/okian/tiebreak/internal/adapters/mq/worker"
	"github.com/okian/tiebreak/internal/adapters/repository"
	"github.com/okian/tiebreak/internal/domain/model"
	"github.com/okian/tiebreak/internal/domain/tiebreak"
	"github.com/okian/tiebreak/internal/domain/types"
	"github.com/okian/tiebreak/pkg/logger"
	"github.com/okian/tiebreak/pkg/metrics"
)

// DefaultTieBreaks is the order used when neither the service nor the
// tournament configures one.
var DefaultTieBreaks = []tiebreak.Spec{ //nolint:gochecknoglobals // read-only default
	{Name: tiebreak.NameBuchholz},
	{Name: tiebreak.NameWins},
	{Name: tiebreak.NameGamesWonWithBlack},
	{Name: tiebreak.NameProgressiveScores},
}

// Service implements the API dependencies for the standings system.
type Service struct {
	mu sync.RWMutex

	tournaments map[string]*model.Tournament
	evaluators  map[string]*tiebreak.Evaluator
	registry    *tiebreak.Registry
	// evaluator is the default order for tournaments without their own.
	evaluator *tiebreak.Evaluator

	refreshMu sync.Mutex
	refreshes map[string]*refreshBatch

	// Core components
	store      *repository.TreapStore
	jobQueue   *jobqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of refresh workers and the parallelism of
// ComputeStandings.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending refresh jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry sets the criteria catalog used to compile tournament orders.
func WithRegistry(r *tiebreak.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithEvaluator sets the default compiled tie-break order.
func WithEvaluator(e *tiebreak.Evaluator) Option {
	return func(s *Service) {
		if e != nil {
			s.evaluator = e
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tournaments: make(map[string]*model.Tournament),
		evaluators:  make(map[string]*tiebreak.Evaluator),
		refreshes:   make(map[string]*refreshBatch),
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = tiebreak.NewRegistry()
	}
	return s
}

// defaults returns the service-wide order, compiling DefaultTieBreaks on
// first use. Callers hold s.mu.
func (s *Service) defaults() (*tiebreak.Evaluator, error) {
	if s.evaluator == nil {
		e, err := s.registry.Compile(DefaultTieBreaks)
		if err != nil {
			return nil, fmt.Errorf("compile default tie-breaks: %w", err)
		}
		s.evaluator = e
	}
	return s.evaluator, nil
}

// evaluatorFor compiles the tournament's own order, or falls back to the
// default, and checks it against the tournament's pairing system. Callers
// hold s.mu.
func (s *Service) evaluatorFor(t *model.Tournament) (*tiebreak.Evaluator, error) {
	var (
		e   *tiebreak.Evaluator
		err error
	)
	if rules := t.TieBreaks(); len(rules) > 0 {
		e, err = s.registry.Compile(tiebreak.SpecsFromRules(rules))
	} else {
		e, err = s.defaults()
	}
	if err != nil {
		return nil, err
	}
	if err := e.Supports(t.PairingSystem()); err != nil {
		return nil, err
	}
	return e, nil
}

// Start initializes the store, the job queue and the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if _, err := s.defaults(); err != nil {
		return err
	}

	s.store = repository.NewTreapStore(ctx)
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "standings service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("tieBreaks", fmt.Sprint(s.evaluator.Names())),
	)
	return nil
}

// Stop lets workers drain queued refresh jobs, then releases the store.
// Jobs still queued when the pool's shutdown timeout expires are dropped
// and their refreshes are never published. Workers keep evaluating while
// the queue drains, so the lock is not held meanwhile.
func (s *Service) Stop(ctx context.Context) {
	s.mu.RLock()
	started, pool, store := s.started, s.workerPool, s.store
	s.mu.RUnlock()

	if !started {
		return
	}

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	_ = store.Close()
	s.abandonAll(ctx)

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.logger.Info(ctx, "standings service stopped")
}

// AddTournament registers a tournament with its own tie-break order, or the
// default one when it has none. The order is compiled and checked against
// the pairing system here, so a criterion that is not defined for the
// tournament fails registration instead of every later read. A tournament
// with the same id is replaced and its cached standings are dropped.
func (s *Service) AddTournament(ctx context.Context, t *model.Tournament) error {
	if t == nil || t.ID() == "" {
		return errors.New("add tournament: missing tournament or id")
	}

	s.mu.Lock()
	evaluator, err := s.evaluatorFor(t)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("add tournament %q: %w", t.ID(), err)
	}
	_, replaced := s.tournaments[t.ID()]
	s.tournaments[t.ID()] = t
	s.evaluators[t.ID()] = evaluator
	count := len(s.tournaments)
	store := s.store
	s.mu.Unlock()

	if replaced {
		s.abandonTournament(t.ID())
	}
	if replaced && store != nil {
		for _, key := range store.Boards(ctx) {
			if key.TournamentID == t.ID() {
				store.Drop(ctx, key)
			}
		}
	}

	metrics.UpdateTournamentsLoaded(count)
	if s.logger != nil {
		s.logger.Info(ctx, "tournament registered",
			logger.String("tournament_id", t.ID()),
			logger.Int("players", t.Len()),
			logger.String("tieBreaks", fmt.Sprint(evaluator.Names())),
			logger.Bool("replaced", replaced),
		)
	}
	return nil
}

// Tournaments lists registered tournaments ordered by id.
func (s *Service) Tournaments(_ context.Context) []types.TournamentSummary {
	s.mu.RLock()
	out := make([]types.TournamentSummary, 0, len(s.tournaments))
	for id, t := range s.tournaments {
		out = append(out, types.TournamentSummary{
			ID:            t.ID(),
			Name:          t.Name(),
			PairingSystem: t.PairingSystem().String(),
			CurrentRound:  t.CurrentRound(),
			Players:       t.Len(),
			TieBreaks:     s.evaluators[id].Names(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) tournament(id string) (*model.Tournament, *tiebreak.Evaluator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTournament, id)
	}
	return t, s.evaluators[id], nil
}

func (s *Service) running() (*repository.TreapStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// resolveRound maps 0 to the tournament's current round.
func resolveRound(t *model.Tournament, maxRound int) (int, error) {
	switch {
	case maxRound < 0:
		return 0, fmt.Errorf("%w: round must not be negative, got %d", tiebreak.ErrInvalidParameter, maxRound)
	case maxRound == 0:
		return t.CurrentRound(), nil
	}
	return maxRound, nil
}

// Evaluate computes one player's standing for a job. It is the evaluator
// used by the refresh workers.
func (s *Service) Evaluate(ctx context.Context, job model.Job) (types.Standing, error) {
	if err := ctx.Err(); err != nil {
		return types.Standing{}, err
	}
	t, evaluator, err := s.tournament(job.TournamentID)
	if err != nil {
		return types.Standing{}, err
	}
	if _, err := s.running(); err != nil {
		return types.Standing{}, err
	}
	maxRound, err := resolveRound(t, job.MaxRound)
	if err != nil {
		return types.Standing{}, err
	}
	p, ok := t.Player(job.PlayerID)
	if !ok {
		return types.Standing{}, fmt.Errorf("%w: %d in %q", ErrUnknownPlayer, job.PlayerID, t.ID())
	}
	return evaluate(evaluator, t, p, maxRound)
}

func evaluate(e *tiebreak.Evaluator, t *model.Tournament, p *model.Player, maxRound int) (types.Standing, error) {
	start := time.Now()
	vector, err := e.Evaluate(p, t, maxRound)
	latency := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordEvaluation(err == nil, latency)
	if err != nil {
		metrics.RecordEvaluationError(errorKind(err))
		return types.Standing{}, fmt.Errorf("player %d: %w", p.ID(), err)
	}

	points := p.PointsBeforeRound(maxRound)
	return types.Standing{
		PlayerID:  int(p.ID()),
		Name:      p.Name(),
		MaxRound:  maxRound,
		Points:    points,
		TieBreaks: vector,
		SortKey:   e.SortKey(points, vector),
	}, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, tiebreak.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, tiebreak.ErrUnsupportedVariant):
		return "unsupported_variant"
	default:
		return "other"
	}
}

// ComputeStandings evaluates every player of a tournament in parallel,
// publishes the board and returns it in rank order. maxRound 0 means the
// tournament's current round.
func (s *Service) ComputeStandings(ctx context.Context, tournamentID string, maxRound int) ([]types.Entry, error) {
	t, evaluator, err := s.tournament(tournamentID)
	if err != nil {
		return nil, err
	}
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	maxRound, err = resolveRound(t, maxRound)
	if err != nil {
		return nil, err
	}

	players := t.Players()
	rows := make([]types.Standing, len(players))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for i, p := range players {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := evaluate(evaluator, t, p, maxRound)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute standings for %q: %w", tournamentID, err)
	}

	key := repository.BoardKey{TournamentID: tournamentID, MaxRound: maxRound}
	if err := store.Publish(ctx, key, rows); err != nil {
		return nil, err
	}
	metrics.RecordStandingsComputed()

	if len(rows) == 0 {
		return []types.Entry{}, nil
	}
	return store.TopN(ctx, key, len(rows))
}

// Refresh queues one evaluation job per player. Workers stage their rows
// under the request id and the board is published once every job of the
// request has finished, so readers never see a partial board. A refresh
// that cannot queue all of its jobs is abandoned. An empty requestID gets a
// generated one.
func (s *Service) Refresh(ctx context.Context, tournamentID string, maxRound int, requestID string) (types.RefreshTicket, error) {
	t, _, err := s.tournament(tournamentID)
	if err != nil {
		return types.RefreshTicket{}, err
	}
	if _, err := s.running(); err != nil {
		return types.RefreshTicket{}, err
	}
	maxRound, err = resolveRound(t, maxRound)
	if err != nil {
		return types.RefreshTicket{}, err
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ticket := types.RefreshTicket{RequestID: requestID, TournamentID: tournamentID, MaxRound: maxRound}
	if free := s.jobQueue.Capacity() - s.jobQueue.Len(ctx); free < t.Len() {
		return ticket, fmt.Errorf("%w: %d jobs needed, %d slots free", ErrBackpressure, t.Len(), free)
	}

	key := repository.BoardKey{TournamentID: tournamentID, MaxRound: maxRound}
	if err := s.stage(requestID, key, t.Len()); err != nil {
		return ticket, err
	}
	if t.Len() == 0 {
		return ticket, s.finish(ctx, requestID)
	}

	for _, p := range t.Players() {
		job := model.Job{RequestID: requestID, TournamentID: tournamentID, PlayerID: p.ID(), MaxRound: maxRound}
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			s.abandon(requestID)
			if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
				s.logger.Warn(ctx, "refresh rejected",
					logger.String("request_id", requestID),
					logger.Int("queued", ticket.Jobs),
					logger.Error(err),
				)
				return ticket, fmt.Errorf("%w: queued %d of %d jobs: %w", ErrBackpressure, ticket.Jobs, t.Len(), err)
			}
			return ticket, err
		}
		ticket.Jobs++
	}

	s.logger.Debug(ctx, "refresh queued",
		logger.String("request_id", requestID),
		logger.String("tournament_id", tournamentID),
		logger.Int("jobs", ticket.Jobs),
	)
	return ticket, nil
}

// Standings returns the first limit rows of a board, computing the board
// when it does not exist yet or lacks players.
func (s *Service) Standings(ctx context.Context, tournamentID string, maxRound, limit int) ([]types.Entry, error) {
	t, _, err := s.tournament(tournamentID)
	if err != nil {
		return nil, err
	}
	store, err := s.running()
	if err != nil {
		return nil, err
	}
	if maxRound, err = resolveRound(t, maxRound); err != nil {
		return nil, err
	}

	// A board short of players is never served; it is rebuilt.
	key := repository.BoardKey{TournamentID: tournamentID, MaxRound: maxRound}
	if store.Count(ctx, key) >= t.Len() {
		entries, err := store.TopN(ctx, key, limit)
		if !errors.Is(err, repository.ErrNotFound) {
			return entries, err
		}
	}

	all, err := s.ComputeStandings(ctx, tournamentID, maxRound)
	if err != nil {
		return nil, err
	}
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Rank returns one player's ranked row, computing the board when needed.
func (s *Service) Rank(ctx context.Context, tournamentID string, maxRound, playerID int) (types.Entry, error) {
	t, _, err := s.tournament(tournamentID)
	if err != nil {
		return types.Entry{}, err
	}
	store, err := s.running()
	if err != nil {
		return types.Entry{}, err
	}
	if maxRound, err = resolveRound(t, maxRound); err != nil {
		return types.Entry{}, err
	}
	if _, ok := t.Player(model.PlayerID(playerID)); !ok {
		return types.Entry{}, fmt.Errorf("%w: %d in %q", ErrUnknownPlayer, playerID, tournamentID)
	}

	key := repository.BoardKey{TournamentID: tournamentID, MaxRound: maxRound}
	if store.Count(ctx, key) < t.Len() {
		if _, err := s.ComputeStandings(ctx, tournamentID, maxRound); err != nil {
			return types.Entry{}, err
		}
	}
	return store.Rank(ctx, key, playerID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"tournaments": len(s.tournaments),
	}
	if s.evaluator != nil {
		stats["tieBreaks"] = s.evaluator.Names()
	}
	stats["refreshesPending"] = s.pendingRefreshes()

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		boards := s.store.Boards(ctx)
		entries := 0
		for _, key := range boards {
			entries += s.store.Count(ctx, key)
		}

		stats["queueLength"] = queueLen
		stats["boards"] = len(boards)
		stats["entries"] = entries
		stats["jobsProcessed"] = s.workerPool.Counters().Processed()
		stats["jobsFailed"] = s.workerPool.Counters().Failed()

		metrics.UpdateStandingsBoards(len(boards))
		metrics.UpdateStandingsEntries(entries)
	}

	return stats
}
