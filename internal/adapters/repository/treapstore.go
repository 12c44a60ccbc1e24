package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/tiebreak/internal/domain/tiebreak"
	"github.com/okian/tiebreak/internal/domain/types"
	"github.com/okian/tiebreak/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: sort key DESC, then player id ASC (deterministic).
// The comparator's "less" means ranks earlier, so an in-order traversal
// yields the standings from first to last.

type node struct {
	id    int
	key   []float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aKey, aID) should appear before (bKey, bID).
func less(aKey []float64, aID int, bKey []float64, bID int) bool {
	if c := tiebreak.CompareKeys(aKey, bKey); c != 0 {
		return c > 0
	}
	return aID < bID
}

// priority hashes the player id so the tree shape does not depend on
// insertion order.
func priority(id int) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	h := fnv.New64a()
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id int, key []float64) *node {
	if n == nil {
		return &node{id: id, key: key, prio: priority(id), size: 1}
	}
	if less(key, id, n.key, n.id) {
		n.left = insert(n.left, id, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id int, key []float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, key)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, key)
		}
	case less(key, id, n.key, n.id):
		n.left = deleteNode(n.left, id, key)
	default:
		n.right = deleteNode(n.right, id, key)
	}
	fix(n)
	return n
}

// countAhead returns how many nodes carry a key strictly greater than key.
// Those nodes form a prefix of the in-order traversal.
func countAhead(n *node, key []float64) int {
	ahead := 0
	for n != nil {
		if tiebreak.CompareKeys(n.key, key) > 0 {
			ahead += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return ahead
}

// collectTopN appends up to limit player ids in rank order.
func collectTopN(n *node, limit int, out *[]int) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.id)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// board is one standings table.
type board struct {
	root *node
	rows map[int]types.Standing
}

func newBoard() *board {
	return &board{rows: make(map[int]types.Standing)}
}

func (b *board) upsert(s types.Standing) {
	if old, ok := b.rows[s.PlayerID]; ok {
		b.root = deleteNode(b.root, old.PlayerID, old.SortKey)
	}
	b.rows[s.PlayerID] = s
	b.root = insert(b.root, s.PlayerID, s.SortKey)
}

// TreapStore keeps one treap per board behind a single lock.
type TreapStore struct {
	mu                    sync.RWMutex
	boards                map[BoardKey]*board
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs a treap store and starts its metrics updater.
// Call Close to stop it.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		boards:                make(map[BoardKey]*board),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert in O(log n) expected time.
func (s *TreapStore) Upsert(_ context.Context, tournamentID string, st types.Standing) error {
	if tournamentID == "" {
		return fmt.Errorf("upsert standing for player %d: empty tournament id", st.PlayerID)
	}
	key := BoardKey{TournamentID: tournamentID, MaxRound: st.MaxRound}

	s.mu.Lock()
	b, ok := s.boards[key]
	if !ok {
		b = newBoard()
		s.boards[key] = b
	}
	b.upsert(st)
	s.mu.Unlock()
	return nil
}

// Publish implements Store.Publish. Rows whose MaxRound differs from the
// key are stored under the key anyway.
func (s *TreapStore) Publish(_ context.Context, key BoardKey, rows []types.Standing) error {
	if key.TournamentID == "" {
		return errors.New("publish board: empty tournament id")
	}
	b := newBoard()
	for _, r := range rows {
		r.MaxRound = key.MaxRound
		b.upsert(r)
	}

	s.mu.Lock()
	s.boards[key] = b
	s.mu.Unlock()

	s.updateMetrics()
	return nil
}

// Rank implements Store.Rank in O(log n) expected time.
func (s *TreapStore) Rank(_ context.Context, key BoardKey, playerID int) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[key]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("%w: board %s@%d", ErrNotFound, key.TournamentID, key.MaxRound)
	}
	row, ok := b.rows[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("%w: player %d", ErrNotFound, playerID)
	}
	return types.Entry{Rank: countAhead(b.root, row.SortKey) + 1, Standing: row}, nil
}

// TopN implements Store.TopN. Equal sort keys share a rank and the next
// distinct key skips the shared places (1, 1, 3).
func (s *TreapStore) TopN(_ context.Context, key BoardKey, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[key]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, fmt.Errorf("%w: board %s@%d", ErrNotFound, key.TournamentID, key.MaxRound)
	}

	ids := make([]int, 0, min(n, len(b.rows)))
	collectTopN(b.root, n, &ids)

	out := make([]types.Entry, len(ids))
	for i, id := range ids {
		out[i] = types.Entry{Rank: i + 1, Standing: b.rows[id]}
		if i > 0 && tiebreak.CompareKeys(out[i-1].SortKey, out[i].SortKey) == 0 {
			out[i].Rank = out[i-1].Rank
		}
	}
	return out, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(_ context.Context, key BoardKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.boards[key]; ok {
		return len(b.rows)
	}
	return 0
}

// Boards implements Store.Boards.
func (s *TreapStore) Boards(_ context.Context) []BoardKey {
	s.mu.RLock()
	out := make([]BoardKey, 0, len(s.boards))
	for k := range s.boards {
		out = append(out, k)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TournamentID != out[j].TournamentID {
			return out[i].TournamentID < out[j].TournamentID
		}
		return out[i].MaxRound < out[j].MaxRound
	})
	return out
}

// Drop implements Store.Drop.
func (s *TreapStore) Drop(_ context.Context, key BoardKey) bool {
	s.mu.Lock()
	_, ok := s.boards[key]
	delete(s.boards, key)
	s.mu.Unlock()

	if ok {
		s.updateMetrics()
	}
	return ok
}

// startMetricsUpdater refreshes the store gauges until ctx ends or Close is called.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	boards := len(s.boards)
	entries := 0
	for _, b := range s.boards {
		entries += len(b.rows)
	}
	s.mu.RUnlock()

	metrics.UpdateStandingsBoards(boards)
	metrics.UpdateStandingsEntries(entries)
}
