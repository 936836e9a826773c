// Package leaderboard keeps a live, ordered view of the best results.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/verte-zerg/speedtype/internal/metrics"
	"github.com/verte-zerg/speedtype/internal/model"
)

// DefaultSize is the number of entries shown when none is configured.
const DefaultSize = 5

// Backend persists results and answers top-N queries.
type Backend interface {
	InsertResult(ctx context.Context, r model.Result) (int64, error)
	TopResults(ctx context.Context, n int) ([]model.Result, error)
}

// Board accepts results and pushes the refreshed top list to subscribers
// after every successful write. It implements session.ResultSink.
type Board struct {
	backend Backend
	size    int
	logger  *slog.Logger

	// writeMu orders insert, refresh and publish so subscribers never end on
	// an older list than the store holds.
	writeMu sync.Mutex

	mu     sync.Mutex
	nextID int
	subs   map[int]chan []model.Result
}

// New returns a Board showing size entries.
func New(backend Backend, size int, logger *slog.Logger) *Board {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		backend: backend,
		size:    size,
		logger:  logger,
		subs:    map[int]chan []model.Result{},
	}
}

// Size returns the number of entries on the board.
func (b *Board) Size() int {
	return b.size
}

// Submit stores a result and notifies subscribers.
func (b *Board) Submit(ctx context.Context, r model.Result) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	id, err := b.backend.InsertResult(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	b.logger.Debug("result stored", "id", id, "name", r.Name, "wpm", r.WPM)
	top, err := b.backend.TopResults(ctx, b.size)
	if err != nil {
		// The write succeeded; subscribers catch up on the next one.
		b.logger.Warn("failed to refresh leaderboard", "error", err)
		return nil
	}
	b.publish(top)
	return nil
}

// Top returns the current top n entries, capped at the board size.
func (b *Board) Top(ctx context.Context, n int) ([]model.Result, error) {
	if n <= 0 || n > b.size {
		n = b.size
	}
	return b.backend.TopResults(ctx, n)
}

// Subscribe returns a channel that receives the current top list right away
// and again after each write. Slow readers only see the latest list. The
// channel is closed when ctx is done.
func (b *Board) Subscribe(ctx context.Context) (<-chan []model.Result, error) {
	b.writeMu.Lock()
	initial, err := b.backend.TopResults(ctx, b.size)
	if err != nil {
		b.writeMu.Unlock()
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	ch := make(chan []model.Result, 1)
	ch <- initial

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()
	b.writeMu.Unlock()
	metrics.LeaderboardSubscribers.Inc()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
		metrics.LeaderboardSubscribers.Dec()
	}()
	return ch, nil
}

func (b *Board) publish(top []model.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		snapshot := append([]model.Result(nil), top...)
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Drop the stale list and keep the newest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}
