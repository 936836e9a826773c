package leaderboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/store"
)

func newTestBoard(t *testing.T, size int) *Board {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return New(st, size, nil)
}

func receive(t *testing.T, ch <-chan []model.Result) []model.Result {
	t.Helper()
	select {
	case top, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed")
		}
		return top
	case <-time.After(time.Second):
		t.Fatalf("no leaderboard update")
	}
	return nil
}

func names(results []model.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func TestBoardKeepsTopN(t *testing.T) {
	board := newTestBoard(t, 2)
	ctx := context.Background()
	for _, r := range []model.Result{
		{Name: "ann", WPM: 40, Accuracy: 90},
		{Name: "bob", WPM: 70, Accuracy: 95},
		{Name: "cat", WPM: 55, Accuracy: 99},
	} {
		if err := board.Submit(ctx, r); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	top, err := board.Top(ctx, 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	got := names(top)
	if len(got) != 2 || got[0] != "bob" || got[1] != "cat" {
		t.Fatalf("unexpected top: %v", got)
	}
	top, err = board.Top(ctx, 1)
	if err != nil || len(top) != 1 {
		t.Fatalf("expected single entry, got %v (%v)", top, err)
	}
}

func TestBoardSubscribeReceivesUpdates(t *testing.T) {
	board := newTestBoard(t, DefaultSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := board.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if initial := receive(t, ch); len(initial) != 0 {
		t.Fatalf("expected empty initial board, got %v", names(initial))
	}

	if err := board.Submit(context.Background(), model.Result{Name: "ada", WPM: 50, Accuracy: 97}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	update := receive(t, ch)
	if len(update) != 1 || update[0].Name != "ada" || update[0].ID == 0 {
		t.Fatalf("unexpected update: %+v", update)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed")
	}
}

func TestBoardSlowSubscriberSeesLatest(t *testing.T) {
	board := newTestBoard(t, DefaultSize)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := board.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for i, name := range []string{"a", "b", "c"} {
		r := model.Result{Name: name, WPM: 10 * (i + 1), Accuracy: 100}
		if err := board.Submit(context.Background(), r); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	latest := receive(t, ch)
	if len(latest) != 3 || latest[0].Name != "c" {
		t.Fatalf("expected newest board, got %v", names(latest))
	}
}

// stallingBackend holds the first armed TopResults call until released.
type stallingBackend struct {
	*store.Store
	once    sync.Once
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
}

func (b *stallingBackend) TopResults(ctx context.Context, n int) ([]model.Result, error) {
	select {
	case <-b.armed:
		stall := false
		b.once.Do(func() { stall = true })
		if stall {
			close(b.entered)
			<-b.release
		}
	default:
	}
	return b.Store.TopResults(ctx, n)
}

func TestBoardConcurrentSubmitsEndOnNewestList(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	backend := &stallingBackend{
		Store:   st,
		armed:   make(chan struct{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	board := New(backend, DefaultSize, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := board.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	receive(t, ch)
	close(backend.armed)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = board.Submit(context.Background(), model.Result{Name: "a", WPM: 10, Accuracy: 100})
	}()
	<-backend.entered
	go func() {
		defer wg.Done()
		_ = board.Submit(context.Background(), model.Result{Name: "b", WPM: 90, Accuracy: 100})
	}()
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	latest := receive(t, ch)
	if got := names(latest); len(got) != 2 || got[0] != "b" {
		t.Fatalf("expected both results on the final list, got %v", got)
	}
}

type failingBackend struct{}

func (failingBackend) InsertResult(context.Context, model.Result) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingBackend) TopResults(context.Context, int) ([]model.Result, error) {
	return nil, nil
}

func TestBoardSubmitError(t *testing.T) {
	board := New(failingBackend{}, 0, nil)
	if board.Size() != DefaultSize {
		t.Fatalf("expected default size, got %d", board.Size())
	}
	if err := board.Submit(context.Background(), model.Result{Name: "ada"}); err == nil {
		t.Fatalf("expected submit error")
	}
}
