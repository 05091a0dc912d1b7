package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
)

type memLedger struct {
	mu      sync.Mutex
	pending map[string]string
}

func newMemLedger(ids ...string) *memLedger {
	l := &memLedger{pending: make(map[string]string)}
	for _, id := range ids {
		l.pending[id] = "initial failure"
	}
	return l
}

func (l *memLedger) Record(_ context.Context, userID, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[userID] = detail
	return nil
}

func (l *memLedger) Pending(_ context.Context, limit int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.pending))
	for id := range l.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (l *memLedger) Resolve(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, userID)
	return nil
}

func (l *memLedger) Count(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.pending)), nil
}

type flakyPeer struct {
	mu       sync.Mutex
	failing  map[string]bool
	calls    map[string]int
	inFlight map[string]bool
	overlap  bool
}

func newFlakyPeer(failing ...string) *flakyPeer {
	p := &flakyPeer{failing: make(map[string]bool), calls: make(map[string]int), inFlight: make(map[string]bool)}
	for _, id := range failing {
		p.failing[id] = true
	}
	return p
}

func (p *flakyPeer) DeleteUserData(_ context.Context, userID string) error {
	p.mu.Lock()
	if p.inFlight[userID] {
		p.overlap = true
	}
	p.inFlight[userID] = true
	p.calls[userID]++
	fail := p.failing[userID]
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	delete(p.inFlight, userID)
	p.mu.Unlock()

	if fail {
		return &domain.PeerError{Status: 503, Detail: "unavailable"}
	}
	return nil
}

func (p *flakyPeer) callCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func TestReconciler_SweepResolvesSuccessfulRetries(t *testing.T) {
	ledger := newMemLedger("u-1", "u-2", "u-3")
	peer := newFlakyPeer("u-2")
	r := NewReconciler(ledger, peer, Config{Workers: 2, Batch: 10}, zerolog.Nop())

	ctx := context.Background()
	r.startWorkers(ctx)
	r.sweep(ctx)
	r.stopWorkers()

	n, _ := ledger.Count(ctx)
	if n != 1 {
		t.Fatalf("expected one pending cleanup left, got %d", n)
	}
	if _, ok := ledger.pending["u-2"]; !ok {
		t.Fatalf("expected failing user to stay pending")
	}
	for _, id := range []string{"u-1", "u-2", "u-3"} {
		if got := peer.callCount(id); got != 1 {
			t.Fatalf("expected one attempt for %s, got %d", id, got)
		}
	}
}

func TestReconciler_SweepHonoursBatch(t *testing.T) {
	ledger := newMemLedger("a", "b", "c", "d")
	peer := newFlakyPeer()
	r := NewReconciler(ledger, peer, Config{Workers: 3, Batch: 2}, zerolog.Nop())

	ctx := context.Background()
	r.startWorkers(ctx)
	r.sweep(ctx)
	r.stopWorkers()

	if n, _ := ledger.Count(ctx); n != 2 {
		t.Fatalf("expected 2 pending after one batch of 2, got %d", n)
	}
}

type brokenLedger struct{ memLedger }

func (*brokenLedger) Pending(context.Context, int64) ([]string, error) {
	return nil, errors.New("redis down")
}

func TestReconciler_SweepSurvivesLedgerFailure(t *testing.T) {
	peer := newFlakyPeer()
	r := NewReconciler(&brokenLedger{}, peer, Config{Workers: 1}, zerolog.Nop())

	ctx := context.Background()
	r.startWorkers(ctx)
	r.sweep(ctx)
	r.stopWorkers()

	if len(peer.calls) != 0 {
		t.Fatalf("expected no peer calls, got %v", peer.calls)
	}
}

func TestReconciler_StartRetriesUntilResolvedAndStops(t *testing.T) {
	ledger := newMemLedger("u-1", "u-2", "u-3", "u-4")
	peer := newFlakyPeer()
	r := NewReconciler(ledger, peer, Config{Interval: 5 * time.Millisecond, Workers: 2, Batch: 10}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if n, _ := ledger.Count(ctx); n == 0 {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatalf("ledger was not drained in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("reconciler did not stop after cancellation")
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.overlap {
		t.Fatalf("a user id was retried concurrently")
	}
}

func TestReconciler_ShardIndexIsStable(t *testing.T) {
	r := NewReconciler(newMemLedger(), newFlakyPeer(), Config{Workers: 5}, zerolog.Nop())

	for _, id := range []string{"u-1", "550e8400-e29b-41d4-a716-446655440000", ""} {
		first := r.shardIndex(id)
		if first < 0 || first >= 5 {
			t.Fatalf("shard %d out of range for %q", first, id)
		}
		if again := r.shardIndex(id); again != first {
			t.Fatalf("shard for %q changed from %d to %d", id, first, again)
		}
	}
}
