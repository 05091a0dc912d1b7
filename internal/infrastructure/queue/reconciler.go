package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/api/metrics"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	defaultWorkers  = 4
	defaultBatch    = 100
	defaultInterval = time.Minute
	channelBuffer   = 64
)

type job struct {
	userID string
	done   *sync.WaitGroup
}

// Reconciler retries the peer cascade for users recorded in the cleanup
// ledger. Pending ids are routed to a fixed set of workers by hashing the
// user id, and every sweep waits for its whole batch before the next tick, so
// a user id is never retried twice concurrently.
type Reconciler struct {
	ledger   ports.CleanupLedger
	peer     ports.PeerDeletionClient
	interval time.Duration
	batch    int64
	workers  []chan job
	running  sync.WaitGroup
	done     chan struct{}
	log      zerolog.Logger
}

// Config tunes a Reconciler. Zero values select the defaults.
type Config struct {
	Interval time.Duration
	Workers  int
	Batch    int64
}

// NewReconciler creates a Reconciler draining ledger through peer.
func NewReconciler(ledger ports.CleanupLedger, peer ports.PeerDeletionClient, cfg Config, log zerolog.Logger) *Reconciler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	r := &Reconciler{
		ledger:   ledger,
		peer:     peer,
		interval: cfg.Interval,
		batch:    cfg.Batch,
		workers:  make([]chan job, cfg.Workers),
		done:     make(chan struct{}),
		log:      log,
	}
	for i := range r.workers {
		r.workers[i] = make(chan job, channelBuffer)
	}
	return r
}

// Start launches the workers and the sweep loop. Everything stops once ctx is
// cancelled; Done is closed when the last worker has exited.
func (r *Reconciler) Start(ctx context.Context) {
	r.startWorkers(ctx)
	go r.loop(ctx)
}

// Done is closed after Start's goroutines have all returned.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.stopWorkers()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Int("workers", len(r.workers)).Msg("peer cleanup reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("peer cleanup reconciler stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep retries one batch of pending cleanups and blocks until every job in
// it has finished.
func (r *Reconciler) sweep(ctx context.Context) {
	ids, err := r.ledger.Pending(ctx, r.batch)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to read pending peer cleanups")
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		r.workers[r.shardIndex(id)] <- job{userID: id, done: &wg}
	}
	wg.Wait()

	r.refreshPending(ctx)
}

func (r *Reconciler) refreshPending(ctx context.Context) {
	n, err := r.ledger.Count(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to count pending peer cleanups")
		return
	}
	metrics.PeerCleanupPending.Set(float64(n))
}

// shardIndex maps a user id deterministically to a worker index.
func (r *Reconciler) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(r.workers)))
}

func (r *Reconciler) startWorkers(ctx context.Context) {
	for i, ch := range r.workers {
		r.running.Add(1)
		go r.runWorker(ctx, i, ch)
	}
}

// stopWorkers closes the worker channels; only the sweep loop sends on them.
func (r *Reconciler) stopWorkers() {
	for _, ch := range r.workers {
		close(ch)
	}
	r.running.Wait()
	close(r.done)
}

func (r *Reconciler) runWorker(ctx context.Context, id int, ch <-chan job) {
	defer r.running.Done()
	for j := range ch {
		r.retry(ctx, id, j.userID)
		j.done.Done()
	}
}

func (r *Reconciler) retry(ctx context.Context, workerID int, userID string) {
	if err := r.peer.DeleteUserData(ctx, userID); err != nil {
		metrics.PeerCleanupRetriesTotal.WithLabelValues("failed").Inc()
		r.log.Warn().Err(err).
			Str("user_id", userID).
			Str("detail", domain.PeerDetail(err)).
			Int("worker_id", workerID).
			Msg("peer cleanup retry failed")
		return
	}

	metrics.PeerCleanupRetriesTotal.WithLabelValues("resolved").Inc()
	if err := r.ledger.Resolve(ctx, userID); err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("peer cleanup succeeded but ledger entry not resolved")
		return
	}
	r.log.Info().Str("user_id", userID).Int("worker_id", workerID).Msg("peer cleanup resolved")
}
