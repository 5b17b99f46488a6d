package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/polkiloo/ordercheckout/internal/domain/errors"
	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

// ExpiryFacade exposes the subset of application functionality required by the sweeper.
type ExpiryFacade interface {
	ExpiredOrders(ctx context.Context, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, orderID uuid.UUID) (model.Outcome, error)
	DeferExpiry(ctx context.Context, orderID uuid.UUID, delay time.Duration) error
}

// maxBackoffShift caps the retry delay of a failing order at 64 sweep intervals.
const maxBackoffShift = 6

// Lease decides which replica sweeps. Acquire is called before every sweep.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ExpirySweeper periodically expires unpaid orders past their deadline using a worker pool.
type ExpirySweeper struct {
	facade    ExpiryFacade
	interval  time.Duration
	batchSize int
	workers   int
	logger    *slog.Logger
	lease     Lease

	jobs     chan uuid.UUID
	inflight map[uuid.UUID]struct{}
	failures map[uuid.UUID]int
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewExpirySweeper constructs the sweeper; non-positive sizes fall back to 1.
func NewExpirySweeper(facade ExpiryFacade, interval time.Duration, batchSize, workers int, logger *slog.Logger) *ExpirySweeper {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		facade:    facade,
		interval:  interval,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger,
		inflight:  make(map[uuid.UUID]struct{}),
		failures:  make(map[uuid.UUID]int),
	}
}

// SetLease makes sweeps conditional on holding l. Must be called before Start.
func (s *ExpirySweeper) SetLease(l Lease) {
	s.mu.Lock()
	s.lease = l
	s.mu.Unlock()
}

// Start launches the dispatcher and workers.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.jobs = make(chan uuid.UUID, s.batchSize)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(runCtx, s.jobs)
	}

	s.wg.Add(1)
	go s.dispatch(runCtx, s.jobs)
}

// Stop cancels the sweep and waits for in-flight expirations to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *ExpirySweeper) dispatch(ctx context.Context, jobs chan<- uuid.UUID) {
	defer s.wg.Done()
	defer close(jobs)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.releaseLease()
			return
		case <-ticker.C:
			if s.holdsLease(ctx) {
				s.sweep(ctx, jobs)
			}
		}
	}
}

func (s *ExpirySweeper) holdsLease(ctx context.Context) bool {
	if s.lease == nil {
		return true
	}
	held, err := s.lease.Acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("acquire sweep lease failed", slog.String("error", err.Error()))
		}
		return false
	}
	if !held {
		s.logger.Debug("sweep lease held by another instance")
	}
	return held
}

func (s *ExpirySweeper) releaseLease() {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.logger.Warn("release sweep lease failed", slog.String("error", err.Error()))
	}
}

// sweep queues due orders, skipping those a worker is still expiring.
func (s *ExpirySweeper) sweep(ctx context.Context, jobs chan<- uuid.UUID) {
	ids, err := s.facade.ExpiredOrders(ctx, s.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("select expired orders failed", slog.String("error", err.Error()))
		}
		return
	}
	if len(ids) > 0 {
		s.logger.Debug("expiry sweep", slog.Int("due", len(ids)))
	}

	for _, id := range ids {
		if !s.claim(id) {
			continue
		}
		select {
		case <-ctx.Done():
			s.release(id)
			return
		case jobs <- id:
		}
	}
}

func (s *ExpirySweeper) claim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *ExpirySweeper) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *ExpirySweeper) worker(ctx context.Context, jobs <-chan uuid.UUID) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-jobs:
			if !ok {
				return
			}
			s.expire(ctx, id)
			s.release(id)
		}
	}
}

func (s *ExpirySweeper) expire(ctx context.Context, id uuid.UUID) {
	outcome, err := s.facade.Expire(ctx, id)
	if err == nil {
		s.mu.Lock()
		delete(s.failures, id)
		s.mu.Unlock()
		s.logger.Debug("order expiry processed", slog.String("order_id", id.String()), slog.String("outcome", outcome.String()))
		return
	}
	if ctx.Err() != nil {
		return
	}

	delay := s.backoff(id)
	var gwErr *domainErrors.PaymentGatewayError
	if errors.As(err, &gwErr) && gwErr.RetryAfter > 0 {
		s.logger.Warn("payment gateway rate limited expiry", slog.String("order_id", id.String()), slog.Duration("retry_after", gwErr.RetryAfter))
		delay = max(delay, gwErr.RetryAfter)
		defer s.pause(ctx, gwErr.RetryAfter)
	} else {
		s.logger.Error("expire order failed", slog.String("order_id", id.String()), slog.String("error", err.Error()))
	}

	// a failing order must not keep later due orders out of the batch
	if err := s.facade.DeferExpiry(ctx, id, delay); err != nil && ctx.Err() == nil {
		s.logger.Error("defer order expiry failed", slog.String("order_id", id.String()), slog.String("error", err.Error()))
	}
}

// backoff doubles the retry delay of id with each consecutive failure.
func (s *ExpirySweeper) backoff(id uuid.UUID) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	shift := min(s.failures[id], maxBackoffShift)
	s.failures[id]++
	return s.interval << shift
}

func (s *ExpirySweeper) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
