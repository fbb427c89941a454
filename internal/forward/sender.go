package forward

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/pkg/models"
)

// Clock abstracts time for the flush-interval logic so tests can advance
// simulated time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production clock.
var RealClock Clock = realClock{}

// defaultPollInterval bounds how long one sender loop iteration waits on an
// empty queue before re-checking the flush timer.
const defaultPollInterval = 200 * time.Millisecond

// Sender drains the queue, batches events by size or elapsed time, and
// posts batches to the ingestion API. A failed batch is retained and
// retried on the next loop iteration, indefinitely; only process exit
// discards it.
type Sender struct {
	queue        *queue.Queue
	client       *Client
	batchSize    int
	interval     time.Duration
	pollInterval time.Duration
	clock        Clock
	logger       *zap.Logger

	pending []models.Event
}

// NewSender creates a sender. interval is the maximum time a non-empty
// batch may wait before flushing.
func NewSender(q *queue.Queue, client *Client, batchSize int, interval time.Duration, clock Clock, logger *zap.Logger) *Sender {
	return &Sender{
		queue:        q,
		client:       client,
		batchSize:    batchSize,
		interval:     interval,
		pollInterval: defaultPollInterval,
		clock:        clock,
		logger:       logger,
	}
}

// Run loops until ctx is cancelled, then makes one final flush attempt for
// whatever is still pending or buffered.
func (s *Sender) Run(ctx context.Context) {
	lastFlush := s.clock.Now()

	for {
		if ctx.Err() != nil {
			s.shutdownFlush()
			return
		}

		if ev, ok := s.queue.Dequeue(ctx, s.pollInterval); ok {
			s.pending = append(s.pending, ev)
		}

		if len(s.pending) == 0 {
			continue
		}

		intervalElapsed := s.clock.Now().Sub(lastFlush) >= s.interval
		if len(s.pending) < s.batchSize && !intervalElapsed {
			continue
		}

		if err := s.client.SendBatch(ctx, s.pending); err != nil {
			// Batch retained; next iteration retries at loop cadence.
			s.logger.Warn("batch send failed, retaining batch",
				zap.Int("events", len(s.pending)),
				zap.Error(err),
			)
			continue
		}

		s.logger.Debug("batch sent", zap.Int("events", len(s.pending)))
		s.pending = nil
		lastFlush = s.clock.Now()
	}
}

// shutdownFlush drains the queue and attempts one last send with a short
// deadline. Anything undeliverable here is the accepted loss window.
func (s *Sender) shutdownFlush() {
	for {
		ev, ok := s.queue.TryDequeue()
		if !ok {
			break
		}
		s.pending = append(s.pending, ev)
	}
	if len(s.pending) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.client.SendBatch(ctx, s.pending); err != nil {
		s.logger.Warn("final flush failed, events lost",
			zap.Int("events", len(s.pending)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("final flush complete", zap.Int("events", len(s.pending)))
	s.pending = nil
}
