package broadcaster

import (
	"context"
	"log/slog"
	"time"

	"cross/infra/kafka"
	"cross/infra/metrics"
	exitwal "cross/infra/wal/exit"
)

// Broadcaster drains the tape topic of the exit WAL into the broker with
// at-least-once delivery: NEW -> SENT -> ACKED -> deleted. Entries left
// SENT by a crash are published again.
type Broadcaster struct {
	exitWAL    *exitwal.ExitWAL
	publisher  kafka.Publisher
	key        []byte
	interval   time.Duration
	maxRetries uint32
	log        *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Broadcaster)

func WithMaxRetries(n uint32) Option { return func(b *Broadcaster) { b.maxRetries = n } }

func WithLogger(l *slog.Logger) Option { return func(b *Broadcaster) { b.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(b *Broadcaster) { b.metrics = m } }

// New keys every message with key so the tape keeps one partition order.
func New(exitWAL *exitwal.ExitWAL, pub kafka.Publisher, key string, interval time.Duration, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		exitWAL:    exitWAL,
		publisher:  pub,
		key:        []byte(key),
		interval:   interval,
		maxRetries: 5,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("component", "broadcaster")
	return b
}

// Run flushes every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", "interval", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("flush failed", "err", err)
			}
		}
	}
}

// Flush publishes every deliverable entry once. It stops at the first
// broker failure and leaves the rest for the next tick.
func (b *Broadcaster) Flush(ctx context.Context) (sent int, err error) {
	var batch []exitwal.Entry
	err = b.exitWAL.ScanByState(exitwal.TapeTopic, func(e exitwal.Entry) error {
		if e.State == exitwal.StateFailed && e.Retries >= b.maxRetries {
			return nil
		}
		batch = append(batch, e)
		return nil
	}, exitwal.StateNew, exitwal.StateSent, exitwal.StateFailed)
	if err != nil {
		return 0, err
	}
	b.metrics.SetOutboxPending(len(batch))

	for _, e := range batch {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := b.exitWAL.MarkSent(e); err != nil {
			return sent, err
		}

		if err := b.publisher.Publish(ctx, b.key, e.Payload); err != nil {
			b.metrics.PublishResult(false)
			if failErr := b.exitWAL.MarkFailed(e); failErr != nil {
				return sent, failErr
			}
			if e.Retries+1 >= b.maxRetries {
				b.log.Error("tape entry exhausted retries", "seq", e.Seq, "retries", e.Retries+1, "err", err)
			}
			return sent, err
		}

		b.metrics.PublishResult(true)
		if err := b.exitWAL.MarkAcked(e); err != nil {
			return sent, err
		}
		sent++
	}

	if _, err := b.exitWAL.DeleteAcked(exitwal.TapeTopic); err != nil {
		return sent, err
	}
	b.metrics.SetOutboxPending(len(batch) - sent)
	return sent, nil
}

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}
