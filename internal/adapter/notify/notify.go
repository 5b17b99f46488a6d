// Package notify publishes committed order transitions.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/polkiloo/ordercheckout/internal/domain/model"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 1024
	eventTypeKey   = "event_type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher writes order events to a topic keyed by order id, so events of one
// order land on the same partition in commit order. Notify only enqueues; a single
// goroutine hands events to an async writer.
type KafkaDispatcher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
	drain  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan kafka.Message
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewKafkaDispatcher builds a dispatcher writing to topic on the given brokers.
func NewKafkaDispatcher(brokers []string, topic string, logger *slog.Logger) *KafkaDispatcher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	d := newKafkaDispatcher(w, topic, queueSize, logger)
	w.Completion = d.delivered
	return d
}

func newKafkaDispatcher(w messageWriter, topic string, size int, logger *slog.Logger) *KafkaDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &KafkaDispatcher{
		ctx:    ctx,
		cancel: cancel,
		writer: w,
		topic:  topic,
		logger: logger,
		now:    time.Now,
		drain:  publishTimeout,
		queue:  make(chan kafka.Message, size),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify queues the event for publishing and never waits for the broker.
// Events are dropped with a warning when the queue is full or the dispatcher is closed.
func (d *KafkaDispatcher) Notify(_ context.Context, event model.OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("encode order event", slog.String("order_id", event.OrderID.String()), slog.Any("error", err))
		return
	}
	msg := kafka.Message{
		Key:     []byte(event.OrderID.String()),
		Value:   data,
		Headers: []kafka.Header{{Key: eventTypeKey, Value: []byte(event.Type)}},
		Time:    d.now().UTC(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped(msg, "dispatcher closed")
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.dropped(msg, "queue full")
	}
}

func (d *KafkaDispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(d.ctx, publishTimeout)
		err := d.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			d.delivered([]kafka.Message{msg}, err)
		}
	}
}

// delivered receives the outcome of asynchronous writes.
func (d *KafkaDispatcher) delivered(msgs []kafka.Message, err error) {
	for _, msg := range msgs {
		if err != nil {
			d.logger.Warn("publish order event failed",
				slog.String("topic", d.topic),
				slog.String("type", eventType(msg)),
				slog.String("order_id", string(msg.Key)),
				slog.Any("error", err),
			)
			continue
		}
		d.logger.Debug("order event published", slog.String("type", eventType(msg)), slog.String("order_id", string(msg.Key)))
	}
}

func (d *KafkaDispatcher) dropped(msg kafka.Message, reason string) {
	d.logger.Warn("order event dropped",
		slog.String("reason", reason),
		slog.String("type", eventType(msg)),
		slog.String("order_id", string(msg.Key)),
	)
}

// Close publishes queued events, flushes the writer and closes it. Events still
// queued when the drain timeout passes are abandoned.
func (d *KafkaDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	timer := time.NewTimer(d.drain)
	defer timer.Stop()
	select {
	case <-d.done:
	case <-timer.C:
		d.cancel()
		<-d.done
	}
	d.cancel()
	return d.writer.Close()
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == eventTypeKey {
			return string(h.Value)
		}
	}
	return ""
}

// LogDispatcher only logs events; used when no brokers are configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, event model.OrderEvent) {
	d.logger.Info("order event",
		slog.String("type", string(event.Type)),
		slog.String("order_id", event.OrderID.String()),
		slog.String("status", string(event.Status)),
		slog.String("total", event.Total.String()),
	)
}

func (d *LogDispatcher) Close() error { return nil }
