package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/tablerie/possync/internal/bus"
	"github.com/tablerie/possync/internal/service/models/event"
)

// publisher is the AMQP surface the relay needs.
type publisher interface {
	DeclareFanout(name string) error
	PublishJSON(exchange, routingKey string, payload []byte) error
}

// envelope is the wire form of a relayed event.
type envelope struct {
	ID      uuid.UUID     `json:"id"`
	Type    event.Type    `json:"type"`
	Channel event.Channel `json:"channel"`
	At      time.Time     `json:"at"`
	Event   event.Event   `json:"event"`
}

type queued struct {
	body        []byte
	retryCount  int
	nextRetryAt time.Time
}

var relayedTypes = []event.Type{
	event.TypeOrderCreated,
	event.TypeOrderStatusChanged,
	event.TypeTableChanged,
}

var allChannels = []event.Channel{
	event.ChannelServer,
	event.ChannelKitchen,
	event.ChannelCashier,
	event.ChannelGlobal,
}

// Worker forwards in-process bus events to a durable fanout exchange so
// other processes get push delivery ahead of their next poll. The queue is
// in-memory only: relayed events are as transient as the bus they mirror.
type Worker struct {
	bus           *bus.Bus
	publisher     publisher
	exchange      string
	flushInterval time.Duration
	maxRetries    int

	mu      sync.Mutex
	pending []queued
	subs    map[event.Type]uuid.UUID
	stopCh  chan struct{}
}

// NewWorker creates a new relay worker.
func NewWorker(b *bus.Bus, pub publisher) *Worker {
	exchange := viper.GetString("rabbitmq.relay.exchange")
	if exchange == "" {
		exchange = "pos.notifications"
	}

	flushIntervalMs := viper.GetInt("rabbitmq.relay.flush_interval_ms")
	if flushIntervalMs == 0 {
		flushIntervalMs = 500
	}

	maxRetries := viper.GetInt("rabbitmq.relay.max_retries")
	if maxRetries == 0 {
		maxRetries = 5
	}

	return &Worker{
		bus:           b,
		publisher:     pub,
		exchange:      exchange,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		maxRetries:    maxRetries,
		subs:          make(map[event.Type]uuid.UUID),
		stopCh:        make(chan struct{}),
	}
}

// Start subscribes to the bus and drains the queue until the context is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.publisher.DeclareFanout(w.exchange); err != nil {
		return err
	}

	for _, t := range relayedTypes {
		w.subs[t] = w.bus.Subscribe(t, allChannels, w.enqueue)
	}

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	slog.Info("relay worker started", "exchange", w.exchange, "flush_interval", w.flushInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("relay worker shutting down")
			w.unsubscribe()
			return ctx.Err()
		case <-w.stopCh:
			slog.Info("relay worker stopped")
			w.unsubscribe()
			return nil
		case <-ticker.C:
			w.flush()
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) unsubscribe() {
	for t, id := range w.subs {
		w.bus.Unsubscribe(t, id)
	}
}

func (w *Worker) enqueue(e event.Event) {
	body, err := json.Marshal(envelope{
		ID:      e.EventID(),
		Type:    e.EventType(),
		Channel: e.EventChannel(),
		At:      e.OccurredAt(),
		Event:   e,
	})
	if err != nil {
		slog.Error("failed to marshal event for relay", "type", e.EventType(), "error", err)
		return
	}

	w.mu.Lock()
	w.pending = append(w.pending, queued{body: body})
	w.mu.Unlock()
}

// flush publishes due items, rescheduling failures with exponential backoff
// and dropping them once the retry budget is spent.
func (w *Worker) flush() {
	now := time.Now()

	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	var kept []queued
	for _, item := range batch {
		if item.nextRetryAt.After(now) {
			kept = append(kept, item)
			continue
		}

		err := w.publisher.PublishJSON(w.exchange, "", item.body)
		if err == nil {
			continue
		}

		item.retryCount++
		if item.retryCount >= w.maxRetries {
			slog.Error("dropping event after max relay retries", "retries", item.retryCount, "error", err)
			continue
		}

		backoffSeconds := math.Pow(2, float64(item.retryCount))
		item.nextRetryAt = now.Add(time.Duration(backoffSeconds) * time.Second)

		slog.Warn("failed to relay event, will retry",
			"retry_count", item.retryCount,
			"next_retry", item.nextRetryAt,
			"error", err,
		)
		kept = append(kept, item)
	}

	if len(kept) > 0 {
		w.mu.Lock()
		w.pending = append(kept, w.pending...)
		w.mu.Unlock()
	}
}
