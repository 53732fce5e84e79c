package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/qianzhou/goso/pkg/kafka"
)

const flushInterval = 5 * time.Second

// Collector buffers query events and flushes them in batches to the
// configured sinks. Track never blocks; events are dropped when the
// buffer is full.
type Collector struct {
	producer *kafka.Producer
	store    *Store
	eventCh  chan QueryEvent
	done     chan struct{}
	logger   *slog.Logger
}

// NewCollector creates a Collector. Either sink may be nil.
func NewCollector(producer *kafka.Producer, store *Store, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		store:    store,
		eventCh:  make(chan QueryEvent, bufferSize),
		done:     make(chan struct{}),
		logger:   slog.Default().With("component", "analytics-collector"),
	}
}

// Start runs the flush loop until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		var batch []QueryEvent
		for {
			select {
			case event := <-c.eventCh:
				batch = append(batch, event)
				if len(batch) >= 100 {
					c.flush(ctx, batch)
					batch = nil
				}
			case <-ticker.C:
				if len(batch) > 0 {
					c.flush(ctx, batch)
					batch = nil
				}
			case <-ctx.Done():
				batch = append(batch, c.drain()...)
				if len(batch) > 0 {
					c.flush(context.Background(), batch)
				}
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues one event, dropping it when the buffer is full.
func (c *Collector) Track(event QueryEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close waits for the flush loop to exit.
func (c *Collector) Close() {
	<-c.done
}

func (c *Collector) drain() []QueryEvent {
	var events []QueryEvent
	for {
		select {
		case event := <-c.eventCh:
			events = append(events, event)
		default:
			return events
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []QueryEvent) {
	if c.producer != nil {
		events := make([]kafka.Event, 0, len(batch))
		for _, e := range batch {
			events = append(events, kafka.Event{Key: string(e.Kind), Value: e})
		}
		if err := c.producer.PublishBatch(ctx, events); err != nil {
			c.logger.Error("failed to publish analytics batch", "count", len(batch), "error", err)
		}
	}
	if c.store != nil {
		if err := c.store.RecordBatch(ctx, batch); err != nil {
			c.logger.Error("failed to persist analytics batch", "count", len(batch), "error", err)
		}
	}
}
