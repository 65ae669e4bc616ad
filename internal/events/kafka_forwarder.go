package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tvdermeer/3dprint-website/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder ships bus events to a kafka topic in batches. Publishing never blocks the
// aggregates: when the queue is full the event is dropped and logged.
type KafkaForwarder struct {
	writer    messageWriter
	queue     chan Event
	pending   []kafka.Message // last batch the writer rejected, retried before anything newer
	flushTick time.Duration
	batchSize int
	log       *logger.Logger
}

func NewKafkaForwarder(log *logger.Logger, topic string, brokers ...string) *KafkaForwarder {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaForwarder(w, log)
}

func newKafkaForwarder(w messageWriter, log *logger.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		writer:    w,
		queue:     make(chan Event, 256),
		flushTick: time.Second,
		batchSize: 100,
		log:       logger.OrNop(log),
	}
}

// Attach subscribes the forwarder to bus and returns the unsubscribe function.
func (f *KafkaForwarder) Attach(bus *Bus) func() {
	return bus.Subscribe(f.enqueue)
}

func (f *KafkaForwarder) enqueue(e Event) {
	select {
	case f.queue <- e:
	default:
		f.log.Warn("event queue full, dropping event", "type", e.Type, "key", e.Key)
	}
}

// Run flushes queued events every tick until ctx is cancelled, then flushes what is left.
func (f *KafkaForwarder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.flushTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.flush(ctx)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.flush(drainCtx)
			cancel()
			return
		}
	}
}

// flush writes queued events batch by batch. A rejected batch is kept and retried on the next
// flush so events are not lost while the broker is down. Only Run calls flush.
func (f *KafkaForwarder) flush(ctx context.Context) {
	for {
		retry := len(f.pending) > 0
		if !retry {
			f.pending = f.take()
		}
		if len(f.pending) == 0 {
			return
		}
		if err := f.writer.WriteMessages(ctx, f.pending...); err != nil {
			f.log.Error("failed to publish events, will retry", "count", len(f.pending), "error", err)
			return
		}
		n := len(f.pending)
		f.pending = nil
		if !retry && n < f.batchSize {
			return
		}
	}
}

func (f *KafkaForwarder) take() []kafka.Message {
	var batch []kafka.Message
	for len(batch) < f.batchSize {
		select {
		case e := <-f.queue:
			msg, err := toMessage(e)
			if err != nil {
				f.log.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			batch = append(batch, msg)
		default:
			return batch
		}
	}
	return batch
}

func toMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}, nil
}

func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
