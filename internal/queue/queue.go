package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/aevon-lab/aevon-metrics/internal/core/partition"
)

// HandlerFunc processes one message payload. A returned error is logged;
// the message is not redelivered.
type HandlerFunc func(ctx context.Context, payload []byte) error

type produceAPI interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Producer publishes messages to a single topic.
type Producer struct {
	topic  string
	client produceAPI
}

// NewProducer connects a producer for topic.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RecordPartitioner(orgPartitioner()),
		kgo.WithLogger(slogAdapter{level: kgo.LogLevelWarn}),
		kgo.RecordRetries(5),
		kgo.RequestRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{topic: topic, client: client}, nil
}

// orgPartitioner pins every key to one partition so a tenant's messages are
// consumed in order. Keyless records fall back to round robin.
func orgPartitioner() kgo.Partitioner {
	return kgo.BasicConsistentPartitioner(func(string) func(*kgo.Record, int) int {
		var next int
		return func(r *kgo.Record, n int) int {
			if len(r.Key) == 0 {
				next = (next + 1) % n
				return next
			}
			return partition.For(string(r.Key), n)
		}
	})
}

// Publish writes one message and waits for the broker acknowledgement.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Value: value}
	if key != "" {
		record.Key = []byte(key)
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		slog.Error("[Queue] Publish failed", "topic", p.topic, "key", key, "error", err)
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	slog.Debug("[Queue] Published message", "topic", p.topic, "key", key, "bytes", len(value))
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}

type pollAPI interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// commitTimeout bounds the offset commit after a batch, which still runs
// when the consumer is shutting down.
const commitTimeout = 5 * time.Second

// Consumer reads one topic as a member of a consumer group.
type Consumer struct {
	topic  string
	client pollAPI
}

// NewConsumer joins group and subscribes to topic. Offsets are committed
// only after a record has been handled, so a job interrupted by a crash or
// shutdown is delivered again.
func NewConsumer(brokers []string, group, topic string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if strings.TrimSpace(group) == "" || strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("group and topic are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.WithLogger(slogAdapter{level: kgo.LogLevelWarn}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return &Consumer{topic: topic, client: client}, nil
}

// Run polls until ctx is cancelled, handing each record to handle in order
// and committing the records that were handled.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	slog.Info("[Queue] Consumer started", "topic", c.topic)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			slog.Info("[Queue] Consumer stopped", "topic", c.topic)
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("[Queue] Fetch error", "topic", topic, "partition", partition, "error", err)
		})

		handled, _ := dispatch(ctx, fetches.Records(), handle)
		c.commit(ctx, handled)
	}
}

func (c *Consumer) commit(ctx context.Context, records []*kgo.Record) {
	if len(records) == 0 {
		return
	}
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := c.client.CommitRecords(commitCtx, records...); err != nil {
		slog.Error("[Queue] Offset commit failed", "topic", c.topic, "records", len(records), "error", err)
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

// dispatch hands records to handle in order and returns the records that
// are done with, plus the number whose handler failed. A failed record is
// still done: handlers report their own failures and are not retried. A
// record interrupted by cancellation is not done, and neither is anything
// after it.
func dispatch(ctx context.Context, records []*kgo.Record, handle HandlerFunc) ([]*kgo.Record, int) {
	handled := make([]*kgo.Record, 0, len(records))
	failed := 0
	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		err := handle(ctx, record.Value)
		if ctx.Err() != nil {
			slog.Warn("[Queue] Handler interrupted, record will be redelivered",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
			)
			break
		}
		if err != nil {
			failed++
			slog.Error("[Queue] Message handler failed",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
				"error", err,
			)
		}
		handled = append(handled, record)
	}
	return handled, failed
}
