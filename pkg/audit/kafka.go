package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka is a Sink that produces audit records as JSON to a topic.
// Grounded on stages/rv-live/kafka.go's franz-go wiring, adapted from
// that file's consumer (PollFetches) to a producer (Produce), keeping the
// same seed-broker/client-option/startup-check shape; discoverTopics's
// kadm.Metadata call becomes a one-shot "does this topic exist" probe
// instead of a recurring pattern-match refresh, since a producer writes
// to one known topic rather than discovering many.
type Kafka struct {
	zerolog.Logger

	client *kgo.Client
	topic  string
}

// KafkaOptions configures NewKafka.
type KafkaOptions struct {
	Brokers string // comma-separated seed broker list
	Topic   string
}

// NewKafka dials the broker list and verifies the topic exists (logging a
// warning, not failing, if it can't be confirmed — the broker may create
// it on first produce depending on cluster config).
func NewKafka(ctx context.Context, opt KafkaOptions, logger zerolog.Logger) (*Kafka, error) {
	logger = logger.With().Str("component", "audit-kafka").Str("topic", opt.Topic).Logger()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(opt.Brokers, ",")...),
		kgo.ConnIdleTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: kafka client: %w", err)
	}

	k := &Kafka{Logger: logger, client: client, topic: opt.Topic}
	if err := k.checkTopic(ctx); err != nil {
		k.Warn().Err(err).Msg("could not confirm audit topic exists")
	}
	return k, nil
}

func (k *Kafka) checkTopic(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	admin := kadm.NewClient(k.client)
	meta, err := admin.Metadata(ctx, k.topic)
	if err != nil {
		return err
	}
	if t, ok := meta.Topics[k.topic]; !ok || t.Err != nil {
		return fmt.Errorf("topic %s not found", k.topic)
	}
	return nil
}

// Record marshals r and produces it asynchronously; delivery errors are
// logged, never returned, matching the Sink contract of never blocking
// the caller.
func (k *Kafka) Record(r Record) {
	body, err := json.Marshal(auditLine{
		Time:   r.Time.UTC().Format(time.RFC3339Nano),
		Method: r.Method,
		UID:    r.UID,
		Params: json.RawMessage(paramsOrNull(r.Params)),
	})
	if err != nil {
		k.Error().Err(err).Msg("failed to marshal audit record")
		return
	}

	record := &kgo.Record{Topic: k.topic, Key: []byte(r.Method), Value: body}
	k.client.Produce(context.Background(), record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.Warn().Err(err).Str("method", r.Method).Msg("failed to produce audit record")
		}
	})
}

// Close flushes any buffered records and closes the client.
func (k *Kafka) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := k.client.Flush(ctx)
	k.client.Close()
	return err
}
