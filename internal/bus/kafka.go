package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/observability"
)

const DefaultKafkaTopic = "smsctl.commands"

var ErrNoBrokers = errors.New("bus: no kafka brokers configured")

// NewKafkaProducer builds an idempotent, fully acknowledged sync producer.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	list := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoBrokers
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = "smsctl"
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	prod, err := sarama.NewSyncProducer(list, cfg)
	if err != nil {
		return nil, fmt.Errorf("bus: kafka producer: %w", err)
	}
	return prod, nil
}

// KafkaBridge mirrors broadcasts to a Kafka topic so external tooling can
// audit the commands sent to connectors.
type KafkaBridge struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

func NewKafkaBridge(p sarama.SyncProducer, topic string) *KafkaBridge {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaBridge{producer: p, topic: topic, log: observability.ComponentLogger("bus.kafka")}
}

// Mirror publishes one broadcast. The message key is the command type and
// the value is the marshaled envelope.
func (k *KafkaBridge) Mirror(ctx context.Context, b Broadcast) error {
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(commandKey(b.Payload)),
		Value: sarama.ByteEncoder(envelope.Marshal(b.Payload)),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(b.Kind)},
		},
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		_, _, err := k.producer.SendMessage(msg)
		done <- err
	}()
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-done:
	}
	observability.RecordKafkaPublish(k.topic, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("bus: kafka mirror %s: %w", b.Kind, err)
	}
	return nil
}

// Run mirrors broadcasts from in until it closes or ctx ends.
func (k *KafkaBridge) Run(ctx context.Context, in <-chan Broadcast) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			if err := k.Mirror(ctx, b); err != nil {
				k.log.Warn().Err(err).Msg("bus.KafkaBridge.Run mirror failed")
			}
		}
	}
}

func (k *KafkaBridge) Close() error {
	return k.producer.Close()
}

func commandKey(env envelope.Envelope) string {
	cmd, err := connector.CommandFromEnvelope(env)
	if err != nil {
		return "unknown"
	}
	return cmd.Type().String()
}
