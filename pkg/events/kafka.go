package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/crossbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/crossbook/pkg/util"
)

// Producer publishes one keyed message.
type Producer interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

type kafkaGoProducer struct {
	writer *kafka.Writer
}

// NewKafkaGoProducer writes synchronously with acks from all replicas.
func NewKafkaGoProducer(brokers []string, topic string) Producer {
	return &kafkaGoProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *kafkaGoProducer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *kafkaGoProducer) Close() error { return p.writer.Close() }

type saramaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaProducer(brokers []string, topic string) (Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("sarama producer: %w", err)
	}
	return &saramaProducer{producer: producer, topic: topic}, nil
}

func (p *saramaProducer) Send(_ context.Context, key, value []byte) error {
	_, _, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	return err
}

func (p *saramaProducer) Close() error { return p.producer.Close() }

// KafkaSink publishes every notification as a JSON Event keyed by symbol, so
// one symbol's events stay on one partition and keep their order.
type KafkaSink struct {
	producer Producer
	logger   *zap.SugaredLogger
	clock    util.Clock
	timeout  time.Duration
}

func NewKafkaSink(producer Producer, logger *zap.SugaredLogger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		logger:   logger,
		clock:    util.RealClock{},
		timeout:  5 * time.Second,
	}
}

func (k *KafkaSink) send(e Event) {
	e.V = 1
	e.Time = k.clock.Now()
	value, err := json.Marshal(e)
	if err != nil {
		k.logger.Errorw("kafka_encode_failed", "type", e.Type.String(), "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.producer.Send(ctx, []byte(e.Symbol), value); err != nil {
		k.logger.Warnw("kafka_publish_failed", "type", e.Type.String(), "symbol", e.Symbol, "err", err)
	}
}

func (k *KafkaSink) OrderAccepted(o orderbook.Order) {
	k.send(Event{Type: OrderAccepted, Symbol: o.Symbol, Order: &o})
}

func (k *KafkaSink) OrderRejected(o orderbook.Order, reason error) {
	k.send(Event{Type: OrderRejected, Symbol: o.Symbol, Order: &o, Reason: reason.Error()})
}

func (k *KafkaSink) TradeExecuted(t orderbook.Trade) {
	k.send(Event{Type: TradeExecuted, Symbol: t.Symbol, Trade: &t})
}

func (k *KafkaSink) OrderCancelled(o orderbook.Order, reason string) {
	k.send(Event{Type: OrderCancelled, Symbol: o.Symbol, Order: &o, Reason: reason})
}

func (k *KafkaSink) StopTriggered(o orderbook.Order, marketPrice int64) {
	k.send(Event{Type: StopTriggered, Symbol: o.Symbol, Order: &o, MarketPrice: marketPrice})
}

func (k *KafkaSink) Close() error { return k.producer.Close() }
