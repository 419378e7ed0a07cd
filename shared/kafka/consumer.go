package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

// MessageHandler handles one message value. shouldMark reports whether the
// offset may be committed; an unmarked message is redelivered after a
// rebalance or restart.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer reads one topic as a member of a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	logger  *slog.Logger
	topic   string
	groupID string
	ready   chan struct{}
}

// ConsumerConfig holds the broker, topic and group to join.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  *slog.Logger
}

// NewConsumer joins the consumer group. Offsets start at the newest message
// for a group without commits.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		logger:  logger.With("component", "kafka-consumer", "topic", cfg.Topic),
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		ready:   make(chan struct{}),
	}, nil
}

// Start consumes in the background and returns once the first session is
// set up. Consumption stops when ctx is cancelled or Close is called.
func (c *Consumer) Start(ctx context.Context) error {
	session := &groupSession{handler: c.handler, logger: c.logger, ready: c.ready}

	go func() {
		for {
			err := c.group.Consume(ctx, []string{c.topic}, session)
			if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
				c.logger.Info("kafka consumer stopped")
				return
			}
			if err != nil {
				c.logger.Error("kafka consume failed", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			// rebalance: Setup closes a fresh channel next session
			session.ready = make(chan struct{})
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info("kafka consumer started", "group", c.groupID)

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", "error", err)
		}
	}()
	return nil
}

// Close leaves the group.
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.group.Close()
}

// groupSession adapts a MessageHandler to sarama.ConsumerGroupHandler.
type groupSession struct {
	handler MessageHandler
	logger  *slog.Logger
	ready   chan struct{}
}

func (s *groupSession) Setup(sarama.ConsumerGroupSession) error {
	close(s.ready)
	return nil
}

func (s *groupSession) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (s *groupSession) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg := <-claim.Messages():
			if msg == nil {
				return nil
			}
			logger := s.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
			logger.Debug("kafka message received")

			mark, err := s.handler.HandleMessage(session.Context(), msg.Value)
			if err != nil {
				logger.Error("failed to handle message", "marked", mark, "error", err)
			}
			if mark {
				session.MarkMessage(msg, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON values into T before handing them on.
type TypedMessageHandler[T any] struct {
	// Validate rejects decoded messages that should not be processed.
	Validate func(msg *T) bool
	// Process handles one accepted message.
	Process func(ctx context.Context, msg *T) error
	// Retry decides whether a Process error leaves the message unmarked.
	// Nil means every error is retried.
	Retry func(err error) bool
	// AlwaysMark marks undecodable and rejected messages so they are not
	// redelivered.
	AlwaysMark bool
	Logger     *slog.Logger
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("failed to unmarshal message", "error", err)
		}
		return h.AlwaysMark, nil
	}

	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}

	if err := h.Process(ctx, &msg); err != nil {
		retry := h.Retry == nil || h.Retry(err)
		return !retry, err
	}
	return true, nil
}
