package worker

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"reelbot/jobs"
	"reelbot/reel"
	sharedKafka "reelbot/shared/kafka"
)

// KafkaConfig holds the consumer settings for reel requests.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaConsumer consumes reel.Request messages and renders each one.
func NewKafkaConsumer(cfg KafkaConfig, p *Processor, logger *slog.Logger) (*sharedKafka.Consumer, error) {
	return sharedKafka.NewConsumer(sharedKafka.ConsumerConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
		Handler: requestHandler(p, logger),
		Logger:  logger,
	})
}

// requestHandler acknowledges malformed requests and renders that fail on
// their inputs. Failures in probing, card drawing or the compositor, and
// renders interrupted by shutdown, stay unacknowledged for redelivery.
func requestHandler(p *Processor, logger *slog.Logger) *sharedKafka.TypedMessageHandler[reel.Request] {
	return &sharedKafka.TypedMessageHandler[reel.Request]{
		Validate: func(req *reel.Request) bool {
			if strings.TrimSpace(req.Narration) == "" {
				logger.Warn("skipping reel request without narration", "reel_id", req.ID)
				return false
			}
			if req.ID != "" {
				if err := reel.ValidateID(req.ID); err != nil {
					logger.Warn("skipping reel request with invalid id", "error", err)
					return false
				}
			}
			return true
		},
		Process: func(ctx context.Context, req *reel.Request) error {
			job, err := p.Process(ctx, *req, "kafka")
			if errors.Is(err, jobs.ErrJobActive) {
				// redelivery of a request that is still rendering
				logger.Info("reel already in progress", "reel_id", req.ID)
				return nil
			}
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if job.Status == jobs.StatusFailed {
				return &reel.StageError{Stage: reel.Stage(job.Stage), Err: errors.New(job.Error)}
			}
			return nil
		},
		Retry:      retryable,
		AlwaysMark: true,
		Logger:     logger,
	}
}

// retryable reports whether a failed render may succeed on redelivery.
func retryable(err error) bool {
	var se *reel.StageError
	if !errors.As(err, &se) {
		return true
	}
	switch se.Stage {
	case reel.StageProbe, reel.StageCards, reel.StageExecute:
		return true
	}
	return false
}
