package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reelbot/shared/kafka"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var brokers []string
	var topic string

	cmd := &cobra.Command{
		Use:   "enqueue <request.json>",
		Short: "Publish a reel request to the render topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(args[0])
			if err != nil {
				return err
			}
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}
			if len(brokers) == 0 {
				brokers = settings.KafkaBrokers
			}
			if topic == "" {
				topic = settings.KafkaTopic
			}
			if strings.TrimSpace(req.ID) == "" {
				req.ID = uuid.New().String()
			}

			producer, err := kafka.NewProducer(brokers, topic)
			if err != nil {
				return err
			}
			defer producer.Close()

			partition, offset, err := producer.PublishJSON(req.ID, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued reel %s on %s (partition %d, offset %d)\n", req.ID, topic, partition, offset)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&brokers, "brokers", nil, "Kafka brokers (default KAFKA_BOOTSTRAP_SERVERS)")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to publish to (default KAFKA_TOPIC_REEL_REQUESTS)")
	return cmd
}
