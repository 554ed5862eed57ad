package repository

import (
	"context"
	"fmt"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
)

// publisher is the subset of pkg/kafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaDecisionPublisher emits decision events keyed by symbol so that
// a symbol's events stay on one partition.
type KafkaDecisionPublisher struct {
	producer publisher
	topic    string
}

func NewKafkaDecisionPublisher(p publisher, topic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: p, topic: topic}
}

var _ drepo.DecisionPublisher = (*KafkaDecisionPublisher)(nil)

func (k *KafkaDecisionPublisher) PublishDecision(ctx context.Context, ev models.DecisionEvent) error {
	if err := k.producer.Publish(ctx, k.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish decision %s: %w", ev.Symbol, err)
	}
	return nil
}
