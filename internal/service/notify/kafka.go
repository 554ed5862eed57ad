package notify

import (
	"context"
	"time"

	"TrendWatch/internal/domain/models"
)

// Publisher is satisfied by pkg/kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

type reportEvent struct {
	CycleID     string                 `json:"cycle_id"`
	Subject     string                 `json:"subject"`
	Differences []string               `json:"differences"`
	Summaries   []models.SymbolSummary `json:"summaries"`
	SentAt      time.Time              `json:"sent_at"`
}

// Kafka publishes reports to a topic keyed by cycle id.
type Kafka struct {
	pub   Publisher
	topic string
}

func NewKafka(pub Publisher, topic string) *Kafka {
	return &Kafka{pub: pub, topic: topic}
}

func (n *Kafka) Notify(ctx context.Context, report models.Report) error {
	return n.pub.Publish(ctx, n.topic, []byte(report.CycleID), reportEvent{
		CycleID:     report.CycleID,
		Subject:     report.Subject,
		Differences: report.Differences,
		Summaries:   report.Summaries,
		SentAt:      time.Now().UTC(),
	})
}
