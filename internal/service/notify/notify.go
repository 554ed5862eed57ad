// Package notify delivers cycle reports to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	"TrendWatch/pkg/logger"
)

// Named pairs a notifier with the channel name used in logs and metrics.
type Named struct {
	Name     string
	Notifier drepo.Notifier
}

// Multi fans a report out to every channel. All channels are attempted; any
// failure fails the send.
type Multi struct {
	channels []Named
	metrics  drepo.Metrics
	log      *logger.Logger
}

// NewMulti creates a fan-out notifier.
func NewMulti(metrics drepo.Metrics, log *logger.Logger, channels ...Named) *Multi {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Multi{channels: channels, metrics: metrics, log: log}
}

func (m *Multi) Notify(ctx context.Context, report models.Report) error {
	var errs []error
	for _, ch := range m.channels {
		err := ch.Notifier.Notify(ctx, report)
		m.metrics.RecordNotification(ch.Name, err == nil)
		if err != nil {
			m.log.Error("notification channel failed",
				logger.String("channel", ch.Name),
				logger.String("cycle_id", report.CycleID),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Log writes reports to the application log.
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log {
	if log == nil {
		log = logger.Nop()
	}
	return &Log{log: log}
}

func (n *Log) Notify(_ context.Context, report models.Report) error {
	n.log.Info(report.Subject,
		logger.String("cycle_id", report.CycleID),
		logger.Int("summaries", len(report.Summaries)),
		logger.Strings("differences", report.Differences),
		logger.String("body", report.Text),
	)
	return nil
}
