package di

import (
	"context"
	"fmt"
	"time"

	drepo "TrendWatch/internal/domain/repository"
	dsvc "TrendWatch/internal/domain/service"
	"TrendWatch/internal/handler/api"
	internalrepo "TrendWatch/internal/repository"
	"TrendWatch/internal/service/alphavantage"
	"TrendWatch/internal/service/notify"
	"TrendWatch/internal/service/ratelimit"
	"TrendWatch/internal/service/yahoo"
	"TrendWatch/internal/usecase"
	"TrendWatch/pkg/cache"
	pkgch "TrendWatch/pkg/clickhouse"
	"TrendWatch/pkg/config"
	xhttp "TrendWatch/pkg/http"
	pkgkafka "TrendWatch/pkg/kafka"
	applogger "TrendWatch/pkg/logger"
	"TrendWatch/pkg/metrics"
	"TrendWatch/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// With logs_topic set, aggregated error logs are shipped through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Kafka.LogsTopic,
			Publisher:    producer,
		})
	}
	cleanup := func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideCache creates the Redis cache for the redis store and an in-process
// cache otherwise. Either serves as the cycle lock.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if cfg.Store.Type != "redis" {
		// unbounded: it holds state records, not a hot-data cache
		mc := cache.NewMemoryCache(
			cache.WithMemoryMaxEntries(0),
			cache.WithMemorySweep(cfg.Store.SweepInterval),
		)
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Store.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideLocker exposes the cache as the cycle lock.
func ProvideLocker(c cache.Service) drepo.Locker {
	return c
}

// ProvideStateStore selects the persistence backend from store.type.
func ProvideStateStore(cfg *config.Config, c cache.Service) (drepo.StateStore, func(), error) {
	switch cfg.Store.Type {
	case "sqlite", "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := internalrepo.OpenSQLStateStore(ctx, cfg.Store.Type, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("state store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		// closed through the cache cleanup
		return internalrepo.NewCacheStateStore(c), func() {}, nil
	}
}

// ProvideParams loads the per-symbol parameter file.
func ProvideParams(cfg *config.Config, l *applogger.Logger) (drepo.ParamsSource, error) {
	p, err := config.LoadParams(cfg.SymbolsFile, cfg.Universe)
	if err != nil {
		return nil, err
	}
	for sym, reason := range p.Invalid() {
		l.Warn("symbol parameters rejected", applogger.String("symbol", sym), applogger.Error(reason))
	}
	return p, nil
}

// ProvidePriceProvider creates the configured market data client.
func ProvidePriceProvider(cfg *config.Config) drepo.PriceProvider {
	if cfg.Provider.Type == "yahoo" {
		return yahoo.New(cfg.Provider.LookbackDays)
	}
	return alphavantage.New(cfg.Provider.APIKey,
		alphavantage.WithBaseURL(cfg.Provider.BaseURL),
		alphavantage.WithOutputSize(cfg.Provider.OutputSize),
		alphavantage.WithRateLimit(cfg.Provider.RequestsPerMinute, ratelimit.New()),
		alphavantage.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.Timeout))),
	)
}

// ProvideAcquirer creates the retrying series acquirer.
func ProvideAcquirer(cfg *config.Config, p drepo.PriceProvider, m drepo.Metrics, l *applogger.Logger) *usecase.Acquirer {
	return usecase.NewAcquirer(p, m, l,
		usecase.WithRetry(cfg.Cycle.RetryAttempts, cfg.Cycle.RetryBackoff),
		usecase.WithInterval(drepo.NormalizeInterval(cfg.Provider.Interval)),
		usecase.WithProviderName(cfg.Provider.Type),
	)
}

// ProvideReconciler creates the state reconciler.
func ProvideReconciler(store drepo.StateStore, l *applogger.Logger) *usecase.Reconciler {
	return usecase.NewReconciler(store, dsvc.SystemClock{}, l)
}

// ProvideNotifier builds the fan-out notifier from notify.channels. With no
// channels configured the report is only logged.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, m drepo.Metrics, l *applogger.Logger) (drepo.Notifier, error) {
	n := cfg.Notify
	var channels []notify.Named
	for _, name := range n.Channels {
		switch name {
		case "log":
			channels = append(channels, notify.Named{Name: name, Notifier: notify.NewLog(l)})
		case "smtp":
			channels = append(channels, notify.Named{Name: name, Notifier: notify.NewSMTP(notify.SMTPConfig{
				Host:     n.SMTP.Host,
				Port:     n.SMTP.Port,
				Username: n.SMTP.Username,
				Password: n.SMTP.Password,
				From:     n.SMTP.From,
				To:       n.SMTP.To,
				Timeout:  n.SMTP.Timeout,
			})})
		case "webhook":
			channels = append(channels, notify.Named{Name: name, Notifier: notify.NewWebhook(n.Webhook.URL, n.Webhook.Timeout)})
		case "telegram":
			channels = append(channels, notify.Named{Name: name, Notifier: notify.NewTelegram(n.Telegram.BotToken, n.Telegram.ChatID)})
		case "kafka":
			if producer == nil {
				return nil, fmt.Errorf("notify channel kafka requires kafka.enabled")
			}
			channels = append(channels, notify.Named{Name: name, Notifier: notify.NewKafka(producer, cfg.Kafka.ReportsTopic)})
		default:
			return nil, fmt.Errorf("unknown notify channel %q", name)
		}
	}
	if len(channels) == 0 {
		channels = append(channels, notify.Named{Name: "log", Notifier: notify.NewLog(l)})
	}
	return notify.NewMulti(m, l, channels...), nil
}

// ProvideJournal opens the ClickHouse decision journal, or nil when disabled.
func ProvideJournal(cfg *config.Config, l *applogger.Logger) (drepo.DecisionJournal, func(), error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.JournalSchema(ch.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return internalrepo.NewClickHouseJournal(client, ch.Database, l), func() { _ = client.Close() }, nil
}

// ProvideDecisionPublisher emits decision events when Kafka is enabled.
func ProvideDecisionPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideCoordinator assembles the cycle coordinator.
func ProvideCoordinator(
	cfg *config.Config,
	params drepo.ParamsSource,
	acquirer *usecase.Acquirer,
	reconciler *usecase.Reconciler,
	notifier drepo.Notifier,
	journal drepo.DecisionJournal,
	publisher drepo.DecisionPublisher,
	locker drepo.Locker,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Coordinator {
	clock := dsvc.SystemClock{}
	opts := []usecase.CoordinatorOption{
		usecase.WithLocker(locker, cfg.Cycle.LockTTL),
		usecase.WithPacer(ratelimit.NewPacer(cfg.Cycle.MinSymbolDuration, clock)),
		usecase.WithCycleClock(clock),
		usecase.WithSubject(cfg.Notify.Subject),
		usecase.WithNotifyTimeout(cfg.Notify.SendTimeout),
	}
	if journal != nil {
		opts = append(opts, usecase.WithJournal(journal))
	}
	if publisher != nil {
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	return usecase.NewCoordinator(params, acquirer, reconciler, notifier, m, l, opts...)
}

// ProvideHTTPHandler creates the echo handler.
func ProvideHTTPHandler(l *applogger.Logger, c *usecase.Coordinator, store drepo.StateStore) xhttp.Handler {
	return api.NewCycleEchoHandler(l, c, store)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, c *usecase.Coordinator, h xhttp.Handler, store drepo.StateStore) *server.App {
	return server.New(cfg, l, c, h, store)
}

