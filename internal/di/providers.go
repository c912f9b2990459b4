package di

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TrendPull/internal/domain/repository"
	"TrendPull/internal/handler/api"
	mid "TrendPull/internal/middleware"
	"TrendPull/internal/regime"
	internalrepo "TrendPull/internal/repository"
	icache "TrendPull/internal/service/cache"
	"TrendPull/internal/service/history"
	"TrendPull/internal/service/stream"
	"TrendPull/internal/usecase"
	pkgcache "TrendPull/pkg/cache"
	pkgch "TrendPull/pkg/clickhouse"
	"TrendPull/pkg/config"
	xhttp "TrendPull/pkg/http"
	pkgkafka "TrendPull/pkg/kafka"
	applogger "TrendPull/pkg/logger"
	"TrendPull/pkg/metrics"
	"TrendPull/pkg/queue"
	"TrendPull/pkg/server"
)

// ProvideLogger creates the shared application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "json", Output: "stdout"}
	if cfg.Environment == "development" {
		lc.Level = "debug"
		lc.Format = "console"
	}
	return applogger.New(lc)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStorage creates the ClickHouse bar store and ensures schema.
func ProvideBarStorage(chClient *pkgch.Client, l *applogger.Logger) (repository.BarStore, error) {
	store := internalrepo.NewCHBarStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarPublisher creates the Kafka bar publisher.
func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.BarPublisher {
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

// ProvideEvaluationPublisher creates the evaluation/lever publisher.
func ProvideEvaluationPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EvaluationPublisher {
	return internalrepo.NewKafkaEvaluationPublisher(producer, cfg.Kafka.EvaluationsTopic, cfg.Kafka.LeversTopic)
}

// ProvideCacheService creates the shared Redis cache, or nil when the
// deployment runs without Redis.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, port := splitAddr(cfg.Redis.Addr)
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func splitAddr(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideBucketResolver prefers Redis-backed assignments and falls back
// to the static mapping from configuration. Bucket reads happen on every
// evaluation, so the Redis cache gets a memory layer in front.
func ProvideBucketResolver(svc pkgcache.Service, cfg *config.Config) repository.BucketResolver {
	if rc, ok := svc.(*pkgcache.RedisCache); ok {
		return internalrepo.NewRedisBucketResolver(pkgcache.NewLayeredCache(rc))
	}
	buckets := make(map[string]string, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if inst.Bucket != "" {
			buckets[inst.Symbol] = inst.Bucket
		}
	}
	return internalrepo.NewStaticBucketResolver(buckets)
}

// ProvideIntentSource reads intent deltas from Redis when available.
// Intents change on external writes, so reads go straight to Redis.
func ProvideIntentSource(svc pkgcache.Service) repository.IntentSource {
	if svc != nil {
		return internalrepo.NewRedisIntentSource(svc)
	}
	return internalrepo.NewNoIntentSource()
}

// ProvideBarStream creates the WebSocket bar feed for every tracked
// instrument and driver composite.
func ProvideBarStream(cfg *config.Config) repository.BarStream {
	symbols := make([]string, 0, len(cfg.Instruments))
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}
	for _, inst := range cfg.Instruments {
		add(inst.Symbol)
	}
	for _, s := range cfg.Regime.Symbols {
		add(s)
	}
	for _, s := range cfg.Regime.Buckets {
		add(s)
	}
	return stream.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		symbols,
		cfg.Feed.Timeframes,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideBarProcessor creates the ingestion routing use case.
func ProvideBarProcessor(
	pub repository.BarPublisher,
	store repository.BarStore,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideBarCollector creates the stream-to-backend collector.
func ProvideBarCollector(
	s repository.BarStream,
	processor *usecase.BarProcessor,
	metrics repository.Metrics,
) *usecase.BarCollector {
	pipe := mid.NewBarPipeline(processor, metrics,
		mid.WithBufferSize(2000),
	)
	return usecase.NewBarCollector(s, processor, metrics, pipe)
}

// ProvideRegimeStore creates the snapshot store.
func ProvideRegimeStore() *regime.Store {
	return regime.NewStore()
}

// ProvideRegimeBuilder creates the driver snapshot builder.
func ProvideRegimeBuilder(cfg *config.Config, store repository.BarStore, l *applogger.Logger) *regime.Builder {
	return regime.NewBuilder(cfg.Regime, cfg.Engine.Signals, store, l)
}

// ProvideRegimeRunner creates the periodic snapshot rebuild loop. The
// Redis mirror is optional and only serves cross-process readers.
func ProvideRegimeRunner(
	builder *regime.Builder,
	store *regime.Store,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
	mirror pkgcache.Service,
) *usecase.RegimeRunner {
	return usecase.NewRegimeRunner(builder, store, metrics, l, cfg.Regime.RebuildInterval, mirror)
}

// ProvideEvaluator creates the per-bar evaluation use case.
func ProvideEvaluator(
	store repository.BarStore,
	snapshots *regime.Store,
	publisher repository.EvaluationPublisher,
	buckets repository.BucketResolver,
	intents repository.IntentSource,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Evaluator {
	execTFs := make(map[string]string, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		execTFs[inst.Symbol] = inst.ExecTF
	}
	return usecase.NewEvaluator(
		store,
		snapshots,
		publisher,
		buckets,
		intents,
		metrics,
		l,
		cfg.Engine.Signals,
		cfg.Lever,
		cfg.Engine.WindowBars,
		execTFs,
	)
}

// ProvideKafkaBarsHandler registers the handler for the bars topic.
func ProvideKafkaBarsHandler(
	store repository.BarStore,
	evaluator *usecase.Evaluator,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, store, evaluator, metrics)
}

// ProvideBarsUseCase creates the bar read use case for the API.
func ProvideBarsUseCase(store repository.BarStore) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(store)
}

// ProvideHTTPHandler creates the Echo API handler. Response caching goes
// through the shared Redis when enabled so replicas serve one cache, and
// falls back to an in-process TTL cache otherwise.
func ProvideHTTPHandler(
	l *applogger.Logger,
	evaluator *usecase.Evaluator,
	snapshots *regime.Store,
	bars *usecase.BarsUseCase,
	svc pkgcache.Service,
) xhttp.Handler {
	var respCache icache.BytesCache
	if rc, ok := svc.(*pkgcache.RedisCache); ok {
		respCache = icache.NewRedisCacheFromClient(rc.Client())
	}
	return api.NewEngineEchoHandler(l, evaluator, snapshots, bars, respCache)
}

// ProvideBackfillQueue creates the Redis-backed backfill queue, or nil
// when Redis or the REST history endpoint is not configured (the stream
// alone then has to fill windows).
func ProvideBackfillQueue(
	svc pkgcache.Service,
	store repository.BarStore,
	l *applogger.Logger,
	cfg *config.Config,
) *queue.RedisQueue {
	if svc == nil || cfg.Feed.RESTURL == "" {
		return nil
	}
	rc, ok := svc.(*pkgcache.RedisCache)
	if !ok {
		return nil
	}
	provider := history.NewProvider(cfg.Feed.RESTURL, cfg.Feed.APIKey, 0)
	job := history.NewBackfillJob(provider, store, l)
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rc.Client(), []queue.Job{job})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	runner *usecase.RegimeRunner,
	httpHandler xhttp.Handler,
	backfill *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, collector, consumer, kh, chClient, runner, httpHandler, backfill)
}
