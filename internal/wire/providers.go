// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"strings"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/google/wire"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/config"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	"rag-chat-api/internal/infrastructure/blob"
	infraembedding "rag-chat-api/internal/infrastructure/embedding"
	"rag-chat-api/internal/infrastructure/extract"
	"rag-chat-api/internal/infrastructure/imaging"
	"rag-chat-api/internal/infrastructure/llm"
	"rag-chat-api/internal/infrastructure/messaging"
	"rag-chat-api/internal/infrastructure/ocr"
	"rag-chat-api/internal/infrastructure/persistence/milvus"
	"rag-chat-api/internal/infrastructure/persistence/postgres"
	"rag-chat-api/internal/infrastructure/persistence/redis"
	"rag-chat-api/internal/infrastructure/vision"
	"rag-chat-api/internal/interfaces/http/handler"
	"rag-chat-api/internal/interfaces/http/middleware"
	"rag-chat-api/internal/interfaces/http/router"
	"rag-chat-api/internal/workflow/chain"
	workflowport "rag-chat-api/internal/workflow/port"
	workflowprompt "rag-chat-api/internal/workflow/prompt"
	"rag-chat-api/pkg/logger"
)

const (
	queryCachePrefix  = "qvec"
	sessionLockPrefix = "lock:session"
)

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewAssetRepository,
	postgres.NewChunkRepository,
	postgres.NewChatSessionRepository,
	postgres.NewChatMessageRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.AssetRepository), new(*postgres.AssetRepository)),
	wire.Bind(new(repository.ChunkRepository), new(*postgres.ChunkRepository)),
	wire.Bind(new(repository.ChatSessionRepository), new(*postgres.ChatSessionRepository)),
	wire.Bind(new(repository.ChatMessageRepository), new(*postgres.ChatMessageRepository)),
)

// RedisSet Redis 可选能力：查询缓存、限流、会话锁、事件
var RedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideQueryCache,
	ProvideRateLimiter,
	ProvideSessionLocker,
	ProvideAssetEvents,
)

// VectorSet 向量后端与检索
var VectorSet = wire.NewSet(
	ProvideEmbedder,
	ProvideVectorStore,
	ProvideRetrievalEngine,
)

// IngestionSet 上传摄取
var IngestionSet = wire.NewSet(
	ProvideBlobStore,
	wire.Bind(new(ingestion.BlobStorage), new(*blob.Store)),
	ProvideOCR,
	ProvideVision,
	ProvideIngestionPipeline,
	ingestion.NewAssetService,
)

// ChatSet 对话编排
var ChatSet = wire.NewSet(
	workflowprompt.NewRegistry,
	ProvideLLMFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	chain.NewClassifyChain,
	chain.NewAnswerChain,
	chat.NewSessionManager,
	ProvideClassifier,
	ProvideOrchestrator,
)

// WorkerSet 进程内异步任务
var WorkerSet = wire.NewSet(
	ProvideJanitor,
)

// AppSet 应用入口
var AppSet = wire.NewSet(
	wire.Struct(new(App), "*"),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideAssetHandler,
	handler.NewChatHandler,
	wire.Bind(new(handler.ChatTurns), new(*chat.Orchestrator)),
	handler.NewSessionHandler,
	wire.Bind(new(handler.SessionQueries), new(*chat.SessionManager)),
	ProvideHealthHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.NewWithDeps,
)

// App HTTP 路由与后台消费者；Janitor 在未启用事件时为 nil
type App struct {
	Router  *router.Router
	Janitor *messaging.Consumer
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClientOptional Redis 不可达时不阻塞启动，相关能力降级
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if strings.TrimSpace(cfg.Cache.Redis.Host) == "" {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, cache/rate limit/events disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideQueryCache(client *redis.Client) retrieval.QueryVectorCache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client, queryCachePrefix)
}

func ProvideRateLimiter(cfg *config.Config, client *redis.Client) middleware.RateLimiter {
	if client == nil || !cfg.Security.RateLimit.Enabled {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideSessionLocker 优先使用 Redis 租约，否则退化为进程内锁
func ProvideSessionLocker(cfg *config.Config, client *redis.Client) chat.SessionLocker {
	if !cfg.Chat.SessionLock.Enabled {
		return nil
	}
	if client == nil {
		return chat.NewLocalLocker()
	}
	return redis.NewSessionLocker(client, sessionLockPrefix)
}

func ProvideAssetEvents(cfg *config.Config, client *redis.Client) ingestion.AssetEvents {
	if client == nil || !cfg.Messaging.RedisStream.Enabled {
		return nil
	}
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewAssetEvents(messaging.NewProducer(client.Redis(), int64(maxLen)))
}

func ProvideEmbedder(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	return infraembedding.NewEmbedder(ctx, &cfg.Embedding)
}

// ProvideVectorStore 按 vector.provider 选择 Milvus 或 pgvector
func ProvideVectorStore(ctx context.Context, cfg *config.Config, pg *postgres.Client) (retrieval.VectorStore, func(), error) {
	switch cfg.Vector.Provider {
	case "pgvector":
		return postgres.NewPgvectorStore(pg), func() {}, nil
	default:
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, nil, err
		}
		store := milvus.NewStore(client, cfg.Embedding.Dimension)
		if err := store.EnsureCollection(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		cleanup := func() {
			_ = client.Close()
		}
		return store, cleanup, nil
	}
}

func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, vector retrieval.VectorStore, chunks repository.ChunkRepository, cache retrieval.QueryVectorCache) *retrieval.Engine {
	engine := retrieval.NewEngine(embedder, vector, chunks, retrieval.Options{
		TopK:      cfg.Retrieval.TopK,
		Threshold: cfg.Retrieval.Threshold,
	})
	return engine.WithQueryCache(cache, cfg.Embedding.QueryCacheTTL)
}

func ProvideBlobStore(cfg *config.Config) (*blob.Store, func(), error) {
	store, err := blob.Open(&cfg.Storage.Blob)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = store.Close()
	}
	return store, cleanup, nil
}

// ProvideOCR 未配置 OCR 服务时图片上传会被拒绝
func ProvideOCR(ctx context.Context, cfg *config.Config) ingestion.OCREngine {
	if strings.TrimSpace(cfg.OCR.Endpoint) == "" {
		logger.Warn(ctx, "ocr endpoint not configured, image ingestion disabled")
		return nil
	}
	client, err := ocr.NewClient(&cfg.OCR)
	if err != nil {
		logger.Warn(ctx, "ocr not available, image ingestion disabled", "error", err.Error())
		return nil
	}
	return client
}

func ProvideVision(ctx context.Context, cfg *config.Config, prompts *workflowprompt.Registry) ingestion.VisionDescriber {
	if !cfg.Vision.Enabled {
		return nil
	}
	d, err := vision.NewDescriber(&cfg.Vision, prompts)
	if err != nil {
		logger.Warn(ctx, "vision model not available, images use ocr text only", "error", err.Error())
		return nil
	}
	return d
}

func ProvideIngestionPipeline(
	cfg *config.Config,
	embedder einoembedding.Embedder,
	vector retrieval.VectorStore,
	assets repository.AssetRepository,
	chunks repository.ChunkRepository,
	tx repository.Transactor,
	blobs ingestion.BlobStorage,
	ocrEngine ingestion.OCREngine,
	describer ingestion.VisionDescriber,
	events ingestion.AssetEvents,
) *ingestion.Pipeline {
	ic := cfg.Ingestion
	return ingestion.NewPipeline(ingestion.Deps{
		Extractors: map[entity.AssetKind]ingestion.TextExtractor{
			entity.AssetKindPDF:  extract.NewPDF(""),
			entity.AssetKindDOCX: extract.NewDOCX(),
		},
		Images:   imaging.NewPreparer(),
		OCR:      ocrEngine,
		Vision:   describer,
		Embedder: embedder,
		Vector:   vector,
		Assets:   assets,
		Chunks:   chunks,
		Tx:       tx,
		Blobs:    blobs,
		Events:   events,
	}, ingestion.Config{
		ChunkSize:         ic.ChunkSize,
		ChunkOverlap:      ic.ChunkOverlap,
		MaxImageEdge:      ic.MaxImageEdge,
		MaxUploadBytes:    ic.MaxUploadBytes,
		MaxConcurrency:    ic.MaxConcurrency,
		ProviderRPS:       ic.ProviderRPS,
		ProviderBurst:     ic.ProviderBurst,
		EmbedBatchSize:    cfg.Embedding.BatchSize,
		EmbedRetries:      ic.EmbedRetries,
		EmbedRetryBackoff: ic.EmbedRetryBackoff,
		Escalation: ingestion.EscalationPolicy{
			MinCoverage:   ic.Escalation.MinCoverage,
			MinDensity:    ic.Escalation.MinDensity,
			MinConfidence: ic.Escalation.MinConfidence,
		},
	})
}

func ProvideLLMFactory(cfg *config.Config) *llm.EinoFactory {
	return llm.NewEinoFactory(&cfg.LLM)
}

// chatProvider 对话使用的 LLM 提供商
func chatProvider(cfg *config.Config) string {
	if p := strings.TrimSpace(cfg.Chat.Provider); p != "" {
		return p
	}
	return cfg.LLM.DefaultProvider
}

func ProvideClassifier(cfg *config.Config, classify *chain.ClassifyChain) chat.Classifier {
	provider := strings.TrimSpace(cfg.Chat.ClassifierProvider)
	if provider == "" {
		provider = chatProvider(cfg)
	}
	return chat.NewLLMClassifier(classify, provider, cfg.Chat.ClassifierHistory, cfg.Chat.ClassifierTimeout)
}

func ProvideOrchestrator(
	cfg *config.Config,
	sessions *chat.SessionManager,
	classifier chat.Classifier,
	engine *retrieval.Engine,
	answer *chain.AnswerChain,
	locker chat.SessionLocker,
) *chat.Orchestrator {
	provider := chatProvider(cfg)
	pc := cfg.LLM.Providers[provider]

	var retriever chat.Retriever
	if engine.Enabled() {
		retriever = engine
	}

	oc := chat.OrchestratorConfig{
		Provider:     provider,
		Model:        pc.Model,
		HistoryLimit: cfg.Chat.HistoryLimit,
		LockTTL:      cfg.Chat.SessionLock.TTL,
		LockWait:     cfg.Chat.SessionLock.Wait,
	}
	if pc.Temperature > 0 {
		t := float32(pc.Temperature)
		oc.Temperature = &t
	}
	if pc.MaxTokens > 0 {
		n := pc.MaxTokens
		oc.MaxTokens = &n
	}
	return chat.NewOrchestrator(sessions, classifier, retriever, answer, locker, oc)
}

func ProvideAssetHandler(cfg *config.Config, pipeline *ingestion.Pipeline, assets *ingestion.AssetService) *handler.AssetHandler {
	return handler.NewAssetHandler(pipeline, assets, cfg.Ingestion.MaxUploadBytes)
}

// ProvideHealthHandler PostgreSQL 与向量库为必需依赖，其余为可选
func ProvideHealthHandler(pg *postgres.Client, rdb *redis.Client, vector retrieval.VectorStore, blobs *blob.Store) *handler.HealthHandler {
	probes := []handler.Probe{
		{Name: "postgres", Required: true, Check: pg.HealthCheck},
		{Name: "blob", Required: true, Check: blobs.HealthCheck},
	}
	if hc, ok := vector.(interface {
		HealthCheck(ctx context.Context) error
	}); ok {
		probes = append(probes, handler.Probe{Name: vector.Backend(), Required: true, Check: hc.HealthCheck})
	}
	if rdb != nil {
		probes = append(probes, handler.Probe{Name: "redis", Required: false, Check: rdb.HealthCheck})
	}
	return handler.NewHealthHandler(probes...)
}

// ProvideJanitor 资产清理消费者；blob 存储为进程内嵌数据库，消费者与 API 同进程运行
func ProvideJanitor(cfg *config.Config, client *redis.Client, vector retrieval.VectorStore, blobs ingestion.BlobStorage) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	if client == nil || !rs.Enabled {
		return nil
	}
	group := messaging.ConsumerGroupAssetJanitor
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + ":" + string(group))
	}
	return messaging.NewJanitorConsumer(client.Redis(), messaging.ConsumerConfig{
		Group:         group,
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	}, messaging.NewAssetJanitor(vector, blobs))
}
