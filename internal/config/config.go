// Package config 定义服务配置结构，并从 YAML 与环境变量加载
package config

import (
	"time"
)

// Config 对应 configs/config.yaml 的根节点
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	OCR           OCRConfig           `yaml:"ocr" mapstructure:"ocr"`
	Vision        VisionConfig        `yaml:"vision" mapstructure:"vision"`
	Ingestion     IngestionConfig     `yaml:"ingestion" mapstructure:"ingestion"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Chat          ChatConfig          `yaml:"chat" mapstructure:"chat"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

type AppConfig struct {
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	Env  string `yaml:"env" mapstructure:"env"`
}

type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig 连接池参数直接作用于 database/sql
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host" validate:"required"`
	Port            int           `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// VectorConfig 向量检索配置
type VectorConfig struct {
	// Provider 向量后端：milvus / pgvector
	Provider string       `yaml:"provider" mapstructure:"provider" validate:"oneof=milvus pgvector"`
	Milvus   MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig 集合固定使用 HNSW + COSINE 索引
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
	SearchEf           int    `yaml:"search_ef" mapstructure:"search_ef"`
}

type StorageConfig struct {
	Blob BlobConfig `yaml:"blob" mapstructure:"blob"`
}

// BlobConfig Badger 本地 blob 存储
type BlobConfig struct {
	Path     string `yaml:"path" mapstructure:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory" mapstructure:"in_memory"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider" validate:"required"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers" validate:"required,dive"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider openai（eino 组件）/ http（自建推理服务）
	Provider  string        `yaml:"provider" mapstructure:"provider" validate:"oneof=openai http"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension" validate:"min=1"`
	BatchSize int           `yaml:"batch_size" mapstructure:"batch_size" validate:"min=1"`
	Endpoint  string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// QueryCacheTTL 查询向量缓存时长，0 表示不缓存
	QueryCacheTTL time.Duration `yaml:"query_cache_ttl" mapstructure:"query_cache_ttl"`
}

// OCRConfig OCR 服务配置
type OCRConfig struct {
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// VisionConfig 视觉模型配置
type VisionConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	MaxTokens int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// IngestionConfig 上传摄取配置
type IngestionConfig struct {
	ChunkSize      int   `yaml:"chunk_size" mapstructure:"chunk_size" validate:"min=1"`
	ChunkOverlap   int   `yaml:"chunk_overlap" mapstructure:"chunk_overlap" validate:"min=0,ltfield=ChunkSize"`
	MaxImageEdge   int   `yaml:"max_image_edge" mapstructure:"max_image_edge" validate:"min=1"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes" validate:"min=1"`
	MaxConcurrency int   `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"min=1"`
	// ProviderRPS 外部模型调用的节流速率
	ProviderRPS       float64          `yaml:"provider_rps" mapstructure:"provider_rps"`
	ProviderBurst     int              `yaml:"provider_burst" mapstructure:"provider_burst"`
	EmbedRetries      int              `yaml:"embed_retries" mapstructure:"embed_retries" validate:"min=0"`
	EmbedRetryBackoff time.Duration    `yaml:"embed_retry_backoff" mapstructure:"embed_retry_backoff"`
	Escalation        EscalationConfig `yaml:"escalation" mapstructure:"escalation"`
}

// EscalationConfig 图片视觉升级阈值
type EscalationConfig struct {
	MinCoverage   float64 `yaml:"min_coverage" mapstructure:"min_coverage" validate:"min=0,max=1"`
	MinDensity    float64 `yaml:"min_density" mapstructure:"min_density" validate:"min=0"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence" validate:"min=0,max=100"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK      int     `yaml:"top_k" mapstructure:"top_k" validate:"min=1"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold" validate:"min=0,max=1"`
}

// ChatConfig 对话配置
type ChatConfig struct {
	// Provider 生成模型，空则用 llm.default_provider
	Provider string `yaml:"provider" mapstructure:"provider"`
	// ClassifierProvider 分类模型，空则与 Provider 相同
	ClassifierProvider string            `yaml:"classifier_provider" mapstructure:"classifier_provider"`
	HistoryLimit       int               `yaml:"history_limit" mapstructure:"history_limit" validate:"min=0"`
	ClassifierHistory  int               `yaml:"classifier_history" mapstructure:"classifier_history" validate:"min=0"`
	ClassifierTimeout  time.Duration     `yaml:"classifier_timeout" mapstructure:"classifier_timeout"`
	SessionLock        SessionLockConfig `yaml:"session_lock" mapstructure:"session_lock"`
}

// SessionLockConfig 同会话串行锁
type SessionLockConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Wait    time.Duration `yaml:"wait" mapstructure:"wait"`
}

type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
}

type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=0,max=1"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret     string        `yaml:"secret" mapstructure:"secret" validate:"required"`
	Issuer     string        `yaml:"issuer" mapstructure:"issuer"`
	Expiration time.Duration `yaml:"expiration" mapstructure:"expiration"`
	// Enabled 关闭时不校验 token，请求以 DevUserID 身份执行
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	DevUserID string `yaml:"dev_user_id" mapstructure:"dev_user_id"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}
