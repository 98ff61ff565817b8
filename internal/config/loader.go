package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ConfigDirEnv 覆盖配置目录，默认为工作目录下的 configs/
const ConfigDirEnv = "RAG_CONFIG_DIR"

// ${VAR} 或 ${VAR:default}
var placeholder = regexp.MustCompile(`\$\{(\w+)(:([^}]*))?\}`)

// Load 依次合并 config.yaml、config.<APP_ENV>.yaml 与环境变量（a.b 对应 A_B），
// 再补默认值并校验
func Load() (*Config, error) {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		dir = "configs"
	}
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := mergeFile(v, filepath.Join(dir, "config.yaml"), false); err != nil {
		return nil, err
	}
	if err := mergeFile(v, filepath.Join(dir, "config."+env+".yaml"), true); err != nil {
		return nil, err
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 字段约束之外还要求默认 provider 已声明
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("invalid config: llm.default_provider %q not in llm.providers", cfg.LLM.DefaultProvider)
	}
	return nil
}

// mergeFile 展开占位符后合并进 v；optional 的文件不存在时跳过
func mergeFile(v *viper.Viper, path string, optional bool) error {
	raw, err := os.ReadFile(path)
	if optional && os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.MergeConfig(strings.NewReader(expandEnv(string(raw)))); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// expandEnv 未设置且无默认值的变量保持原样，便于在校验错误中定位
func expandEnv(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		m := placeholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(m[1]); ok {
			return val
		}
		if m[2] != "" {
			return m[3]
		}
		return match
	})
}

// setDefaults 只在文件与环境变量都未给出时生效
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rag-chat-api")
	v.SetDefault("app.env", "development")

	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	// SSE 长连接不能有写超时
	v.SetDefault("server.http.write_timeout", "0s")
	v.SetDefault("server.http.idle_timeout", "120s")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "rag_chat")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")

	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	v.SetDefault("vector.provider", "milvus")
	v.SetDefault("vector.milvus.host", "localhost")
	v.SetDefault("vector.milvus.port", 19530)
	v.SetDefault("vector.milvus.collection_prefix", "rag_chat")
	v.SetDefault("vector.milvus.hnsw_m", 16)
	v.SetDefault("vector.milvus.hnsw_ef_construction", 200)
	v.SetDefault("vector.milvus.search_ef", 128)

	v.SetDefault("storage.blob.path", "data/blobs")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 384)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.query_cache_ttl", "10m")

	v.SetDefault("ocr.endpoint", "http://localhost:8866")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("vision.enabled", true)
	v.SetDefault("vision.model", "gpt-4o-mini")
	v.SetDefault("vision.max_tokens", 150)
	v.SetDefault("vision.timeout", "60s")

	v.SetDefault("ingestion.chunk_size", 500)
	v.SetDefault("ingestion.chunk_overlap", 50)
	v.SetDefault("ingestion.max_image_edge", 2000)
	v.SetDefault("ingestion.max_upload_bytes", 20<<20)
	v.SetDefault("ingestion.max_concurrency", 4)
	v.SetDefault("ingestion.provider_rps", 10)
	v.SetDefault("ingestion.provider_burst", 5)
	v.SetDefault("ingestion.embed_retries", 2)
	v.SetDefault("ingestion.embed_retry_backoff", "500ms")
	v.SetDefault("ingestion.escalation.min_coverage", 0.1)
	v.SetDefault("ingestion.escalation.min_density", 0.05)
	v.SetDefault("ingestion.escalation.min_confidence", 50)

	v.SetDefault("retrieval.top_k", 8)
	v.SetDefault("retrieval.threshold", 0.25)

	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.classifier_history", 4)
	v.SetDefault("chat.classifier_timeout", "10s")
	v.SetDefault("chat.session_lock.enabled", true)
	v.SetDefault("chat.session_lock.ttl", "120s")
	v.SetDefault("chat.session_lock.wait", "5s")

	v.SetDefault("messaging.redis_stream.enabled", true)
	v.SetDefault("messaging.redis_stream.max_len", 100000)
	v.SetDefault("messaging.redis_stream.consumer_group_prefix", "rag-chat")
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 5)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "60s")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("security.jwt.issuer", "rag-chat")
	v.SetDefault("security.jwt.expiration", "24h")
	v.SetDefault("security.jwt.enabled", true)
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
	v.SetDefault("security.rate_limit.burst", 40)
}
