package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"rag-chat-api/internal/domain/repository"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("retrieval")

// QueryVectorCache 查询向量读穿缓存，Redis Cache 满足该接口
type QueryVectorCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

type Engine struct {
	embedder embedding.Embedder
	vector   VectorStore
	chunks   repository.ChunkRepository
	opts     Options

	cache    QueryVectorCache
	cacheTTL time.Duration
}

func NewEngine(embedder embedding.Embedder, vector VectorStore, chunks repository.ChunkRepository, opts Options) *Engine {
	return &Engine{
		embedder: embedder,
		vector:   vector,
		chunks:   chunks,
		opts:     opts.normalized(),
	}
}

// WithQueryCache 启用查询向量缓存，ttl<=0 时忽略
func (e *Engine) WithQueryCache(cache QueryVectorCache, ttl time.Duration) *Engine {
	if cache != nil && ttl > 0 {
		e.cache = cache
		e.cacheTTL = ttl
	}
	return e
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil && e.chunks != nil
}

func (e *Engine) Options() Options {
	return e.opts
}

// Search 向量化查询文本后检索
func (e *Engine) Search(ctx context.Context, userID, query string) ([]Result, error) {
	if !e.Enabled() {
		return nil, apperrors.Wrap(ErrVectorDisabled, apperrors.CodeRetrievalFailed, "retrieval unavailable")
	}
	vec, err := e.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.Retrieve(ctx, userID, vec)
}

// Retrieve 按用户范围检索：阈值过滤、按分数降序（同分取较新切片）、截断到 TopK。
// 无结果时返回空切片而非错误。
func (e *Engine) Retrieve(ctx context.Context, userID string, vector []float32) ([]Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("user_id is required")
	}
	if !e.Enabled() {
		return nil, apperrors.Wrap(ErrVectorDisabled, apperrors.CodeRetrievalFailed, "retrieval unavailable")
	}

	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("vector.backend", e.vector.Backend()),
		attribute.Int("retrieval.top_k", e.opts.TopK),
		attribute.Float64("retrieval.threshold", e.opts.Threshold),
	)

	start := time.Now()
	hits, err := e.vector.Search(ctx, userID, vector, e.opts.TopK*candidateFactor)
	metrics.VectorSearchDuration.WithLabelValues(e.vector.Backend()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VectorSearchTotal.WithLabelValues(e.vector.Backend(), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Upstream(err, apperrors.CodeVectorDBError, "vector search failed")
	}
	metrics.VectorSearchTotal.WithLabelValues(e.vector.Backend(), "success").Inc()

	scores := make(map[string]float64, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h == nil || h.ChunkID == "" {
			continue
		}
		if h.UserID != "" && h.UserID != userID {
			logger.Warn(ctx, "vector store returned foreign chunk, dropped", "chunk_id", h.ChunkID)
			continue
		}
		s := ClampScore(float64(h.Score))
		if s < e.opts.Threshold {
			continue
		}
		if _, dup := scores[h.ChunkID]; dup {
			continue
		}
		scores[h.ChunkID] = s
		ids = append(ids, h.ChunkID)
	}
	if len(ids) == 0 {
		span.SetAttributes(attribute.Int("retrieval.results", 0))
		return []Result{}, nil
	}

	chunks, err := e.chunks.GetByIDs(ctx, userID, ids)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "load retrieved chunks failed")
	}

	results := make([]Result, 0, len(chunks))
	for _, ch := range chunks {
		if ch == nil || ch.UserID != userID {
			continue
		}
		r := Result{
			ChunkID:   ch.ID,
			AssetID:   ch.AssetID,
			Text:      ch.Text,
			Score:     scores[ch.ID],
			CreatedAt: ch.CreatedAt,
		}
		if ch.Asset != nil {
			r.AssetKind = ch.Asset.Kind
		}
		results = append(results, r)
	}

	results = Rank(results, e.opts)
	span.SetAttributes(attribute.Int("retrieval.results", len(results)))
	return results, nil
}

// Rank 阈值过滤、排序、截断，纯函数
func Rank(in []Result, opts Options) []Result {
	opts = opts.normalized()
	out := make([]Result, 0, len(in))
	for _, r := range in {
		r.Score = ClampScore(r.Score)
		if r.Score >= opts.Threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}

// ClampScore 余弦相似度钳制到 [0,1]
func ClampScore(s float64) float64 {
	if s != s || s < 0 { // NaN
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// EmbedQuery 查询向量化，启用缓存时走读穿缓存
func (e *Engine) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if e.cache == nil {
		return e.embedQuery(ctx, q)
	}

	raw, err := e.cache.GetOrLoadSafe(ctx, queryCacheKey(q), e.cacheTTL, func() (interface{}, error) {
		return e.embedQuery(ctx, q)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		// 缓存不可用时直连
		logger.Warn(ctx, "query vector cache unavailable", "error", err.Error())
		return e.embedQuery(ctx, q)
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil || len(vec) == 0 {
		return e.embedQuery(ctx, q)
	}
	return vec, nil
}

func (e *Engine) embedQuery(ctx context.Context, q string) ([]float32, error) {
	v64, err := e.embedder.EmbedStrings(ctx, []string{q})
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		return nil, apperrors.Upstream(err, apperrors.CodeEmbeddingFailed, "embed query failed")
	}
	metrics.EmbeddingCallTotal.WithLabelValues("success").Inc()
	if len(v64) == 0 || len(v64[0]) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("empty embedding result"), apperrors.CodeEmbeddingFailed, "embed query failed")
	}
	return ToFloat32(v64[0]), nil
}

// ToFloat32 embedding 组件输出 float64，向量库使用 float32
func ToFloat32(vec []float64) []float32 {
	out := make([]float32, 0, len(vec))
	for _, x := range vec {
		out = append(out, float32(x))
	}
	return out
}

func queryCacheKey(q string) string {
	sum := sha256.Sum256([]byte(q))
	return "qvec:" + hex.EncodeToString(sum[:])
}
