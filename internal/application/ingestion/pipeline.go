// Package ingestion 将上传文件转换为可检索的切片与向量
package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	"rag-chat-api/internal/domain/service"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("ingestion")

const (
	defaultMaxImageEdge   = 2000
	defaultEmbedBatch     = 32
	defaultConcurrency    = 4
	defaultMaxUploadBytes = 20 << 20
	embedParallelism      = 2
)

// Config 摄取参数
type Config struct {
	ChunkSize         int
	ChunkOverlap      int
	MaxImageEdge      int
	MaxUploadBytes    int64
	MaxConcurrency    int
	ProviderRPS       float64
	ProviderBurst     int
	EmbedBatchSize    int
	EmbedRetries      int
	EmbedRetryBackoff time.Duration
	Escalation        EscalationPolicy
}

// Deps 摄取依赖；Vision 与 Events 可为空
type Deps struct {
	Extractors map[entity.AssetKind]TextExtractor
	Images     ImagePreparer
	OCR        OCREngine
	Vision     VisionDescriber
	Embedder   embedding.Embedder
	Vector     retrieval.VectorStore
	Assets     repository.AssetRepository
	Chunks     repository.ChunkRepository
	Tx         repository.Transactor
	Blobs      BlobStorage
	Events     AssetEvents
}

type Pipeline struct {
	deps    Deps
	cfg     Config
	chunker *Chunker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func NewPipeline(deps Deps, cfg Config) *Pipeline {
	if cfg.MaxImageEdge <= 0 {
		cfg.MaxImageEdge = defaultMaxImageEdge
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatch
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultConcurrency
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.EmbedRetries < 0 {
		cfg.EmbedRetries = 0
	}
	if cfg.Escalation == (EscalationPolicy{}) {
		cfg.Escalation = DefaultEscalationPolicy()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.ProviderRPS > 0 {
		burst := cfg.ProviderBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), burst)
	}

	return &Pipeline{
		deps:    deps,
		cfg:     cfg,
		chunker: NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		limiter: limiter,
	}
}

// UploadInput 一次上传
type UploadInput struct {
	UserID      string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult 摄取结果
type UploadResult struct {
	AssetID    string           `json:"asset_id"`
	Kind       entity.AssetKind `json:"kind"`
	StorageURL string           `json:"url"`
	ChunkCount int              `json:"chunks"`
}

// Ingest 处理一个上传文件。任一步骤失败都不会留下可见的资产：
// 已写入的 blob 与向量会被清理，数据库写入在单个事务中完成。
func (p *Pipeline) Ingest(ctx context.Context, in UploadInput) (res *UploadResult, err error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("user_id is required")
	}
	if len(in.Data) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("file is empty")
	}
	if int64(len(in.Data)) > p.cfg.MaxUploadBytes {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("file exceeds %d bytes", p.cfg.MaxUploadBytes))
	}

	ft, err := DetectType(in.Filename, in.ContentType)
	if err != nil {
		metrics.IngestionTotal.WithLabelValues("unsupported", "rejected").Inc()
		return nil, err
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	metrics.IngestionInFlight.Inc()
	defer metrics.IngestionInFlight.Dec()

	kind := ft.Kind
	assetID := uuid.NewString()
	ctx = logger.WithContext(ctx, logger.AssetIDKey, assetID)
	ctx, span := tracer.Start(ctx, "ingestion.Ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("asset.id", assetID),
		attribute.String("asset.kind", string(kind)),
		attribute.Int("asset.size", len(in.Data)),
	)

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error(ctx, "ingestion failed", err, "kind", kind, "filename", in.Filename)
		}
		metrics.IngestionTotal.WithLabelValues(string(kind), status).Inc()
		metrics.IngestionDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	key := fmt.Sprintf("%s/%s%s", in.UserID, assetID, ft.Ext)
	url, err := p.deps.Blobs.Store(ctx, key, in.Data, ft.MIME)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageError, "store upload failed")
	}
	defer func() {
		if err == nil {
			return
		}
		if delErr := p.deps.Blobs.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			logger.Warn(ctx, "cleanup blob failed", "url", url, "error", delErr.Error())
		}
	}()

	text, err := p.extractText(ctx, ft, in.Data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrNoContentExtracted
	}

	pieces, err := p.chunker.Split(text)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(pieces))
	for i, c := range pieces {
		texts[i] = c.Text
	}
	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pieces) {
		return nil, apperrors.ErrInconsistentState.WithDetail(fmt.Sprintf("got %d vectors for %d chunks", len(vectors), len(pieces)))
	}

	asset := entity.NewAsset(in.UserID, kind, url, filepath.Base(in.Filename))
	asset.ID = assetID
	asset.ContentType = ft.MIME
	asset.SizeBytes = int64(len(in.Data))
	asset.ChunkCount = len(pieces)

	if err := p.persist(ctx, asset, pieces, vectors); err != nil {
		return nil, err
	}

	metrics.IngestionChunks.Observe(float64(len(pieces)))
	logger.Info(ctx, "asset ingested", "kind", kind, "chunks", len(pieces))

	if p.deps.Events != nil {
		if pubErr := p.deps.Events.AssetIngested(ctx, asset); pubErr != nil {
			logger.Warn(ctx, "publish asset.ingested failed", "error", pubErr.Error())
		}
	}

	return &UploadResult{
		AssetID:    asset.ID,
		Kind:       kind,
		StorageURL: url,
		ChunkCount: len(pieces),
	}, nil
}

func (p *Pipeline) extractText(ctx context.Context, ft FileType, data []byte) (string, error) {
	if ft.Kind == entity.AssetKindImage {
		return p.extractImage(ctx, data, ft.MIME)
	}
	ex, ok := p.deps.Extractors[ft.Kind]
	if !ok || ex == nil {
		return "", apperrors.ErrUnsupportedType.WithDetail("no extractor for " + string(ft.Kind))
	}
	text, err := ex.Extract(ctx, data)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeExtractionFailed, "failed to extract text")
	}
	return CleanText(text), nil
}

// extractImage OCR 后按信号决定是否调用视觉模型；视觉失败时退化为仅 OCR 文本
func (p *Pipeline) extractImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if p.deps.Images == nil || p.deps.OCR == nil {
		return "", apperrors.ErrUnsupportedType.WithDetail("image ingestion is not configured")
	}
	img, err := p.deps.Images.Prepare(data, mimeType, p.cfg.MaxImageEdge)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeExtractionFailed, "failed to decode image")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ocr, err := p.deps.OCR.Recognize(ctx, img.Data, img.MIME)
	if err != nil {
		return "", apperrors.Upstream(err, apperrors.CodeOCRFailed, "ocr failed")
	}

	needsVision := p.cfg.Escalation.NeedsVision(ocr.Signals)
	logger.Info(ctx, "ocr complete",
		"confidence", ocr.Signals.Confidence,
		"coverage", ocr.Signals.Coverage,
		"density", ocr.Signals.Density,
		"needs_vision", needsVision,
		"resized", img.Resized,
	)
	if !needsVision {
		metrics.VisionEscalations.WithLabelValues("skipped").Inc()
		return strings.TrimSpace(ocr.Text), nil
	}
	if p.deps.Vision == nil {
		metrics.VisionEscalations.WithLabelValues("degraded").Inc()
		logger.Warn(ctx, "vision escalation requested but no vision model configured")
		return strings.TrimSpace(ocr.Text), nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	vctx := service.WithWorkflowProvider(ctx, "vision", "openai")
	description, err := p.deps.Vision.Describe(vctx, img.Data, img.MIME)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		metrics.VisionEscalations.WithLabelValues("degraded").Inc()
		logger.Warn(ctx, "vision describe failed, using ocr text only", "error", err.Error())
		return strings.TrimSpace(ocr.Text), nil
	}
	metrics.VisionEscalations.WithLabelValues("described").Inc()
	return MergeImageText(description, ocr.Text), nil
}

// embedAll 分批向量化，批次间并发受限，每批有限次重试
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if p.deps.Embedder == nil {
		return nil, apperrors.Wrap(retrieval.ErrVectorDisabled, apperrors.CodeEmbeddingFailed, "embedder not configured")
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for start := 0; start < len(texts); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := p.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	backoff := p.cfg.EmbedRetryBackoff
	for attempt := 0; attempt <= p.cfg.EmbedRetries; attempt++ {
		if attempt > 0 && backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		v64, err := p.deps.Embedder.EmbedStrings(ctx, batch)
		if err == nil && len(v64) != len(batch) {
			err = fmt.Errorf("embedding count mismatch: got %d want %d", len(v64), len(batch))
		}
		if err == nil {
			metrics.EmbeddingCallTotal.WithLabelValues("success").Inc()
			out := make([][]float32, len(v64))
			for i, v := range v64 {
				out[i] = retrieval.ToFloat32(v)
			}
			return out, nil
		}
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logger.Warn(ctx, "embedding batch failed", "attempt", attempt+1, "error", err.Error())
	}
	return nil, apperrors.Upstream(lastErr, apperrors.CodeEmbeddingFailed, "embedding failed")
}

// persist 先写向量再写数据库；数据库事务失败时删除已写向量。
// 检索按数据库中的切片回表，未提交的向量不会被看到。
func (p *Pipeline) persist(ctx context.Context, asset *entity.Asset, pieces []Chunk, vectors [][]float32) error {
	now := time.Now()
	rows := make([]*entity.DocumentChunk, len(pieces))
	vchunks := make([]*retrieval.VectorChunk, len(pieces))
	ids := make([]string, len(pieces))
	for i, c := range pieces {
		id := uuid.NewString()
		ids[i] = id
		rows[i] = &entity.DocumentChunk{
			ID:         id,
			AssetID:    asset.ID,
			UserID:     asset.UserID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			CreatedAt:  now,
		}
		vchunks[i] = &retrieval.VectorChunk{
			ID:        id,
			UserID:    asset.UserID,
			AssetID:   asset.ID,
			CreatedAt: now,
			Vector:    vectors[i],
		}
	}

	if err := p.deps.Vector.Upsert(ctx, vchunks); err != nil {
		p.dropVectors(ctx, asset.UserID, ids)
		return apperrors.Upstream(err, apperrors.CodeVectorDBError, "vector upsert failed")
	}

	err := p.deps.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.deps.Assets.Create(txCtx, asset); err != nil {
			return err
		}
		return p.deps.Chunks.CreateBatch(txCtx, rows)
	})
	if err != nil {
		p.dropVectors(ctx, asset.UserID, ids)
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "persist asset failed")
	}
	return nil
}

func (p *Pipeline) dropVectors(ctx context.Context, userID string, ids []string) {
	if err := p.deps.Vector.DeleteByIDs(context.WithoutCancel(ctx), userID, ids); err != nil {
		logger.Warn(ctx, "rollback vectors failed", "count", len(ids), "error", err.Error())
	}
}
