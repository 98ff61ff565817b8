package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-chat-api/internal/application/retrieval"
)

const backendName = "milvus"

// Store 基于 Milvus 的切片向量存储，所有读写按 user_id 过滤
type Store struct {
	client *Client
	dim    int
}

func NewStore(client *Client, dim int) *Store {
	return &Store{client: client, dim: dim}
}

func (s *Store) Backend() string {
	return backendName
}

// HealthCheck 检查 Milvus 连接
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.client.HealthCheck(ctx)
}

func (s *Store) ready() error {
	if s == nil || s.client == nil || s.client.milvus == nil {
		return retrieval.ErrVectorDisabled
	}
	return nil
}

func (s *Store) collection() string {
	return s.client.CollectionName(CollectionDocumentChunks)
}

// EnsureCollection 集合不存在时创建并建索引，随后加载；不做破坏性操作
func (s *Store) EnsureCollection(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection")
	defer span.End()

	exists, err := s.client.HasCollection(ctx, CollectionDocumentChunks)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		schema := DocumentChunksSchema(s.dim)
		schema.CollectionName = s.collection()
		if err := s.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := s.createIndex(ctx); err != nil {
			return err
		}
	}
	return s.client.LoadCollection(ctx, CollectionDocumentChunks)
}

func (s *Store) createIndex(ctx context.Context) error {
	cfg := s.client.config
	idx, err := entity.NewIndexHNSW(entity.COSINE, cfg.HNSWM, cfg.HNSWEfConstruction)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := s.client.milvus.CreateIndex(ctx, s.collection(), fieldVector, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.Upsert",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	userIDs := make([]string, 0, len(chunks))
	assetIDs := make([]string, 0, len(chunks))
	created := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		if len(c.Vector) != s.dim {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", c.ID, len(c.Vector), s.dim)
		}
		ids = append(ids, c.ID)
		vectors = append(vectors, c.Vector)
		userIDs = append(userIDs, c.UserID)
		assetIDs = append(assetIDs, c.AssetID)
		created = append(created, c.CreatedAt.UnixMilli())
	}

	_, err := s.client.milvus.Upsert(ctx, s.collection(), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, s.dim, vectors),
		entity.NewColumnVarChar(fieldUserID, userIDs),
		entity.NewColumnVarChar(fieldAssetID, assetIDs),
		entity.NewColumnInt64(fieldCreatedAt, created),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunk vectors: %w", err)
	}
	return nil
}

// Search COSINE 度量下分数即余弦相似度
func (s *Store) Search(ctx context.Context, userID string, vector []float32, topK int) ([]*retrieval.VectorHit, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "milvus.Search",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	if topK <= 0 {
		return nil, nil
	}

	ef := s.client.config.SearchEf
	if ef < topK {
		ef = topK
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := s.client.milvus.Search(ctx,
		s.collection(),
		nil,
		userFilter(userID),
		[]string{fieldID, fieldUserID, fieldAssetID, fieldCreatedAt},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []*retrieval.VectorHit
	for _, result := range results {
		idCol, _ := result.Fields.GetColumn(fieldID).(*entity.ColumnVarChar)
		userCol, _ := result.Fields.GetColumn(fieldUserID).(*entity.ColumnVarChar)
		assetCol, _ := result.Fields.GetColumn(fieldAssetID).(*entity.ColumnVarChar)
		timeCol, _ := result.Fields.GetColumn(fieldCreatedAt).(*entity.ColumnInt64)
		for i := 0; i < result.ResultCount; i++ {
			hit := &retrieval.VectorHit{Score: result.Scores[i]}
			if idCol != nil {
				hit.ChunkID = idCol.Data()[i]
			} else if result.IDs != nil {
				hit.ChunkID, _ = result.IDs.GetAsString(i)
			}
			if userCol != nil {
				hit.UserID = userCol.Data()[i]
			}
			if assetCol != nil {
				hit.AssetID = assetCol.Data()[i]
			}
			if timeCol != nil {
				hit.CreatedAt = time.UnixMilli(timeCol.Data()[i])
			}
			hits = append(hits, hit)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

func (s *Store) DeleteByIDs(ctx context.Context, userID string, ids []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByIDs",
		trace.WithAttributes(attribute.Int("count", len(ids))))
	defer span.End()

	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, quote(id))
	}
	expr := fmt.Sprintf(`%s && %s in [%s]`, userFilter(userID), fieldID, strings.Join(quoted, ", "))
	if err := s.client.milvus.Delete(ctx, s.collection(), "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunk vectors: %w", err)
	}
	return nil
}

func (s *Store) DeleteByAsset(ctx context.Context, userID, assetID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByAsset",
		trace.WithAttributes(attribute.String("asset_id", assetID)))
	defer span.End()

	expr := fmt.Sprintf(`%s && %s == %s`, userFilter(userID), fieldAssetID, quote(assetID))
	if err := s.client.milvus.Delete(ctx, s.collection(), "", expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete asset vectors: %w", err)
	}
	return nil
}

func userFilter(userID string) string {
	return fmt.Sprintf(`%s == %s`, fieldUserID, quote(userID))
}

// quote 生成表达式字符串字面量
func quote(v string) string {
	return strconv.Quote(v)
}
