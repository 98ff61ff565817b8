package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/pkg/logger"
)

const pgvectorBackend = "pgvector"

// chunkEmbedding 切片向量表，向量维度在建表时按配置确定
type chunkEmbedding struct {
	ChunkID   string          `gorm:"column:chunk_id;type:uuid;primaryKey"`
	UserID    string          `gorm:"column:user_id;type:varchar(64);not null"`
	AssetID   string          `gorm:"column:asset_id;type:uuid;not null"`
	Embedding pgvector.Vector `gorm:"column:embedding;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null"`
}

func (chunkEmbedding) TableName() string {
	return "chunk_embeddings"
}

type scoredEmbedding struct {
	ChunkID   string
	UserID    string
	AssetID   string
	CreatedAt time.Time
	Score     float64
}

// user_id 过滤发生在 HNSW 取出 ef_search 个候选之后，
// pgvector 0.8 起的迭代扫描会继续取候选直到凑满 LIMIT
const iterativeScanSQL = "SET LOCAL hnsw.iterative_scan = relaxed_order"

var errIterativeScan = errors.New("hnsw iterative scan unavailable")

// PgvectorStore 基于 pgvector 扩展的向量存储
type PgvectorStore struct {
	client *Client
	// 旧版扩展不识别该参数时关闭，之后直接查询
	iterative atomic.Bool
}

func NewPgvectorStore(client *Client) *PgvectorStore {
	s := &PgvectorStore{client: client}
	s.iterative.Store(true)
	return s
}

func (s *PgvectorStore) Backend() string {
	return pgvectorBackend
}

func (s *PgvectorStore) Upsert(ctx context.Context, chunks []*retrieval.VectorChunk) error {
	ctx, span := tracer.Start(ctx, "postgres.PgvectorStore.Upsert")
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkEmbedding, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		rows = append(rows, chunkEmbedding{
			ChunkID:   c.ID,
			UserID:    c.UserID,
			AssetID:   c.AssetID,
			Embedding: pgvector.NewVector(c.Vector),
			CreatedAt: c.CreatedAt,
		})
	}

	db := getDB(ctx, s.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "user_id", "asset_id", "created_at"}),
	}).CreateInBatches(&rows, chunkInsertBatch).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chunk embeddings: %w", err)
	}
	return nil
}

// Search 余弦距离 <=> 转换为相似度 1 - d
func (s *PgvectorStore) Search(ctx context.Context, userID string, vector []float32, topK int) ([]*retrieval.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "postgres.PgvectorStore.Search")
	defer span.End()

	if topK <= 0 {
		return nil, nil
	}
	q := pgvector.NewVector(vector)

	var rows []scoredEmbedding
	search := func(db *gorm.DB) error {
		rows = rows[:0]
		return db.Raw(`SELECT chunk_id, user_id, asset_id, created_at, 1 - (embedding <=> ?) AS score
FROM chunk_embeddings
WHERE user_id = ?
ORDER BY embedding <=> ?
LIMIT ?`, q, userID, q, topK).Scan(&rows).Error
	}

	db := getDB(ctx, s.client.db)
	var err error
	if s.iterative.Load() {
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(iterativeScanSQL).Error; err != nil {
				return fmt.Errorf("%w: %w", errIterativeScan, err)
			}
			return search(tx)
		})
		if errors.Is(err, errIterativeScan) {
			s.iterative.Store(false)
			logger.Warn(ctx, "pgvector iterative scan disabled, filtered searches may return fewer than topK", "error", err.Error())
			err = search(db)
		}
	} else {
		err = search(db)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search chunk embeddings: %w", err)
	}

	hits := make([]*retrieval.VectorHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, &retrieval.VectorHit{
			ChunkID:   r.ChunkID,
			UserID:    r.UserID,
			AssetID:   r.AssetID,
			Score:     float32(r.Score),
			CreatedAt: r.CreatedAt,
		})
	}
	return hits, nil
}

func (s *PgvectorStore) DeleteByIDs(ctx context.Context, userID string, ids []string) error {
	ctx, span := tracer.Start(ctx, "postgres.PgvectorStore.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}
	db := getDB(ctx, s.client.db)
	err := db.Exec("DELETE FROM chunk_embeddings WHERE user_id = ? AND chunk_id = ANY(?::uuid[])", userID, pq.Array(ids)).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunk embeddings: %w", err)
	}
	return nil
}

func (s *PgvectorStore) DeleteByAsset(ctx context.Context, userID, assetID string) error {
	ctx, span := tracer.Start(ctx, "postgres.PgvectorStore.DeleteByAsset")
	defer span.End()

	db := getDB(ctx, s.client.db)
	if err := db.Where("user_id = ? AND asset_id = ?", userID, assetID).Delete(&chunkEmbedding{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete asset embeddings: %w", err)
	}
	return nil
}
