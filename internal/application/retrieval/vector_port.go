package retrieval

import (
	"context"
	"time"
)

// VectorStore 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（Milvus / pgvector）。
type VectorStore interface {
	Backend() string
	Upsert(ctx context.Context, chunks []*VectorChunk) error
	// Search 只返回属于 userID 的向量，分数为余弦相似度
	Search(ctx context.Context, userID string, vector []float32, topK int) ([]*VectorHit, error)
	DeleteByIDs(ctx context.Context, userID string, ids []string) error
	DeleteByAsset(ctx context.Context, userID, assetID string) error
}

type VectorChunk struct {
	ID        string
	UserID    string
	AssetID   string
	CreatedAt time.Time
	Vector    []float32
}

type VectorHit struct {
	ChunkID   string
	UserID    string
	AssetID   string
	Score     float32
	CreatedAt time.Time
}
