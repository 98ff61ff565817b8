package postgres

import (
	"context"
	"fmt"

	"rag-chat-api/internal/domain/entity"
)

// Migrate 建表；withVector 为 true 时同时启用 pgvector 扩展并创建向量表
func (c *Client) Migrate(ctx context.Context, withVector bool, dimension int) error {
	db := c.db.WithContext(ctx)

	if err := db.AutoMigrate(
		&entity.Asset{},
		&entity.DocumentChunk{},
		&entity.ChatSession{},
		&entity.ChatMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}

	if !withVector {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id uuid PRIMARY KEY,
	user_id varchar(64) NOT NULL,
	asset_id uuid NOT NULL,
	embedding vector(%d) NOT NULL,
	created_at timestamptz NOT NULL
)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_user ON chunk_embeddings (user_id)",
		"CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_hnsw ON chunk_embeddings USING hnsw (embedding vector_cosine_ops)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to prepare pgvector schema: %w", err)
		}
	}
	return nil
}
