package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionDocumentChunks 文档切片向量集合
	CollectionDocumentChunks = "document_chunks"

	fieldID        = "id"
	fieldVector    = "vector"
	fieldUserID    = "user_id"
	fieldAssetID   = "asset_id"
	fieldCreatedAt = "created_at"
)

// DocumentChunksSchema 切片集合 Schema；文本留在 Postgres，这里只存过滤与排序所需字段
func DocumentChunksSchema(dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionDocumentChunks,
		Description:    "Document chunk embeddings scoped by user",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldUserID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldAssetID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldCreatedAt,
				DataType: entity.FieldTypeInt64,
			},
		},
	}
}
