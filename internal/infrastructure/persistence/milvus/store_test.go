package milvus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserFilterEscapesLiteral(t *testing.T) {
	assert.Equal(t, `user_id == "u-1"`, userFilter("u-1"))
	assert.Equal(t, `user_id == "a\" || user_id != \"x"`, userFilter(`a" || user_id != "x`))
}

func TestDocumentChunksSchema(t *testing.T) {
	schema := DocumentChunksSchema(384)

	assert.Equal(t, CollectionDocumentChunks, schema.CollectionName)
	names := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "vector", "user_id", "asset_id", "created_at"}, names)
	assert.Equal(t, "384", schema.Fields[1].TypeParams["dim"])
}
