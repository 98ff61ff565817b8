package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/domain/entity"
	apperrors "rag-chat-api/pkg/errors"
)

type stubEmbedder struct {
	calls int
	err   error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type mockVectorStore struct {
	mock.Mock
}

func (m *mockVectorStore) Backend() string { return "mock" }

func (m *mockVectorStore) Upsert(ctx context.Context, chunks []*VectorChunk) error {
	return m.Called(ctx, chunks).Error(0)
}

func (m *mockVectorStore) Search(ctx context.Context, userID string, vector []float32, topK int) ([]*VectorHit, error) {
	args := m.Called(ctx, userID, vector, topK)
	hits, _ := args.Get(0).([]*VectorHit)
	return hits, args.Error(1)
}

func (m *mockVectorStore) DeleteByIDs(ctx context.Context, userID string, ids []string) error {
	return m.Called(ctx, userID, ids).Error(0)
}

func (m *mockVectorStore) DeleteByAsset(ctx context.Context, userID, assetID string) error {
	return m.Called(ctx, userID, assetID).Error(0)
}

// chunkTable 以 ID 回表，只返回属于请求用户的切片
type chunkTable struct {
	rows map[string]*entity.DocumentChunk
}

func (c *chunkTable) CreateBatch(context.Context, []*entity.DocumentChunk) error { return nil }

func (c *chunkTable) GetByIDs(_ context.Context, userID string, ids []string) ([]*entity.DocumentChunk, error) {
	var out []*entity.DocumentChunk
	for _, id := range ids {
		if ch, ok := c.rows[id]; ok && ch.UserID == userID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func newChunkTable(userID string, n int) *chunkTable {
	t := &chunkTable{rows: make(map[string]*entity.DocumentChunk)}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		t.rows[id] = &entity.DocumentChunk{
			ID:        id,
			AssetID:   "a1",
			UserID:    userID,
			Text:      "chunk " + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Asset:     &entity.Asset{Kind: entity.AssetKindPDF},
		}
	}
	return t
}

func TestRetrieve_ThresholdFiltersWeakMatches(t *testing.T) {
	scores := []float32{0.9, 0.4, 0.3, 0.2, 0.15, 0.1, 0.05, 0.02, 0.01, 0}
	hits := make([]*VectorHit, len(scores))
	for i, s := range scores {
		hits[i] = &VectorHit{ChunkID: fmt.Sprintf("c%d", i), UserID: "u1", Score: s}
	}
	vs := &mockVectorStore{}
	vs.On("Search", mock.Anything, "u1", mock.Anything, 16).Return(hits, nil)

	engine := NewEngine(&stubEmbedder{}, vs, newChunkTable("u1", 10), Options{TopK: 8, Threshold: 0.25})
	results, err := engine.Retrieve(context.Background(), "u1", []float32{1, 0, 0})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "c0", results[0].ChunkID)
	assert.Equal(t, "c1", results[1].ChunkID)
	assert.Equal(t, "c2", results[2].ChunkID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.25)
		assert.Equal(t, entity.AssetKindPDF, r.AssetKind)
	}
	vs.AssertExpectations(t)
}

func TestRetrieve_DropsForeignChunks(t *testing.T) {
	vs := &mockVectorStore{}
	vs.On("Search", mock.Anything, "u1", mock.Anything, mock.Anything).Return([]*VectorHit{
		{ChunkID: "c0", UserID: "u1", Score: 0.8},
		{ChunkID: "c1", UserID: "u2", Score: 0.95},
	}, nil)

	table := newChunkTable("u1", 1)
	table.rows["c1"] = &entity.DocumentChunk{ID: "c1", UserID: "u2", Text: "secret"}

	engine := NewEngine(&stubEmbedder{}, vs, table, DefaultOptions())
	results, err := engine.Retrieve(context.Background(), "u1", []float32{1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].ChunkID)
}

func TestRetrieve_NoHitsIsEmptyNotError(t *testing.T) {
	vs := &mockVectorStore{}
	vs.On("Search", mock.Anything, "u1", mock.Anything, mock.Anything).Return([]*VectorHit{}, nil)

	engine := NewEngine(&stubEmbedder{}, vs, newChunkTable("u1", 0), DefaultOptions())
	results, err := engine.Retrieve(context.Background(), "u1", []float32{1})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieve_VectorErrorIsUpstream(t *testing.T) {
	vs := &mockVectorStore{}
	vs.On("Search", mock.Anything, "u1", mock.Anything, mock.Anything).Return(nil, errors.New("milvus down"))

	engine := NewEngine(&stubEmbedder{}, vs, newChunkTable("u1", 0), DefaultOptions())
	_, err := engine.Retrieve(context.Background(), "u1", []float32{1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
}

func TestRetrieve_RequiresUserAndBackend(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, &mockVectorStore{}, newChunkTable("u1", 0), DefaultOptions())
	_, err := engine.Retrieve(context.Background(), " ", []float32{1})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	disabled := NewEngine(&stubEmbedder{}, nil, nil, DefaultOptions())
	assert.False(t, disabled.Enabled())
	_, err = disabled.Search(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestRank_OrdersAndTruncates(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	in := []Result{
		{ChunkID: "low", Score: 0.3, CreatedAt: newer},
		{ChunkID: "tie-old", Score: 0.7, CreatedAt: older},
		{ChunkID: "tie-new", Score: 0.7, CreatedAt: newer},
		{ChunkID: "weak", Score: 0.1, CreatedAt: newer},
		{ChunkID: "over", Score: 1.4, CreatedAt: older},
	}

	out := Rank(in, Options{TopK: 3, Threshold: 0.25})
	require.Len(t, out, 3)
	assert.Equal(t, "over", out[0].ChunkID)
	assert.Equal(t, 1.0, out[0].Score)
	assert.Equal(t, "tie-new", out[1].ChunkID)
	assert.Equal(t, "tie-old", out[2].ChunkID)
}

func TestClampScore(t *testing.T) {
	nan := 0.0
	nan = nan / nan
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.3, 0},
		{0.42, 0.42},
		{1.7, 1},
		{nan, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampScore(tt.in))
	}
}

type memVectorCache struct {
	data map[string][]byte
	err  error
}

func (c *memVectorCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c.data[key] = b
	return b, nil
}

func TestEmbedQuery_UsesCache(t *testing.T) {
	emb := &stubEmbedder{}
	cache := &memVectorCache{data: map[string][]byte{}}
	engine := NewEngine(emb, &mockVectorStore{}, newChunkTable("u1", 0), DefaultOptions()).
		WithQueryCache(cache, time.Minute)

	first, err := engine.EmbedQuery(context.Background(), "what is in my file?")
	require.NoError(t, err)
	second, err := engine.EmbedQuery(context.Background(), "  what is in my file?  ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, emb.calls)
}

func TestEmbedQuery_CacheOutageFallsBack(t *testing.T) {
	emb := &stubEmbedder{}
	cache := &memVectorCache{err: errors.New("redis: connection refused")}
	engine := NewEngine(emb, &mockVectorStore{}, newChunkTable("u1", 0), DefaultOptions()).
		WithQueryCache(cache, time.Minute)

	vec, err := engine.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, 1, emb.calls)
}

func TestEmbedQuery_Errors(t *testing.T) {
	engine := NewEngine(&stubEmbedder{err: errors.New("boom")}, &mockVectorStore{}, newChunkTable("u1", 0), DefaultOptions())

	_, err := engine.EmbedQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = engine.EmbedQuery(context.Background(), "hello")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingFailed))
}
