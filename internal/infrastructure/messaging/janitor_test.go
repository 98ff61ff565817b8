package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/application/retrieval"
	apperrors "rag-chat-api/pkg/errors"
)

type mockVectors struct {
	mock.Mock
}

func (m *mockVectors) Backend() string { return "mock" }

func (m *mockVectors) Upsert(context.Context, []*retrieval.VectorChunk) error { return nil }

func (m *mockVectors) Search(context.Context, string, []float32, int) ([]*retrieval.VectorHit, error) {
	return nil, nil
}

func (m *mockVectors) DeleteByIDs(context.Context, string, []string) error { return nil }

func (m *mockVectors) DeleteByAsset(ctx context.Context, userID, assetID string) error {
	return m.Called(ctx, userID, assetID).Error(0)
}

type mockBlobs struct {
	mock.Mock
}

func (m *mockBlobs) Store(context.Context, string, []byte, string) (string, error) { return "", nil }

func (m *mockBlobs) Load(context.Context, string) ([]byte, error) { return nil, nil }

func (m *mockBlobs) Delete(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func deletedMessage(t *testing.T, p AssetEventPayload) *Message {
	t.Helper()
	msg, err := NewMessage(TypeAssetDeleted, p.UserID, p)
	require.NoError(t, err)
	return msg
}

func TestAssetJanitor_HandleDeletedPurges(t *testing.T) {
	vectors, blobs := &mockVectors{}, &mockBlobs{}
	vectors.On("DeleteByAsset", mock.Anything, "u1", "a1").Return(nil)
	blobs.On("Delete", mock.Anything, "blob://u1/a1.pdf").Return(nil)

	j := NewAssetJanitor(vectors, blobs)
	err := j.HandleDeleted(context.Background(), deletedMessage(t, AssetEventPayload{
		AssetID:    "a1",
		UserID:     "u1",
		Kind:       "pdf",
		StorageURL: "blob://u1/a1.pdf",
	}))
	require.NoError(t, err)
	vectors.AssertExpectations(t)
	blobs.AssertExpectations(t)
}

func TestAssetJanitor_HandleDeletedRetriesOnVectorFailure(t *testing.T) {
	vectors, blobs := &mockVectors{}, &mockBlobs{}
	vectors.On("DeleteByAsset", mock.Anything, "u1", "a1").Return(errors.New("milvus down"))

	j := NewAssetJanitor(vectors, blobs)
	err := j.HandleDeleted(context.Background(), deletedMessage(t, AssetEventPayload{
		AssetID:    "a1",
		UserID:     "u1",
		StorageURL: "blob://u1/a1.pdf",
	}))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
	blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestAssetJanitor_SkipsIncompletePayload(t *testing.T) {
	vectors, blobs := &mockVectors{}, &mockBlobs{}
	j := NewAssetJanitor(vectors, blobs)

	err := j.HandleDeleted(context.Background(), deletedMessage(t, AssetEventPayload{AssetID: "a1"}))
	require.NoError(t, err)
	vectors.AssertNotCalled(t, "DeleteByAsset", mock.Anything, mock.Anything, mock.Anything)

	bad := &Message{Type: TypeAssetDeleted, Payload: []byte("{")}
	assert.Error(t, j.HandleDeleted(context.Background(), bad))
}

func TestNewJanitorConsumer_Defaults(t *testing.T) {
	c := NewJanitorConsumer(nil, ConsumerConfig{}, NewAssetJanitor(nil, nil))
	assert.Equal(t, StreamAssetEvents, c.cfg.Stream)
	assert.Equal(t, ConsumerGroupAssetJanitor, c.cfg.Group)
	assert.NotEmpty(t, c.cfg.ConsumerName)
	assert.Contains(t, c.handlers, TypeAssetDeleted)
	assert.Contains(t, c.handlers, TypeAssetIngested)
}
