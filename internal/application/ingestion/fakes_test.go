package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/embedding"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fakePreparer struct{}

func (fakePreparer) Prepare(data []byte, mime string, _ int) (*PreparedImage, error) {
	return &PreparedImage{Data: data, MIME: mime, Width: 10, Height: 10}, nil
}

type fakeOCR struct {
	result *OCRResult
	err    error
	calls  int
	mime   string
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte, mime string) (*OCRResult, error) {
	f.mime = mime
	f.calls++
	return f.result, f.err
}

type fakeVision struct {
	text  string
	err   error
	calls int
}

func (f *fakeVision) Describe(context.Context, []byte, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		v := make([]float64, f.dim)
		v[0] = float64(i + 1)
		out[i] = v
	}
	return out, nil
}

type fakeVectors struct {
	mu        sync.Mutex
	upserted  []*retrieval.VectorChunk
	deleted   []string
	byAsset   []string
	upsertErr error
}

func (f *fakeVectors) Backend() string { return "fake" }

func (f *fakeVectors) Upsert(_ context.Context, chunks []*retrieval.VectorChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectors) Search(context.Context, string, []float32, int) ([]*retrieval.VectorHit, error) {
	return nil, nil
}

func (f *fakeVectors) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeVectors) DeleteByAsset(_ context.Context, _ string, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byAsset = append(f.byAsset, assetID)
	return nil
}

type memAssets struct {
	mu        sync.Mutex
	items     map[string]*entity.Asset
	createErr error
}

func newMemAssets() *memAssets {
	return &memAssets{items: make(map[string]*entity.Asset)}
}

func (r *memAssets) Create(_ context.Context, a *entity.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *memAssets) GetByID(_ context.Context, userID, id string) (*entity.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAssets) ListByUser(_ context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Asset
	for _, a := range r.items {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return repository.NewPagedResult(out, int64(len(out)), p), nil
}

func (r *memAssets) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok && a.UserID == userID {
		delete(r.items, id)
	}
	return nil
}

type memChunks struct {
	mu   sync.Mutex
	rows []*entity.DocumentChunk
}

func (r *memChunks) CreateBatch(_ context.Context, rows []*entity.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *memChunks) GetByIDs(context.Context, string, []string) ([]*entity.DocumentChunk, error) {
	return nil, nil
}

type passTx struct{}

func (passTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	types   map[string]string
	deleted []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte), types: make(map[string]string)}
}

func (b *memBlobs) Store(_ context.Context, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	url := "blob://" + key
	b.data[url] = data
	b.types[url] = contentType
	return url, nil
}

func (b *memBlobs) Load(_ context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (b *memBlobs) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, url)
	b.deleted = append(b.deleted, url)
	return nil
}

type fakeEvents struct {
	ingested []string
	deleted  []string
	err      error
}

func (f *fakeEvents) AssetIngested(_ context.Context, a *entity.Asset) error {
	f.ingested = append(f.ingested, a.ID)
	return f.err
}

func (f *fakeEvents) AssetDeleted(_ context.Context, a *entity.Asset) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, a.ID)
	return nil
}

// failingTx 模拟事务提交失败
type failingTx struct{}

func (failingTx) WithTransaction(context.Context, func(ctx context.Context) error) error {
	return fmt.Errorf("commit failed")
}
