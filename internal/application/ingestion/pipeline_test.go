package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/domain/entity"
	apperrors "rag-chat-api/pkg/errors"
)

type pipelineHarness struct {
	pdf     *fakeExtractor
	ocr     *fakeOCR
	vision  *fakeVision
	embed   *fakeEmbedder
	vectors *fakeVectors
	assets  *memAssets
	chunks  *memChunks
	blobs   *memBlobs
	events  *fakeEvents
	deps    Deps
	cfg     Config
}

func newPipelineHarness() *pipelineHarness {
	h := &pipelineHarness{
		pdf:     &fakeExtractor{text: strings.Repeat("abcdefghij", 120)},
		ocr:     &fakeOCR{result: &OCRResult{Text: "INVOICE 42", Signals: OCRSignals{Coverage: 0.3, Density: 0.2, Confidence: 90}}},
		vision:  &fakeVision{text: "A scanned invoice."},
		embed:   &fakeEmbedder{dim: 4},
		vectors: &fakeVectors{},
		assets:  newMemAssets(),
		chunks:  &memChunks{},
		blobs:   newMemBlobs(),
		events:  &fakeEvents{},
	}
	h.deps = Deps{
		Extractors: map[entity.AssetKind]TextExtractor{
			entity.AssetKindPDF:  h.pdf,
			entity.AssetKindDOCX: fakeExtractor{text: "docx body"},
		},
		Images:   fakePreparer{},
		OCR:      h.ocr,
		Vision:   h.vision,
		Embedder: h.embed,
		Vector:   h.vectors,
		Assets:   h.assets,
		Chunks:   h.chunks,
		Tx:       passTx{},
		Blobs:    h.blobs,
		Events:   h.events,
	}
	h.cfg = Config{ChunkSize: 500, ChunkOverlap: 50, EmbedBatchSize: 2}
	return h
}

func (h *pipelineHarness) pipeline() *Pipeline {
	return NewPipeline(h.deps, h.cfg)
}

func upload(name string) UploadInput {
	return UploadInput{UserID: "u1", Filename: name, Data: []byte("raw-bytes")}
}

func TestIngest_PDF(t *testing.T) {
	h := newPipelineHarness()

	res, err := h.pipeline().Ingest(context.Background(), upload("report.pdf"))
	require.NoError(t, err)

	assert.Equal(t, entity.AssetKindPDF, res.Kind)
	assert.Equal(t, 3, res.ChunkCount)
	assert.True(t, strings.HasPrefix(res.StorageURL, "blob://u1/"+res.AssetID))

	stored, _ := h.assets.GetByID(context.Background(), "u1", res.AssetID)
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.ChunkCount)
	assert.Equal(t, "report.pdf", stored.Filename)

	require.Len(t, h.chunks.rows, 3)
	require.Len(t, h.vectors.upserted, 3)
	for i, row := range h.chunks.rows {
		assert.Equal(t, i, row.ChunkIndex)
		assert.Equal(t, "u1", row.UserID)
		assert.Equal(t, row.ID, h.vectors.upserted[i].ID)
		assert.Equal(t, res.AssetID, h.vectors.upserted[i].AssetID)
	}
	// 两个批次：2 + 1
	assert.Equal(t, 2, h.embed.calls)
	assert.Equal(t, []string{res.AssetID}, h.events.ingested)
	assert.Empty(t, h.blobs.deleted)
}

func TestIngest_UnsupportedTypeStoresNothing(t *testing.T) {
	h := newPipelineHarness()

	_, err := h.pipeline().Ingest(context.Background(), upload("macro.xlsm"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedType))
	assert.Empty(t, h.blobs.data)
	assert.Empty(t, h.assets.items)
}

func TestIngest_RejectsEmptyAndOversize(t *testing.T) {
	h := newPipelineHarness()
	h.cfg.MaxUploadBytes = 4

	_, err := h.pipeline().Ingest(context.Background(), UploadInput{UserID: "u1", Filename: "a.pdf"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	_, err = h.pipeline().Ingest(context.Background(), upload("a.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	_, err = h.pipeline().Ingest(context.Background(), UploadInput{Filename: "a.pdf", Data: []byte("x")})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))
}

func TestIngest_NoTextRemovesBlob(t *testing.T) {
	h := newPipelineHarness()
	h.pdf.text = " \n\n "

	_, err := h.pipeline().Ingest(context.Background(), upload("blank.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoContentExtracted))
	assert.Len(t, h.blobs.deleted, 1)
	assert.Empty(t, h.blobs.data)
	assert.Empty(t, h.vectors.upserted)
}

func TestIngest_ExtractionFailure(t *testing.T) {
	h := newPipelineHarness()
	h.pdf.err = errors.New("encrypted")

	_, err := h.pipeline().Ingest(context.Background(), upload("locked.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeExtractionFailed))
	assert.Empty(t, h.blobs.data)
}

func TestIngest_EmbeddingFailureRetriesThenAborts(t *testing.T) {
	h := newPipelineHarness()
	h.pdf.text = "short document"
	h.embed.err = errors.New("provider down")
	h.cfg.EmbedRetries = 2

	_, err := h.pipeline().Ingest(context.Background(), upload("a.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmbeddingFailed))
	assert.Equal(t, 3, h.embed.calls)
	assert.Empty(t, h.assets.items)
	assert.Empty(t, h.blobs.data)
}

func TestIngest_DatabaseFailureRollsBackVectors(t *testing.T) {
	h := newPipelineHarness()
	h.deps.Tx = failingTx{}

	_, err := h.pipeline().Ingest(context.Background(), upload("report.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDatabaseError))

	require.Len(t, h.vectors.upserted, 3)
	ids := make([]string, 0, 3)
	for _, v := range h.vectors.upserted {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, ids, h.vectors.deleted)
	assert.Empty(t, h.blobs.data)
	assert.Empty(t, h.events.ingested)
}

func TestIngest_VectorFailureAbortsUpload(t *testing.T) {
	h := newPipelineHarness()
	h.vectors.upsertErr = errors.New("milvus unavailable")

	_, err := h.pipeline().Ingest(context.Background(), upload("report.pdf"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVectorDBError))
	assert.Empty(t, h.assets.items)
	assert.Empty(t, h.chunks.rows)
}

func TestIngest_EventFailureDoesNotFailUpload(t *testing.T) {
	h := newPipelineHarness()
	h.events.err = errors.New("stream down")

	res, err := h.pipeline().Ingest(context.Background(), upload("notes.docx"))
	require.NoError(t, err)
	assert.Equal(t, entity.AssetKindDOCX, res.Kind)
	assert.Equal(t, 1, res.ChunkCount)
}

func TestIngest_ImageReadableTextSkipsVision(t *testing.T) {
	h := newPipelineHarness()

	res, err := h.pipeline().Ingest(context.Background(), upload("scan.png"))
	require.NoError(t, err)
	assert.Equal(t, entity.AssetKindImage, res.Kind)
	assert.Equal(t, 0, h.vision.calls)
	require.Len(t, h.chunks.rows, 1)
	assert.Equal(t, "INVOICE 42", h.chunks.rows[0].Text)
}

func TestIngest_ExtensionlessImage(t *testing.T) {
	h := newPipelineHarness()
	in := upload("scan")
	in.ContentType = "image/png"

	res, err := h.pipeline().Ingest(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, entity.AssetKindImage, res.Kind)
	assert.Equal(t, "image/png", h.ocr.mime)
	assert.True(t, strings.HasSuffix(res.StorageURL, ".png"))
	assert.Equal(t, "image/png", h.blobs.types[res.StorageURL])

	stored, _ := h.assets.GetByID(context.Background(), "u1", res.AssetID)
	require.NotNil(t, stored)
	assert.Equal(t, "image/png", stored.ContentType)
}

func TestIngest_StoresDetectedContentType(t *testing.T) {
	h := newPipelineHarness()
	in := upload("report.pdf")
	in.ContentType = "text/html"

	res, err := h.pipeline().Ingest(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", h.blobs.types[res.StorageURL])

	stored, _ := h.assets.GetByID(context.Background(), "u1", res.AssetID)
	require.NotNil(t, stored)
	assert.Equal(t, "application/pdf", stored.ContentType)
}

func TestIngest_ImageSparseTextEscalates(t *testing.T) {
	h := newPipelineHarness()
	h.ocr.result.Signals = OCRSignals{Coverage: 0.05, Density: 0.1, Confidence: 80}

	_, err := h.pipeline().Ingest(context.Background(), upload("photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.vision.calls)
	require.Len(t, h.chunks.rows, 1)
	assert.Equal(t, "A scanned invoice.\n\nINVOICE 42", h.chunks.rows[0].Text)
}

func TestIngest_VisionFailureDegradesToOCR(t *testing.T) {
	h := newPipelineHarness()
	h.ocr.result.Signals = OCRSignals{Confidence: 10}
	h.vision.err = errors.New("rate limited")

	_, err := h.pipeline().Ingest(context.Background(), upload("photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.vision.calls)
	assert.Equal(t, "INVOICE 42", h.chunks.rows[0].Text)
}

func TestIngest_OCRFailureAbortsUpload(t *testing.T) {
	h := newPipelineHarness()
	h.ocr.err = errors.New("ocr down")

	_, err := h.pipeline().Ingest(context.Background(), upload("photo.jpg"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeOCRFailed))
	assert.Empty(t, h.assets.items)
}

func TestIngest_ImageWithoutOCRIsUnsupported(t *testing.T) {
	h := newPipelineHarness()
	h.deps.OCR = nil

	_, err := h.pipeline().Ingest(context.Background(), upload("photo.jpg"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnsupportedType))
}
