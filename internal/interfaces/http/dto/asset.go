package dto

import (
	"time"

	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/domain/entity"
)

// UploadAssetResponse 上传结果
type UploadAssetResponse struct {
	AssetID string `json:"asset_id"`
	Kind    string `json:"kind"`
	URL     string `json:"url"`
	Chunks  int    `json:"chunks"`
}

func ToUploadAssetResponse(r *ingestion.UploadResult) *UploadAssetResponse {
	return &UploadAssetResponse{
		AssetID: r.AssetID,
		Kind:    string(r.Kind),
		URL:     r.StorageURL,
		Chunks:  r.ChunkCount,
	}
}

// AssetResponse 资产信息
type AssetResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	Chunks      int       `json:"chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToAssetResponse(a *entity.Asset) *AssetResponse {
	return &AssetResponse{
		ID:          a.ID,
		Kind:        string(a.Kind),
		Filename:    a.Filename,
		URL:         a.StorageURL,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		Chunks:      a.ChunkCount,
		CreatedAt:   a.CreatedAt,
	}
}

func ToAssetList(items []*entity.Asset) []*AssetResponse {
	out := make([]*AssetResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ToAssetResponse(a))
	}
	return out
}
