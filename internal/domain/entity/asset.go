// Package entity 定义领域实体
package entity

import (
	"time"
)

// AssetKind 上传文件类别
type AssetKind string

const (
	AssetKindPDF   AssetKind = "pdf"
	AssetKindDOCX  AssetKind = "docx"
	AssetKindImage AssetKind = "image"
)

// Label 用于上下文标注的大写类别名
func (k AssetKind) Label() string {
	switch k {
	case AssetKindPDF:
		return "PDF"
	case AssetKindDOCX:
		return "DOCX"
	case AssetKindImage:
		return "IMAGE"
	default:
		return "DOCUMENT"
	}
}

// Asset 用户上传的文件
type Asset struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID      string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	Kind        AssetKind `json:"kind" gorm:"type:varchar(16);not null"`
	StorageURL  string    `json:"storage_url" gorm:"type:varchar(512);not null"`
	Filename    string    `json:"filename" gorm:"type:varchar(255);not null"`
	ContentType string    `json:"content_type" gorm:"type:varchar(128)"`
	SizeBytes   int64     `json:"size_bytes"`
	ChunkCount  int       `json:"chunk_count" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`

	Chunks []DocumentChunk `json:"-" gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
}

func (Asset) TableName() string {
	return "assets"
}

func NewAsset(userID string, kind AssetKind, storageURL, filename string) *Asset {
	return &Asset{
		UserID:     userID,
		Kind:       kind,
		StorageURL: storageURL,
		Filename:   filename,
		CreatedAt:  time.Now(),
	}
}

// DocumentChunk 文档切片，随 Asset 级联删除
type DocumentChunk struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	AssetID    string    `json:"asset_id" gorm:"type:uuid;index;not null"`
	UserID     string    `json:"user_id" gorm:"type:varchar(64);index;not null"`
	ChunkIndex int       `json:"chunk_index" gorm:"not null"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`

	// Asset 仅在按 ID 批量加载时预载，用于上下文标注
	Asset *Asset `json:"-" gorm:"foreignKey:AssetID"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
