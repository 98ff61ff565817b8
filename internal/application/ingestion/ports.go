package ingestion

import (
	"context"

	"rag-chat-api/internal/domain/entity"
)

// OCRResult OCR 输出：文本与三项质量信号
type OCRResult struct {
	Text    string
	Signals OCRSignals
}

// OCREngine 文字识别服务
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, mime string) (*OCRResult, error)
}

// VisionDescriber 视觉模型，为图片生成简短描述
type VisionDescriber interface {
	Describe(ctx context.Context, image []byte, mime string) (string, error)
}

// TextExtractor 文档文本抽取
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// PreparedImage 预处理后的图片
type PreparedImage struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Resized bool
}

// ImagePreparer 解码并按最长边缩放图片
type ImagePreparer interface {
	Prepare(data []byte, mime string, maxEdge int) (*PreparedImage, error)
}

// BlobStorage 原始文件存储
type BlobStorage interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// AssetEvents 资产生命周期事件，发布失败不影响主流程
type AssetEvents interface {
	AssetIngested(ctx context.Context, asset *entity.Asset) error
	AssetDeleted(ctx context.Context, asset *entity.Asset) error
}
