package ingestion

import (
	"mime"
	"path/filepath"
	"strings"

	"rag-chat-api/internal/domain/entity"
	apperrors "rag-chat-api/pkg/errors"
)

// FileType 上传文件解析后的类型；MIME 与 Ext 为规范值，不沿用客户端传入的 Content-Type
type FileType struct {
	Kind entity.AssetKind
	MIME string
	Ext  string
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// 同一 MIME 的多个扩展名中，排在前面的作为规范扩展名
var supportedTypes = []FileType{
	{entity.AssetKindPDF, "application/pdf", ".pdf"},
	{entity.AssetKindDOCX, docxMIME, ".docx"},
	{entity.AssetKindImage, "image/png", ".png"},
	{entity.AssetKindImage, "image/jpeg", ".jpg"},
	{entity.AssetKindImage, "image/jpeg", ".jpeg"},
	{entity.AssetKindImage, "image/gif", ".gif"},
	{entity.AssetKindImage, "image/webp", ".webp"},
}

// DetectType 先看扩展名；没有扩展名时才看 Content-Type
func DetectType(filename, contentType string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		for _, ft := range supportedTypes {
			if ft.Ext == ext {
				return ft, nil
			}
		}
		return FileType{}, unsupported(ext)
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = strings.ToLower(mediaType)
		for _, ft := range supportedTypes {
			if ft.MIME == mediaType {
				return ft, nil
			}
		}
	}
	return FileType{}, unsupported(contentType)
}

func unsupported(detail string) error {
	return apperrors.ErrUnsupportedType.WithDetail("unsupported file type: " + detail + "; allowed: pdf, docx, png, jpg, jpeg, gif, webp")
}
