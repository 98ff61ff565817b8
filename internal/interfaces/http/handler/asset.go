package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-chat-api/internal/application/ingestion"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	"rag-chat-api/internal/interfaces/http/dto"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// multipart 头部与其他字段的余量
const multipartOverhead = 1 << 20

// Ingester 上传摄取
type Ingester interface {
	Ingest(ctx context.Context, in ingestion.UploadInput) (*ingestion.UploadResult, error)
}

// AssetQueries 资产查询与删除
type AssetQueries interface {
	List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.Asset], error)
	Get(ctx context.Context, userID, assetID string) (*entity.Asset, error)
	Open(ctx context.Context, userID, assetID string) (*entity.Asset, []byte, error)
	Delete(ctx context.Context, userID, assetID string) error
}

// AssetHandler 资产处理器
type AssetHandler struct {
	ingester       Ingester
	assets         AssetQueries
	maxUploadBytes int64
}

func NewAssetHandler(ingester Ingester, assets AssetQueries, maxUploadBytes int64) *AssetHandler {
	return &AssetHandler{ingester: ingester, assets: assets, maxUploadBytes: maxUploadBytes}
}

// Upload 上传并摄取文件
// @Summary 上传文件
// @Tags Assets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "pdf / docx / png / jpg / gif / webp"
// @Success 201 {object} dto.Response[dto.UploadAssetResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /v1/assets [post]
func (h *AssetHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("multipart field 'file' is required"))
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("file exceeds "+strconv.FormatInt(h.maxUploadBytes, 10)+" bytes"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("cannot read uploaded file"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		dto.AppError(c, apperrors.ErrInvalidParam.WithDetail("cannot read uploaded file"))
		return
	}

	res, err := h.ingester.Ingest(c.Request.Context(), ingestion.UploadInput{
		UserID:      userID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		dto.AppError(c, err)
		return
	}

	logger.Info(c.Request.Context(), "asset uploaded",
		"asset_id", res.AssetID,
		"kind", string(res.Kind),
		"chunks", res.ChunkCount,
	)
	dto.Created(c, dto.ToUploadAssetResponse(res))
}

// List 当前用户的资产列表
// @Summary 资产列表
// @Tags Assets
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[[]dto.AssetResponse]
// @Router /v1/assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page := pagination(c)
	res, err := h.assets.List(c.Request.Context(), userID, page)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.SuccessWithPage(c, dto.ToAssetList(res.Items), dto.FromPaged(page.Page, page.PageSize, res.Total))
}

// Get 资产详情
// @Router /v1/assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	asset, err := h.assets.Get(c.Request.Context(), userID, id)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	dto.Success(c, dto.ToAssetResponse(asset))
}

// File 返回原始文件
// @Router /v1/assets/{id}/file [get]
func (h *AssetHandler) File(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	asset, data, err := h.assets.Open(c.Request.Context(), userID, id)
	if err != nil {
		dto.AppError(c, err)
		return
	}
	contentType := asset.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(asset.Filename))
	c.Data(http.StatusOK, contentType, data)
}

// Delete 删除资产
// @Router /v1/assets/{id} [delete]
func (h *AssetHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	if err := h.assets.Delete(c.Request.Context(), userID, id); err != nil {
		dto.AppError(c, err)
		return
	}
	dto.NoContent(c)
}
