package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
)

type AssetRepository struct {
	client *Client
}

func NewAssetRepository(client *Client) *AssetRepository {
	return &AssetRepository{client: client}
}

func (r *AssetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Omit("Chunks").Create(asset).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (r *AssetRepository) GetByID(ctx context.Context, userID, id string) (*entity.Asset, error) {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var asset entity.Asset
	if err := db.First(&asset, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

func (r *AssetRepository) ListByUser(ctx context.Context, userID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.ListByUser")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Asset{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	var assets []*entity.Asset
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&assets).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	return repository.NewPagedResult(assets, total, pagination), nil
}

// Delete 切片随外键级联删除
func (r *AssetRepository) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.AssetRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("id = ? AND user_id = ?", id, userID).Delete(&entity.Asset{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}
