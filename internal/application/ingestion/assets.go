package ingestion

import (
	"context"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
)

// AssetService 资产查询与删除
type AssetService struct {
	assets repository.AssetRepository
	vector retrieval.VectorStore
	blobs  BlobStorage
	events AssetEvents
}

func NewAssetService(assets repository.AssetRepository, vector retrieval.VectorStore, blobs BlobStorage, events AssetEvents) *AssetService {
	return &AssetService{assets: assets, vector: vector, blobs: blobs, events: events}
}

func (s *AssetService) List(ctx context.Context, userID string, page repository.Pagination) (*repository.PagedResult[*entity.Asset], error) {
	res, err := s.assets.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "list assets failed")
	}
	return res, nil
}

func (s *AssetService) Get(ctx context.Context, userID, assetID string) (*entity.Asset, error) {
	asset, err := s.assets.GetByID(ctx, userID, assetID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "get asset failed")
	}
	if asset == nil {
		return nil, apperrors.ErrAssetNotFound
	}
	return asset, nil
}

// Open 读取原始文件内容
func (s *AssetService) Open(ctx context.Context, userID, assetID string) (*entity.Asset, []byte, error) {
	asset, err := s.Get(ctx, userID, assetID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Load(ctx, asset.StorageURL)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeStorageError, "load asset file failed")
	}
	return asset, data, nil
}

// Delete 删除资产行（切片级联删除），向量与 blob 交给异步任务；
// 未配置事件通道时同步清理。
func (s *AssetService) Delete(ctx context.Context, userID, assetID string) error {
	asset, err := s.Get(ctx, userID, assetID)
	if err != nil {
		return err
	}
	if err := s.assets.Delete(ctx, userID, assetID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "delete asset failed")
	}

	if s.events != nil {
		if err := s.events.AssetDeleted(ctx, asset); err == nil {
			return nil
		} else {
			logger.Warn(ctx, "publish asset.deleted failed, cleaning up inline", "asset_id", assetID, "error", err.Error())
		}
	}
	return PurgeAssetData(ctx, s.vector, s.blobs, asset)
}

// PurgeAssetData 删除资产对应的向量与原始文件，异步清理消费者复用
func PurgeAssetData(ctx context.Context, vector retrieval.VectorStore, blobs BlobStorage, asset *entity.Asset) error {
	if vector != nil {
		if err := vector.DeleteByAsset(ctx, asset.UserID, asset.ID); err != nil {
			return apperrors.Upstream(err, apperrors.CodeVectorDBError, "delete asset vectors failed")
		}
	}
	if blobs != nil && asset.StorageURL != "" {
		if err := blobs.Delete(ctx, asset.StorageURL); err != nil {
			return apperrors.Wrap(err, apperrors.CodeStorageError, "delete asset file failed")
		}
	}
	return nil
}
