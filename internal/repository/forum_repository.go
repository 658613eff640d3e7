package repository

import (
	"context"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/model"
	"gorm.io/gorm"
)

// ForumRepository 留言存储
type ForumRepository struct {
	db *gorm.DB
}

// NewForumRepository 创建留言存储
func NewForumRepository(db *gorm.DB) *ForumRepository {
	return &ForumRepository{db: db}
}

// Append 追加留言
func (r *ForumRepository) Append(ctx context.Context, message *model.ForumMessageModel) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}

// ListByCampaign 按写入顺序返回留言
func (r *ForumRepository) ListByCampaign(ctx context.Context, campaignId string) ([]model.ForumMessageModel, error) {
	messages := make([]model.ForumMessageModel, 0)
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignId).
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return messages, nil
}
