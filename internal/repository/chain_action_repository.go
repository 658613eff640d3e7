package repository

import (
	"context"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/model"
	"gorm.io/gorm"
)

// ChainActionRepository 上链操作记录存储
type ChainActionRepository struct {
	db *gorm.DB
}

// NewChainActionRepository 创建上链操作记录存储
func NewChainActionRepository(db *gorm.DB) *ChainActionRepository {
	return &ChainActionRepository{db: db}
}

// Create 写入待上链的操作
func (r *ChainActionRepository) Create(ctx context.Context, action *model.ChainActionModel) error {
	if err := r.db.WithContext(ctx).Create(action).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}

// FindByID 根据ID查询
func (r *ChainActionRepository) FindByID(ctx context.Context, id string) (*model.ChainActionModel, error) {
	var action model.ChainActionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&action).Error; err != nil {
		return nil, storeError(err, "Action not found")
	}
	return &action, nil
}

// ListByCampaign 按时间顺序返回众筹活动的上链操作
func (r *ChainActionRepository) ListByCampaign(ctx context.Context, campaignId string) ([]model.ChainActionModel, error) {
	actions := make([]model.ChainActionModel, 0)
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignId).
		Order("created_at ASC").
		Find(&actions).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return actions, nil
}

// SetResult 回写上链结果
func (r *ChainActionRepository) SetResult(ctx context.Context, id string, status model.ChainActionStatus, txHash, errMsg string) error {
	updates := map[string]interface{}{
		"status":           status,
		"transaction_hash": txHash,
		"error":            errMsg,
	}
	result := r.db.WithContext(ctx).Model(&model.ChainActionModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("Action not found")
	}
	return nil
}

// ClaimForRetry 将失败的操作原子地改回 pending，已被其他请求认领时返回 Conflict
func (r *ChainActionRepository) ClaimForRetry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&model.ChainActionModel{}).
		Where("id = ? AND status = ?", id, model.ChainActionFailed).
		Updates(map[string]interface{}{
			"status":           model.ChainActionPending,
			"transaction_hash": "",
			"error":            "",
		})
	if result.Error != nil {
		return apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict("Only failed actions can be retried").WithData("actionId", id)
	}
	return nil
}

// HasConfirmed 用户是否已有确认过的同类操作
func (r *ChainActionRepository) HasConfirmed(ctx context.Context, campaignId, userId string, action model.ChainActionType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ChainActionModel{}).
		Where("campaign_id = ? AND user_id = ? AND action = ? AND status = ?",
			campaignId, userId, action, model.ChainActionConfirmed).
		Count(&count).Error; err != nil {
		return false, apperror.StoreUnavailable(err)
	}
	return count > 0, nil
}
