package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/model"
	"gorm.io/gorm"
)

// SearchableFields 允许参与搜索的字段
var SearchableFields = []string{"name", "title", "story"}

const (
	msgSubmissionInProgress = "Campaign chain submission is in progress"
	msgChainTermsFrozen     = "goal, endDate, milestones and recipient cannot change once the campaign is on chain or being submitted"
)

var errSubmissionInProgress = errors.New("chain submission in progress")

// ChainUpdate 上链结果回写
type ChainUpdate struct {
	Status            model.ChainStatus
	ContractAddress   string
	TransactionHash   string
	LastError         string
	IncrementAttempts bool
	// ExpectStatus 非空时只在当前状态与之相同时写入，否则返回 Conflict
	ExpectStatus model.ChainStatus
}

// CampaignRepository 众筹活动存储
type CampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository 创建众筹活动存储
func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create 写入新的众筹活动
func (r *CampaignRepository) Create(ctx context.Context, campaign *model.CampaignModel) error {
	if err := r.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	return nil
}

// FindByID 根据ID查询
func (r *CampaignRepository) FindByID(ctx context.Context, id string) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, storeError(err, "Campaign not found")
	}
	return &campaign, nil
}

// FindAll 获取全部众筹活动
func (r *CampaignRepository) FindAll(ctx context.Context) ([]model.CampaignModel, error) {
	campaigns := make([]model.CampaignModel, 0)
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return campaigns, nil
}

// FindByCreator 获取用户创建的众筹活动，没有记录时返回空切片
func (r *CampaignRepository) FindByCreator(ctx context.Context, userId string) ([]model.CampaignModel, error) {
	campaigns := make([]model.CampaignModel, 0)
	if err := r.db.WithContext(ctx).
		Where("creator_id = ?", userId).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return campaigns, nil
}

// FindRetryable 获取上链失败或超时且未超过重试次数的众筹活动
func (r *CampaignRepository) FindRetryable(ctx context.Context, maxAttempts, limit int) ([]model.CampaignModel, error) {
	campaigns := make([]model.CampaignModel, 0)
	if err := r.db.WithContext(ctx).
		Where("chain_status IN ? AND chain_attempts < ?",
			[]model.ChainStatus{model.ChainStatusFailed, model.ChainStatusTimeout}, maxAttempts).
		Order("updated_at ASC").
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return campaigns, nil
}

// FindStalePending 获取在 before 之前进入 pending 且之后没有变化的众筹活动
func (r *CampaignRepository) FindStalePending(ctx context.Context, before time.Time, limit int) ([]model.CampaignModel, error) {
	campaigns := make([]model.CampaignModel, 0)
	if err := r.db.WithContext(ctx).
		Where("chain_status = ? AND updated_at < ?", model.ChainStatusPending, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&campaigns).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return campaigns, nil
}

// Update 部分更新，只写入 patch 中出现的字段
// 涉及链上条款时，已上链或正在提交的记录不会被修改
func (r *CampaignRepository) Update(ctx context.Context, id string, patch model.CampaignPatch) (*model.CampaignModel, error) {
	updates := patch.Columns()
	if len(updates) == 0 {
		return nil, apperror.Validation("No fields to update")
	}

	query := r.db.WithContext(ctx).Model(&model.CampaignModel{}).Where("id = ?", id)
	if patch.TouchesChainTerms() {
		query = query.Where("contract_address = '' AND chain_status <> ?", model.ChainStatusPending)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return nil, apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		if !patch.TouchesChainTerms() {
			return nil, apperror.NotFound("Campaign not found")
		}
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict(msgChainTermsFrozen)
	}

	return r.FindByID(ctx, id)
}

// ClaimForSubmit 将状态从 from 原子地改为 pending，已被其他请求认领时返回 Conflict
func (r *CampaignRepository) ClaimForSubmit(ctx context.Context, id string, from model.ChainStatus) error {
	result := r.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("id = ? AND chain_status = ?", id, from).
		Update("chain_status", model.ChainStatusPending)
	if result.Error != nil {
		return apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.Conflict(msgSubmissionInProgress).WithData("campaignId", id)
	}
	return nil
}

// SetChainResult 回写上链结果
func (r *CampaignRepository) SetChainResult(ctx context.Context, id string, update ChainUpdate) error {
	updates := map[string]interface{}{
		"chain_status":     update.Status,
		"contract_address": update.ContractAddress,
		"transaction_hash": update.TransactionHash,
		"last_chain_error": update.LastError,
	}
	if update.IncrementAttempts {
		updates["chain_attempts"] = gorm.Expr("chain_attempts + ?", 1)
	}

	query := r.db.WithContext(ctx).Model(&model.CampaignModel{}).Where("id = ?", id)
	if update.ExpectStatus != "" {
		query = query.Where("chain_status = ?", update.ExpectStatus)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		if update.ExpectStatus == "" {
			return apperror.NotFound("Campaign not found")
		}
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return apperror.Conflict(fmt.Sprintf("Campaign is no longer %s", update.ExpectStatus))
	}
	return nil
}

// Delete 硬删除众筹活动及其留言、上链记录，返回删除的活动数量
// 正在提交上链的记录不能删除
func (r *CampaignRepository) Delete(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND chain_status <> ?", id, model.ChainStatusPending).Delete(&model.CampaignModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.CampaignModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return errSubmissionInProgress
			}
			return nil
		}
		deleted = result.RowsAffected

		if err := tx.Where("campaign_id = ?", id).Delete(&model.ForumMessageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("campaign_id = ?", id).Delete(&model.ChainActionModel{}).Error
	})
	if errors.Is(err, errSubmissionInProgress) {
		return 0, apperror.Conflict(msgSubmissionInProgress).WithData("campaignId", id)
	}
	if err != nil {
		return 0, apperror.StoreUnavailable(err)
	}
	return deleted, nil
}

// Search 不区分大小写的子串匹配
func (r *CampaignRepository) Search(ctx context.Context, query string, fields []string) ([]model.CampaignModel, error) {
	if len(fields) == 0 {
		fields = []string{"title", "name"}
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	conditions := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, field := range fields {
		if !isSearchable(field) {
			return nil, apperror.Validation(fmt.Sprintf("Field %s is not searchable", field))
		}
		conditions = append(conditions, fmt.Sprintf("LOWER(CAST(%s AS TEXT)) LIKE ? ESCAPE '\\'", field))
		args = append(args, pattern)
	}

	campaigns := make([]model.CampaignModel, 0)
	if err := r.db.WithContext(ctx).
		Where(strings.Join(conditions, " OR "), args...).
		Order("created_at DESC").
		Find(&campaigns).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return campaigns, nil
}

func isSearchable(field string) bool {
	for _, f := range SearchableFields {
		if f == field {
			return true
		}
	}
	return false
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
