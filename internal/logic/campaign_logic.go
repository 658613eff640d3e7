package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/model"
	"github.com/blues/trustfunds/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CampaignInput 创建众筹的参数
type CampaignInput struct {
	Name       string
	Title      string
	Story      []string
	Goal       decimal.Decimal
	EndDate    time.Time
	Image      string
	CauseType  string
	Milestones []model.Milestone
	Recipient  string // 为空时使用发送交易的账户
}

// CampaignLogic 众筹活动的创建、修改与链上操作
// 先入库再上链；上链失败时记录保留为 chain_failed，可手动或由定时任务重试
type CampaignLogic struct {
	campaigns    *repository.CampaignRepository
	actions      *repository.ChainActionRepository
	bridge       chain.Bridge
	policy       config.LifecycleConfig
	searchFields []string
	now          func() time.Time
}

// NewCampaignLogic 创建众筹业务逻辑
func NewCampaignLogic(db *gorm.DB, bridge chain.Bridge, cfg *config.Config) *CampaignLogic {
	return &CampaignLogic{
		campaigns:    repository.NewCampaignRepository(db),
		actions:      repository.NewChainActionRepository(db),
		bridge:       bridge,
		policy:       cfg.Lifecycle,
		searchFields: cfg.Campaign.SearchFields,
		now:          time.Now,
	}
}

// Create 校验、入库并上链
func (l *CampaignLogic) Create(ctx context.Context, creatorId string, in CampaignInput) (*model.CampaignModel, error) {
	if err := l.validateInput(in); err != nil {
		return nil, err
	}

	recipient := in.Recipient
	if recipient == "" {
		recipient = l.bridge.SenderAddress()
	}

	campaign := &model.CampaignModel{
		Name:       strings.TrimSpace(in.Name),
		Title:      strings.TrimSpace(in.Title),
		Story:      datatypes.NewJSONSlice(in.Story),
		Image:      in.Image,
		CauseType:  model.CauseType(in.CauseType),
		Goal:       in.Goal,
		EndDate:    in.EndDate.UTC(),
		Milestones: datatypes.NewJSONSlice(normalizeMilestones(in.Milestones)),
		CreatorId:  creatorId,
		Recipient:  recipient,
	}

	// 入库失败时不会发起链上调用
	if err := l.campaigns.Create(ctx, campaign); err != nil {
		logger.Error("Failed to store campaign: %v", err)
		return nil, err
	}
	logger.Info("Campaign %s stored, submitting to chain", campaign.Id)

	return l.submit(ctx, campaign)
}

// Retry 由创建者重新提交上链失败的众筹
func (l *CampaignLogic) Retry(ctx context.Context, userId, id string) (*model.CampaignModel, error) {
	campaign, err := l.GetOwned(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return l.resubmit(ctx, campaign)
}

// Resubmit 重新提交上链失败的众筹，供定时任务调用
func (l *CampaignLogic) Resubmit(ctx context.Context, id string) (*model.CampaignModel, error) {
	campaign, err := l.campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.resubmit(ctx, campaign)
}

// FindRetryable 获取可由定时任务重试的众筹
func (l *CampaignLogic) FindRetryable(ctx context.Context, maxAttempts, limit int) ([]model.CampaignModel, error) {
	return l.campaigns.FindRetryable(ctx, maxAttempts, limit)
}

// FindStalePending 获取超过 olderThan 仍停留在 pending 的众筹
func (l *CampaignLogic) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]model.CampaignModel, error) {
	return l.campaigns.FindStalePending(ctx, l.now().Add(-olderThan), limit)
}

// ReconcilePending 按记录的交易哈希回写长时间停留在 pending 的众筹，返回回写后的状态
// 没有交易哈希时无法判断链上结果，保持 pending 等待人工处理
func (l *CampaignLogic) ReconcilePending(ctx context.Context, campaign *model.CampaignModel) (model.ChainStatus, error) {
	if campaign.ChainStatus != model.ChainStatusPending || campaign.TransactionHash == "" {
		return campaign.ChainStatus, nil
	}

	lookup, err := l.bridge.LookupTransaction(ctx, campaign.TransactionHash)
	if err != nil {
		return model.ChainStatusPending, apperror.Wrap(apperror.KindChainTimeout, "Unable to look up the previous transaction", err)
	}

	update := repository.ChainUpdate{
		TransactionHash: campaign.TransactionHash,
		ExpectStatus:    model.ChainStatusPending,
	}
	switch lookup.State {
	case chain.TxMined:
		update.Status = model.ChainStatusActive
		update.ContractAddress = lookup.ContractAddress
	case chain.TxReverted, chain.TxDropped:
		update.Status = model.ChainStatusFailed
		update.LastError = fmt.Sprintf("previous transaction %s", lookup.State)
	default:
		return model.ChainStatusPending, nil
	}

	if err := l.campaigns.SetChainResult(context.WithoutCancel(ctx), campaign.Id, update); err != nil {
		return model.ChainStatusPending, err
	}
	logger.Info("Reconciled pending campaign %s to %s (tx: %s)", campaign.Id, update.Status, campaign.TransactionHash)
	return update.Status, nil
}

// resubmit 先原子地认领记录，同一众筹同时只有一个提交在进行
func (l *CampaignLogic) resubmit(ctx context.Context, campaign *model.CampaignModel) (*model.CampaignModel, error) {
	if campaign.IsChainBacked() {
		return nil, apperror.Conflict("Campaign is already on chain")
	}
	if !campaign.ChainStatus.Retryable() {
		return nil, apperror.Conflict("Campaign chain submission is still pending")
	}

	previous := campaign.ChainStatus
	if err := l.campaigns.ClaimForSubmit(ctx, campaign.Id, previous); err != nil {
		return nil, err
	}
	writeCtx := context.WithoutCancel(ctx)
	// release 放弃认领，恢复原状态
	release := func() {
		if err := l.campaigns.SetChainResult(writeCtx, campaign.Id, repository.ChainUpdate{
			Status:          previous,
			TransactionHash: campaign.TransactionHash,
			LastError:       campaign.LastChainError,
			ExpectStatus:    model.ChainStatusPending,
		}); err != nil {
			logger.Error("Failed to release campaign %s back to %s: %v", campaign.Id, previous, err)
		}
	}

	// 超时的交易可能已经上链，重新提交前先查询
	if previous == model.ChainStatusTimeout && campaign.TransactionHash != "" {
		lookup, err := l.bridge.LookupTransaction(ctx, campaign.TransactionHash)
		if err != nil {
			release()
			return nil, apperror.Wrap(apperror.KindChainTimeout, "Unable to look up the previous transaction", err).
				WithData("campaignId", campaign.Id)
		}
		switch lookup.State {
		case chain.TxMined:
			logger.Info("Previous transaction %s of campaign %s was mined", campaign.TransactionHash, campaign.Id)
			return l.activate(writeCtx, campaign.Id, &chain.TxResult{
				Success:         true,
				TransactionHash: campaign.TransactionHash,
				ContractAddress: lookup.ContractAddress,
			}, false)
		case chain.TxPending:
			release()
			return nil, apperror.Conflict("Previous transaction is still pending").
				WithData("campaignId", campaign.Id).
				WithData("transactionHash", campaign.TransactionHash)
		}
		logger.Info("Previous transaction %s of campaign %s is %s, resubmitting", campaign.TransactionHash, campaign.Id, lookup.State)
	}

	// 条款可能在失败后过期，需要先修改再重试
	now := l.now()
	if err := validateEndDate(campaign.EndDate, now); err != nil {
		release()
		return nil, err
	}
	if err := validateMilestones(campaign.Milestones, now); err != nil {
		release()
		return nil, err
	}

	// 旧交易哈希不再代表本次提交，清除后 pending 记录才不会被按旧交易对账
	if err := l.campaigns.SetChainResult(writeCtx, campaign.Id, repository.ChainUpdate{
		Status:       model.ChainStatusPending,
		LastError:    campaign.LastChainError,
		ExpectStatus: model.ChainStatusPending,
	}); err != nil {
		return nil, err
	}

	logger.Info("Resubmitting campaign %s to chain (attempt %d)", campaign.Id, campaign.ChainAttempts+1)
	return l.submit(ctx, campaign)
}

// submit 调用合约并回写结果，调用方必须已持有 pending 状态
func (l *CampaignLogic) submit(ctx context.Context, campaign *model.CampaignModel) (*model.CampaignModel, error) {
	goalWei, err := chain.DecimalToSmallestUnit(campaign.Goal)
	if err != nil {
		return nil, apperror.Validation("goal has too many decimal places")
	}

	terms := make([]chain.MilestoneTerm, 0, len(campaign.Milestones))
	for _, m := range campaign.Milestones {
		terms = append(terms, chain.MilestoneTerm{Deadline: m.Deadline, CompletionPercentage: m.CompletionPercentage})
	}

	result := l.bridge.CreateCampaign(ctx, chain.CreateCampaignArgs{
		CampaignID: campaign.Id,
		Recipient:  campaign.Recipient,
		TargetWei:  goalWei,
		Deadline:   campaign.EndDate,
		Milestones: terms,
	})

	// 回写不受客户端断开影响
	writeCtx := context.WithoutCancel(ctx)

	if !result.Success {
		status := model.ChainStatusFailed
		if result.Timeout {
			status = model.ChainStatusTimeout
		}
		update := repository.ChainUpdate{
			Status:            status,
			TransactionHash:   result.TransactionHash,
			LastError:         result.Error,
			IncrementAttempts: true,
			ExpectStatus:      model.ChainStatusPending,
		}
		if err := l.campaigns.SetChainResult(writeCtx, campaign.Id, update); err != nil {
			logger.Error("Failed to record chain failure for campaign %s: %v", campaign.Id, err)
		}
		return nil, chainError(result).WithData("campaignId", campaign.Id)
	}

	return l.activate(writeCtx, campaign.Id, result, true)
}

// activate 回写上链成功
func (l *CampaignLogic) activate(ctx context.Context, id string, result *chain.TxResult, countAttempt bool) (*model.CampaignModel, error) {
	update := repository.ChainUpdate{
		Status:            model.ChainStatusActive,
		ContractAddress:   result.ContractAddress,
		TransactionHash:   result.TransactionHash,
		IncrementAttempts: countAttempt,
		ExpectStatus:      model.ChainStatusPending,
	}
	if err := l.campaigns.SetChainResult(ctx, id, update); err != nil {
		// 链上已成功但本地未回写，保持 pending 等待人工对账
		logger.Error("Campaign %s is on chain (tx: %s) but the store update failed: %v",
			id, result.TransactionHash, err)
		return nil, err
	}

	logger.Info("Campaign %s created on chain (contract: %s, tx: %s)",
		id, result.ContractAddress, result.TransactionHash)
	return l.campaigns.FindByID(ctx, id)
}

// Get 获取众筹详情
func (l *CampaignLogic) Get(ctx context.Context, id string) (*model.CampaignModel, error) {
	return l.campaigns.FindByID(ctx, id)
}

// List 获取全部众筹
func (l *CampaignLogic) List(ctx context.Context) ([]model.CampaignModel, error) {
	return l.campaigns.FindAll(ctx)
}

// ListByCreator 获取用户创建的众筹
func (l *CampaignLogic) ListByCreator(ctx context.Context, userId string) ([]model.CampaignModel, error) {
	return l.campaigns.FindByCreator(ctx, userId)
}

// GetOwned 获取用户自己的众筹，非创建者返回 Forbidden
func (l *CampaignLogic) GetOwned(ctx context.Context, userId, id string) (*model.CampaignModel, error) {
	campaign, err := l.campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.CreatorId != userId {
		return nil, apperror.Forbidden("You are not the owner of this campaign")
	}
	return campaign, nil
}

// Search 按配置的字段搜索
func (l *CampaignLogic) Search(ctx context.Context, query string) ([]model.CampaignModel, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("Search query is required")
	}
	return l.campaigns.Search(ctx, query, l.searchFields)
}

// Causes 允许的众筹类别
func (l *CampaignLogic) Causes() []model.CauseType {
	return model.CauseTypes
}

// Update 部分更新，已上链的众筹不能修改链上条款
func (l *CampaignLogic) Update(ctx context.Context, userId, id string, patch model.CampaignPatch) (*model.CampaignModel, error) {
	if patch.IsEmpty() {
		return nil, apperror.Validation("No fields to update")
	}

	campaign, err := l.GetOwned(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if patch.TouchesChainTerms() {
		if campaign.IsChainBacked() {
			return nil, apperror.Conflict("goal, endDate, milestones and recipient cannot change once the campaign is on chain")
		}
		if campaign.ChainStatus == model.ChainStatusPending {
			return nil, apperror.Conflict("goal, endDate, milestones and recipient cannot change while the campaign is being submitted")
		}
	}
	if err := l.validatePatch(patch); err != nil {
		return nil, err
	}

	if patch.Milestones.Present() {
		patch.Milestones.Value = normalizeMilestones(patch.Milestones.Value)
	}
	return l.campaigns.Update(ctx, id, patch)
}

// Delete 删除众筹
func (l *CampaignLogic) Delete(ctx context.Context, userId, id string) error {
	campaign, err := l.GetOwned(ctx, userId, id)
	if err != nil {
		return err
	}
	if campaign.ChainStatus == model.ChainStatusPending {
		return apperror.Conflict("Campaign chain submission is in progress").WithData("campaignId", id)
	}

	deleted, err := l.campaigns.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return apperror.NotFound("Campaign not found")
	}
	logger.Info("Campaign %s deleted by %s", id, userId)
	return nil
}

func (l *CampaignLogic) validateInput(in CampaignInput) error {
	now := l.now()
	if err := requireText("name", in.Name); err != nil {
		return err
	}
	if err := requireText("title", in.Title); err != nil {
		return err
	}
	if err := validateStory(in.Story); err != nil {
		return err
	}
	if err := validateGoal(in.Goal); err != nil {
		return err
	}
	if err := validateEndDate(in.EndDate, now); err != nil {
		return err
	}
	if err := validateImage(in.Image); err != nil {
		return err
	}
	if err := validateCause(in.CauseType); err != nil {
		return err
	}
	if err := validateMilestones(in.Milestones, now); err != nil {
		return err
	}
	if in.Recipient != "" {
		if err := validateRecipient(in.Recipient); err != nil {
			return err
		}
	}
	return nil
}

// validatePatch 出现的字段按创建规则校验，显式的 null 视为清空必填字段
func (l *CampaignLogic) validatePatch(p model.CampaignPatch) error {
	now := l.now()

	for _, f := range []struct {
		name string
		null bool
	}{
		{"name", p.Name.Null},
		{"title", p.Title.Null},
		{"story", p.Story.Null},
		{"goal", p.Goal.Null},
		{"endDate", p.EndDate.Null},
		{"image", p.Image.Null},
		{"causeType", p.CauseType.Null},
		{"milestones", p.Milestones.Null},
		{"recipient", p.Recipient.Null},
	} {
		if f.null {
			return apperror.Validation(fmt.Sprintf("%s cannot be null", f.name))
		}
	}

	if p.Name.Set {
		if err := requireText("name", p.Name.Value); err != nil {
			return err
		}
	}
	if p.Title.Set {
		if err := requireText("title", p.Title.Value); err != nil {
			return err
		}
	}
	if p.Story.Set {
		if err := validateStory(p.Story.Value); err != nil {
			return err
		}
	}
	if p.Goal.Set {
		if err := validateGoal(p.Goal.Value); err != nil {
			return err
		}
	}
	if p.EndDate.Set {
		if err := validateEndDate(p.EndDate.Value, now); err != nil {
			return err
		}
	}
	if p.Image.Set {
		if err := validateImage(p.Image.Value); err != nil {
			return err
		}
	}
	if p.CauseType.Set {
		if err := validateCause(p.CauseType.Value); err != nil {
			return err
		}
	}
	if p.Milestones.Set {
		if err := validateMilestones(p.Milestones.Value, now); err != nil {
			return err
		}
	}
	if p.Recipient.Set {
		if err := validateRecipient(p.Recipient.Value); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMilestones(milestones []model.Milestone) []model.Milestone {
	out := make([]model.Milestone, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, model.Milestone{Deadline: m.Deadline.UTC(), CompletionPercentage: m.CompletionPercentage})
	}
	return out
}

// chainError 将合约调用结果转换为业务错误
func chainError(result *chain.TxResult) *apperror.Error {
	var appErr *apperror.Error
	if result.Timeout {
		appErr = apperror.New(apperror.KindChainTimeout, "Blockchain call timed out")
	} else {
		appErr = apperror.New(apperror.KindChainFailed, fmt.Sprintf("Blockchain transaction failed: %s", result.Error))
	}
	if result.TransactionHash != "" {
		appErr = appErr.WithData("transactionHash", result.TransactionHash)
	}
	return appErr
}
