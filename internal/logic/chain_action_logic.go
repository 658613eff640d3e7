package logic

import (
	"context"
	"math/big"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/model"
)

// Vote window options
const (
	VoteWindowAny       = "any"
	VoteWindowBeforeEnd = "before_end"
	VoteWindowAfterEnd  = "after_end"
)

// Contribute 向众筹捐款，amount 为 ETH 十进制字符串
func (l *CampaignLogic) Contribute(ctx context.Context, userId, id, amount string) (*model.ChainActionModel, error) {
	wei, err := chain.ToSmallestUnit(amount)
	if err != nil {
		return nil, apperror.Validation("amount must be a non-negative decimal with at most 18 fractional digits")
	}
	if wei.Sign() <= 0 {
		return nil, apperror.Validation("amount must be greater than 0")
	}

	campaign, err := l.chainBacked(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.checkEligibility(ctx, userId, campaign, model.ChainActionContribute); err != nil {
		return nil, err
	}

	action := &model.ChainActionModel{
		CampaignId: campaign.Id,
		UserId:     userId,
		Action:     model.ChainActionContribute,
		AmountWei:  wei.String(),
	}
	return l.runAction(ctx, action)
}

// Vote 对当前里程碑投票
func (l *CampaignLogic) Vote(ctx context.Context, userId, id string) (*model.ChainActionModel, error) {
	campaign, err := l.chainBacked(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.checkEligibility(ctx, userId, campaign, model.ChainActionVote); err != nil {
		return nil, err
	}

	return l.runAction(ctx, &model.ChainActionModel{
		CampaignId: campaign.Id,
		UserId:     userId,
		Action:     model.ChainActionVote,
	})
}

// FinalizeMilestone 结算当前里程碑并拨款
func (l *CampaignLogic) FinalizeMilestone(ctx context.Context, userId, id string) (*model.ChainActionModel, error) {
	campaign, err := l.chainBacked(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.checkEligibility(ctx, userId, campaign, model.ChainActionFinalize); err != nil {
		return nil, err
	}

	return l.runAction(ctx, &model.ChainActionModel{
		CampaignId: campaign.Id,
		UserId:     userId,
		Action:     model.ChainActionFinalize,
	})
}

// RetryAction 重新提交失败的链上操作，只有发起人可以重试
func (l *CampaignLogic) RetryAction(ctx context.Context, userId, actionId string) (*model.ChainActionModel, error) {
	action, err := l.actions.FindByID(ctx, actionId)
	if err != nil {
		return nil, err
	}
	if action.UserId != userId {
		return nil, apperror.Forbidden("You did not submit this action")
	}
	if action.Status != model.ChainActionFailed {
		return nil, apperror.Conflict("Only failed actions can be retried")
	}

	campaign, err := l.chainBacked(ctx, action.CampaignId)
	if err != nil {
		return nil, err
	}
	if err := l.checkEligibility(ctx, userId, campaign, action.Action); err != nil {
		return nil, err
	}

	// 同一操作并发重试时只有一个请求能认领
	if err := l.actions.ClaimForRetry(ctx, action.Id); err != nil {
		return nil, err
	}
	action.Status = model.ChainActionPending
	logger.Info("Retrying %s action %s for campaign %s", action.Action, action.Id, action.CampaignId)
	return l.runAction(ctx, action)
}

// ListActions 众筹的链上操作记录
func (l *CampaignLogic) ListActions(ctx context.Context, id string) ([]model.ChainActionModel, error) {
	if _, err := l.campaigns.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return l.actions.ListByCampaign(ctx, id)
}

func (l *CampaignLogic) chainBacked(ctx context.Context, id string) (*model.CampaignModel, error) {
	campaign, err := l.campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.IsChainBacked() {
		return nil, apperror.Conflict("Campaign is not on chain yet").WithData("campaignId", campaign.Id)
	}
	return campaign, nil
}

// checkEligibility 按 lifecycle 配置检查操作资格
func (l *CampaignLogic) checkEligibility(ctx context.Context, userId string, campaign *model.CampaignModel, action model.ChainActionType) error {
	ended := !l.now().Before(campaign.EndDate)

	switch action {
	case model.ChainActionContribute:
		if l.policy.ContributeBeforeEnd && ended {
			return apperror.Conflict("Campaign has ended")
		}
	case model.ChainActionVote:
		switch l.policy.VoteWindow {
		case VoteWindowBeforeEnd:
			if ended {
				return apperror.Conflict("Voting is closed for this campaign")
			}
		case VoteWindowAfterEnd:
			if !ended {
				return apperror.Conflict("Voting opens after the campaign ends")
			}
		}
		if l.policy.OneVotePerUser {
			voted, err := l.actions.HasConfirmed(ctx, campaign.Id, userId, model.ChainActionVote)
			if err != nil {
				return err
			}
			if voted {
				return apperror.Conflict("You have already voted on this campaign")
			}
		}
	case model.ChainActionFinalize:
		if l.policy.FinalizeOwnerOnly && campaign.CreatorId != userId {
			return apperror.Forbidden("Only the campaign owner can finalize milestones")
		}
		if l.policy.FinalizeAfterEnd && !ended {
			return apperror.Conflict("Campaign has not ended yet")
		}
	}
	return nil
}

// runAction 记录待上链操作、调用合约并回写结果
func (l *CampaignLogic) runAction(ctx context.Context, action *model.ChainActionModel) (*model.ChainActionModel, error) {
	if action.Id == "" {
		if err := l.actions.Create(ctx, action); err != nil {
			logger.Error("Failed to store %s action for campaign %s: %v", action.Action, action.CampaignId, err)
			return nil, err
		}
	}

	var result *chain.TxResult
	switch action.Action {
	case model.ChainActionContribute:
		wei, ok := new(big.Int).SetString(action.AmountWei, 10)
		if !ok {
			return nil, apperror.New(apperror.KindInternal, "stored contribution amount is invalid")
		}
		result = l.bridge.Contribute(ctx, action.CampaignId, wei)
	case model.ChainActionVote:
		result = l.bridge.Vote(ctx, action.CampaignId)
	case model.ChainActionFinalize:
		result = l.bridge.FinalizeMilestone(ctx, action.CampaignId)
	default:
		return nil, apperror.New(apperror.KindInternal, "unknown chain action")
	}

	writeCtx := context.WithoutCancel(ctx)
	status := model.ChainActionConfirmed
	if !result.Success {
		status = model.ChainActionFailed
	}
	if err := l.actions.SetResult(writeCtx, action.Id, status, result.TransactionHash, result.Error); err != nil {
		logger.Error("Failed to record %s result for action %s (tx: %s): %v",
			action.Action, action.Id, result.TransactionHash, err)
		return nil, err
	}
	action.Status = status
	action.TransactionHash = result.TransactionHash
	action.Error = result.Error

	if !result.Success {
		return nil, chainError(result).WithData("actionId", action.Id).WithData("campaignId", action.CampaignId)
	}
	logger.Info("%s confirmed for campaign %s (tx: %s)", action.Action, action.CampaignId, result.TransactionHash)
	return action, nil
}
