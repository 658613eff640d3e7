package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/metrics"
	"github.com/blues/trustfunds/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// Resubmitter 重新提交上链失败的众筹，并对账卡在 pending 的记录
type Resubmitter interface {
	FindRetryable(ctx context.Context, maxAttempts, limit int) ([]model.CampaignModel, error)
	Resubmit(ctx context.Context, id string) (*model.CampaignModel, error)
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]model.CampaignModel, error)
	ReconcilePending(ctx context.Context, campaign *model.CampaignModel) (model.ChainStatus, error)
}

// CampaignRetryJob 重试上链失败或超时的众筹，并对账长时间停留在 pending 的众筹
type CampaignRetryJob struct {
	campaigns Resubmitter
	config    config.TaskConfig
	metrics   *metrics.Metrics
	pool      *ants.Pool
}

// NewCampaignRetryJob 创建众筹重试任务
func NewCampaignRetryJob(campaigns Resubmitter, cfg config.TaskConfig, m *metrics.Metrics) (*CampaignRetryJob, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry pool: %w", err)
	}

	return &CampaignRetryJob{
		campaigns: campaigns,
		config:    cfg,
		metrics:   m,
		pool:      pool,
	}, nil
}

// GetName 获取任务名称
func (j *CampaignRetryJob) GetName() string {
	return "campaign_chain_retry"
}

// GetSchedule 获取调度配置
func (j *CampaignRetryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Interval) * time.Second)
}

// Execute 执行任务
func (j *CampaignRetryJob) Execute() {
	j.Run(context.Background())
}

// Run 处理一批上链失败的众筹并对账卡住的记录，返回成功上链的数量
func (j *CampaignRetryJob) Run(ctx context.Context) int {
	j.metrics.ObserveRetryRun()

	resubmitted := j.retry(ctx)
	j.reconcileStale(ctx)
	return resubmitted
}

func (j *CampaignRetryJob) retry(ctx context.Context) int {
	campaigns, err := j.campaigns.FindRetryable(ctx, j.config.MaxAttempts, j.config.BatchSize)
	if err != nil {
		logger.Error("Failed to fetch campaigns for retry: %v", err)
		return 0
	}
	if len(campaigns) == 0 {
		logger.Debug("No campaigns to retry")
		return 0
	}

	logger.Info("Retrying %d chain-failed campaigns", len(campaigns))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for _, campaign := range campaigns {
		id := campaign.Id
		wg.Add(1)
		err := j.pool.Submit(func() {
			defer wg.Done()
			if j.resubmit(ctx, id) {
				succeeded.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit retry of campaign %s: %v", id, err)
		}
	}
	wg.Wait()

	logger.Info("Campaign retry task completed. Resubmitted %d of %d", succeeded.Load(), len(campaigns))
	return int(succeeded.Load())
}

// reconcileStale 按交易哈希回写卡在 pending 的众筹，无哈希的只上报
func (j *CampaignRetryJob) reconcileStale(ctx context.Context) {
	olderThan := time.Duration(j.config.StaleAfter) * time.Second
	if olderThan <= 0 {
		return
	}

	stale, err := j.campaigns.FindStalePending(ctx, olderThan, j.config.BatchSize)
	if err != nil {
		logger.Error("Failed to fetch stale pending campaigns: %v", err)
		return
	}

	remaining := 0
	for i := range stale {
		campaign := &stale[i]
		if campaign.TransactionHash == "" {
			remaining++
			j.metrics.ObserveReconcile("unknown")
			logger.Warn("Campaign %s has been pending since %s without a transaction hash",
				campaign.Id, campaign.UpdatedAt.Format(time.RFC3339))
			continue
		}

		status, err := j.campaigns.ReconcilePending(ctx, campaign)
		if err != nil {
			remaining++
			j.metrics.ObserveReconcile("error")
			logger.Warn("Failed to reconcile pending campaign %s (tx: %s): %v", campaign.Id, campaign.TransactionHash, err)
			continue
		}
		if status == model.ChainStatusPending {
			remaining++
		}
		j.metrics.ObserveReconcile(string(status))
	}

	j.metrics.SetStalePending(remaining)
	if len(stale) > 0 {
		logger.Info("Checked %d stale pending campaigns, %d still pending", len(stale), remaining)
	}
}

func (j *CampaignRetryJob) resubmit(ctx context.Context, id string) bool {
	campaign, err := j.campaigns.Resubmit(ctx, id)
	if err != nil {
		outcome := "error"
		switch {
		case apperror.IsKind(err, apperror.KindChainFailed):
			outcome = "failed"
		case apperror.IsKind(err, apperror.KindChainTimeout):
			outcome = "timeout"
		case apperror.IsKind(err, apperror.KindConflict), apperror.IsKind(err, apperror.KindValidation):
			outcome = "skipped"
		}
		j.metrics.ObserveResubmit(outcome)
		logger.Warn("Retry of campaign %s did not succeed: %v", id, err)
		return false
	}

	j.metrics.ObserveResubmit("success")
	logger.Info("Campaign %s is on chain at %s", campaign.Id, campaign.ContractAddress)
	return true
}

// Release 释放协程池
func (j *CampaignRetryJob) Release() {
	j.pool.Release()
}
