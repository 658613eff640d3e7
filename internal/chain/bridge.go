package chain

import (
	"context"
	"math/big"
	"time"
)

// TxResult 一次合约调用的结果，调用方只需要检查 Success
type TxResult struct {
	Success         bool
	TransactionHash string
	ContractAddress string // 接受调用的合约地址
	Error           string
	Timeout         bool // 在超时时间内未拿到回执，交易可能仍会上链
}

// TxState 已提交交易在链上的状态
type TxState string

const (
	TxMined    TxState = "mined"    // 已打包且执行成功
	TxReverted TxState = "reverted" // 已打包但执行失败
	TxPending  TxState = "pending"  // 仍在交易池中，或已打包但回执尚不可用
	TxDropped  TxState = "dropped"  // 节点上查不到该交易
)

// TxLookup 按交易哈希查询的结果
type TxLookup struct {
	State           TxState
	ContractAddress string // 仅 TxMined 时有值
}

// MilestoneTerm 写入合约的里程碑条款
type MilestoneTerm struct {
	Deadline             time.Time
	CompletionPercentage uint8
}

// CreateCampaignArgs 创建众筹的合约参数
type CreateCampaignArgs struct {
	CampaignID string
	Recipient  string
	TargetWei  *big.Int
	Deadline   time.Time
	Milestones []MilestoneTerm
}

// Bridge 众筹合约调用
type Bridge interface {
	CreateCampaign(ctx context.Context, args CreateCampaignArgs) *TxResult
	Contribute(ctx context.Context, campaignID string, amountWei *big.Int) *TxResult
	Vote(ctx context.Context, campaignID string) *TxResult
	FinalizeMilestone(ctx context.Context, campaignID string) *TxResult
	// SenderAddress 发送交易的账户地址，也是默认的收款地址
	SenderAddress() string
	BlockNumber(ctx context.Context) (uint64, error)
	// LookupTransaction 查询之前提交的交易，节点不可达时返回 error
	LookupTransaction(ctx context.Context, txHash string) (TxLookup, error)
	Close()
}

func failed(msg string) *TxResult {
	return &TxResult{Success: false, Error: msg}
}

var (
	_ Bridge = (*Client)(nil)
	_ Bridge = (*SandboxBridge)(nil)
)
