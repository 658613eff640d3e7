package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"

	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SandboxBridge 不连接节点，所有调用直接成功，仅用于开发与测试环境
type SandboxBridge struct {
	address common.Address
	sender  common.Address
	counter atomic.Uint64
}

// NewSandboxBridge 创建沙箱
func NewSandboxBridge(cfg config.ChainConfig) *SandboxBridge {
	s := &SandboxBridge{}
	if common.IsHexAddress(cfg.ContractAddress) {
		s.address = common.HexToAddress(cfg.ContractAddress)
	}
	if key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x")); err == nil {
		s.sender = crypto.PubkeyToAddress(key.PublicKey)
	} else if common.IsHexAddress(cfg.SenderAddress) {
		s.sender = common.HexToAddress(cfg.SenderAddress)
	}

	logger.Warn("Chain sandbox is enabled: no transaction will reach a node (contract placeholder: %s)", s.address.Hex())
	return s
}

func (s *SandboxBridge) CreateCampaign(ctx context.Context, args CreateCampaignArgs) *TxResult {
	return s.result(MethodCreateCampaign, args.CampaignID)
}

func (s *SandboxBridge) Contribute(ctx context.Context, campaignID string, amountWei *big.Int) *TxResult {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return failed("contribution amount must be positive")
	}
	return s.result(MethodContribute, campaignID)
}

func (s *SandboxBridge) Vote(ctx context.Context, campaignID string) *TxResult {
	return s.result(MethodVote, campaignID)
}

func (s *SandboxBridge) FinalizeMilestone(ctx context.Context, campaignID string) *TxResult {
	return s.result(MethodFinalizeMilestone, campaignID)
}

func (s *SandboxBridge) SenderAddress() string {
	return s.sender.Hex()
}

// BlockNumber 以调用次数充当区块号
func (s *SandboxBridge) BlockNumber(ctx context.Context) (uint64, error) {
	return s.counter.Load(), nil
}

// LookupTransaction 沙箱中的交易都视为已上链
func (s *SandboxBridge) LookupTransaction(ctx context.Context, txHash string) (TxLookup, error) {
	return TxLookup{State: TxMined, ContractAddress: s.address.Hex()}, nil
}

func (s *SandboxBridge) Close() {}

// result 生成确定性的占位交易哈希
func (s *SandboxBridge) result(method, campaignID string) *TxResult {
	n := s.counter.Add(1)
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s|%s|%d", method, campaignID, n)))
	logger.Debug("Sandbox %s for campaign %s: %s", method, campaignID, hash.Hex())
	return &TxResult{
		Success:         true,
		TransactionHash: hash.Hex(),
		ContractAddress: s.address.Hex(),
	}
}
