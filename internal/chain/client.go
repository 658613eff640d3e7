package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/logger"
	"github.com/blues/trustfunds/internal/metrics"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// transactor 发送合约交易，由 *bind.BoundContract 实现
type transactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// nodeReader 查询区块与交易，由 *ethclient.Client 实现
type nodeReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// receiptWaiter 等待交易回执
type receiptWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// Client 通过 JSON-RPC 节点调用众筹合约
type Client struct {
	eth       *ethclient.Client
	contract  transactor
	node      nodeReader
	waitMined receiptWaiter
	auth      *bind.TransactOpts
	address   common.Address
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewClient 连接节点并绑定合约
func NewClient(ctx context.Context, cfg config.ChainConfig, m *metrics.Metrics) (*Client, error) {
	if cfg.RpcUrl == "" {
		return nil, errors.New("no RPC URL configured")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	sender, err := senderFromKey(privateKey, cfg.SenderAddress)
	if err != nil {
		return nil, err
	}

	parsedABI, err := LoadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to chain node (RPC: %s)", cfg.RpcUrl)
	eth, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain node: %w", err)
	}

	chainID := big.NewInt(cfg.ChainId)
	if cfg.ChainId == 0 {
		chainID, err = eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("failed to query chain id: %w", err)
		}
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.GasLimit = cfg.GasLimit

	address := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(address, parsedABI, eth, eth, eth)

	logger.Info("Chain client ready (chain id: %s, contract: %s, sender: %s)", chainID, address.Hex(), sender.Hex())

	return &Client{
		eth:      eth,
		contract: contract,
		node:     eth,
		waitMined: func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
			return bind.WaitMined(ctx, eth, tx)
		},
		auth:    auth,
		address: address,
		timeout: cfg.CallTimeout,
		metrics: m,
	}, nil
}

// senderFromKey 由私钥推导发送地址，配置了 sender_address 时必须一致
func senderFromKey(key *ecdsa.PrivateKey, configured string) (common.Address, error) {
	sender := crypto.PubkeyToAddress(key.PublicKey)
	if configured == "" {
		return sender, nil
	}
	if !common.IsHexAddress(configured) {
		return common.Address{}, fmt.Errorf("invalid sender address: %s", configured)
	}
	if common.HexToAddress(configured) != sender {
		return common.Address{}, fmt.Errorf("sender address %s does not match private key (%s)", configured, sender.Hex())
	}
	return sender, nil
}

// CreateCampaign 在合约中创建众筹
func (c *Client) CreateCampaign(ctx context.Context, args CreateCampaignArgs) *TxResult {
	if !common.IsHexAddress(args.Recipient) {
		return failed(fmt.Sprintf("invalid recipient address: %s", args.Recipient))
	}
	if args.TargetWei == nil {
		return failed("target amount is required")
	}

	deadlines := make([]*big.Int, 0, len(args.Milestones))
	percentages := make([]*big.Int, 0, len(args.Milestones))
	for _, m := range args.Milestones {
		deadlines = append(deadlines, UnixSeconds(m.Deadline))
		percentages = append(percentages, big.NewInt(int64(m.CompletionPercentage)))
	}

	return c.send(ctx, MethodCreateCampaign, nil,
		args.CampaignID,
		common.HexToAddress(args.Recipient),
		args.TargetWei,
		UnixSeconds(args.Deadline),
		deadlines,
		percentages,
	)
}

// Contribute 向众筹捐款，金额单位为 wei
func (c *Client) Contribute(ctx context.Context, campaignID string, amountWei *big.Int) *TxResult {
	if amountWei == nil || amountWei.Sign() <= 0 {
		return failed("contribution amount must be positive")
	}
	return c.send(ctx, MethodContribute, amountWei, campaignID)
}

// Vote 对当前里程碑投票
func (c *Client) Vote(ctx context.Context, campaignID string) *TxResult {
	return c.send(ctx, MethodVote, nil, campaignID)
}

// FinalizeMilestone 结算当前里程碑并拨款
func (c *Client) FinalizeMilestone(ctx context.Context, campaignID string) *TxResult {
	return c.send(ctx, MethodFinalizeMilestone, nil, campaignID)
}

// SenderAddress 发送交易的账户
func (c *Client) SenderAddress() string {
	return c.auth.From.Hex()
}

// BlockNumber 获取当前最新区块号
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.node.BlockNumber(ctx)
}

// LookupTransaction 根据回执判断交易结果，没有回执时再查交易池
func (c *Client) LookupTransaction(ctx context.Context, txHash string) (TxLookup, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return TxLookup{}, fmt.Errorf("invalid transaction hash: %s", txHash)
	}
	hash := common.BytesToHash(raw)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.node.TransactionReceipt(callCtx, hash)
	switch {
	case err == nil:
		if receipt.Status == types.ReceiptStatusSuccessful {
			return TxLookup{State: TxMined, ContractAddress: c.address.Hex()}, nil
		}
		return TxLookup{State: TxReverted}, nil
	case !errors.Is(err, ethereum.NotFound):
		return TxLookup{}, fmt.Errorf("failed to fetch receipt for %s: %w", txHash, err)
	}

	_, _, err = c.node.TransactionByHash(callCtx, hash)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return TxLookup{State: TxDropped}, nil
	case err != nil:
		return TxLookup{}, fmt.Errorf("failed to fetch transaction %s: %w", txHash, err)
	}
	return TxLookup{State: TxPending}, nil
}

// Close 关闭节点连接
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// send 发送交易并等待回执
// 调用与客户端请求的取消解耦，只受 call_timeout 约束，避免已提交的交易无人回写
func (c *Client) send(ctx context.Context, method string, value *big.Int, params ...interface{}) *TxResult {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	opts := *c.auth
	opts.Context = callCtx
	opts.Value = value

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return c.finish(method, start, c.errorResult(callCtx, "", err))
	}

	txHash := tx.Hash().Hex()
	logger.Info("Submitted %s transaction: %s", method, txHash)

	receipt, err := c.waitMined(callCtx, tx)
	if err != nil {
		return c.finish(method, start, c.errorResult(callCtx, txHash, err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return c.finish(method, start, &TxResult{
			TransactionHash: txHash,
			Error:           "transaction reverted",
		})
	}

	return c.finish(method, start, &TxResult{
		Success:         true,
		TransactionHash: txHash,
		ContractAddress: c.address.Hex(),
	})
}

func (c *Client) errorResult(callCtx context.Context, txHash string, err error) *TxResult {
	result := &TxResult{TransactionHash: txHash, Error: err.Error()}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		result.Timeout = true
		result.Error = fmt.Sprintf("no receipt within %s: %v", c.timeout, err)
	}
	return result
}

func (c *Client) finish(method string, start time.Time, result *TxResult) *TxResult {
	outcome := "success"
	switch {
	case result.Timeout:
		outcome = "timeout"
		logger.Warn("Contract call %s timed out (tx: %s): %s", method, result.TransactionHash, result.Error)
	case !result.Success:
		outcome = "failed"
		logger.Error("Contract call %s failed (tx: %s): %s", method, result.TransactionHash, result.Error)
	}
	c.metrics.ObserveChainCall(method, outcome, time.Since(start))
	return result
}
