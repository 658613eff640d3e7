// Package chaintest 提供测试用的 chain.Bridge 实现
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/blues/trustfunds/internal/chain"
)

// ContractAddress FakeBridge 成功时返回的合约地址
const ContractAddress = "0x00000000000000000000000000000000000000Cf"

// Sender FakeBridge 的发送地址
const Sender = "0x0000000000000000000000000000000000000Abc"

// Call 一次记录下来的调用
type Call struct {
	Method     string
	CampaignID string
	AmountWei  *big.Int
	Create     *chain.CreateCampaignArgs
}

// FakeBridge 记录所有调用，按 Next 依次返回结果，Next 为空时返回成功
// 交易查询按 Lookups 返回，未登记的哈希视为 TxDropped
type FakeBridge struct {
	mu      sync.Mutex
	Calls   []Call
	Next    []*chain.TxResult
	Lookups map[string]chain.TxLookup
	// LookupErr 非空时所有交易查询都返回该错误
	LookupErr   error
	LookupCalls []string
	seq         int

	gate    chan struct{}
	entered chan struct{}
}

// FailNext 下一次调用返回失败
func (f *FakeBridge) FailNext(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Next = append(f.Next, &chain.TxResult{Error: msg})
}

// TimeoutNext 下一次调用返回超时
func (f *FakeBridge) TimeoutNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Next = append(f.Next, &chain.TxResult{Error: "no receipt", Timeout: true, TransactionHash: "0xpending"})
}

// SetLookup 登记交易查询结果
func (f *FakeBridge) SetLookup(txHash string, lookup chain.TxLookup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Lookups == nil {
		f.Lookups = make(map[string]chain.TxLookup)
	}
	f.Lookups[txHash] = lookup
}

// Hold 之后的合约调用在记录后阻塞，直到 release 被调用
// 每个进入阻塞的调用都会向 entered 发送一次
func (f *FakeBridge) Hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	f.entered = make(chan struct{}, 64)

	var once sync.Once
	return f.entered, func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// CallCount 已记录的调用次数
func (f *FakeBridge) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall 最后一次调用
func (f *FakeBridge) LastCall() Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[len(f.Calls)-1]
}

func (f *FakeBridge) record(call Call) *chain.TxResult {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.seq++
	result := &chain.TxResult{
		Success:         true,
		TransactionHash: fmt.Sprintf("0x%064x", f.seq),
		ContractAddress: ContractAddress,
	}
	if len(f.Next) > 0 {
		result = f.Next[0]
		f.Next = f.Next[1:]
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return result
}

func (f *FakeBridge) CreateCampaign(ctx context.Context, args chain.CreateCampaignArgs) *chain.TxResult {
	return f.record(Call{Method: chain.MethodCreateCampaign, CampaignID: args.CampaignID, Create: &args})
}

func (f *FakeBridge) Contribute(ctx context.Context, campaignID string, amountWei *big.Int) *chain.TxResult {
	return f.record(Call{Method: chain.MethodContribute, CampaignID: campaignID, AmountWei: amountWei})
}

func (f *FakeBridge) Vote(ctx context.Context, campaignID string) *chain.TxResult {
	return f.record(Call{Method: chain.MethodVote, CampaignID: campaignID})
}

func (f *FakeBridge) FinalizeMilestone(ctx context.Context, campaignID string) *chain.TxResult {
	return f.record(Call{Method: chain.MethodFinalizeMilestone, CampaignID: campaignID})
}

func (f *FakeBridge) SenderAddress() string {
	return Sender
}

func (f *FakeBridge) BlockNumber(ctx context.Context) (uint64, error) {
	return uint64(f.CallCount()), nil
}

func (f *FakeBridge) LookupTransaction(ctx context.Context, txHash string) (chain.TxLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LookupCalls = append(f.LookupCalls, txHash)
	if f.LookupErr != nil {
		return chain.TxLookup{}, f.LookupErr
	}
	if lookup, ok := f.Lookups[txHash]; ok {
		return lookup, nil
	}
	return chain.TxLookup{State: chain.TxDropped}, nil
}

func (f *FakeBridge) Close() {}

var _ chain.Bridge = (*FakeBridge)(nil)
