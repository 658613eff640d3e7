package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/blues/trustfunds/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSandboxBridge(t *testing.T) {
	ctx := context.Background()
	s := NewSandboxBridge(config.ChainConfig{
		ContractAddress: "0x00000000000000000000000000000000000000aa",
		PrivateKey:      testKeyHex,
	})

	first := s.CreateCampaign(ctx, CreateCampaignArgs{CampaignID: "c1"})
	second := s.Vote(ctx, "c1")

	assert.True(t, first.Success)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa").Hex(), first.ContractAddress)
	assert.NotEqual(t, first.TransactionHash, second.TransactionHash)
	assert.Equal(t, testSender, s.SenderAddress())

	assert.False(t, s.Contribute(ctx, "c1", big.NewInt(0)).Success)

	n, err := s.BlockNumber(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	lookup, err := s.LookupTransaction(ctx, first.TransactionHash)
	assert.NoError(t, err)
	assert.Equal(t, TxMined, lookup.State)
	assert.Equal(t, first.ContractAddress, lookup.ContractAddress)
}

func TestSandboxBridge_ZeroPlaceholder(t *testing.T) {
	s := NewSandboxBridge(config.ChainConfig{})
	result := s.FinalizeMilestone(context.Background(), "c1")
	assert.True(t, result.Success)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", result.ContractAddress)
}
