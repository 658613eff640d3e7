package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blues/trustfunds/internal/apperror"
	"github.com/blues/trustfunds/internal/chain"
	"github.com/blues/trustfunds/internal/chain/chaintest"
	"github.com/blues/trustfunds/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resubmitResult struct {
	campaign *model.CampaignModel
	err      error
}

// createFailed 创建一个上链失败的众筹，返回其 id
func (f *campaignFixture) createFailed(t *testing.T, owner string, timeout bool) string {
	t.Helper()
	if timeout {
		f.bridge.TimeoutNext()
	} else {
		f.bridge.FailNext("boom")
	}
	_, err := f.logic.Create(context.Background(), owner, validInput())
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	id, _ := appErr.Data["campaignId"].(string)
	require.NotEmpty(t, id)
	return id
}

func (f *campaignFixture) stored(t *testing.T, id string) *model.CampaignModel {
	t.Helper()
	c, err := f.logic.Get(context.Background(), id)
	require.NoError(t, err)
	return c
}

func TestRetry_ConcurrentCallsSubmitOnce(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	id := f.createFailed(t, "user-1", false)

	entered, release := f.bridge.Hold()
	defer release()

	const callers = 8
	results := make(chan resubmitResult, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			var (
				c   *model.CampaignModel
				err error
			)
			if i%2 == 0 {
				c, err = f.logic.Retry(context.Background(), "user-1", id)
			} else {
				c, err = f.logic.Resubmit(context.Background(), id)
			}
			results <- resubmitResult{c, err}
		}(i)
	}

	// 只有认领成功的调用会进入合约调用并阻塞
	for i := 0; i < callers-1; i++ {
		r := <-results
		assert.True(t, apperror.IsKind(r.err, apperror.KindConflict), "got %v", r.err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("no submission reached the bridge")
	}
	release()

	winner := <-results
	require.NoError(t, winner.err)
	assert.True(t, winner.campaign.IsChainBacked())
	assert.Equal(t, 2, f.bridge.CallCount())
	assert.Equal(t, 2, f.stored(t, id).ChainAttempts)
}

func TestRetryAction_ConcurrentCallsSubmitOnce(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	c := f.createActive(t, "owner")

	f.bridge.FailNext("insufficient funds")
	_, err := f.logic.Contribute(ctx, "donor", c.Id, "1")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	actionId := appErr.Data["actionId"].(string)
	before := f.bridge.CallCount()

	entered, release := f.bridge.Hold()
	defer release()

	const callers = 6
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := f.logic.RetryAction(context.Background(), "donor", actionId)
			results <- err
		}()
	}

	for i := 0; i < callers-1; i++ {
		err := <-results
		assert.True(t, apperror.IsKind(err, apperror.KindConflict), "got %v", err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("no retry reached the bridge")
	}
	release()

	require.NoError(t, <-results)
	assert.Equal(t, before+1, f.bridge.CallCount())

	actions, err := f.logic.ListActions(ctx, c.Id)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, model.ChainActionConfirmed, actions[0].Status)
}

func TestUpdateDelete_LockedWhileSubmitting(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()

	entered, release := f.bridge.Hold()
	defer release()

	created := make(chan resubmitResult, 1)
	go func() {
		c, err := f.logic.Create(context.Background(), "user-1", validInput())
		created <- resubmitResult{c, err}
	}()
	<-entered

	all, err := f.logic.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := all[0].Id
	require.Equal(t, model.ChainStatusPending, all[0].ChainStatus)

	_, err = f.logic.Update(ctx, "user-1", id, model.CampaignPatch{Goal: model.Some(decimal.RequireFromString("9"))})
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	_, err = f.logic.Update(ctx, "user-1", id, model.CampaignPatch{Title: model.Some("Still editable")})
	require.NoError(t, err)

	err = f.logic.Delete(ctx, "user-1", id)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	release()
	r := <-created
	require.NoError(t, r.err)
	assert.True(t, r.campaign.IsChainBacked())

	stored := f.stored(t, id)
	assert.True(t, stored.Goal.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "Still editable", stored.Title)
	assert.Equal(t, "1500000000000000000", f.bridge.LastCall().Create.TargetWei.String())
}

func TestCreate_TimeoutIsRecordedSeparately(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	id := f.createFailed(t, "user-1", true)

	stored := f.stored(t, id)
	assert.Equal(t, model.ChainStatusTimeout, stored.ChainStatus)
	assert.Equal(t, "0xpending", stored.TransactionHash)
	assert.Empty(t, stored.ContractAddress)
}

func TestResubmit_AfterTimeout(t *testing.T) {
	t.Run("mined transaction is reconciled without resubmitting", func(t *testing.T) {
		f := newCampaignFixture(t, testConfig())
		id := f.createFailed(t, "user-1", true)
		f.bridge.SetLookup("0xpending", chain.TxLookup{State: chain.TxMined, ContractAddress: chaintest.ContractAddress})

		c, err := f.logic.Resubmit(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.ChainStatusActive, c.ChainStatus)
		assert.Equal(t, chaintest.ContractAddress, c.ContractAddress)
		assert.Equal(t, "0xpending", c.TransactionHash)
		assert.Equal(t, 1, c.ChainAttempts)
		assert.Equal(t, 1, f.bridge.CallCount())
		assert.Equal(t, []string{"0xpending"}, f.bridge.LookupCalls)
	})

	for _, state := range []chain.TxState{chain.TxDropped, chain.TxReverted} {
		t.Run(string(state)+" transaction is resubmitted", func(t *testing.T) {
			f := newCampaignFixture(t, testConfig())
			id := f.createFailed(t, "user-1", true)
			f.bridge.SetLookup("0xpending", chain.TxLookup{State: state})

			c, err := f.logic.Retry(context.Background(), "user-1", id)
			require.NoError(t, err)
			assert.True(t, c.IsChainBacked())
			assert.NotEqual(t, "0xpending", c.TransactionHash)
			assert.Equal(t, 2, c.ChainAttempts)
			assert.Equal(t, 2, f.bridge.CallCount())
		})
	}

	t.Run("pending transaction blocks the resubmit", func(t *testing.T) {
		f := newCampaignFixture(t, testConfig())
		id := f.createFailed(t, "user-1", true)
		f.bridge.SetLookup("0xpending", chain.TxLookup{State: chain.TxPending})

		_, err := f.logic.Resubmit(context.Background(), id)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		assert.Equal(t, 1, f.bridge.CallCount())

		stored := f.stored(t, id)
		assert.Equal(t, model.ChainStatusTimeout, stored.ChainStatus)
		assert.Equal(t, "0xpending", stored.TransactionHash)
	})

	t.Run("lookup error keeps the timeout status", func(t *testing.T) {
		f := newCampaignFixture(t, testConfig())
		id := f.createFailed(t, "user-1", true)
		f.bridge.LookupErr = errors.New("connection refused")

		_, err := f.logic.Resubmit(context.Background(), id)
		assert.True(t, apperror.IsKind(err, apperror.KindChainTimeout))
		assert.Equal(t, 1, f.bridge.CallCount())
		assert.Equal(t, model.ChainStatusTimeout, f.stored(t, id).ChainStatus)
	})

	t.Run("plain failure skips the lookup", func(t *testing.T) {
		f := newCampaignFixture(t, testConfig())
		id := f.createFailed(t, "user-1", false)

		_, err := f.logic.Resubmit(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, f.bridge.LookupCalls)
	})

	t.Run("expired terms release the claim", func(t *testing.T) {
		f := newCampaignFixture(t, testConfig())
		id := f.createFailed(t, "user-1", true)
		f.logic.now = func() time.Time { return testNow.Add(365 * 24 * time.Hour) }

		_, err := f.logic.Resubmit(context.Background(), id)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))

		stored := f.stored(t, id)
		assert.Equal(t, model.ChainStatusTimeout, stored.ChainStatus)
		assert.Equal(t, "0xpending", stored.TransactionHash)
	})
}

// markStalePending 把记录改为很久以前进入 pending 的状态
func (f *campaignFixture) markStalePending(t *testing.T, id, txHash string) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.CampaignModel{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"chain_status":     model.ChainStatusPending,
		"transaction_hash": txHash,
		"updated_at":       testNow.Add(-time.Hour),
	}).Error)
}

func TestReconcilePending(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()

	mined := f.createFailed(t, "user-1", false)
	reverted := f.createFailed(t, "user-1", false)
	inFlight := f.createFailed(t, "user-1", false)
	unknown := f.createFailed(t, "user-1", false)
	f.markStalePending(t, mined, "0xmined")
	f.markStalePending(t, reverted, "0xreverted")
	f.markStalePending(t, inFlight, "0xinflight")
	f.markStalePending(t, unknown, "")
	f.createActive(t, "user-1")

	f.bridge.SetLookup("0xmined", chain.TxLookup{State: chain.TxMined, ContractAddress: chaintest.ContractAddress})
	f.bridge.SetLookup("0xreverted", chain.TxLookup{State: chain.TxReverted})
	f.bridge.SetLookup("0xinflight", chain.TxLookup{State: chain.TxPending})

	stale, err := f.logic.FindStalePending(ctx, 10*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 4)

	want := map[string]model.ChainStatus{
		mined:    model.ChainStatusActive,
		reverted: model.ChainStatusFailed,
		inFlight: model.ChainStatusPending,
		unknown:  model.ChainStatusPending,
	}
	for i := range stale {
		status, err := f.logic.ReconcilePending(ctx, &stale[i])
		require.NoError(t, err)
		assert.Equal(t, want[stale[i].Id], status, stale[i].Id)
	}

	assert.Equal(t, chaintest.ContractAddress, f.stored(t, mined).ContractAddress)
	assert.Equal(t, "previous transaction reverted", f.stored(t, reverted).LastChainError)
	assert.Equal(t, model.ChainStatusPending, f.stored(t, unknown).ChainStatus)
	assert.NotContains(t, f.bridge.LookupCalls, "")

	// 按新的 updated_at 计算，刚回写的记录不再过期
	stale, err = f.logic.FindStalePending(ctx, 10*time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}

func TestReconcilePending_LookupError(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	id := f.createFailed(t, "user-1", false)
	f.markStalePending(t, id, "0xabc")
	f.bridge.LookupErr = errors.New("connection refused")

	stale, err := f.logic.FindStalePending(ctx, 10*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	status, err := f.logic.ReconcilePending(ctx, &stale[0])
	assert.True(t, apperror.IsKind(err, apperror.KindChainTimeout))
	assert.Equal(t, model.ChainStatusPending, status)
	assert.Equal(t, model.ChainStatusPending, f.stored(t, id).ChainStatus)
}
