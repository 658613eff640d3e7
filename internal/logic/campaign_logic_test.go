package logic

import (
	"context"
	"encoding/json"
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

func TestCreate_SuccessIsChainBacked(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()

	c, err := f.logic.Create(ctx, "user-1", validInput())
	require.NoError(t, err)

	assert.Equal(t, chaintest.ContractAddress, c.ContractAddress)
	assert.Equal(t, model.ChainStatusActive, c.ChainStatus)
	assert.NotEmpty(t, c.TransactionHash)
	assert.Equal(t, 1, c.ChainAttempts)

	stored, err := f.logic.Get(ctx, c.Id)
	require.NoError(t, err)
	assert.Equal(t, c.ContractAddress, stored.ContractAddress)

	require.Equal(t, 1, f.bridge.CallCount())
	call := f.bridge.LastCall()
	require.NotNil(t, call.Create)
	assert.Equal(t, c.Id, call.Create.CampaignID)
	assert.Equal(t, chaintest.Sender, call.Create.Recipient)
	assert.Equal(t, "1500000000000000000", call.Create.TargetWei.String())
	assert.Len(t, call.Create.Milestones, 2)
}

func TestCreate_ChainFailureKeepsRecord(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.bridge.FailNext("execution reverted")

	_, err := f.logic.Create(ctx, "user-1", validInput())
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindChainFailed, appErr.Kind)
	assert.Equal(t, 400, appErr.Status())
	id, _ := appErr.Data["campaignId"].(string)
	require.NotEmpty(t, id)

	all, err := f.logic.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].Id)
	assert.Empty(t, all[0].ContractAddress)
	assert.Equal(t, model.ChainStatusFailed, all[0].ChainStatus)
	assert.Equal(t, "execution reverted", all[0].LastChainError)
}

func TestCreate_Timeout(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	f.bridge.TimeoutNext()

	_, err := f.logic.Create(context.Background(), "user-1", validInput())
	assert.True(t, apperror.IsKind(err, apperror.KindChainTimeout))
	appErr, _ := apperror.As(err)
	assert.Equal(t, 502, appErr.Status())
	assert.Equal(t, "0xpending", appErr.Data["transactionHash"])
}

func TestCreate_StoreFailureSkipsBridge(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.logic.Create(context.Background(), "user-1", validInput())
	assert.True(t, apperror.IsKind(err, apperror.KindStoreUnavailable))
	assert.Equal(t, 0, f.bridge.CallCount())
}

func TestCreate_Validation(t *testing.T) {
	f := newCampaignFixture(t, testConfig())

	tests := []struct {
		name   string
		mutate func(in *CampaignInput)
	}{
		{"missing name", func(in *CampaignInput) { in.Name = " " }},
		{"missing title", func(in *CampaignInput) { in.Title = "" }},
		{"empty story", func(in *CampaignInput) { in.Story = nil }},
		{"blank paragraph", func(in *CampaignInput) { in.Story = []string{"ok", ""} }},
		{"zero goal", func(in *CampaignInput) { in.Goal = decimal.Zero }},
		{"goal too precise", func(in *CampaignInput) { in.Goal = decimal.RequireFromString("0.0000000000000000001") }},
		{"past end date", func(in *CampaignInput) { in.EndDate = testNow.Add(-time.Hour) }},
		{"relative image", func(in *CampaignInput) { in.Image = "roof.png" }},
		{"unknown cause", func(in *CampaignInput) { in.CauseType = "gambling" }},
		{"bad recipient", func(in *CampaignInput) { in.Recipient = "0x123" }},
		{"milestone percent", func(in *CampaignInput) { in.Milestones[0].CompletionPercentage = 0 }},
		{"milestone order", func(in *CampaignInput) { in.Milestones[1].CompletionPercentage = 40 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := f.logic.Create(context.Background(), "user-1", in)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation), "got %v", err)
		})
	}

	all, err := f.logic.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0, f.bridge.CallCount())
}

func TestCreate_ExplicitRecipient(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	in := validInput()
	in.Recipient = "0x00000000000000000000000000000000000000aa"

	c, err := f.logic.Create(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, in.Recipient, c.Recipient)
	assert.Equal(t, in.Recipient, f.bridge.LastCall().Create.Recipient)
}

func TestRetry(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.bridge.FailNext("nonce too low")

	_, err := f.logic.Create(ctx, "user-1", validInput())
	require.Error(t, err)
	appErr, _ := apperror.As(err)
	id := appErr.Data["campaignId"].(string)

	_, err = f.logic.Retry(ctx, "user-2", id)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	c, err := f.logic.Retry(ctx, "user-1", id)
	require.NoError(t, err)
	assert.True(t, c.IsChainBacked())
	assert.Equal(t, 2, c.ChainAttempts)
	assert.Empty(t, c.LastChainError)

	_, err = f.logic.Resubmit(ctx, id)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestRetry_ExpiredTermsNeedUpdate(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.bridge.FailNext("boom")

	_, err := f.logic.Create(ctx, "user-1", validInput())
	appErr, _ := apperror.As(err)
	id := appErr.Data["campaignId"].(string)

	f.logic.now = func() time.Time { return testNow.Add(365 * 24 * time.Hour) }
	_, err = f.logic.Retry(ctx, "user-1", id)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Equal(t, 1, f.bridge.CallCount())
}

func TestUpdate_PatchSemantics(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	c := f.createActive(t, "user-1")

	// 未出现的字段保持不变
	updated, err := f.logic.Update(ctx, "user-1", c.Id, model.CampaignPatch{Title: model.Some("New title")})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, c.Name, updated.Name)
	assert.Equal(t, c.Image, updated.Image)
	assert.Equal(t, []string(c.Story), []string(updated.Story))

	// 显式的空字符串与 null 都被拒绝，且不写入任何字段
	for _, body := range []string{
		`{"name": "", "title": "ignored"}`,
		`{"name": null, "title": "ignored"}`,
	} {
		var patch model.CampaignPatch
		require.NoError(t, json.Unmarshal([]byte(body), &patch))
		_, err := f.logic.Update(ctx, "user-1", c.Id, patch)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation), body)
	}

	stored, err := f.logic.Get(ctx, c.Id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, "New title", stored.Title)

	_, err = f.logic.Update(ctx, "user-1", c.Id, model.CampaignPatch{})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestUpdate_ChainTermsFrozen(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	c := f.createActive(t, "user-1")

	_, err := f.logic.Update(ctx, "user-1", c.Id, model.CampaignPatch{Goal: model.Some(decimal.RequireFromString("3"))})
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))
}

func TestUpdate_ChainTermsEditableBeforeChain(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.bridge.FailNext("boom")

	_, err := f.logic.Create(ctx, "user-1", validInput())
	appErr, _ := apperror.As(err)
	id := appErr.Data["campaignId"].(string)

	updated, err := f.logic.Update(ctx, "user-1", id, model.CampaignPatch{Goal: model.Some(decimal.RequireFromString("0.5"))})
	require.NoError(t, err)
	assert.True(t, updated.Goal.Equal(decimal.RequireFromString("0.5")))

	_, err = f.logic.Retry(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", f.bridge.LastCall().Create.TargetWei.String())
}

func TestUpdateDelete_Ownership(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	c := f.createActive(t, "user-1")

	_, err := f.logic.Update(ctx, "user-2", c.Id, model.CampaignPatch{Title: model.Some("x")})
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	err = f.logic.Delete(ctx, "user-2", c.Id)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	_, err = f.logic.GetOwned(ctx, "user-2", c.Id)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	require.NoError(t, f.logic.Delete(ctx, "user-1", c.Id))
	_, err = f.logic.Get(ctx, c.Id)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	err = f.logic.Delete(ctx, "user-1", c.Id)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestSearch(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.createActive(t, "user-1")

	found, err := f.logic.Search(ctx, "abc")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = f.logic.Search(ctx, "  ")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestListByCreatorAndCauses(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.createActive(t, "user-1")

	mine, err := f.logic.ListByCreator(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.logic.ListByCreator(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Contains(t, f.logic.Causes(), model.CauseHealth)
}

func TestFindRetryable(t *testing.T) {
	f := newCampaignFixture(t, testConfig())
	ctx := context.Background()
	f.bridge.FailNext("boom")
	_, _ = f.logic.Create(ctx, "user-1", validInput())
	f.createActive(t, "user-1")

	retryable, err := f.logic.FindRetryable(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, model.ChainStatusFailed, retryable[0].ChainStatus)
	assert.Equal(t, chain.MethodCreateCampaign, f.bridge.LastCall().Method)
}
