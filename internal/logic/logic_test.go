package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/trustfunds/internal/chain/chaintest"
	"github.com/blues/trustfunds/internal/config"
	"github.com/blues/trustfunds/internal/model"
	"github.com/blues/trustfunds/internal/testutil"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Campaign: config.CampaignConfig{SearchFields: []string{"title", "name"}},
		Lifecycle: config.LifecycleConfig{
			ContributeBeforeEnd: true,
			VoteWindow:          VoteWindowAny,
			FinalizeOwnerOnly:   true,
		},
	}
}

type campaignFixture struct {
	db     *gorm.DB
	bridge *chaintest.FakeBridge
	logic  *CampaignLogic
}

func newCampaignFixture(t *testing.T, cfg *config.Config) *campaignFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	bridge := &chaintest.FakeBridge{}
	l := NewCampaignLogic(db, bridge, cfg)
	l.now = func() time.Time { return testNow }
	return &campaignFixture{db: db, bridge: bridge, logic: l}
}

func validInput() CampaignInput {
	end := testNow.Add(30 * 24 * time.Hour)
	return CampaignInput{
		Name:      "Alice",
		Title:     "ABCdef school roof",
		Story:     []string{"The roof leaks.", "We need a new one."},
		Goal:      decimal.RequireFromString("1.5"),
		EndDate:   end,
		Image:     "https://example.com/roof.png",
		CauseType: "education",
		Milestones: []model.Milestone{
			{Deadline: end.Add(24 * time.Hour), CompletionPercentage: 50},
			{Deadline: end.Add(48 * time.Hour), CompletionPercentage: 100},
		},
	}
}

// createActive 创建一个已上链的众筹
func (f *campaignFixture) createActive(t *testing.T, owner string) *model.CampaignModel {
	t.Helper()
	c, err := f.logic.Create(context.Background(), owner, validInput())
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	return c
}
