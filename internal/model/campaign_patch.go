package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CampaignPatch 众筹活动的部分更新，只有出现的字段会被写入
type CampaignPatch struct {
	Name       Optional[string]          `json:"name"`
	Title      Optional[string]          `json:"title"`
	Story      Optional[[]string]        `json:"story"`
	Goal       Optional[decimal.Decimal] `json:"goal"`
	EndDate    Optional[time.Time]       `json:"endDate"`
	Image      Optional[string]          `json:"image"`
	CauseType  Optional[string]          `json:"causeType"`
	Milestones Optional[[]Milestone]     `json:"milestones"`
	Recipient  Optional[string]          `json:"recipient"`
}

// IsEmpty 没有任何字段
func (p CampaignPatch) IsEmpty() bool {
	return !p.Name.Set && !p.Title.Set && !p.Story.Set && !p.Goal.Set && !p.EndDate.Set &&
		!p.Image.Set && !p.CauseType.Set && !p.Milestones.Set && !p.Recipient.Set
}

// TouchesChainTerms 是否修改了已写入合约的条款
func (p CampaignPatch) TouchesChainTerms() bool {
	return p.Goal.Set || p.EndDate.Set || p.Milestones.Set || p.Recipient.Set
}

// Columns 转换为 gorm Updates 使用的列映射，map 形式保证零值也会被写入
func (p CampaignPatch) Columns() map[string]interface{} {
	updates := make(map[string]interface{})
	if p.Name.Present() {
		updates["name"] = p.Name.Value
	}
	if p.Title.Present() {
		updates["title"] = p.Title.Value
	}
	if p.Story.Present() {
		updates["story"] = datatypes.NewJSONSlice(p.Story.Value)
	}
	if p.Goal.Present() {
		updates["goal"] = p.Goal.Value
	}
	if p.EndDate.Present() {
		updates["end_date"] = p.EndDate.Value.UTC()
	}
	if p.Image.Present() {
		updates["image"] = p.Image.Value
	}
	if p.CauseType.Present() {
		updates["cause_type"] = p.CauseType.Value
	}
	if p.Milestones.Present() {
		updates["milestones"] = datatypes.NewJSONSlice(p.Milestones.Value)
	}
	if p.Recipient.Present() {
		updates["recipient"] = p.Recipient.Value
	}
	return updates
}
