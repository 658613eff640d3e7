package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChainActionModel 捐款、投票、里程碑结算的上链记录
type ChainActionModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CampaignId      string            `json:"campaignId" gorm:"type:varchar(36);not null;index"`
	UserId          string            `json:"userId" gorm:"type:varchar(36);not null;index"`
	Action          ChainActionType   `json:"action" gorm:"type:varchar(16);not null"`
	AmountWei       string            `json:"amountWei,omitempty"`
	Status          ChainActionStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	TransactionHash string            `json:"transactionHash,omitempty" gorm:"type:varchar(66)"`
	Error           string            `json:"error,omitempty" gorm:"type:text"`
}

// ChainActionType 操作类型
type ChainActionType string

const (
	ChainActionContribute ChainActionType = "contribute"
	ChainActionVote       ChainActionType = "vote"
	ChainActionFinalize   ChainActionType = "finalize"
)

// ChainActionStatus 操作状态
type ChainActionStatus string

const (
	ChainActionPending   ChainActionStatus = "pending"   // 已记录，等待链上结果
	ChainActionConfirmed ChainActionStatus = "confirmed" // 交易已确认
	ChainActionFailed    ChainActionStatus = "failed"    // 交易失败，可重试
)

// BeforeCreate 生成文档ID
func (a *ChainActionModel) BeforeCreate(tx *gorm.DB) error {
	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ChainActionPending
	}
	return nil
}

// TableName 自定义表名
func (ChainActionModel) TableName() string {
	return "chain_action"
}
