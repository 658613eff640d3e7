package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CampaignModel 众筹活动
type CampaignModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// 基本信息
	Name      string                      `json:"name" gorm:"not null"`
	Title     string                      `json:"title" gorm:"not null"`
	Story     datatypes.JSONSlice[string] `json:"story"`
	Image     string                      `json:"image" gorm:"not null"`
	CauseType CauseType                   `json:"causeType" gorm:"type:varchar(32);not null;index"`

	// 众筹信息
	Goal       decimal.Decimal                `json:"goal" gorm:"type:numeric;not null"`
	EndDate    time.Time                      `json:"endDate" gorm:"not null"`
	Milestones datatypes.JSONSlice[Milestone] `json:"milestones"`

	// 创建者信息
	CreatorId string `json:"creator" gorm:"type:varchar(36);not null;index"`
	Recipient string `json:"recipient" gorm:"type:varchar(42)"`

	// 区块链信息，ContractAddress 为空表示尚未上链
	ContractAddress string      `json:"contractAddress" gorm:"type:varchar(42);not null;default:''"`
	TransactionHash string      `json:"transactionHash" gorm:"type:varchar(66);not null;default:''"`
	ChainStatus     ChainStatus `json:"chainStatus" gorm:"type:varchar(16);not null;default:'pending';index"`
	ChainAttempts   int         `json:"chainAttempts" gorm:"not null;default:0"`
	LastChainError  string      `json:"lastChainError,omitempty" gorm:"type:text"`
}

// Milestone 里程碑：截止时间与完成百分比
type Milestone struct {
	Deadline             time.Time `json:"deadline"`
	CompletionPercentage uint8     `json:"completionPercentage"`
}

// ChainStatus 链上状态
type ChainStatus string

const (
	ChainStatusPending ChainStatus = "pending"       // 已入库或正在提交，尚未确认上链结果
	ChainStatusActive  ChainStatus = "active"        // 已上链
	ChainStatusFailed  ChainStatus = "chain_failed"  // 上链失败，可重试
	ChainStatusTimeout ChainStatus = "chain_timeout" // 超时未拿到回执，重试前需先查询原交易
)

// Retryable 是否可以重新提交上链
func (s ChainStatus) Retryable() bool {
	return s == ChainStatusFailed || s == ChainStatusTimeout
}

// CauseType 众筹类别
type CauseType string

const (
	CauseEducation   CauseType = "education"
	CauseHealth      CauseType = "health"
	CauseEnvironment CauseType = "environment"
	CauseAnimals     CauseType = "animals"
	CauseCommunity   CauseType = "community"
	CauseEmergency   CauseType = "emergency"
	CauseTechnology  CauseType = "technology"
	CauseArts        CauseType = "arts"
	CauseSports      CauseType = "sports"
	CauseOther       CauseType = "other"
)

// CauseTypes 允许的类别列表
var CauseTypes = []CauseType{
	CauseEducation,
	CauseHealth,
	CauseEnvironment,
	CauseAnimals,
	CauseCommunity,
	CauseEmergency,
	CauseTechnology,
	CauseArts,
	CauseSports,
	CauseOther,
}

// IsValidCause 检查类别是否在允许列表中
func IsValidCause(cause string) bool {
	for _, c := range CauseTypes {
		if string(c) == cause {
			return true
		}
	}
	return false
}

// IsChainBacked 是否已经上链
func (c *CampaignModel) IsChainBacked() bool {
	return c.ContractAddress != ""
}

// BeforeCreate 生成文档ID
func (c *CampaignModel) BeforeCreate(tx *gorm.DB) error {
	if c.Id == "" {
		c.Id = uuid.NewString()
	}
	if c.ChainStatus == "" {
		c.ChainStatus = ChainStatusPending
	}
	return nil
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
