package model

import (
	"time"
)

// ForumMessageModel 众筹活动下的留言，只追加不修改
type ForumMessageModel struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"createdAt"`

	CampaignId string    `json:"campaignId" gorm:"type:varchar(36);not null;index"`
	Sender     string    `json:"sender" gorm:"type:varchar(36);not null"`
	Date       time.Time `json:"date" gorm:"not null"`
	Message    string    `json:"message" gorm:"type:text;not null"`

	SenderName string `json:"senderName" gorm:"-"`
}

// TableName 自定义表名
func (ForumMessageModel) TableName() string {
	return "forum_message"
}
