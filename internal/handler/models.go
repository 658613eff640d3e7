package handler

import (
	"sync"
	"time"

	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Response 通用响应结构
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// ErrorBody 错误响应结构，链上失败时 data 携带 campaignId 或 actionId
type ErrorBody struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// 用户相关请求

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=4"`
	Email    string `json:"email" binding:"required,min=6,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// 众筹相关请求

type MilestoneRequest struct {
	Deadline             time.Time `json:"deadline" binding:"required"`
	CompletionPercentage uint8     `json:"completionPercentage" binding:"required,min=1,max=100"`
}

// CreateCampaignRequest 创建众筹请求，goal 可以是数字或十进制字符串
type CreateCampaignRequest struct {
	Name       string             `json:"name" binding:"required"`
	Title      string             `json:"title" binding:"required"`
	Story      []string           `json:"story" binding:"required,min=1,dive,required"`
	Goal       decimal.Decimal    `json:"goal"`
	EndDate    time.Time          `json:"endDate" binding:"required"`
	Image      string             `json:"image" binding:"required,url"`
	CauseType  string             `json:"causeType" binding:"required,cause"`
	Milestones []MilestoneRequest `json:"milestones" binding:"dive"`
	Recipient  string             `json:"recipient" binding:"omitempty,eth_addr"`
}

func (r CreateCampaignRequest) toInput() logic.CampaignInput {
	milestones := make([]model.Milestone, 0, len(r.Milestones))
	for _, m := range r.Milestones {
		milestones = append(milestones, model.Milestone{Deadline: m.Deadline, CompletionPercentage: m.CompletionPercentage})
	}
	return logic.CampaignInput{
		Name:       r.Name,
		Title:      r.Title,
		Story:      r.Story,
		Goal:       r.Goal,
		EndDate:    r.EndDate,
		Image:      r.Image,
		CauseType:  r.CauseType,
		Milestones: milestones,
		Recipient:  r.Recipient,
	}
}

// DonateRequest 捐款请求，amount 单位为 ETH
type DonateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// 留言相关请求

type SendMessageRequest struct {
	Sender  string `json:"sender"`
	Date    string `json:"date"`
	Message string `json:"message"`
}

var registerOnce sync.Once

// RegisterValidators 注册自定义的 binding 校验规则
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("cause", func(fl validator.FieldLevel) bool {
				return model.IsValidCause(fl.Field().String())
			})
		}
	})
}
