package handler

import (
	"net/http"

	"github.com/blues/trustfunds/internal/logic"
	"github.com/blues/trustfunds/internal/middleware"
	"github.com/blues/trustfunds/internal/model"
	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
}

func NewCampaignHandler(campaignLogic *logic.CampaignLogic) *CampaignHandler {
	return &CampaignHandler{campaignLogic: campaignLogic}
}

// CreateCampaign 创建众筹并上链
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	campaign, err := h.campaignLogic.Create(c.Request.Context(), middleware.UserID(c), req.toInput())
	if err != nil {
		handleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Campaign created successfully", campaign)
}

// GetCampaigns 获取全部众筹
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	campaigns, err := h.campaignLogic.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaigns fetched successfully", campaigns)
}

// GetCauses 允许的众筹类别
func (h *CampaignHandler) GetCauses(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "Causes fetched successfully", h.campaignLogic.Causes())
}

// SearchCampaigns 搜索众筹
func (h *CampaignHandler) SearchCampaigns(c *gin.Context) {
	campaigns, err := h.campaignLogic.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaigns fetched successfully", campaigns)
}

// GetUserCampaigns 当前用户创建的众筹
func (h *CampaignHandler) GetUserCampaigns(c *gin.Context) {
	campaigns, err := h.campaignLogic.ListByCreator(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaigns fetched successfully", campaigns)
}

// GetUserCampaign 当前用户的单个众筹
func (h *CampaignHandler) GetUserCampaign(c *gin.Context) {
	campaign, err := h.campaignLogic.GetOwned(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaign fetched successfully", campaign)
}

// GetCampaign 众筹详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, err := h.campaignLogic.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaign fetched successfully", campaign)
}

// GetCampaignActions 众筹的链上操作记录
func (h *CampaignHandler) GetCampaignActions(c *gin.Context) {
	actions, err := h.campaignLogic.ListActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Actions fetched successfully", actions)
}

// UpdateCampaign 部分更新
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	var patch model.CampaignPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	campaign, err := h.campaignLogic.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), patch)
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaign updated successfully", campaign)
}

// DeleteCampaign 删除众筹
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	if err := h.campaignLogic.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaign deleted successfully", nil)
}

// RetryCampaign 重新提交上链失败的众筹
func (h *CampaignHandler) RetryCampaign(c *gin.Context) {
	campaign, err := h.campaignLogic.Retry(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Campaign created successfully", campaign)
}

// Donate 捐款
func (h *CampaignHandler) Donate(c *gin.Context) {
	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	action, err := h.campaignLogic.Contribute(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Amount.String())
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Contribution successful", action)
}

// Vote 投票
func (h *CampaignHandler) Vote(c *gin.Context) {
	action, err := h.campaignLogic.Vote(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Vote successful", action)
}

// FinalizeMilestone 结算里程碑
func (h *CampaignHandler) FinalizeMilestone(c *gin.Context) {
	action, err := h.campaignLogic.FinalizeMilestone(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Milestone finalized successfully", action)
}

// RetryAction 重新提交失败的链上操作
func (h *CampaignHandler) RetryAction(c *gin.Context) {
	action, err := h.campaignLogic.RetryAction(c.Request.Context(), middleware.UserID(c), c.Param("actionId"))
	if err != nil {
		handleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Action submitted successfully", action)
}
