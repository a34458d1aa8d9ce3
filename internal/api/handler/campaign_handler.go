package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

type finalAmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// ListCampaigns 链上众筹活动
// @Summary 活动列表
// @Tags 众筹
// @Success 200 {object} response.Response{data=[]service.CampaignView}
// @Failure 503 {object} response.Response
// @Router /api/v1/campaigns [get]
func (h *Handler) ListCampaigns(c *gin.Context) {
	list, err := h.campaignService.ListCampaigns(c.Request.Context(), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// CampaignCount 活动总数
// @Summary 活动数量
// @Tags 众筹
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/campaigns/count [get]
func (h *Handler) CampaignCount(c *gin.Context) {
	n, err := h.campaignService.CampaignCount(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"count": n})
}

// GetCampaign 活动详情
// @Summary 活动详情
// @Tags 众筹
// @Param id path string true "活动 ID"
// @Success 200 {object} response.Response{data=service.CampaignView}
// @Failure 404 {object} response.Response
// @Router /api/v1/campaigns/{id} [get]
func (h *Handler) GetCampaign(c *gin.Context) {
	view, err := h.campaignService.GetCampaign(c.Request.Context(), c.Param("id"), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, view)
}

// ToggleCampaignLike 活动点赞
// @Summary 切换活动点赞
// @Tags 众筹
// @Security BearerAuth
// @Param id path string true "活动 ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/campaigns/{id}/like [post]
func (h *Handler) ToggleCampaignLike(c *gin.Context) {
	liked, count, err := h.campaignService.ToggleCampaignLike(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"liked": liked, "likes": count})
}

// SetFinalAmount 发起人登记最终金额
// @Summary 登记最终金额
// @Tags 众筹
// @Accept json
// @Security BearerAuth
// @Param id path string true "活动 ID"
// @Param request body finalAmountRequest true "十进制金额"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/campaigns/{id}/final-amount [put]
func (h *Handler) SetFinalAmount(c *gin.Context) {
	var req finalAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.campaignService.SetFinalAmount(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"), req.Amount); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"amount": req.Amount})
}

// GetFinalAmount 查询最终金额
// @Summary 最终金额
// @Tags 众筹
// @Param id path string true "活动 ID"
// @Success 200 {object} response.Response{data=model.CampaignFinalAmount}
// @Failure 404 {object} response.Response
// @Router /api/v1/campaigns/{id}/final-amount [get]
func (h *Handler) GetFinalAmount(c *gin.Context) {
	rec, err := h.campaignService.GetFinalAmount(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, rec)
}
