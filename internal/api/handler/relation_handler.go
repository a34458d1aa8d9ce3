package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

type followRequest struct {
	ToUserID string `json:"to_user_id" binding:"required"`
}

// Follow 关注用户
// @Summary 关注用户
// @Tags 关系链
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body followRequest true "被关注者钱包地址"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.relService.Follow(c.Request.Context(), middleware.CurrentWallet(c), normalizeID(req.ToUserID)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"following": true})
}

// Unfollow 取消关注
// @Summary 取消关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body followRequest true "被取关者钱包地址"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.relService.Unfollow(c.Request.Context(), middleware.CurrentWallet(c), normalizeID(req.ToUserID)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"following": false})
}

// IsFollowing 当前用户是否关注了 user_id
// @Summary 是否已关注
// @Tags 关系链
// @Security BearerAuth
// @Param user_id path string true "用户钱包地址"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Router /api/v1/relations/{user_id}/status [get]
func (h *Handler) IsFollowing(c *gin.Context) {
	ok, err := h.relService.IsFollowing(c.Request.Context(), middleware.CurrentWallet(c), normalizeID(c.Param("user_id")))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"following": ok})
}

// ListFollowing 查询某用户关注的人
// @Summary 查询关注列表
// @Tags 关系链
// @Param user_id path string true "用户钱包地址"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/following [get]
func (h *Handler) ListFollowing(c *gin.Context) {
	page, pageSize := queryInt(c, "page", 1), queryInt(c, "page_size", 10)
	list, err := h.relService.ListFollowing(c.Request.Context(), normalizeID(c.Param("user_id")), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// ListFans 查询某用户的粉丝
// @Summary 查询粉丝列表（来自冗余表）
// @Tags 关系链
// @Param user_id path string true "用户钱包地址"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/relations/{user_id}/fans [get]
func (h *Handler) ListFans(c *gin.Context) {
	page, pageSize := queryInt(c, "page", 1), queryInt(c, "page_size", 10)
	list, err := h.relService.ListFans(c.Request.Context(), normalizeID(c.Param("user_id")), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}
