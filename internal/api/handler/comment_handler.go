package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

// AddComment 发表评论；@ 助手账号时异步生成回复
// @Summary 发表评论
// @Tags 评论
// @Accept json
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Param request body service.AddCommentInput true "评论内容"
// @Success 201 {object} response.Response{data=model.Comment}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/comments [post]
func (h *Handler) AddComment(c *gin.Context) {
	var req service.AddCommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment, err := h.commentService.AddComment(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, comment)
}

// ListComments 帖子评论，按时间正序
// @Summary 评论列表
// @Tags 评论
// @Param id path string true "帖子 ID"
// @Param limit query int false "数量" default(50)
// @Success 200 {object} response.Response{data=[]model.Comment}
// @Router /api/v1/posts/{id}/comments [get]
func (h *Handler) ListComments(c *gin.Context) {
	list, err := h.commentService.ListComments(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// DeleteComment 删除自己的评论
// @Summary 删除评论
// @Tags 评论
// @Security BearerAuth
// @Param id path string true "评论 ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/comments/{id} [delete]
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.commentService.DeleteComment(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
