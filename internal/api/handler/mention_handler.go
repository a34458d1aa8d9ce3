package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

type mentionTextRequest struct {
	Text   string `json:"text"`
	Cursor *int   `json:"cursor"`
}

type applyMentionRequest struct {
	Text     string `json:"text"`
	Start    int    `json:"start" binding:"min=0"`
	Cursor   int    `json:"cursor" binding:"min=0"`
	Username string `json:"username" binding:"required"`
}

// MentionCandidates 用户名前缀补全
// @Summary @ 候选用户
// @Tags 提及
// @Param q query string false "前缀"
// @Param limit query int false "数量" default(5)
// @Success 200 {object} response.Response{data=[]model.User}
// @Router /api/v1/mentions/candidates [get]
func (h *Handler) MentionCandidates(c *gin.Context) {
	list, err := h.mentionService.SearchCandidates(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 5))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// ExtractMentions 解析正文中的 @handle 及对应用户
// @Summary 解析提及
// @Tags 提及
// @Accept json
// @Param request body mentionTextRequest true "正文"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/mentions/extract [post]
func (h *Handler) ExtractMentions(c *gin.Context) {
	var req mentionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	users, err := h.mentionService.Resolve(c.Request.Context(), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"handles": service.ExtractMentions(req.Text), "users": users})
}

// Autocomplete 光标处正在输入的 @ 前缀及候选
// @Summary 提及补全
// @Tags 提及
// @Accept json
// @Param request body mentionTextRequest true "正文与光标（按字符计）"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/mentions/autocomplete [post]
func (h *Handler) Autocomplete(c *gin.Context) {
	var req mentionTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cursor := -1
	if req.Cursor != nil {
		cursor = *req.Cursor
	}
	prefix, start, ok := service.ActiveMention(req.Text, cursor)
	if !ok {
		response.Success(c, gin.H{"active": false, "candidates": []*model.User{}})
		return
	}
	list, err := h.mentionService.SearchCandidates(c.Request.Context(), prefix, queryInt(c, "limit", 5))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"active": true, "prefix": prefix, "start": start, "candidates": list})
}

// ApplyMention 用选中的用户名替换正在输入的前缀
// @Summary 插入提及
// @Tags 提及
// @Accept json
// @Param request body applyMentionRequest true "替换区间与用户名"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/mentions/apply [post]
func (h *Handler) ApplyMention(c *gin.Context) {
	var req applyMentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	text, cursor := service.ApplyMention(req.Text, req.Start, req.Cursor, req.Username)
	response.Success(c, gin.H{"text": text, "cursor": cursor})
}
