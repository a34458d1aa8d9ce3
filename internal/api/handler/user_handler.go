package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

// CreateUser 注册用户资料
// @Summary 创建用户
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateUserInput true "用户资料"
// @Success 201 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req service.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	// 只能为自己的钱包建档
	if normalizeID(req.Wallet) != middleware.CurrentWallet(c) {
		response.Forbidden(c, "wallet does not match token")
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, user)
}

// GetMe 当前登录用户
// @Summary 当前用户资料
// @Tags 用户
// @Security BearerAuth
// @Success 200 {object} response.Response{data=model.User}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// GetUser 按钱包地址查询
// @Summary 查询用户
// @Tags 用户
// @Param user_id path string true "钱包地址"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/{user_id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// GetUserByUsername 按用户名查询（不区分大小写）
// @Summary 按用户名查询
// @Tags 用户
// @Param username path string true "用户名"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 404 {object} response.Response
// @Router /api/v1/users/by-username/{username} [get]
func (h *Handler) GetUserByUsername(c *gin.Context) {
	user, err := h.userService.GetUserByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateProfile 修改资料，未提供的字段不变
// @Summary 修改资料
// @Tags 用户
// @Accept json
// @Security BearerAuth
// @Param request body service.ProfilePatch true "修改项"
// @Success 200 {object} response.Response{data=model.User}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/users/me [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req service.ProfilePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentWallet(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, user)
}

// SearchUsers 按用户名/昵称搜索
// @Summary 搜索用户
// @Tags 用户
// @Param q query string true "关键词"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=[]model.User}
// @Router /api/v1/users/search [get]
func (h *Handler) SearchUsers(c *gin.Context) {
	list, err := h.userService.SearchUsers(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// SuggestUsers 推荐关注
// @Summary 推荐用户
// @Tags 用户
// @Security BearerAuth
// @Param limit query int false "数量" default(5)
// @Success 200 {object} response.Response{data=[]model.User}
// @Router /api/v1/users/suggestions [get]
func (h *Handler) SuggestUsers(c *gin.Context) {
	list, err := h.userService.SuggestUsers(c.Request.Context(), middleware.CurrentWallet(c), queryInt(c, "limit", 5))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// ListBookmarks 我的收藏
// @Summary 收藏列表
// @Tags 用户
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=[]model.Post}
// @Router /api/v1/users/me/bookmarks [get]
func (h *Handler) ListBookmarks(c *gin.Context) {
	list, err := h.userService.ListBookmarks(c.Request.Context(), middleware.CurrentWallet(c),
		queryInt(c, "page", 1), queryInt(c, "page_size", 10))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}
