package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// ListNotifications 我的通知，最新在前
// @Summary 通知列表
// @Tags 通知
// @Security BearerAuth
// @Param unread query bool false "只看未读"
// @Param limit query int false "数量" default(50)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	ctx, me := c.Request.Context(), middleware.CurrentWallet(c)
	list, err := h.notificationService.List(ctx, me, c.Query("unread") == "true", queryInt(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(ctx, me)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list, "unread": unread})
}

// UnreadCount 未读数
// @Summary 未读通知数
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications/unread-count [get]
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"unread": n})
}

// MarkNotificationRead 标记单条已读
// @Summary 标记已读
// @Tags 通知
// @Security BearerAuth
// @Param id path string true "通知 ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	if err := h.notificationService.MarkRead(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"read": true})
}

// MarkAllNotificationsRead 全部已读
// @Summary 全部已读
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"updated": n})
}

// ClearNotifications 清空通知
// @Summary 清空通知
// @Tags 通知
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/notifications [delete]
func (h *Handler) ClearNotifications(c *gin.Context) {
	n, err := h.notificationService.DeleteAll(c.Request.Context(), middleware.CurrentWallet(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

// StreamNotifications 通过 WebSocket 实时推送新通知
// @Summary 通知推送（WebSocket）
// @Tags 通知
// @Param token query string true "JWT"
// @Router /ws/notifications [get]
func (h *Handler) StreamNotifications(c *gin.Context) {
	me := middleware.CurrentWallet(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := h.notificationService.Subscribe(me)
	defer cancel()

	// 读循环只用来感知断开和续期
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(n); err != nil {
				logger.Debug("websocket write failed", zap.String("user", me), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
