package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/oblivion-social/oblivion-api/internal/chain"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/response"
	"github.com/oblivion-social/oblivion-api/pkg/wallet"
)

// Handler HTTP 处理器集合
type Handler struct {
	userService         service.UserService
	relService          service.RelationshipService
	postService         service.PostService
	commentService      service.CommentService
	notificationService service.NotificationService
	mentionService      service.MentionService
	campaignService     service.CampaignService
	upgrader            websocket.Upgrader
}

// Services 构造 Handler 所需的服务
type Services struct {
	Users         service.UserService
	Relations     service.RelationshipService
	Posts         service.PostService
	Comments      service.CommentService
	Notifications service.NotificationService
	Mentions      service.MentionService
	Campaigns     service.CampaignService
}

func New(s Services) *Handler {
	return &Handler{
		userService:         s.Users,
		relService:          s.Relations,
		postService:         s.Posts,
		commentService:      s.Comments,
		notificationService: s.Notifications,
		mentionService:      s.Mentions,
		campaignService:     s.Campaigns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// fail 把服务层错误映射为 HTTP 状态
func fail(c *gin.Context, err error) {
	var rpcErr *chain.RPCError
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrNotificationNotFound),
		errors.Is(err, service.ErrCampaignNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrUserExists):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrFollowSelf),
		errors.Is(err, service.ErrInvalidWallet),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrEmptyPost),
		errors.Is(err, service.ErrEmptyComment),
		errors.Is(err, service.ErrTextTooLong),
		errors.Is(err, service.ErrInvalidStorageMode),
		errors.Is(err, service.ErrCannotRepostOwn),
		errors.Is(err, service.ErrInvalidMedia),
		errors.Is(err, service.ErrInvalidAmount):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrChainUnavailable):
		response.Error(c, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &rpcErr):
		response.Error(c, http.StatusBadGateway, rpcErr.Message)
	default:
		response.InternalError(c, err)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

// queryTime 解析 RFC3339 游标，非法或缺省为零值
func queryTime(c *gin.Context, key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, c.Query(key))
	if err != nil {
		return time.Time{}
	}
	return t
}

// normalizeID 路径/请求体里的钱包地址统一小写；非法地址原样小写交给服务层判断
func normalizeID(id string) string {
	if n, err := wallet.Normalize(id); err == nil {
		return n
	}
	return strings.ToLower(strings.TrimSpace(id))
}

// badRequest 绑定失败；校验错误按字段输出
func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, err.Error())
		return
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fe.Field()+" must satisfy "+fe.Tag()+"="+fe.Param())
		} else {
			msgs = append(msgs, fe.Field()+" is "+fe.Tag())
		}
	}
	response.BadRequest(c, strings.Join(msgs, "; "))
}
