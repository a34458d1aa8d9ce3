package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/llm"
	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// Completer 聊天补全
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

type replyJob struct {
	postID    string
	commentID string
}

// AIResponder 被 @ 时以助手账号回复评论
type AIResponder struct {
	assistant     model.Author
	llm           Completer
	posts         repository.PostRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	notifications NotificationService
	timeout       time.Duration
	ch            chan replyJob
}

func NewAIResponder(
	assistant model.Author,
	completer Completer,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	notifications NotificationService,
	queueSize int,
) *AIResponder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AIResponder{
		assistant:     assistant,
		llm:           completer,
		posts:         posts,
		comments:      comments,
		users:         users,
		notifications: notifications,
		timeout:       60 * time.Second,
		ch:            make(chan replyJob, queueSize),
	}
}

// Handle 助手的 @ 名
func (r *AIResponder) Handle() string { return r.assistant.Username }

// EnsureAccount 助手账号不存在时创建
func (r *AIResponder) EnsureAccount(ctx context.Context) (*model.User, error) {
	u, err := r.users.GetByID(ctx, r.assistant.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	u = &model.User{
		ID:            r.assistant.ID,
		Username:      r.assistant.Username,
		UsernameLower: strings.ToLower(r.assistant.Username),
		DisplayName:   r.assistant.DisplayName,
		Avatar:        r.assistant.Avatar,
		Bio:           "Mention @" + r.assistant.Username + " in a comment and I will reply.",
	}
	if err := r.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create assistant account: %w", err)
	}
	return u, nil
}

// Triggered 评论 @ 了助手且不是助手自己发的
func (r *AIResponder) Triggered(authorID, text string) bool {
	return authorID != r.assistant.ID && Mentions(text, r.assistant.Username)
}

// Start 启动回复协程；停止函数等待进行中的回复并排空队列，受 ctx 限制
func (r *AIResponder) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-r.ch:
					r.handle(job)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		idle := make(chan struct{})
		go func() {
			wg.Wait()
			close(idle)
		}()
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
		for {
			select {
			case job := <-r.ch:
				r.handle(job)
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}
	}
}

func (r *AIResponder) handle(job replyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Reply(ctx, job.postID, job.commentID); err != nil {
		logger.Warn("ai reply failed", zap.String("post", job.postID), zap.String("comment", job.commentID), zap.Error(err))
	}
}

// Enqueue 队列满时丢弃
func (r *AIResponder) Enqueue(postID, commentID string) {
	select {
	case r.ch <- replyJob{postID: postID, commentID: commentID}:
	default:
		logger.Warn("ai reply queue full, drop", zap.String("post", postID), zap.String("comment", commentID))
	}
}

// Reply 生成回复并以 IsAI 评论落库，通知提问者
func (r *AIResponder) Reply(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	post, err := r.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	trigger, err := r.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("load comment: %w", err)
	}

	reply, err := r.llm.Complete(ctx, r.prompt(post, trigger))
	if err != nil {
		return nil, err
	}
	reply = truncateRunes(strings.TrimSpace(reply), MaxTextLength)
	if reply == "" {
		return nil, llm.ErrEmptyCompletion
	}

	c := &model.Comment{PostID: postID, Text: reply, IsAI: true}
	c.SetAuthor(r.assistant)
	if err := r.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("store ai reply: %w", err)
	}
	metrics.Actions.WithLabelValues("ai_reply").Inc()
	r.notifications.Send(&model.Notification{Type: model.NotifyAIReply, FromUserID: r.assistant.ID, ToUserID: trigger.AuthorID, PostID: postID})
	return c, nil
}

func (r *AIResponder) prompt(post *model.Post, trigger *model.Comment) []llm.Message {
	postText := post.Text
	postAuthor := post.AuthorUsername
	if post.IsRepost() {
		postText = post.OriginalText
		postAuthor = post.OriginalAuthorUsername
	}
	system := fmt.Sprintf("You are %s (@%s), an assistant on the Oblivion social network. "+
		"Reply to the comment in a friendly, concise way, under 280 characters, without hashtags.",
		r.assistant.DisplayName, r.assistant.Username)
	user := fmt.Sprintf("Post by @%s:\n%s\n\nComment by @%s:\n%s", postAuthor, postText, trigger.AuthorUsername, trigger.Text)
	return []llm.Message{{Role: "system", Content: system}, {Role: "user", Content: user}}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
