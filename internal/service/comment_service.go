package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

type AddCommentInput struct {
	Text         string          `json:"text"`
	MediaURL     string          `json:"mediaUrl"`
	MediaDataURL string          `json:"mediaDataUrl"`
	MediaType    model.MediaType `json:"mediaType"`
}

// CommentService 评论
type CommentService interface {
	AddComment(ctx context.Context, authorID, postID string, in AddCommentInput) (*model.Comment, error)
	ListComments(ctx context.Context, postID string, limit int) ([]*model.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID string) error
}

type commentService struct {
	comments      repository.CommentRepository
	posts         repository.PostRepository
	users         repository.UserRepository
	uploader      MediaUploader
	mentions      MentionService
	notifications NotificationService
	assistant     *AIResponder
}

func NewCommentService(
	comments repository.CommentRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	uploader MediaUploader,
	mentions MentionService,
	notifications NotificationService,
	assistant *AIResponder,
) CommentService {
	return &commentService{
		comments:      comments,
		posts:         posts,
		users:         users,
		uploader:      uploader,
		mentions:      mentions,
		notifications: notifications,
		assistant:     assistant,
	}
}

// AddComment 评论数 +1，通知帖子作者和被提及的人；@ 助手时异步触发 AI 回复
func (s *commentService) AddComment(ctx context.Context, authorID, postID string, in AddCommentInput) (*model.Comment, error) {
	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}
	if text == "" && in.MediaURL == "" && in.MediaDataURL == "" {
		return nil, ErrEmptyComment
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	c := &model.Comment{PostID: postID, Text: text}
	c.SetAuthor(author.Author())
	if err := s.attachMedia(ctx, c, in); err != nil {
		return nil, err
	}

	if err := s.comments.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	metrics.Actions.WithLabelValues("comment").Inc()

	s.notifications.Send(&model.Notification{Type: model.NotifyComment, FromUserID: author.ID, ToUserID: post.AuthorID, PostID: postID})
	if text != "" {
		if _, err := s.mentions.NotifyMentions(ctx, author.ID, text, postID); err != nil {
			logger.Warn("notify mentions failed", zap.String("comment", c.ID), zap.Error(err))
		}
		if s.assistant != nil && s.assistant.Triggered(author.ID, text) {
			s.assistant.Enqueue(postID, c.ID)
		}
	}
	return c, nil
}

func (s *commentService) attachMedia(ctx context.Context, c *model.Comment, in AddCommentInput) error {
	switch {
	case in.MediaDataURL != "":
		if s.uploader == nil {
			return ErrInvalidMedia
		}
		m, err := s.uploader.UploadDataURL(ctx, "comments", in.MediaDataURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMedia, err)
		}
		c.MediaURL, c.MediaType = m.URL, m.Kind
	case in.MediaURL != "":
		mt := in.MediaType
		if mt == "" {
			mt = model.MediaImage
		}
		if !mt.Valid() {
			return ErrInvalidMedia
		}
		c.MediaURL, c.MediaType = strings.TrimSpace(in.MediaURL), mt
	}
	return nil
}

func (s *commentService) ListComments(ctx context.Context, postID string, limit int) ([]*model.Comment, error) {
	return s.comments.ListByPost(ctx, postID, limit)
}

// DeleteComment 仅评论作者可删
func (s *commentService) DeleteComment(ctx context.Context, userID, commentID string) error {
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	if c.AuthorID != userID {
		return ErrForbidden
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}
