package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/internal/storage"
	"github.com/oblivion-social/oblivion-api/pkg/wallet"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// MediaUploader data URL 上传
type MediaUploader interface {
	UploadDataURL(ctx context.Context, folder, dataURL string) (*storage.Media, error)
}

type CreateUserInput struct {
	Wallet      string `json:"wallet" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio" binding:"max=280"`
}

// ProfilePatch nil 字段不修改
type ProfilePatch struct {
	DisplayName *string `json:"displayName"`
	Username    *string `json:"username"`
	Avatar      *string `json:"avatar"`
	Bio         *string `json:"bio" binding:"omitempty,max=280"`
}

// UserService 用户资料、收藏与推荐
type UserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error)
	GetUser(ctx context.Context, walletAddr string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUsers(ctx context.Context, ids []string) ([]*model.User, error)
	UpdateProfile(ctx context.Context, walletAddr string, patch ProfilePatch) (*model.User, error)
	ToggleBookmark(ctx context.Context, walletAddr, postID string) (bool, error)
	IsBookmarked(ctx context.Context, walletAddr, postID string) (bool, error)
	ListBookmarks(ctx context.Context, walletAddr string, page, pageSize int) ([]*model.Post, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error)
	SuggestUsers(ctx context.Context, walletAddr string, limit int) ([]*model.User, error)
}

type userService struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	posts     repository.PostRepository
	bookmarks repository.BookmarkRepository
	uploader  MediaUploader
	cache     *feedcache.Cache
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	posts repository.PostRepository,
	bookmarks repository.BookmarkRepository,
	uploader MediaUploader,
	cache *feedcache.Cache,
) UserService {
	return &userService{users: users, follows: follows, posts: posts, bookmarks: bookmarks, uploader: uploader, cache: cache}
}

func (s *userService) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	addr, err := wallet.Normalize(in.Wallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	username := strings.TrimSpace(in.Username)
	if !usernameRe.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if _, err := s.users.GetByID(ctx, addr); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err := s.ensureUsernameFree(ctx, username, ""); err != nil {
		return nil, err
	}
	avatar, err := s.resolveAvatar(ctx, in.Avatar)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = username
	}
	u := &model.User{
		ID:            addr,
		Username:      username,
		UsernameLower: strings.ToLower(username),
		DisplayName:   displayName,
		Avatar:        avatar,
		Bio:           strings.TrimSpace(in.Bio),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *userService) GetUser(ctx context.Context, walletAddr string) (*model.User, error) {
	addr, err := wallet.Normalize(walletAddr)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	u, err := feedcache.Fetch(ctx, s.cache, feedcache.UserKey(addr), func(ctx context.Context) (*model.User, error) {
		return s.users.GetByID(ctx, addr)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *userService) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *userService) GetUsers(ctx context.Context, ids []string) ([]*model.User, error) {
	return s.cache.LoadUsers(ctx, ids, s.users.GetByIDs)
}

// UpdateProfile 改名时重新检查唯一性，并同步帖子、评论里的冗余作者信息
func (s *userService) UpdateProfile(ctx context.Context, walletAddr string, patch ProfilePatch) (*model.User, error) {
	u, err := s.GetUser(ctx, walletAddr)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if !usernameRe.MatchString(name) {
			return nil, ErrInvalidUsername
		}
		if !strings.EqualFold(name, u.Username) {
			if err := s.ensureUsernameFree(ctx, name, u.ID); err != nil {
				return nil, err
			}
		}
		fields["username"] = name
		fields["username_lower"] = strings.ToLower(name)
	}
	if patch.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Avatar != nil {
		avatar, err := s.resolveAvatar(ctx, *patch.Avatar)
		if err != nil {
			return nil, err
		}
		fields["avatar"] = avatar
	}
	if patch.Bio != nil {
		fields["bio"] = strings.TrimSpace(*patch.Bio)
	}
	if len(fields) == 0 {
		return u, nil
	}

	if err := s.users.Update(ctx, u.ID, fields); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.cache.Delete(ctx, feedcache.UserKey(u.ID))
	updated, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if err := s.posts.UpdateAuthor(ctx, updated.Author()); err != nil {
		return nil, fmt.Errorf("propagate author: %w", err)
	}
	return updated, nil
}

func (s *userService) ToggleBookmark(ctx context.Context, walletAddr, postID string) (bool, error) {
	if _, err := s.users.GetByID(ctx, walletAddr); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrPostNotFound
		}
		return false, err
	}
	return s.bookmarks.Toggle(ctx, walletAddr, postID)
}

func (s *userService) IsBookmarked(ctx context.Context, walletAddr, postID string) (bool, error) {
	return s.bookmarks.Exists(ctx, walletAddr, postID)
}

// ListBookmarks 最近收藏的在前；已删除的帖子自然消失
func (s *userService) ListBookmarks(ctx context.Context, walletAddr string, page, pageSize int) ([]*model.Post, error) {
	offset, limit := pageWindow(page, pageSize)
	ids, err := s.bookmarks.ListPostIDs(ctx, walletAddr, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.posts.GetByIDs(ctx, ids)
}

func (s *userService) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	query = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(query), "@"))
	if query == "" {
		return []*model.User{}, nil
	}
	return s.users.Search(ctx, query, limit)
}

// SuggestUsers 未关注的用户，按粉丝数降序
func (s *userService) SuggestUsers(ctx context.Context, walletAddr string, limit int) ([]*model.User, error) {
	exclude := []string{}
	if walletAddr != "" {
		followees, err := s.follows.FolloweeIDs(ctx, walletAddr)
		if err != nil {
			return nil, err
		}
		exclude = append(followees, walletAddr)
	}
	return s.users.ListSuggestions(ctx, exclude, limit)
}

func (s *userService) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return ErrUsernameTaken
	}
	return nil
}

func (s *userService) resolveAvatar(ctx context.Context, avatar string) (string, error) {
	avatar = strings.TrimSpace(avatar)
	if !storage.IsDataURL(avatar) {
		return avatar, nil
	}
	if s.uploader == nil {
		return "", ErrInvalidMedia
	}
	m, err := s.uploader.UploadDataURL(ctx, "avatars", avatar)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMedia, err)
	}
	if m.Kind == model.MediaVideo {
		return "", ErrInvalidMedia
	}
	return m.URL, nil
}
