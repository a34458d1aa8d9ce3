package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
)

const maxHandleLength = 30

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// ExtractMentions 提取 @handle，前一个字符不能是单词字符（排除邮箱），小写去重并保持出现顺序
func ExtractMentions(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, loc := range mentionRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 && isWordByte(text[loc[0]-1]) {
			continue
		}
		handle := text[loc[2]:loc[3]]
		if len(handle) > maxHandleLength {
			continue
		}
		handle = strings.ToLower(handle)
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		out = append(out, handle)
	}
	return out
}

// Mentions reports whether text mentions handle.
func Mentions(text, handle string) bool {
	handle = strings.ToLower(strings.TrimPrefix(handle, "@"))
	for _, h := range ExtractMentions(text) {
		if h == handle {
			return true
		}
	}
	return false
}

// ActiveMention 光标前正在输入的 @前缀；cursor 按字符（rune）计
func ActiveMention(text string, cursor int) (string, int, bool) {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	i := cursor - 1
	for i >= 0 && isWordRune(runes[i]) {
		i--
	}
	if i < 0 || runes[i] != '@' {
		return "", 0, false
	}
	if i > 0 && isWordRune(runes[i-1]) {
		return "", 0, false
	}
	if cursor-(i+1) > maxHandleLength {
		return "", 0, false
	}
	return string(runes[i+1 : cursor]), i, true
}

// ApplyMention 用 "@username " 替换 [start, cursor) 并返回新的光标位置
func ApplyMention(text string, start, cursor int, username string) (string, int) {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	if start < 0 || start > cursor {
		start = cursor
	}
	insert := []rune("@" + username + " ")
	out := make([]rune, 0, len(runes)+len(insert))
	out = append(out, runes[:start]...)
	out = append(out, insert...)
	out = append(out, runes[cursor:]...)
	return string(out), start + len(insert)
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && isWordByte(byte(r))
}

// MentionService @ 提及
type MentionService interface {
	SearchCandidates(ctx context.Context, prefix string, limit int) ([]*model.User, error)
	Resolve(ctx context.Context, text string) ([]*model.User, error)
	NotifyMentions(ctx context.Context, fromUserID, text, postID string) (int, error)
}

type mentionService struct {
	users         repository.UserRepository
	notifications NotificationService
}

func NewMentionService(users repository.UserRepository, notifications NotificationService) MentionService {
	return &mentionService{users: users, notifications: notifications}
}

// SearchCandidates username_lower 前缀查询，用于补全
func (s *mentionService) SearchCandidates(ctx context.Context, prefix string, limit int) ([]*model.User, error) {
	prefix = strings.TrimPrefix(strings.TrimSpace(prefix), "@")
	if len(prefix) > maxHandleLength {
		return []*model.User{}, nil
	}
	return s.users.ListByUsernamePrefix(ctx, prefix, limit)
}

// Resolve 把正文里的 handle 解析成用户，未知 handle 忽略
func (s *mentionService) Resolve(ctx context.Context, text string) ([]*model.User, error) {
	handles := ExtractMentions(text)
	users := make([]*model.User, 0, len(handles))
	for _, h := range handles {
		u, err := s.users.GetByUsername(ctx, h)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// NotifyMentions 每个被提及用户一条 mention 通知，跳过自己
func (s *mentionService) NotifyMentions(ctx context.Context, fromUserID, text, postID string) (int, error) {
	users, err := s.Resolve(ctx, text)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, u := range users {
		if u.ID == fromUserID {
			continue
		}
		s.notifications.Send(&model.Notification{
			Type:       model.NotifyMention,
			FromUserID: fromUserID,
			ToUserID:   u.ID,
			PostID:     postID,
		})
		sent++
	}
	return sent, nil
}
