package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// likeContains 构造 LIKE 子串匹配参数，转义通配符
func likeContains(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

func likePrefix(s string) string {
	return escapeLike(strings.ToLower(s)) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
