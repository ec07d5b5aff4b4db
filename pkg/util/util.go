package util

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// GenerateUUID 生成一个标准的 UUID (v4)
func GenerateUUID() string {
	return uuid.New().String()
}

// IsUUID 校验字符串是否为合法 UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// RuneLen 去除首尾空白后的字符数
func RuneLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// Truncate 按字符截断，超长时追加省略号
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}

// ClampPage 规范分页参数，page 从 1 开始
func ClampPage(page, size, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return page, size
}
