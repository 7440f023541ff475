package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError 输入校验失败，只返回给发起方
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseSkills 逗号分隔文本转技能列表：去空白、去空项，保留重复项与原始顺序
func ParseSkills(text string) []string {
	out := []string{}
	for _, part := range strings.Split(text, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// requireText 去空白后非空且不超过 max 个字符
func requireText(field, value string, max int) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", invalid(field, "不能为空")
	}
	return limitText(field, v, max)
}

func limitText(field, value string, max int) (string, error) {
	v := strings.TrimSpace(value)
	if max > 0 && utf8.RuneCountInString(v) > max {
		return "", invalid(field, fmt.Sprintf("超过 %d 个字符", max))
	}
	return v, nil
}

// truncateRunes 按 rune 数量截断字符串
// 正确处理 Unicode 字符，超过 max 长度时添加省略号
func truncateRunes(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
