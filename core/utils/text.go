package utils

import (
	"strings"
	"unicode"
)

// MaskKey 凭证脱敏，仅保留首尾字符用于日志
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "***" + key[len(key)-4:]
}

// StripCodeFence 去除模型输出外层的 ``` 代码块标记 (含语言标签)
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = stripFenceTag(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// stripFenceTag 去掉开头的语言标签，标签后可以是换行，也可以直接是 JSON
func stripFenceTag(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+')
	})
	if end <= 0 {
		return s
	}
	rest := strings.TrimLeft(s[end:], " \t\r")
	if rest == "" || rest[0] == '\n' || rest[0] == '[' || rest[0] == '{' {
		return rest
	}
	return s
}
