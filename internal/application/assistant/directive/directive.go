// Package directive 从助手消息中提取剧情复盘与下一章方向
package directive

import (
	"strings"

	"z-novel-copilot/internal/domain/entity"
)

// 消息中的固定标记，保持与提示词一致
const (
	MarkerCurrentSynopsis = "##剧情复盘"
	MarkerNextSynopsis    = "##下一章方向总结"
)

// MaxRunes 指令最大字符数
const MaxRunes = 100

var emphasis = strings.NewReplacer("**", "", "#", "")

// Marker 返回指令类型对应的标记，未知类型返回空
func Marker(kind entity.DirectiveKind) string {
	switch kind {
	case entity.DirectiveCurrentSynopsis:
		return MarkerCurrentSynopsis
	case entity.DirectiveNextSynopsis:
		return MarkerNextSynopsis
	default:
		return ""
	}
}

// Extract 提取指令：去掉标记与其后的冒号，去掉所有 # 与 **，取首行并截断到 100 字符
// 找不到标记时对整段内容做同样的清理
func Extract(content string, kind entity.DirectiveKind) string {
	text := content
	if marker := Marker(kind); marker != "" {
		if idx := strings.Index(text, marker); idx >= 0 {
			text = text[idx+len(marker):]
		}
	}

	text = strings.TrimLeft(text, " \t")
	text = strings.TrimPrefix(text, "：")
	text = strings.TrimPrefix(text, ":")
	text = emphasis.Replace(text)
	text = strings.TrimSpace(text)

	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}

	return truncate(text, MaxRunes)
}

// Detect 返回消息包含的指令类型，复盘在前
func Detect(content string) []entity.DirectiveKind {
	var kinds []entity.DirectiveKind
	if strings.Contains(content, MarkerCurrentSynopsis) {
		kinds = append(kinds, entity.DirectiveCurrentSynopsis)
	}
	if strings.Contains(content, MarkerNextSynopsis) {
		kinds = append(kinds, entity.DirectiveNextSynopsis)
	}
	return kinds
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
