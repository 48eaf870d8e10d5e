package assistant

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SearchSystemPrompt 检索助手的系统指令
const SearchSystemPrompt = `你是小说作者的资料检索助手。请用简洁的中文回答，给出与写作相关的事实、背景与可用细节。
不确定的内容请明确说明，不要编造出处。`

// ReviewSystemPrompt 主编审阅的系统指令
const ReviewSystemPrompt = `你是一位经验丰富的网络小说主编，正在审阅作者刚完成的章节。
请像真人主编一样分几段给出意见，每段只谈一个要点，段与段之间用空行分隔：
先说整体印象，再指出节奏、人物、冲突与文笔上的具体问题并给出修改建议。
最后必须单独输出两段，格式严格如下：
##剧情复盘：用一句话概括本章剧情（不超过 100 字）
##下一章方向总结：用一句话给出下一章的推进方向（不超过 100 字）`

// DialogueSystemPrompt 审阅后继续对话的系统指令
const DialogueSystemPrompt = `你是一位经验丰富的网络小说主编，正在与作者讨论刚审阅过的章节。
回答要口语化、具体，分段表达，段与段之间用空行分隔。
当作者要求重新总结时，仍使用以下格式单独成段：
##剧情复盘：……
##下一章方向总结：……`

// ChapterInput 待审阅的章节
type ChapterInput struct {
	Title   string
	Content string
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func reviewPrompt(ch ChapterInput, maxRunes int) string {
	var sb strings.Builder
	if title := strings.TrimSpace(ch.Title); title != "" {
		fmt.Fprintf(&sb, "章节标题：%s\n\n", title)
	}
	sb.WriteString("章节正文：\n")
	sb.WriteString(truncateRunes(strings.TrimSpace(ch.Content), maxRunes))
	sb.WriteString("\n\n请审阅这一章。")
	return sb.String()
}

// dialogueSystem 对话时附带最近一次审阅的章节
func dialogueSystem(ch ChapterInput, maxRunes int) string {
	content := strings.TrimSpace(ch.Content)
	if content == "" {
		return DialogueSystemPrompt
	}
	var sb strings.Builder
	sb.WriteString(DialogueSystemPrompt)
	sb.WriteString("\n\n正在讨论的章节")
	if title := strings.TrimSpace(ch.Title); title != "" {
		fmt.Fprintf(&sb, "《%s》", title)
	}
	sb.WriteString("：\n")
	sb.WriteString(truncateRunes(content, maxRunes))
	return sb.String()
}

// reviewRequestLabel 记录到对话日志中的用户消息，不包含正文
func reviewRequestLabel(ch ChapterInput) string {
	if title := strings.TrimSpace(ch.Title); title != "" {
		return fmt.Sprintf("请审阅《%s》", title)
	}
	return "请审阅本章"
}
