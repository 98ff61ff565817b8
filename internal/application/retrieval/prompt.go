package retrieval

import (
	"fmt"
	"strings"

	"rag-chat-api/internal/domain/entity"
)

const (
	// NoContextMarker 无召回上下文时注入 Prompt 的占位
	NoContextMarker = "No relevant context found. Answer from general knowledge."

	contextSeparator = "\n\n---\n\n"
	sourceLimit      = 3
	excerptRunes     = 100
)

// Usable 过滤掉正文为空白的结果
func Usable(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Text) != "" {
			out = append(out, r)
		}
	}
	return out
}

// BuildPromptContext 将召回结果格式化为带标注的上下文块，编号按保留的结果连续计数；无结果时返回空串。
func BuildPromptContext(results []Result) string {
	kept := Usable(results)
	if len(kept) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(kept))
	for i, r := range kept {
		blocks = append(blocks, fmt.Sprintf("[Document %d - %s]\n%s", i+1, r.AssetKind.Label(), strings.TrimSpace(r.Text)))
	}
	return strings.Join(blocks, contextSeparator)
}

// ContextOrMarker 供 Prompt 模板使用
func ContextOrMarker(results []Result) string {
	if c := BuildPromptContext(results); c != "" {
		return c
	}
	return NoContextMarker
}

// Sources 取前三条结果作为引用，摘录前 100 个字符
func Sources(results []Result) []entity.SourceRef {
	n := len(results)
	if n > sourceLimit {
		n = sourceLimit
	}
	out := make([]entity.SourceRef, 0, n)
	for _, r := range results[:n] {
		out = append(out, entity.SourceRef{
			AssetID: r.AssetID,
			Excerpt: entity.TruncateRunes(r.Text, excerptRunes),
		})
	}
	return out
}
