// Package prompt 内嵌分类、问答与图片描述的提示词模板
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 对应 templates/<id>.system.txt 与可选的 <id>.user.txt
type PromptID string

const (
	PromptClassifierV1     PromptID = "classifier_v1"
	PromptRAGAnswerV1      PromptID = "rag_answer_v1"
	PromptVisionDescribeV1 PromptID = "vision_describe_v1"
)

// HistoryKey 模板中历史消息占位符名
const HistoryKey = "history"

var ErrNoUserTemplate = errors.New("prompt has no user template")

// Registry 按 ID 缓存已编译的 eino 模板，可并发使用
type Registry struct {
	templates sync.Map // PromptID -> einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{}
}

// ChatTemplate system + 可选历史 + user 三段式，变量语法为 FString
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if tpl, ok := r.templates.Load(id); ok {
		return tpl.(einoprompt.ChatTemplate), nil
	}

	system, err := r.SystemText(id)
	if err != nil {
		return nil, err
	}
	user, err := readTemplate(id, "user")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrNoUserTemplate)
	}
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.MessagesPlaceholder(HistoryKey, true),
		schema.UserMessage(user),
	)
	actual, _ := r.templates.LoadOrStore(id, tpl)
	return actual.(einoprompt.ChatTemplate), nil
}

// SystemText 原样返回系统提示，不做变量替换
func (r *Registry) SystemText(id PromptID) (string, error) {
	text, err := readTemplate(id, "system")
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("unknown prompt id: %s", id)
	}
	return text, err
}

func readTemplate(id PromptID, role string) (string, error) {
	b, err := templatesFS.ReadFile(fmt.Sprintf("templates/%s.%s.txt", id, role))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
