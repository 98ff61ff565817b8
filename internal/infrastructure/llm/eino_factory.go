// Package llm 管理对话模型客户端
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"rag-chat-api/internal/config"
)

// EinoFactory 按 provider 名称惰性创建并缓存 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	mu     sync.RWMutex
	models map[string]model.BaseChatModel
}

func NewEinoFactory(cfg *config.LLMConfig) *EinoFactory {
	return &EinoFactory{
		config: cfg,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get name 为空时使用默认 provider
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	pc, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured, available: %s", name, strings.Join(f.Providers(), ", "))
	}

	mcfg := &openai.ChatModelConfig{
		APIKey:  pc.APIKey,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		Timeout: pc.Timeout,
	}
	if pc.MaxTokens > 0 {
		maxTokens := pc.MaxTokens
		mcfg.MaxTokens = &maxTokens
	}
	if pc.Temperature > 0 {
		temp := float32(pc.Temperature)
		mcfg.Temperature = &temp
	}

	chatModel, err := openai.NewChatModel(ctx, mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model for %s: %w", name, err)
	}
	f.models[name] = chatModel
	return chatModel, nil
}

// Providers 已配置的 provider 名称
func (f *EinoFactory) Providers() []string {
	names := make([]string, 0, len(f.config.Providers))
	for name := range f.config.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
