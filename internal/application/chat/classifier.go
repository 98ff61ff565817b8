package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rag-chat-api/internal/domain/entity"
	wfmodel "rag-chat-api/internal/workflow/model"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/metrics"
)

// Intent 查询意图
type Intent string

const (
	IntentDocumentQuery    Intent = "DOCUMENT_QUERY"
	IntentGeneralKnowledge Intent = "GENERAL_KNOWLEDGE"
	IntentGreeting         Intent = "GREETING"
	IntentClarification    Intent = "CLARIFICATION"
)

// FallbackIntent 分类失败时的兜底意图，宁可多检索一次
const FallbackIntent = IntentDocumentQuery

// NeedsRetrieval GREETING 与 GENERAL_KNOWLEDGE 跳过检索
func (i Intent) NeedsRetrieval() bool {
	switch i {
	case IntentGreeting, IntentGeneralKnowledge:
		return false
	default:
		return true
	}
}

func (i Intent) Valid() bool {
	switch i {
	case IntentDocumentQuery, IntentGeneralKnowledge, IntentGreeting, IntentClarification:
		return true
	default:
		return false
	}
}

// Classification 分类结果；Fallback 为 true 表示使用了兜底意图
type Classification struct {
	Intent   Intent
	Fallback bool
	Reason   string
}

// Classifier 查询意图分类，不返回错误：失败时兜底为 DOCUMENT_QUERY
type Classifier interface {
	Classify(ctx context.Context, message string, history []*entity.ChatMessage) Classification
}

type classifyInvoker interface {
	Invoke(ctx context.Context, in *wfmodel.ClassifyInput) (string, error)
}

// LLMClassifier 基于语言模型的分类器
type LLMClassifier struct {
	chain        classifyInvoker
	provider     string
	historyLimit int
	timeout      time.Duration
}

func NewLLMClassifier(chain classifyInvoker, provider string, historyLimit int, timeout time.Duration) *LLMClassifier {
	return &LLMClassifier{
		chain:        chain,
		provider:     provider,
		historyLimit: historyLimit,
		timeout:      timeout,
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, message string, history []*entity.ChatMessage) Classification {
	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.chain.Invoke(cctx, &wfmodel.ClassifyInput{
		Provider: c.provider,
		Message:  message,
		History:  toSchemaHistory(history, c.historyLimit),
	})

	var res Classification
	if err != nil {
		res = fallback("upstream: " + err.Error())
	} else if intent, perr := ParseIntent(raw); perr != nil {
		res = fallback(perr.Error())
	} else {
		res = Classification{Intent: intent}
	}

	if res.Fallback {
		logger.Warn(ctx, "query classification fell back", "intent", res.Intent, "reason", res.Reason)
	} else {
		logger.Debug(ctx, "query classified", "intent", res.Intent)
	}
	metrics.ClassifierDecisions.WithLabelValues(string(res.Intent), strconv.FormatBool(res.Fallback)).Inc()
	return res
}

func fallback(reason string) Classification {
	return Classification{Intent: FallbackIntent, Fallback: true, Reason: reason}
}

// ParseIntent 解析模型输出，接受 {"classification": "..."} 或裸标签
func ParseIntent(raw string) (Intent, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty classifier output")
	}

	label := s
	if strings.HasPrefix(s, "{") {
		var out struct {
			Classification string `json:"classification"`
		}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return "", fmt.Errorf("unparseable classifier output: %w", err)
		}
		label = out.Classification
	}

	intent := Intent(strings.ToUpper(strings.Trim(strings.TrimSpace(label), `"'.`)))
	if !intent.Valid() {
		return "", fmt.Errorf("invalid classifier label %q", label)
	}
	return intent, nil
}

// StaticClassifier 固定返回某意图，用于关闭分类的部署与测试
type StaticClassifier Intent

func (s StaticClassifier) Classify(context.Context, string, []*entity.ChatMessage) Classification {
	return Classification{Intent: Intent(s)}
}
