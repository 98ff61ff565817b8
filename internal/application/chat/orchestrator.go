package chat

import (
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	wfmodel "rag-chat-api/internal/workflow/model"
	apperrors "rag-chat-api/pkg/errors"
	"rag-chat-api/pkg/logger"
	"rag-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("chat")

// Retriever 用户范围内的语义检索
type Retriever interface {
	Search(ctx context.Context, userID, query string) ([]retrieval.Result, error)
}

// AnswerStreamer 流式生成回答，调用方负责 Close
type AnswerStreamer interface {
	Stream(ctx context.Context, in *wfmodel.AnswerInput) (*schema.StreamReader[*schema.Message], error)
}

// EmitFunc 同步发送事件，返回错误视为客户端已断开
type EmitFunc func(ev StreamEvent) error

type OrchestratorConfig struct {
	Provider     string
	Model        string
	Temperature  *float32
	MaxTokens    *int
	HistoryLimit int
	LockTTL      time.Duration
	LockWait     time.Duration
}

// Orchestrator 驱动一次对话轮次：会话解析、意图分类、按需检索、流式生成、持久化
type Orchestrator struct {
	sessions   *SessionManager
	classifier Classifier
	retriever  Retriever
	answerer   AnswerStreamer
	locker     SessionLocker
	cfg        OrchestratorConfig
}

func NewOrchestrator(
	sessions *SessionManager,
	classifier Classifier,
	retriever Retriever,
	answerer AnswerStreamer,
	locker SessionLocker,
	cfg OrchestratorConfig,
) *Orchestrator {
	if classifier == nil {
		classifier = StaticClassifier(FallbackIntent)
	}
	return &Orchestrator{
		sessions:   sessions,
		classifier: classifier,
		retriever:  retriever,
		answerer:   answerer,
		locker:     locker,
		cfg:        cfg,
	}
}

// TurnInput 一次用户发言
type TurnInput struct {
	UserID    string
	SessionID string
	Message   string
}

// TurnReply 非流式调用的聚合结果
type TurnReply struct {
	SessionID   string
	Message     string
	UsedContext bool
	Sources     []entity.SourceRef
}

type turnState int

const (
	stateInit turnState = iota
	stateSessionEmitted
	stateStreaming
	stateDone
	stateError
	stateCancelled
)

func (s turnState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSessionEmitted:
		return "session_emitted"
	case stateStreaming:
		return "streaming"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// turn 单轮状态；事件只能经由 emit 发出，终止后不再发送任何事件
type turn struct {
	state   turnState
	emitFn  EmitFunc
	failure error

	session     *entity.ChatSession
	user        *entity.ChatMessage
	answer      strings.Builder
	usedContext bool
	sources     []entity.SourceRef
	firstToken  bool
}

func (t *turn) emit(ctx context.Context, ev StreamEvent) bool {
	if t.state >= stateDone {
		return false
	}
	if err := t.emitFn(ev); err != nil {
		logger.Debug(ctx, "stream consumer gone", "error", err.Error())
		t.state = stateCancelled
		return false
	}
	return true
}

// Stream 执行一轮对话并同步发出事件。
// 返回非 nil 错误表示会话解析前失败，此时未发出任何事件，由调用方直接报告。
// 发出 session 事件之后的失败以 error 事件结束，返回 nil。
func (o *Orchestrator) Stream(ctx context.Context, in TurnInput, emit EmitFunc) error {
	_, err := o.run(ctx, in, emit)
	return err
}

// Chat 非流式对话，聚合全部 token
func (o *Orchestrator) Chat(ctx context.Context, in TurnInput) (*TurnReply, error) {
	reply := &TurnReply{}
	t, err := o.run(ctx, in, func(ev StreamEvent) error {
		switch e := ev.(type) {
		case SessionEvent:
			reply.SessionID = e.SessionID
		case TokenEvent:
			reply.Message += e.Content
		case DoneEvent:
			reply.UsedContext = e.UsedContext
			reply.Sources = e.Sources
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch t.state {
	case stateDone:
		return reply, nil
	case stateCancelled:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, context.Canceled
	default:
		return nil, t.failure
	}
}

func (o *Orchestrator) run(ctx context.Context, in TurnInput, emit EmitFunc) (*turn, error) {
	start := time.Now()
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, apperrors.ErrEmptyMessage
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	ctx, span := tracer.Start(ctx, "chat.Turn")
	defer span.End()

	session, created, err := o.sessions.Resolve(ctx, in.UserID, in.SessionID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, session.ID)
	span.SetAttributes(attribute.String("chat.session_id", session.ID), attribute.Bool("chat.session_created", created))

	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, session.ID, o.cfg.LockTTL, o.cfg.LockWait)
		if err != nil {
			if apperrors.IsAppError(err) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, apperrors.Upstream(err, apperrors.CodeServiceUnavailable, "acquire session lock failed")
		}
		defer release()
	}

	t := &turn{state: stateInit, emitFn: emit, session: session}
	t.user = entity.NewUserMessage(session.ID, message)

	defer func() {
		metrics.ChatStreamTotal.WithLabelValues(t.state.String(), strconv.FormatBool(t.usedContext)).Inc()
		span.SetAttributes(attribute.String("chat.state", t.state.String()))
		logger.Info(ctx, "chat turn finished",
			"state", t.state.String(),
			"used_context", t.usedContext,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	if !t.emit(ctx, SessionEvent{SessionID: session.ID}) {
		return t, nil
	}
	t.state = stateSessionEmitted

	o.execute(ctx, t, start)
	return t, nil
}

func (o *Orchestrator) execute(ctx context.Context, t *turn, start time.Time) {
	question := t.user.Content

	history, err := o.sessions.History(ctx, t.session.ID, o.cfg.HistoryLimit)
	if err != nil {
		o.fail(ctx, t, err)
		return
	}
	if o.cancelled(ctx, t) {
		return
	}

	cls := o.classifier.Classify(ctx, question, history)
	if o.cancelled(ctx, t) {
		return
	}

	var results []retrieval.Result
	if cls.Intent.NeedsRetrieval() && o.retriever != nil {
		results, err = o.retriever.Search(ctx, t.session.UserID, question)
		if err != nil {
			if o.cancelled(ctx, t) {
				return
			}
			o.fail(ctx, t, err)
			return
		}
	}
	if o.cancelled(ctx, t) {
		return
	}
	results = retrieval.Usable(results)
	t.usedContext = len(results) > 0
	if t.usedContext {
		t.sources = retrieval.Sources(results)
	}
	logger.Debug(ctx, "chat context prepared", "intent", cls.Intent, "results", len(results))

	if o.answerer == nil {
		o.fail(ctx, t, errGenerationFailed.WithDetail("answer model not configured"))
		return
	}
	reader, err := o.answerer.Stream(ctx, &wfmodel.AnswerInput{
		Provider:    o.cfg.Provider,
		Model:       o.cfg.Model,
		Question:    question,
		Context:     retrieval.ContextOrMarker(results),
		History:     toSchemaHistory(history, o.cfg.HistoryLimit),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		if o.cancelled(ctx, t) {
			return
		}
		o.fail(ctx, t, apperrors.Upstream(err, apperrors.CodeLLMCallFailed, "answer generation failed"))
		return
	}
	defer reader.Close()
	t.state = stateStreaming

	for {
		if o.cancelled(ctx, t) {
			return
		}
		chunk, err := reader.Recv()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if o.cancelled(ctx, t) {
				return
			}
			o.fail(ctx, t, apperrors.Upstream(err, apperrors.CodeLLMCallFailed, "answer generation failed"))
			return
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		if !t.firstToken {
			t.firstToken = true
			metrics.ChatFirstTokenLatency.Observe(time.Since(start).Seconds())
		}
		t.answer.WriteString(chunk.Content)
		if !t.emit(ctx, TokenEvent{Content: chunk.Content}) {
			return
		}
	}
	if o.cancelled(ctx, t) {
		return
	}

	assistant := entity.NewAssistantMessage(t.session.ID, t.answer.String(), t.usedContext, t.sources)
	if err := o.sessions.Append(ctx, t.session, t.user, assistant); err != nil {
		if o.cancelled(ctx, t) {
			return
		}
		// 事务已回滚，不再单独写入用户消息
		t.failure = err
		logger.Error(ctx, "persist chat turn failed", err)
		if t.emit(ctx, ErrorEvent{Message: userMessage(err)}) {
			t.state = stateError
		}
		return
	}

	if t.emit(ctx, DoneEvent{UsedContext: t.usedContext, Sources: t.sources}) {
		t.state = stateDone
	}
}

// cancelled 检查调用方是否已取消；取消后不再发送事件也不持久化
func (o *Orchestrator) cancelled(ctx context.Context, t *turn) bool {
	if t.state == stateCancelled {
		return true
	}
	if ctx.Err() != nil {
		t.state = stateCancelled
		return true
	}
	return false
}

// fail 保留用户消息后以 error 事件结束本轮
func (o *Orchestrator) fail(ctx context.Context, t *turn, err error) {
	t.failure = err
	logger.Error(ctx, "chat turn failed", err)

	if perr := o.sessions.AppendUser(context.WithoutCancel(ctx), t.session, t.user); perr != nil {
		logger.Error(ctx, "persist user message after failure failed", perr)
	}
	t.emit(ctx, ErrorEvent{Message: userMessage(err)})
	if t.state != stateCancelled {
		t.state = stateError
	}
}

func userMessage(err error) string {
	if appErr := apperrors.AsAppError(err); appErr != nil && appErr.Code != apperrors.CodeUnknown {
		return appErr.Message
	}
	return "internal error"
}
