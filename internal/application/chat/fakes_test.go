package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	"rag-chat-api/internal/domain/repository"
	wfmodel "rag-chat-api/internal/workflow/model"
)

type memSessions struct {
	mu     sync.Mutex
	items  map[string]*entity.ChatSession
	locked int
}

func newMemSessions() *memSessions {
	return &memSessions{items: make(map[string]*entity.ChatSession)}
}

func (r *memSessions) Create(_ context.Context, s *entity.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.items[s.ID] = &cp
	return nil
}

func (r *memSessions) GetByID(_ context.Context, userID, id string) (*entity.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *memSessions) GetByIDForUpdate(ctx context.Context, userID, id string) (*entity.ChatSession, error) {
	r.mu.Lock()
	r.locked++
	r.mu.Unlock()
	return r.GetByID(ctx, userID, id)
}

func (r *memSessions) ListByUser(_ context.Context, userID string, p repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ChatSession
	for _, s := range r.items {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return repository.NewPagedResult(out, int64(len(out)), p), nil
}

func (r *memSessions) Touch(_ context.Context, id string, updatedAt time.Time, last *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[id]; ok {
		s.UpdatedAt = updatedAt
		s.LastMessage = last
	}
	return nil
}

func (r *memSessions) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.items[id]; ok && s.UserID == userID {
		delete(r.items, id)
	}
	return nil
}

type memMessages struct {
	mu    sync.Mutex
	items []*entity.ChatMessage
	err   error
}

func (r *memMessages) CreateBatch(_ context.Context, msgs []*entity.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, msgs...)
	return nil
}

func (r *memMessages) ListBySession(_ context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ChatMessage
	for _, m := range r.items {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessages) ListRecent(ctx context.Context, sessionID string, limit int) ([]*entity.ChatMessage, error) {
	all, _ := r.ListBySession(ctx, sessionID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *memMessages) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type stubRetriever struct {
	results []retrieval.Result
	err     error
	calls   int
}

func (s *stubRetriever) Search(context.Context, string, string) ([]retrieval.Result, error) {
	s.calls++
	return s.results, s.err
}

// stubAnswerer 逐条输出 tokens，tailErr 非空时在末尾返回该错误
type stubAnswerer struct {
	tokens  []string
	tailErr error
	openErr error
	last    *wfmodel.AnswerInput
}

func (s *stubAnswerer) Stream(_ context.Context, in *wfmodel.AnswerInput) (*schema.StreamReader[*schema.Message], error) {
	s.last = in
	if s.openErr != nil {
		return nil, s.openErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(s.tokens) + 1)
	go func() {
		defer sw.Close()
		for _, tok := range s.tokens {
			if closed := sw.Send(schema.AssistantMessage(tok, nil), nil); closed {
				return
			}
		}
		if s.tailErr != nil {
			sw.Send(nil, s.tailErr)
		}
	}()
	return sr, nil
}

type recorder struct {
	events []StreamEvent
	// cancelAfterTokens 收到第 n 个 token 后调用 cancel
	cancelAfterTokens int
	cancel            context.CancelFunc
	tokens            int
}

func (r *recorder) emit(ev StreamEvent) error {
	r.events = append(r.events, ev)
	if _, ok := ev.(TokenEvent); ok {
		r.tokens++
		if r.cancel != nil && r.tokens == r.cancelAfterTokens {
			r.cancel()
		}
	}
	return nil
}

// terminalAt 返回所有终止事件的下标
func (r *recorder) terminalAt() []int {
	var out []int
	for i, ev := range r.events {
		if Terminal(ev) {
			out = append(out, i)
		}
	}
	return out
}

func (r *recorder) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type())
	}
	return out
}

type failingLocker struct {
	err error
}

func (f failingLocker) Acquire(context.Context, string, time.Duration, time.Duration) (func(), error) {
	return nil, f.err
}
