package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/application/retrieval"
	"rag-chat-api/internal/domain/entity"
	apperrors "rag-chat-api/pkg/errors"
)

type harness struct {
	sessions  *memSessions
	messages  *memMessages
	retriever *stubRetriever
	answerer  *stubAnswerer
	orch      *Orchestrator
}

// requireSingleTerminal 断言恰有一个终止事件且位于末尾
func requireSingleTerminal(t *testing.T, rec *recorder) {
	t.Helper()
	require.NotEmpty(t, rec.events)
	assert.Equal(t, []int{len(rec.events) - 1}, rec.terminalAt())
}

func newHarness(intent Intent) *harness {
	h := &harness{
		sessions:  newMemSessions(),
		messages:  &memMessages{},
		retriever: &stubRetriever{},
		answerer:  &stubAnswerer{tokens: []string{"Hel", "lo", "!"}},
	}
	mgr := NewSessionManager(h.sessions, h.messages, nil)
	h.orch = NewOrchestrator(mgr, StaticClassifier(intent), h.retriever, h.answerer, NewLocalLocker(), OrchestratorConfig{
		HistoryLimit: 10,
		LockWait:     time.Second,
	})
	return h
}

func TestStream_GreetingSkipsRetrieval(t *testing.T) {
	h := newHarness(IntentGreeting)
	rec := &recorder{}

	err := h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hi"}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventSession, EventToken, EventToken, EventToken, EventDone}, rec.types())
	requireSingleTerminal(t, rec)
	assert.Equal(t, 0, h.retriever.calls)

	done := rec.events[len(rec.events)-1].(DoneEvent)
	assert.False(t, done.UsedContext)
	assert.Empty(t, done.Sources)
	assert.Equal(t, retrieval.NoContextMarker, h.answerer.last.Context)

	require.Equal(t, 2, h.messages.count())
	assistant := h.messages.items[1]
	assert.Equal(t, entity.RoleAssistant, assistant.Role)
	assert.Equal(t, "Hello!", assistant.Content)
	assert.True(t, assistant.CreatedAt.After(h.messages.items[0].CreatedAt))
}

func TestStream_DocumentQueryWithoutResults(t *testing.T) {
	h := newHarness(IntentDocumentQuery)
	h.retriever.results = []retrieval.Result{}
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "what does the contract say?"}, rec.emit))

	assert.Equal(t, 1, h.retriever.calls)
	assert.Equal(t, retrieval.NoContextMarker, h.answerer.last.Context)
	done := rec.events[len(rec.events)-1].(DoneEvent)
	assert.False(t, done.UsedContext)
	assert.Nil(t, done.Sources)
	assert.False(t, h.messages.items[1].UsedContext)
}

func TestStream_DocumentQueryWithResults(t *testing.T) {
	h := newHarness(IntentClarification)
	now := time.Now()
	for i := 0; i < 5; i++ {
		h.retriever.results = append(h.retriever.results, retrieval.Result{
			ChunkID:   "c" + string(rune('0'+i)),
			AssetID:   "a1",
			AssetKind: entity.AssetKindPDF,
			Text:      strings.Repeat("x", 150),
			Score:     0.9,
			CreatedAt: now,
		})
	}
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "which clause?"}, rec.emit))

	done := rec.events[len(rec.events)-1].(DoneEvent)
	assert.True(t, done.UsedContext)
	require.Len(t, done.Sources, 3)
	assert.Equal(t, 100, len([]rune(done.Sources[0].Excerpt)))
	assert.Contains(t, h.answerer.last.Context, "[Document 1 - PDF]")

	stored := h.messages.items[1]
	assert.True(t, stored.UsedContext)
	assert.Len(t, stored.Sources, 3)
}

func TestStream_BlankResultsDoNotCountAsContext(t *testing.T) {
	h := newHarness(IntentDocumentQuery)
	h.retriever.results = []retrieval.Result{
		{ChunkID: "c1", AssetID: "a1", AssetKind: entity.AssetKindPDF, Text: "   "},
		{ChunkID: "c2", AssetID: "a2", AssetKind: entity.AssetKindPDF, Text: ""},
	}
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "what does it say?"}, rec.emit))

	assert.Equal(t, retrieval.NoContextMarker, h.answerer.last.Context)
	done := rec.events[len(rec.events)-1].(DoneEvent)
	assert.False(t, done.UsedContext)
	assert.Empty(t, done.Sources)
	assert.False(t, h.messages.items[1].UsedContext)
}

func TestStream_SourcesSkipBlankResults(t *testing.T) {
	h := newHarness(IntentDocumentQuery)
	h.retriever.results = []retrieval.Result{
		{ChunkID: "c1", AssetID: "blank", AssetKind: entity.AssetKindPDF, Text: " "},
		{ChunkID: "c2", AssetID: "a2", AssetKind: entity.AssetKindDOCX, Text: "clause 7"},
	}
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "which clause?"}, rec.emit))

	done := rec.events[len(rec.events)-1].(DoneEvent)
	assert.True(t, done.UsedContext)
	require.Len(t, done.Sources, 1)
	assert.Equal(t, "a2", done.Sources[0].AssetID)
	assert.True(t, strings.HasPrefix(h.answerer.last.Context, "[Document 1 - DOCX]\nclause 7"))
}

func TestStream_PersistFailureEndsWithError(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.messages.err = errors.New("disk full")
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hello"}, rec.emit))

	assert.Equal(t, []EventType{EventSession, EventToken, EventToken, EventToken, EventError}, rec.types())
	requireSingleTerminal(t, rec)
	assert.NotEmpty(t, rec.events[len(rec.events)-1].(ErrorEvent).Message)
	assert.Equal(t, 0, h.messages.count())
}

func TestStream_PersistFailureWithGoneConsumerStaysCancelled(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.messages.err = errors.New("disk full")
	emit := func(ev StreamEvent) error {
		if _, ok := ev.(ErrorEvent); ok {
			return errors.New("broken pipe")
		}
		return nil
	}

	tr, err := h.orch.run(context.Background(), TurnInput{UserID: "u1", Message: "hello"}, emit)
	require.NoError(t, err)
	assert.Equal(t, stateCancelled, tr.state)
}

func TestStream_LockBackendErrorIsUpstream(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.orch.locker = failingLocker{err: errors.New("dial tcp: connection refused")}
	rec := &recorder{}

	err := h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hi"}, rec.emit)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeServiceUnavailable))
	assert.False(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Empty(t, rec.events)
}

func TestStream_LockBusyIsConflict(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.orch.locker = failingLocker{err: ErrSessionBusy}

	err := h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hi"}, (&recorder{}).emit)

	assert.ErrorIs(t, err, ErrSessionBusy)
}

func TestStream_CancellationEmitsNothingFurther(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.answerer.tokens = []string{"a", "b", "c", "d"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{cancel: cancel, cancelAfterTokens: 2}

	require.NoError(t, h.orch.Stream(ctx, TurnInput{UserID: "u1", Message: "hello"}, rec.emit))

	assert.Equal(t, []EventType{EventSession, EventToken, EventToken}, rec.types())
	assert.Empty(t, rec.terminalAt())
	assert.Equal(t, 0, h.messages.count())
}

func TestStream_UpstreamErrorKeepsUserMessage(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.answerer.tokens = []string{"par"}
	h.answerer.tailErr = errors.New("connection reset")
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hello"}, rec.emit))

	assert.Equal(t, []EventType{EventSession, EventToken, EventError}, rec.types())
	requireSingleTerminal(t, rec)
	assert.NotEmpty(t, rec.events[2].(ErrorEvent).Message)

	require.Equal(t, 1, h.messages.count())
	assert.Equal(t, entity.RoleUser, h.messages.items[0].Role)
	assert.Equal(t, "hello", h.messages.items[0].Content)
}

func TestStream_RetrievalFailureEndsWithError(t *testing.T) {
	h := newHarness(IntentDocumentQuery)
	h.retriever.err = apperrors.Wrap(errors.New("down"), apperrors.CodeVectorDBError, "vector search failed")
	rec := &recorder{}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "find it"}, rec.emit))

	assert.Equal(t, []EventType{EventSession, EventError}, rec.types())
	requireSingleTerminal(t, rec)
	assert.Equal(t, "vector search failed", rec.events[1].(ErrorEvent).Message)
	assert.Nil(t, h.answerer.last)
}

func TestStream_ForeignSessionIsNotFound(t *testing.T) {
	h := newHarness(IntentGreeting)
	owner := &recorder{}
	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "alice", Message: "hi"}, owner.emit))
	sessionID := owner.events[0].(SessionEvent).SessionID

	intruder := &recorder{}
	err := h.orch.Stream(context.Background(), TurnInput{UserID: "bob", SessionID: sessionID, Message: "hi"}, intruder.emit)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionNotFound))
	assert.Empty(t, intruder.events)
}

func TestStream_ContinuesExistingSession(t *testing.T) {
	h := newHarness(IntentGreeting)
	first := &recorder{}
	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hi"}, first.emit))
	sessionID := first.events[0].(SessionEvent).SessionID

	second := &recorder{}
	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", SessionID: sessionID, Message: "again"}, second.emit))

	assert.Equal(t, sessionID, second.events[0].(SessionEvent).SessionID)
	assert.Len(t, h.answerer.last.History, 2)
	assert.Equal(t, 4, h.messages.count())
}

func TestStream_EmptyMessageRejected(t *testing.T) {
	h := newHarness(IntentGreeting)
	rec := &recorder{}

	err := h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "   "}, rec.emit)

	assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
	assert.Empty(t, rec.events)
	assert.Empty(t, h.sessions.items)
}

func TestStream_ConsumerGoneStopsTurn(t *testing.T) {
	h := newHarness(IntentGreeting)
	calls := 0
	emit := func(ev StreamEvent) error {
		calls++
		if _, ok := ev.(TokenEvent); ok {
			return errors.New("broken pipe")
		}
		return nil
	}

	require.NoError(t, h.orch.Stream(context.Background(), TurnInput{UserID: "u1", Message: "hi"}, emit))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, h.messages.count())
}

func TestChat_AggregatesTokens(t *testing.T) {
	h := newHarness(IntentGreeting)

	reply, err := h.orch.Chat(context.Background(), TurnInput{UserID: "u1", Message: "hi"})
	require.NoError(t, err)

	assert.NotEmpty(t, reply.SessionID)
	assert.Equal(t, "Hello!", reply.Message)
	assert.False(t, reply.UsedContext)
}

func TestChat_ReturnsTurnFailure(t *testing.T) {
	h := newHarness(IntentGreeting)
	h.answerer.openErr = context.DeadlineExceeded

	_, err := h.orch.Chat(context.Background(), TurnInput{UserID: "u1", Message: "hi"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamTimeout))
}
