package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chat-api/internal/application/chat"
	"rag-chat-api/internal/domain/entity"
)

func TestEncodeSSE(t *testing.T) {
	tests := []struct {
		name string
		ev   chat.StreamEvent
		want string
	}{
		{
			name: "session",
			ev:   chat.SessionEvent{SessionID: "3f1c"},
			want: `data: {"type":"session","session_id":"3f1c"}` + "\n\n",
		},
		{
			name: "token",
			ev:   chat.TokenEvent{Content: "Hel\"lo"},
			want: `data: {"type":"token","content":"Hel\"lo"}` + "\n\n",
		},
		{
			name: "done with context",
			ev: chat.DoneEvent{UsedContext: true, Sources: []entity.SourceRef{
				{AssetID: "a1", Excerpt: "first"},
			}},
			want: `data: {"type":"done","used_context":true,"sources":[{"asset_id":"a1","excerpt":"first"}]}` + "\n\n",
		},
		{
			name: "done without context omits sources",
			ev:   chat.DoneEvent{UsedContext: false, Sources: []entity.SourceRef{{AssetID: "a1"}}},
			want: `data: {"type":"done","used_context":false}` + "\n\n",
		},
		{
			name: "error",
			ev:   chat.ErrorEvent{Message: "LLM call failed"},
			want: `data: {"type":"error","message":"LLM call failed"}` + "\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeSSE(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestEncodeSSE_KeepsMarkup(t *testing.T) {
	got, err := EncodeSSE(chat.TokenEvent{Content: "a <b> & c"})
	require.NoError(t, err)
	assert.Equal(t, `data: {"type":"token","content":"a <b> & c"}`+"\n\n", string(got))
}
