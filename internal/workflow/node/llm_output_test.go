package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"classification":"GREETING"}`, `{"classification":"GREETING"}`},
		{"fenced", "```json\n{\"classification\": \"DOCUMENT_QUERY\"}\n```", `{"classification": "DOCUMENT_QUERY"}`},
		{"prose around", `Sure! {"classification":"CLARIFICATION"} hope that helps`, `{"classification":"CLARIFICATION"}`},
		{"no object", "  GREETING  ", "GREETING"},
		{"broken", `{"classification": `, `{"classification":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.in))
		})
	}
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("400: 'response_format' is not supported with this model")))
	assert.True(t, IsResponseFormatUnsupportedError(errors.New("Unknown parameter: response.type")))
	assert.False(t, IsResponseFormatUnsupportedError(errors.New("rate limit exceeded")))
	assert.False(t, IsResponseFormatUnsupportedError(nil))
}
