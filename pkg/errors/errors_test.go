package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{ErrInvalidParam, http.StatusBadRequest},
		{ErrTokenMissing, http.StatusUnauthorized},
		{ErrSessionNotFound, http.StatusNotFound},
		{ErrAssetNotFound, http.StatusNotFound},
		{ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{ErrNoContentExtracted, http.StatusUnprocessableEntity},
		{ErrTooManyRequests, http.StatusTooManyRequests},
		{New(CodeEmbeddingFailed, "x"), http.StatusBadGateway},
		{New(CodeUpstreamTimeout, "x"), http.StatusGatewayTimeout},
		{New(CodeDatabaseError, "x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus)
		})
	}
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	e := ErrInvalidParam.WithDetail("file is empty")
	assert.Equal(t, "file is empty", e.Detail)
	assert.Empty(t, ErrInvalidParam.Detail)
}

func TestUpstreamClassifiesTimeout(t *testing.T) {
	err := Upstream(fmt.Errorf("call: %w", context.DeadlineExceeded), CodeLLMProviderError, "llm call failed")
	assert.Equal(t, CodeUpstreamTimeout, err.Code)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = Upstream(stderrors.New("boom"), CodeLLMProviderError, "llm call failed")
	assert.Equal(t, CodeLLMProviderError, err.Code)
}

func TestCodeHelpers(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrAssetNotFound)
	assert.True(t, IsAppError(wrapped))
	assert.True(t, IsCode(wrapped, CodeAssetNotFound))
	assert.Equal(t, http.StatusNotFound, AsAppError(wrapped).HTTPStatus)
	assert.False(t, IsCode(stderrors.New("plain"), CodeAssetNotFound))

	unknown := AsAppError(stderrors.New("plain"))
	assert.Equal(t, CodeUnknown, unknown.Code)
	assert.Equal(t, http.StatusInternalServerError, unknown.HTTPStatus)
}
