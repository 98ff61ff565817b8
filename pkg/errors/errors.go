// Package errors 定义带错误码的 AppError 及其 HTTP 状态映射
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 对外暴露的错误码，按首位数字分组
type ErrorCode string

const (
	// 1xxx 请求与通用错误
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeUnauthorized       ErrorCode = "1002"
	CodeForbidden          ErrorCode = "1003"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 2xxx 令牌
	CodeTokenExpired ErrorCode = "2001"
	CodeTokenInvalid ErrorCode = "2002"
	CodeTokenMissing ErrorCode = "2003"

	// 3xxx 资源不存在
	CodeSessionNotFound ErrorCode = "3005"
	CodeAssetNotFound   ErrorCode = "3006"

	// 4xxx 对话与摄取
	CodeGenerationFailed   ErrorCode = "4001"
	CodeRetrievalFailed    ErrorCode = "4003"
	CodeLLMCallFailed      ErrorCode = "4005"
	CodeEmbeddingFailed    ErrorCode = "4006"
	CodeUnsupportedType    ErrorCode = "4101"
	CodeNoContentExtracted ErrorCode = "4102"
	CodeOCRFailed          ErrorCode = "4103"
	CodeExtractionFailed   ErrorCode = "4104"

	// 5xxx 依赖
	CodeDatabaseError     ErrorCode = "5001"
	CodeVectorDBError     ErrorCode = "5003"
	CodeStorageError      ErrorCode = "5004"
	CodeLLMProviderError  ErrorCode = "5005"
	CodeUpstreamTimeout   ErrorCode = "5006"
	CodeInconsistentState ErrorCode = "5007"
)

var statusByCode = map[ErrorCode]int{
	CodeInvalidParam:       http.StatusBadRequest,
	CodeUnsupportedType:    http.StatusUnsupportedMediaType,
	CodeNoContentExtracted: http.StatusUnprocessableEntity,
	CodeExtractionFailed:   http.StatusUnprocessableEntity,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeTokenExpired:       http.StatusUnauthorized,
	CodeTokenInvalid:       http.StatusUnauthorized,
	CodeTokenMissing:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeSessionNotFound:    http.StatusNotFound,
	CodeAssetNotFound:      http.StatusNotFound,
	CodeConflict:           http.StatusConflict,
	CodeTooManyRequests:    http.StatusTooManyRequests,
	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeUpstreamTimeout:    http.StatusGatewayTimeout,
	CodeLLMCallFailed:      http.StatusBadGateway,
	CodeEmbeddingFailed:    http.StatusBadGateway,
	CodeOCRFailed:          http.StatusBadGateway,
	CodeVectorDBError:      http.StatusBadGateway,
	CodeStorageError:       http.StatusBadGateway,
	CodeLLMProviderError:   http.StatusBadGateway,
	CodeRetrievalFailed:    http.StatusBadGateway,
}

// HTTPStatusOf 未登记的错误码一律 500
func HTTPStatusOf(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError 对外返回 Code/Message/Detail，Err 只进日志
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail 返回副本，包级预定义错误保持不变
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

func (e *AppError) WithError(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: HTTPStatusOf(code)}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: HTTPStatusOf(code), Err: err}
}

// Upstream 包装外部依赖调用错误，超时单独归为 504
func Upstream(err error, code ErrorCode, message string) *AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeUpstreamTimeout, message+": timeout")
	}
	return Wrap(err, code, message)
}

var (
	ErrInvalidParam    = New(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized    = New(CodeUnauthorized, "unauthorized")
	ErrNotFound        = New(CodeNotFound, "resource not found")
	ErrTooManyRequests = New(CodeTooManyRequests, "too many requests")
	ErrInternalError   = New(CodeInternalError, "internal server error")

	ErrTokenExpired = New(CodeTokenExpired, "token expired")
	ErrTokenInvalid = New(CodeTokenInvalid, "token invalid")
	ErrTokenMissing = New(CodeTokenMissing, "token missing")

	ErrSessionNotFound = New(CodeSessionNotFound, "session not found")
	ErrAssetNotFound   = New(CodeAssetNotFound, "asset not found")

	ErrUnsupportedType    = New(CodeUnsupportedType, "unsupported file type")
	ErrNoContentExtracted = New(CodeNoContentExtracted, "no content could be extracted")
	ErrEmptyMessage       = New(CodeInvalidParam, "message must not be empty")
	ErrInconsistentState  = New(CodeInconsistentState, "inconsistent state")
)

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 非 AppError 包装为 CodeUnknown
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
