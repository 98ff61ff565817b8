package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-chat-api/pkg/logger"
)

// RequestIDHeader 请求 ID 头，客户端可自带以串联上传与对话请求
const RequestIDHeader = "X-Request-ID"

// RequestID 注入请求 ID 到 gin、日志 context 与响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Trace otelgin 追踪，探针与指标路径不产生 span
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !isProbePath(r.URL.Path)
	}))
}

// TraceContext 把 trace/span id 写入日志 context，并给 span 标注请求 ID
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		sc := span.SpanContext()
		if !sc.IsValid() {
			c.Next()
			return
		}
		traceID := sc.TraceID().String()
		c.Set("trace_id", traceID)
		if rid := c.GetString("request_id"); rid != "" {
			span.SetAttributes(attribute.String("http.request_id", rid))
		}

		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		if uid := c.GetString(UserIDKey); uid != "" {
			span.SetAttributes(attribute.String("enduser.id", uid))
		}
	}
}

func isProbePath(path string) bool {
	for _, p := range DefaultSkipPaths {
		if path == p {
			return true
		}
	}
	return false
}
