// Package handler 实现资产、对话、会话与探活接口
package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const readyTimeout = 2 * time.Second

// Probe 一个依赖的探活函数，Check 为 nil 表示该依赖未启用
type Probe struct {
	Name string
	// Required 为 false 时失败只记为 degraded，不影响就绪态
	Required bool
	Check    func(ctx context.Context) error
}

type HealthHandler struct {
	probes []Probe
}

func NewHealthHandler(probes ...Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

type probeResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readyBody struct {
	Status string                  `json:"status"`
	Checks map[string]*probeResult `json:"checks,omitempty"`
}

// Health GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Live GET /live，进程能响应即存活
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready GET /ready，并发执行所有探针；任一必需依赖失败返回 503
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]*probeResult, len(h.probes))
		ready  = true
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range h.probes {
		g.Go(func() error {
			res := runProbe(gctx, p)
			mu.Lock()
			defer mu.Unlock()
			checks[p.Name] = res
			if res.Status == "error" {
				ready = false
			}
			return nil
		})
	}
	_ = g.Wait()

	if !ready {
		c.JSON(http.StatusServiceUnavailable, readyBody{Status: "not_ready", Checks: checks})
		return
	}
	c.JSON(http.StatusOK, readyBody{Status: "ok", Checks: checks})
}

func runProbe(ctx context.Context, p Probe) *probeResult {
	if p.Check == nil {
		return &probeResult{Status: "disabled"}
	}
	start := time.Now()
	err := p.Check(ctx)
	res := &probeResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	switch {
	case err == nil:
	case p.Required:
		res.Status, res.Error = "error", err.Error()
	default:
		res.Status, res.Error = "degraded", err.Error()
	}
	return res
}
