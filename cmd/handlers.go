package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"insights-gateway/core"
	"insights-gateway/core/adapter"
	"insights-gateway/core/parser"
	"insights-gateway/models"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	gatewayName   = "Insights Gateway"
	maxImageBytes = 20 << 20
)

// statsSource 后端统计来源 (AsyncDispatchLogger 实现)
type statsSource interface {
	Stats() ([]models.BackendStats, error)
}

type gatewayHandler struct {
	service      *core.InsightsService
	orchestrator *core.FailoverOrchestrator
	stats        statsSource
	log          *logrus.Logger
}

// newRouter 设置路由
// /v1 和 /admin 需要网关令牌并按 IP 限流，健康检查公开
func newRouter(h *gatewayHandler, token string, limiter *clientLimiter) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.RecoveryWithWriter(h.log.Writer()))
	engine.Use(corsMiddleware())

	engine.GET("/health", h.handleHealth)

	v1 := engine.Group("/v1")
	v1.Use(requestLoggerMiddleware(h.log), rateLimitMiddleware(limiter, h.log), tokenAuthMiddleware(token))
	{
		v1.POST("/describe", h.handleDescribe)
		v1.POST("/regularize", h.handleRegularize)
		v1.POST("/insights", h.handleInsights)
		v1.POST("/action-items", h.handleActionItems)
		v1.POST("/summarize", h.handleSummarize)
		v1.DELETE("/summary", h.handleClearSummary)
		v1.POST("/question", h.handleQuestion)
	}

	admin := engine.Group("/admin")
	admin.Use(rateLimitMiddleware(limiter, h.log), tokenAuthMiddleware(token))
	{
		admin.GET("/stats", h.handleStats)
	}

	return engine
}

// handleHealth 处理健康检查
func (h *gatewayHandler) handleHealth(c *gin.Context) {
	c.JSON(200, models.HealthResponse{
		Status:        "healthy",
		Gateway:       gatewayName,
		Backends:      h.orchestrator.Backends(),
		ActiveBackend: h.orchestrator.ActiveBackend(),
		Timestamp:     time.Now().Unix(),
	})
}

// handleDescribe 支持 multipart 上传 (image 字段) 或 JSON base64
func (h *gatewayHandler) handleDescribe(c *gin.Context) {
	var (
		image    []byte
		mimeType string
	)

	if c.ContentType() == "multipart/form-data" {
		file, err := c.FormFile("image")
		if err != nil {
			h.badRequest(c, "multipart field 'image' is required")
			return
		}
		if file.Size > maxImageBytes {
			h.writeError(c, core.ErrInvalidInput)
			return
		}
		f, err := file.Open()
		if err != nil {
			h.writeError(c, core.ErrInvalidInput)
			return
		}
		defer f.Close()
		if image, err = io.ReadAll(f); err != nil {
			h.writeError(c, core.ErrInvalidInput)
			return
		}
		mimeType = file.Header.Get("Content-Type")
		if mimeType == "application/octet-stream" {
			mimeType = ""
		}
	} else {
		var req models.DescribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "Invalid request: "+err.Error())
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			h.badRequest(c, "image_base64 is not valid base64")
			return
		}
		image, mimeType = decoded, req.MimeType
	}

	result, err := h.service.Describe(c.Request.Context(), image, mimeType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Image described", result))
}

func (h *gatewayHandler) handleRegularize(c *gin.Context) {
	var req models.RegularizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	shape, err := h.service.Regularize(c.Request.Context(), rawText(req.Shape))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Shape regularized", json.RawMessage(shape)))
}

func (h *gatewayHandler) handleInsights(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	points, err := h.service.Sentiment(c.Request.Context(), req.Chat)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Sentiment analysed", points))
}

func (h *gatewayHandler) handleActionItems(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.service.ActionItems(c.Request.Context(), req.Chat)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Action items extracted", result))
}

func (h *gatewayHandler) handleSummarize(c *gin.Context) {
	var req models.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.service.Summarize(c.Request.Context(), rawText(req.Content))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Summary updated", result))
}

func (h *gatewayHandler) handleClearSummary(c *gin.Context) {
	h.service.ClearSummary()
	c.JSON(200, models.NewSuccessResponse("Summary cleared successfully", nil))
}

func (h *gatewayHandler) handleQuestion(c *gin.Context) {
	var req models.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.service.AnswerQuestion(c.Request.Context(), req.Question)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(200, models.NewSuccessResponse("Question answered", result))
}

// handleStats 后端统计 + 当前活跃后端
func (h *gatewayHandler) handleStats(c *gin.Context) {
	resp := models.StatsResponse{
		ActiveBackend: h.orchestrator.ActiveBackend(),
		ActiveIndex:   h.orchestrator.ActiveIndex(),
		Backends:      []models.BackendStatsView{},
		Timestamp:     time.Now().Unix(),
	}

	if h.stats != nil {
		stats, err := h.stats.Stats()
		if err != nil {
			h.log.Errorf("Failed to load backend stats: %v", err)
			c.JSON(500, models.NewErrorResponse("Failed to load stats", "api_error"))
			return
		}
		for _, s := range stats {
			resp.Backends = append(resp.Backends, models.BackendStatsView{
				Backend:      s.Backend,
				Success:      s.Success,
				RateLimited:  s.RateLimited,
				Error:        s.Error,
				AvgLatency:   s.AvgLatency(),
				RequestCount: s.RequestCount,
			})
		}
	}
	c.JSON(200, resp)
}

func (h *gatewayHandler) badRequest(c *gin.Context, message string) {
	c.JSON(400, models.NewErrorResponse(message, "invalid_request_error"))
}

// writeError 将调度错误映射为 HTTP 状态码
func (h *gatewayHandler) writeError(c *gin.Context, err error) {
	status, errType := errorStatus(err)
	if status >= 500 {
		h.log.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, models.NewErrorResponse(err.Error(), errType))
}

func errorStatus(err error) (int, string) {
	var backendErr *core.BackendError
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, adapter.ErrSerialization),
		errors.Is(err, parser.ErrInvalidShape):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, core.ErrQueueFull):
		return http.StatusTooManyRequests, "rate_limit_error"
	case errors.Is(err, core.ErrAllBackendsFailed),
		errors.Is(err, core.ErrBackendExhausted),
		errors.Is(err, core.ErrExecutorClosed):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, core.ErrTimedOut),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout_error"
	case errors.As(err, &backendErr),
		errors.Is(err, core.ErrUpstreamUnreachable),
		errors.Is(err, adapter.ErrMalformedResponse),
		errors.Is(err, parser.ErrInvalidInsights):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

// rawText JSON 字符串取其值，其它 JSON 原样作为文本
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
