package main

import (
	"crypto/subtle"
	"insights-gateway/config"
	"insights-gateway/models"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// requestLoggerMiddleware 请求日志中间件，只记录错误和非成功状态码
func requestLoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    statusCode,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}

		entry := log.WithFields(fields)
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Debug("Request processed")
		}
	}
}

// corsMiddleware CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// tokenAuthMiddleware 网关令牌鉴权，token 为空时不启用
// 支持 Authorization: Bearer、x-api-key 和 ?token= 三种方式
func tokenAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		var provided string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			provided = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if provided == "" {
			provided = c.GetHeader("x-api-key")
		}
		if provided == "" {
			provided = c.Query("token")
		}

		if provided == "" {
			c.AbortWithStatusJSON(401, models.NewErrorResponse("Missing authentication token", "authentication_error"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(401, models.NewErrorResponse("Invalid authentication token", "authentication_error"))
			return
		}

		c.Next()
	}
}

const (
	limiterSweepInterval = time.Minute
	limiterIdleTTL       = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter 按客户端 IP 限流，空闲超过 limiterIdleTTL 的 IP 定期清理
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	done     chan struct{}
}

func newClientLimiter(cfg *config.Config) *clientLimiter {
	l := &clientLimiter{
		limit:    rate.Limit(cfg.RateLimitRPS),
		burst:    cfg.RateLimitBurst,
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// allow 消耗该 IP 的一个令牌
func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()

	return v.limiter.Allow()
}

func (l *clientLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, ip)
		}
	}
}

func (l *clientLimiter) sweepLoop() {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.sweep(now)
		case <-l.done:
			return
		}
	}
}

func (l *clientLimiter) close() {
	close(l.done)
}

// rateLimitMiddleware IP 限流中间件
func rateLimitMiddleware(limiter *clientLimiter, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.allow(clientIP) {
			log.Warnf("Rate limit exceeded for IP: %s", clientIP)
			c.AbortWithStatusJSON(429, models.NewErrorResponse("Too Many Requests", "rate_limit_error"))
			return
		}

		c.Next()
	}
}
