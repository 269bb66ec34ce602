package core

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient 创建后端 HTTP Client
// 连接超时由 Dialer 控制，单次请求的总超时由调度器的 Request Context 控制
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: 0,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   connectTimeout,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
