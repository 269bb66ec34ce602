package adapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"insights-gateway/models"
	"net/http"
)

var (
	// ErrSerialization 请求载荷无法编码为后端格式
	ErrSerialization = errors.New("serialization error")
	// ErrMalformedResponse 后端响应缺少预期的文本字段
	ErrMalformedResponse = errors.New("malformed backend response")
)

const userAgent = "Insights-Gateway/1.0"

// ModelAdapter 定义不同 LLM 后端的适配接口
type ModelAdapter interface {
	// Name 返回后端名称，如 "gemini", "ollama"
	Name() string

	// RequiresKey 本地后端不需要凭证
	RequiresKey() bool

	// BuildRequest 将通用请求转换为后端特定的请求体
	BuildRequest(req *models.DispatchRequest) ([]byte, error)

	// NewHTTPRequest 构建 HTTP 请求 (凭证放置位置由后端决定)
	NewHTTPRequest(ctx context.Context, baseURL, apiKey string, body []byte) (*http.Request, error)

	// ExtractText 从后端响应体中提取文本
	ExtractText(body []byte) (string, error)
}

// requestInput 拆分后的请求输入
type requestInput struct {
	Prompt   string
	Text     string
	Image    string // base64
	MimeType string
}

// splitRequest 按载荷类型拆分请求，未知载荷视为序列化错误
func splitRequest(req *models.DispatchRequest) (*requestInput, error) {
	if req == nil || req.Payload == nil {
		return nil, fmt.Errorf("%w: request has no payload", ErrSerialization)
	}

	in := &requestInput{Prompt: req.Prompt}
	switch p := req.Payload.(type) {
	case models.DescribePayload:
		if len(p.Image) == 0 {
			return nil, fmt.Errorf("%w: empty image payload", ErrSerialization)
		}
		in.Image = base64.StdEncoding.EncodeToString(p.Image)
		in.MimeType = p.MimeType
		if in.MimeType == "" {
			in.MimeType = "image/png"
		}
	case models.RegularizePayload, models.InsightsPayload, models.SummarizePayload,
		models.ActionItemsPayload, models.QuestionPayload:
		in.Text = req.TextData()
	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrSerialization, p)
	}
	return in, nil
}

// joinPrompt 合并提示词和文本输入
func joinPrompt(prompt, text string) string {
	if text == "" {
		return prompt
	}
	if prompt == "" {
		return text
	}
	return prompt + "\n\n" + text
}

func setJSONHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// truncate 截断过长的响应内容用于错误信息
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
