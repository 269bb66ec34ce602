package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"insights-gateway/models"
	"net/http"
	"net/url"
)

// OllamaOptions 生成参数
type OllamaOptions struct {
	NumCtx      int     `json:"num_ctx"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type OllamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options OllamaOptions `json:"options"`
	Images  []string      `json:"images,omitempty"`
}

type OllamaGenerateResponse struct {
	Model    string  `json:"model"`
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// DefaultOllamaOptions 本地模型默认参数
var DefaultOllamaOptions = OllamaOptions{
	NumCtx:      16384,
	Temperature: 0.2,
	TopP:        0.9,
}

// OllamaAdapter 本地 Ollama /api/generate 适配器，不需要凭证
type OllamaAdapter struct {
	model   string
	options OllamaOptions
}

func NewOllamaAdapter(model string) *OllamaAdapter {
	return &OllamaAdapter{model: model, options: DefaultOllamaOptions}
}

func (a *OllamaAdapter) Name() string { return "ollama" }

func (a *OllamaAdapter) RequiresKey() bool { return false }

func (a *OllamaAdapter) BuildRequest(req *models.DispatchRequest) ([]byte, error) {
	in, err := splitRequest(req)
	if err != nil {
		return nil, err
	}

	genReq := OllamaGenerateRequest{
		Model:   a.model,
		Prompt:  joinPrompt(in.Prompt, in.Text),
		Stream:  false,
		Options: a.options,
	}
	if in.Image != "" {
		genReq.Images = []string{in.Image}
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request: %v", ErrSerialization, err)
	}
	return body, nil
}

// NewHTTPRequest apiKey 被忽略
func (a *OllamaAdapter) NewHTTPRequest(ctx context.Context, baseURL, _ string, body []byte) (*http.Request, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/generate"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	return req, nil
}

// ExtractText 读取 response 字段
func (a *OllamaAdapter) ExtractText(body []byte) (string, error) {
	var genResp OllamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrMalformedResponse, err)
	}
	if genResp.Response == nil {
		return "", fmt.Errorf("%w: ollama response field missing: %s", ErrMalformedResponse, truncate(body, 200))
	}
	return *genResp.Response, nil
}
