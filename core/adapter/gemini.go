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

// GeminiAdapter Google Gemini 协议适配器
type GeminiAdapter struct{}

func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) RequiresKey() bool { return true }

// BuildRequest 提示词作为第一个 part，图片以 inlineData 形式追加，否则追加文本
func (a *GeminiAdapter) BuildRequest(req *models.DispatchRequest) ([]byte, error) {
	in, err := splitRequest(req)
	if err != nil {
		return nil, err
	}

	prompt := in.Prompt
	parts := []GeminiPart{{Text: &prompt}}
	if in.Image != "" {
		parts = append(parts, GeminiPart{
			InlineData: &GeminiInlineData{MimeType: in.MimeType, Data: in.Image},
		})
	} else {
		text := in.Text
		parts = append(parts, GeminiPart{Text: &text})
	}

	geminiReq := GeminiRequest{
		Contents: []GeminiContent{{Parts: parts}},
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini request: %v", ErrSerialization, err)
	}
	return body, nil
}

// NewHTTPRequest Gemini 通过 query 参数传递 key
func (a *GeminiAdapter) NewHTTPRequest(ctx context.Context, baseURL, apiKey string, body []byte) (*http.Request, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}

	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	return req, nil
}

// ExtractText 读取 candidates[0].content.parts[0].text
func (a *GeminiAdapter) ExtractText(body []byte) (string, error) {
	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrMalformedResponse, err)
	}

	if len(geminiResp.Candidates) == 0 {
		if fb := geminiResp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return "", fmt.Errorf("%w: gemini blocked prompt (%s)", ErrMalformedResponse, fb.BlockReason)
		}
		return "", fmt.Errorf("%w: gemini returned no candidates: %s", ErrMalformedResponse, truncate(body, 200))
	}

	parts := geminiResp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == nil {
		return "", fmt.Errorf("%w: gemini candidate has no text part", ErrMalformedResponse)
	}
	return *parts[0].Text, nil
}
