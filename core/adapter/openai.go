package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"insights-gateway/models"
	"net/http"
	"net/url"
	"strings"
)

// OpenAIAdapter OpenAI 兼容协议 (Chat Completions)
type OpenAIAdapter struct {
	model string
}

func NewOpenAIAdapter(model string) *OpenAIAdapter {
	return &OpenAIAdapter{model: model}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) RequiresKey() bool { return true }

// BuildRequest 提示词作为 system 消息，图片以 data URL 传递
func (a *OpenAIAdapter) BuildRequest(req *models.DispatchRequest) ([]byte, error) {
	in, err := splitRequest(req)
	if err != nil {
		return nil, err
	}

	var user ChatMessage
	if in.Image != "" {
		user = ChatMessage{
			Role: "user",
			Content: []ChatContentPart{{
				Type:     "image_url",
				ImageURL: &ChatImageURL{URL: "data:" + in.MimeType + ";base64," + in.Image},
			}},
		}
	} else {
		user = ChatMessage{Role: "user", Content: in.Text}
	}

	chatReq := ChatCompletionRequest{
		Model: a.model,
		Messages: []ChatMessage{
			{Role: "system", Content: in.Prompt},
			user,
		},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", ErrSerialization, err)
	}
	return body, nil
}

func (a *OpenAIAdapter) NewHTTPRequest(ctx context.Context, baseURL, apiKey string, body []byte) (*http.Request, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}

	// 只给形如 base URL 的地址补全 /chat/completions
	path := u.Path
	if !strings.Contains(path, "/chat/completions") {
		if path == "" || path == "/" || strings.HasSuffix(path, "/v1") || strings.HasSuffix(path, "/v1/") {
			u.Path = strings.TrimSuffix(path, "/") + "/chat/completions"
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return req, nil
}

// ExtractText 读取 choices[0].message.content
func (a *OpenAIAdapter) ExtractText(body []byte) (string, error) {
	var chatResp ChatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrMalformedResponse, err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: openai response has no message content", ErrMalformedResponse)
	}
	return *chatResp.Choices[0].Message.Content, nil
}
