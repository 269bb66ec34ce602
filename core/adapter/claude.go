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

const (
	claudeAPIVersion       = "2023-06-01"
	defaultClaudeMaxTokens = 4096
)

// ClaudeAdapter Anthropic Messages API 适配器
type ClaudeAdapter struct {
	model     string
	maxTokens int
}

func NewClaudeAdapter(model string, maxTokens int) *ClaudeAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	return &ClaudeAdapter{model: model, maxTokens: maxTokens}
}

func (a *ClaudeAdapter) Name() string { return "claude" }

func (a *ClaudeAdapter) RequiresKey() bool { return true }

// BuildRequest 提示词放入 system，用户消息携带图片或文本
func (a *ClaudeAdapter) BuildRequest(req *models.DispatchRequest) ([]byte, error) {
	in, err := splitRequest(req)
	if err != nil {
		return nil, err
	}

	var blocks []ClaudeContentBlock
	if in.Image != "" {
		blocks = append(blocks, ClaudeContentBlock{
			Type: "image",
			Source: &ClaudeSource{
				Type:      "base64",
				MediaType: in.MimeType,
				Data:      in.Image,
			},
		})
		// Claude 要求用户消息至少有一个文本块
		describe := "Describe this image."
		blocks = append(blocks, ClaudeContentBlock{Type: "text", Text: &describe})
	} else {
		text := in.Text
		blocks = append(blocks, ClaudeContentBlock{Type: "text", Text: &text})
	}

	claudeReq := ClaudeRequest{
		Model:     a.model,
		System:    in.Prompt,
		MaxTokens: a.maxTokens,
		Messages:  []ClaudeMessage{{Role: "user", Content: blocks}},
	}

	body, err := json.Marshal(claudeReq)
	if err != nil {
		return nil, fmt.Errorf("%w: claude request: %v", ErrSerialization, err)
	}
	return body, nil
}

func (a *ClaudeAdapter) NewHTTPRequest(ctx context.Context, baseURL, apiKey string, body []byte) (*http.Request, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case strings.HasSuffix(path, "/messages"):
	case strings.HasSuffix(path, "/v1"):
		u.Path = path + "/messages"
	default:
		u.Path = path + "/v1/messages"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	setJSONHeaders(req)
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", claudeAPIVersion)
	return req, nil
}

// ExtractText 返回第一个 text 块
func (a *ClaudeAdapter) ExtractText(body []byte) (string, error) {
	var claudeResp ClaudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("%w: claude: %v", ErrMalformedResponse, err)
	}
	for _, block := range claudeResp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: claude response has no text block: %s", ErrMalformedResponse, truncate(body, 200))
}
