package adapter

// Claude Request Structures

type ClaudeRequest struct {
	Model       string          `json:"model"`
	Messages    []ClaudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature,omitempty"`
}

type ClaudeMessage struct {
	Role    string               `json:"role"` // "user" or "assistant"
	Content []ClaudeContentBlock `json:"content"`
}

type ClaudeContentBlock struct {
	Type   string        `json:"type"`             // "text", "image"
	Text   *string       `json:"text,omitempty"`   // for "text"
	Source *ClaudeSource `json:"source,omitempty"` // for "image"
}

type ClaudeSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Claude Response Structures

type ClaudeResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"` // "message"
	Role       string               `json:"role"`
	Content    []ClaudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason *string              `json:"stop_reason"`
	Usage      ClaudeUsage          `json:"usage"`
}

type ClaudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
