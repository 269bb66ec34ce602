package adapter

import (
	"context"
	"encoding/json"
	"insights-gateway/models"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiAdapter_BuildRequest_Image(t *testing.T) {
	a := NewGeminiAdapter()
	req := models.NewDescribeRequest([]byte{0x89, 0x50, 0x4e, 0x47}, "")

	body, err := a.BuildRequest(req)
	require.NoError(t, err)

	var decoded GeminiRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.Contents, 1)
	parts := decoded.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, req.Prompt, *parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	assert.Equal(t, "iVBORw==", parts[1].InlineData.Data)
}

func TestGeminiAdapter_BuildRequest_Text(t *testing.T) {
	a := NewGeminiAdapter()
	req := models.NewSummarizeRequest(`{"messages":[]}`)

	body, err := a.BuildRequest(req)
	require.NoError(t, err)

	var decoded GeminiRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	parts := decoded.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, `{"messages":[]}`, *parts[1].Text)
	assert.Nil(t, parts[1].InlineData)
}

func TestGeminiAdapter_NewHTTPRequest_KeyInQuery(t *testing.T) {
	a := NewGeminiAdapter()
	httpReq, err := a.NewHTTPRequest(context.Background(),
		"https://example.test/v1beta/models/gemini-2.0-flash:generateContent", "k-123", []byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "k-123", httpReq.URL.Query().Get("key"))
	assert.Equal(t, "application/json", httpReq.Header.Get("Content-Type"))
	assert.Equal(t, "POST", httpReq.Method)
}

func TestGeminiAdapter_ExtractText(t *testing.T) {
	a := NewGeminiAdapter()

	text, err := a.ExtractText([]byte(`{"candidates":[{"content":{"parts":[{"text":"a cat"}]}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a cat", text)

	cases := map[string]string{
		"no candidates": `{"candidates":[]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"null text":     `{"candidates":[{"content":{"parts":[{"text":null}]}}]}`,
		"numeric text":  `{"candidates":[{"content":{"parts":[{"text":42}]}}]}`,
		"not json":      `<html>`,
		"blocked":       `{"promptFeedback":{"blockReason":"SAFETY"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.ExtractText([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestOllamaAdapter_BuildRequest(t *testing.T) {
	a := NewOllamaAdapter("gemma3")
	req := models.NewRegularizeRequest(`{"ShapeId":"s1"}`)

	body, err := a.BuildRequest(req)
	require.NoError(t, err)

	var decoded OllamaGenerateRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "gemma3", decoded.Model)
	assert.False(t, decoded.Stream)
	assert.Equal(t, 16384, decoded.Options.NumCtx)
	assert.Equal(t, 0.2, decoded.Options.Temperature)
	assert.Equal(t, 0.9, decoded.Options.TopP)
	assert.Contains(t, decoded.Prompt, req.Prompt)
	assert.Contains(t, decoded.Prompt, `{"ShapeId":"s1"}`)
	assert.Empty(t, decoded.Images)
}

func TestOllamaAdapter_BuildRequest_Image(t *testing.T) {
	a := NewOllamaAdapter("gemma3")
	body, err := a.BuildRequest(models.NewDescribeRequest([]byte("img"), "image/jpeg"))
	require.NoError(t, err)

	var decoded OllamaGenerateRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, []string{"aW1n"}, decoded.Images)
}

func TestOllamaAdapter_NewHTTPRequest(t *testing.T) {
	a := NewOllamaAdapter("gemma3")
	assert.False(t, a.RequiresKey())

	httpReq, err := a.NewHTTPRequest(context.Background(), "http://localhost:11434", "", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "/api/generate", httpReq.URL.Path)
	assert.Empty(t, httpReq.Header.Get("Authorization"))

	httpReq, err = a.NewHTTPRequest(context.Background(), "http://localhost:11434/api/generate", "", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "/api/generate", httpReq.URL.Path)
}

func TestOllamaAdapter_ExtractText(t *testing.T) {
	a := NewOllamaAdapter("gemma3")

	text, err := a.ExtractText([]byte(`{"model":"gemma3","response":"hello","done":true}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = a.ExtractText([]byte(`{"model":"gemma3","done":true}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = a.ExtractText([]byte(`{"response":["x"]}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestOpenAIAdapter_RoundTrip(t *testing.T) {
	a := NewOpenAIAdapter("gpt-4o-mini")
	body, err := a.BuildRequest(models.NewDescribeRequest([]byte("img"), "image/png"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "gpt-4o-mini", decoded["model"])
	msgs := decoded["messages"].([]interface{})
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]interface{})
	content := user["content"].([]interface{})
	imagePart := content[0].(map[string]interface{})
	assert.Equal(t, "data:image/png;base64,aW1n", imagePart["image_url"].(map[string]interface{})["url"])

	httpReq, err := a.NewHTTPRequest(context.Background(), "https://api.example.test/v1", "sk-abc", body)
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", httpReq.URL.Path)
	assert.Equal(t, "Bearer sk-abc", httpReq.Header.Get("Authorization"))
	sent, _ := io.ReadAll(httpReq.Body)
	assert.JSONEq(t, string(body), string(sent))

	text, err := a.ExtractText([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	_, err = a.ExtractText([]byte(`{"choices":[]}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClaudeAdapter_RoundTrip(t *testing.T) {
	a := NewClaudeAdapter("claude-3-5-haiku-latest", 0)
	req := models.NewActionItemsRequest(json.RawMessage(`[{"user":"a","msg":"ship it"}]`))

	body, err := a.BuildRequest(req)
	require.NoError(t, err)

	var decoded ClaudeRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, req.Prompt, decoded.System)
	assert.Equal(t, defaultClaudeMaxTokens, decoded.MaxTokens)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, `[{"user":"a","msg":"ship it"}]`, *decoded.Messages[0].Content[0].Text)

	httpReq, err := a.NewHTTPRequest(context.Background(), "https://api.anthropic.test", "ak-1", body)
	require.NoError(t, err)
	assert.Equal(t, "/v1/messages", httpReq.URL.Path)
	assert.Equal(t, "ak-1", httpReq.Header.Get("x-api-key"))
	assert.Equal(t, claudeAPIVersion, httpReq.Header.Get("anthropic-version"))

	text, err := a.ExtractText([]byte(`{"content":[{"type":"text","text":"done"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	_, err = a.ExtractText([]byte(`{"content":[]}`))
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestBuildRequest_SerializationErrors(t *testing.T) {
	adapters := []ModelAdapter{
		NewGeminiAdapter(),
		NewOllamaAdapter("gemma3"),
		NewOpenAIAdapter("m"),
		NewClaudeAdapter("m", 0),
	}
	for _, a := range adapters {
		t.Run(a.Name(), func(t *testing.T) {
			_, err := a.BuildRequest(&models.DispatchRequest{ID: "x"})
			assert.ErrorIs(t, err, ErrSerialization)

			_, err = a.BuildRequest(models.NewDescribeRequest(nil, "image/png"))
			assert.ErrorIs(t, err, ErrSerialization)
		})
	}
}
