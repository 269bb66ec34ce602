package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RequestKind 请求类型 (封闭枚举)
type RequestKind int

const (
	KindDescribe RequestKind = iota + 1
	KindRegularize
	KindInsights
	KindSummarize
	KindActionItems
	KindQuestionAnswer
)

var kindNames = map[RequestKind]string{
	KindDescribe:       "DESCRIBE",
	KindRegularize:     "REGULARIZE",
	KindInsights:       "INSIGHTS",
	KindSummarize:      "SUMMARIZE",
	KindActionItems:    "ACTION_ITEMS",
	KindQuestionAnswer: "QUESTION_ANSWER",
}

func (k RequestKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RequestKind(%d)", int(k))
}

// MarshalText 以名称形式序列化 (DESCRIBE 等)
func (k RequestKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RequestKind) UnmarshalText(text []byte) error {
	kind, err := ParseRequestKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseRequestKind 解析请求类型名称 (大小写不敏感)
func ParseRequestKind(s string) (RequestKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for kind, name := range kindNames {
		if name == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown request kind %q", s)
}

// Payload 每种请求类型对应一个载荷类型，接口通过未导出方法封闭
type Payload interface {
	Kind() RequestKind
	textData() string
}

// DescribePayload 图片描述
type DescribePayload struct {
	Image    []byte
	MimeType string
}

func (DescribePayload) Kind() RequestKind { return KindDescribe }
func (DescribePayload) textData() string { return "" }

// RegularizePayload 手绘图形规整，Shape 为带元数据的 JSON
type RegularizePayload struct {
	Shape string
}

func (RegularizePayload) Kind() RequestKind { return KindRegularize }
func (p RegularizePayload) textData() string { return p.Shape }

// InsightsPayload 聊天情感分析
type InsightsPayload struct {
	Chat json.RawMessage
}

func (InsightsPayload) Kind() RequestKind { return KindInsights }
func (p InsightsPayload) textData() string { return string(p.Chat) }

// SummarizePayload 聊天摘要
type SummarizePayload struct {
	Content string
}

func (SummarizePayload) Kind() RequestKind { return KindSummarize }
func (p SummarizePayload) textData() string { return p.Content }

// ActionItemsPayload 行动项提取
type ActionItemsPayload struct {
	Chat json.RawMessage
}

func (ActionItemsPayload) Kind() RequestKind { return KindActionItems }
func (p ActionItemsPayload) textData() string { return string(p.Chat) }

// QuestionPayload 基于累计摘要的问答
type QuestionPayload struct {
	Question string
	Summary  string
}

func (QuestionPayload) Kind() RequestKind { return KindQuestionAnswer }
func (p QuestionPayload) textData() string {
	return "ACCUMULATED_CONTEXT:\n" + p.Summary + "\n\nUSER_QUESTION: " + p.Question
}

// DispatchRequest 调度请求，创建后不可变
type DispatchRequest struct {
	ID      string
	Payload Payload
	Prompt  string
}

// NewRequestID 生成请求ID
func NewRequestID() string {
	return uuid.NewString()
}

func newRequest(p Payload) *DispatchRequest {
	return &DispatchRequest{
		ID:      NewRequestID(),
		Payload: p,
		Prompt:  DefaultPrompt(p.Kind()),
	}
}

func NewDescribeRequest(image []byte, mimeType string) *DispatchRequest {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return newRequest(DescribePayload{Image: image, MimeType: mimeType})
}

func NewRegularizeRequest(shape string) *DispatchRequest {
	return newRequest(RegularizePayload{Shape: shape})
}

func NewInsightsRequest(chat json.RawMessage) *DispatchRequest {
	return newRequest(InsightsPayload{Chat: chat})
}

func NewSummarizeRequest(content string) *DispatchRequest {
	return newRequest(SummarizePayload{Content: content})
}

func NewActionItemsRequest(chat json.RawMessage) *DispatchRequest {
	return newRequest(ActionItemsPayload{Chat: chat})
}

func NewQuestionRequest(question, summary string) *DispatchRequest {
	return newRequest(QuestionPayload{Question: question, Summary: summary})
}

// WithPrompt 返回替换了提示词的副本
func (r *DispatchRequest) WithPrompt(prompt string) *DispatchRequest {
	cp := *r
	cp.Prompt = prompt
	return &cp
}

// Kind 请求类型由载荷决定
func (r *DispatchRequest) Kind() RequestKind {
	if r.Payload == nil {
		return 0
	}
	return r.Payload.Kind()
}

// TextData 返回文本输入，图片请求为空
func (r *DispatchRequest) TextData() string {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.textData()
}

// ImageData 返回图片输入
func (r *DispatchRequest) ImageData() (data []byte, mimeType string, ok bool) {
	if p, isImage := r.Payload.(DescribePayload); isImage {
		return p.Image, p.MimeType, true
	}
	return nil, "", false
}

// DispatchResult 调度结果，Kind 始终与请求类型一致
type DispatchResult struct {
	Kind     RequestKind `json:"kind"`
	Text     string      `json:"text"`
	Backend  string      `json:"backend,omitempty"`
	TimedOut bool        `json:"timed_out,omitempty"`
}
