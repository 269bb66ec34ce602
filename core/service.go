package core

import (
	"context"
	"encoding/json"
	"fmt"
	"insights-gateway/core/parser"
	"insights-gateway/core/utils"
	"insights-gateway/models"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Executor 异步调度入口 (AsyncExecutor 实现)
type Executor interface {
	Execute(ctx context.Context, req *models.DispatchRequest) *Future
}

// InsightsService 每种请求类型一个方法，调用阻塞直到 Future 完成
type InsightsService struct {
	executor Executor
	logger   *logrus.Logger

	// summaryMu 串行化摘要更新，问答等待进行中的摘要
	summaryMu sync.Mutex
	summary   string

	promptMu sync.RWMutex
	prompts  map[models.RequestKind]string
}

func NewInsightsService(executor Executor, logger *logrus.Logger) *InsightsService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InsightsService{
		executor: executor,
		logger:   logger,
		prompts:  make(map[models.RequestKind]string),
	}
}

// SetPrompt 替换某类请求的默认提示词，空字符串恢复默认
func (s *InsightsService) SetPrompt(kind models.RequestKind, prompt string) {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	if prompt == "" {
		delete(s.prompts, kind)
		return
	}
	s.prompts[kind] = prompt
}

func (s *InsightsService) applyPrompt(req *models.DispatchRequest) *models.DispatchRequest {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	if prompt, ok := s.prompts[req.Kind()]; ok {
		return req.WithPrompt(prompt)
	}
	return req
}

func (s *InsightsService) submit(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	req = s.applyPrompt(req)
	result, err := s.executor.Execute(ctx, req).Await(ctx)
	if err != nil {
		return nil, err
	}
	if result.TimedOut {
		s.logger.Warnf("Request %s (%s) hit the overall deadline", req.ID, req.Kind())
	}
	return result, nil
}

// Describe 描述白板图片，mimeType 为空时自动识别
func (s *InsightsService) Describe(ctx context.Context, image []byte, mimeType string) (*models.DispatchResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, mimeType)
	}
	return s.submit(ctx, models.NewDescribeRequest(image, mimeType))
}

// DescribeFile 读取本地图片文件后描述
func (s *InsightsService) DescribeFile(ctx context.Context, path string) (*models.DispatchResult, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.Describe(ctx, image, "")
}

// Regularize 规整手绘图形，返回合并后的图形 JSON
// 超时或模型输出不一致时返回原始输入
func (s *InsightsService) Regularize(ctx context.Context, shapeJSON string) (string, error) {
	if err := parser.ValidateShape(shapeJSON); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	result, err := s.submit(ctx, models.NewRegularizeRequest(shapeJSON))
	if err != nil {
		return "", err
	}
	if result.TimedOut {
		return shapeJSON, nil
	}
	return parser.MergeRegularized(shapeJSON, result.Text)
}

// Sentiment 聊天情感时间序列
func (s *InsightsService) Sentiment(ctx context.Context, chat json.RawMessage) ([]parser.SentimentPoint, error) {
	if err := validateChat(chat); err != nil {
		return nil, err
	}

	result, err := s.submit(ctx, models.NewInsightsRequest(chat))
	if err != nil {
		return nil, err
	}
	if result.TimedOut {
		return nil, ErrTimedOut
	}
	return parser.ParseInsights(result.Text)
}

// ActionItems 提取行动项
func (s *InsightsService) ActionItems(ctx context.Context, chat json.RawMessage) (*models.DispatchResult, error) {
	if err := validateChat(chat); err != nil {
		return nil, err
	}

	result, err := s.submit(ctx, models.NewActionItemsRequest(chat))
	if err != nil {
		return nil, err
	}
	if !result.TimedOut {
		result.Text = utils.StripCodeFence(result.Text)
	}
	return result, nil
}

// Summarize 在累计摘要基础上合并新的聊天内容
func (s *InsightsService) Summarize(ctx context.Context, content string) (*models.DispatchResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}

	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()

	input := content
	if s.summary != "" {
		input = "Previous Summary: " + s.summary + "\n\nNew Chat Data: " + content
	}

	result, err := s.submit(ctx, models.NewSummarizeRequest(input))
	if err != nil {
		return nil, err
	}
	if !result.TimedOut {
		s.summary = result.Text
	}
	return result, nil
}

// ClearSummary 清空累计摘要
func (s *InsightsService) ClearSummary() {
	s.summaryMu.Lock()
	s.summary = ""
	s.summaryMu.Unlock()
	s.logger.Info("Accumulated summary cleared")
}

// Summary 当前累计摘要 (等待进行中的摘要完成)
func (s *InsightsService) Summary() string {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summary
}

// AnswerQuestion 基于累计摘要回答问题
func (s *InsightsService) AnswerQuestion(ctx context.Context, question string) (*models.DispatchResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	return s.submit(ctx, models.NewQuestionRequest(question, s.Summary()))
}

func validateChat(chat json.RawMessage) error {
	if len(chat) == 0 || !json.Valid(chat) {
		return fmt.Errorf("%w: chat data must be valid JSON", ErrInvalidInput)
	}
	return nil
}
