package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"insights-gateway/core/utils"
	"regexp"
	"strings"
)

// ErrInvalidInsights 模型输出不是合法的情感时间序列
var ErrInvalidInsights = errors.New("insights output not in the expected format")

const (
	minSentiment = -10
	maxSentiment = 10
)

var timePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

// SentimentPoint 某一时刻的情感分值
type SentimentPoint struct {
	Time      string  `json:"time"`
	Sentiment float64 `json:"sentiment"`
}

// ParseInsights 校验并解析 INSIGHTS 请求的模型输出
// 输出必须是 [{time, sentiment}] 数组，可以包裹在 ``` 代码块中
func ParseInsights(raw string) ([]SentimentPoint, error) {
	cleaned := utils.StripCodeFence(raw)
	if !strings.HasPrefix(cleaned, "[") || !strings.HasSuffix(cleaned, "]") {
		return nil, fmt.Errorf("%w: output is not a JSON array", ErrInvalidInsights)
	}

	var points []SentimentPoint
	if err := json.Unmarshal([]byte(cleaned), &points); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInsights, err)
	}

	for i, p := range points {
		if !timePattern.MatchString(p.Time) {
			return nil, fmt.Errorf("%w: entry %d has invalid time %q", ErrInvalidInsights, i, p.Time)
		}
		if p.Sentiment < minSentiment || p.Sentiment > maxSentiment {
			return nil, fmt.Errorf("%w: entry %d sentiment %v out of range [-10, 10]", ErrInvalidInsights, i, p.Sentiment)
		}
	}
	return points, nil
}
