package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"insights-gateway/core/utils"
	"strings"
)

// ErrInvalidShape 输入图形缺少元数据
var ErrInvalidShape = errors.New("invalid shape input")

// Shape 白板图形，字段顺序即输出顺序
type Shape struct {
	ShapeId        string            `json:"ShapeId"`
	Type           string            `json:"Type"`
	Points         []json.RawMessage `json:"Points"`
	Color          string            `json:"Color"`
	Thickness      int               `json:"Thickness"`
	CreatedBy      string            `json:"CreatedBy"`
	LastModifiedBy string            `json:"LastModifiedBy"`
	IsDeleted      bool              `json:"IsDeleted"`
}

type shapeInput struct {
	ShapeId        *string         `json:"ShapeId"`
	Type           string          `json:"Type"`
	Color          *string         `json:"Color"`
	Thickness      *float64        `json:"Thickness"`
	CreatedBy      *string         `json:"CreatedBy"`
	LastModifiedBy *string         `json:"LastModifiedBy"`
	IsDeleted      *bool           `json:"IsDeleted"`
	Points         json.RawMessage `json:"Points"`
}

type shapeOutput struct {
	LowerType *string           `json:"type"`
	Type      *string           `json:"Type"`
	Points    []json.RawMessage `json:"Points"`
}

// ValidateShape 检查 REGULARIZE 输入携带完整的元数据
func ValidateShape(inputJSON string) error {
	_, err := decodeShapeInput(inputJSON)
	return err
}

// MergeRegularized 用模型给出的类型和前两个点替换输入图形的几何信息
// 模型输出不一致时原样返回输入
func MergeRegularized(inputJSON, modelOutput string) (string, error) {
	in, err := decodeShapeInput(inputJSON)
	if err != nil {
		return "", err
	}

	cleaned := utils.StripCodeFence(modelOutput)
	if !strings.Contains(cleaned, "{") {
		return inputJSON, nil
	}

	var out shapeOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return inputJSON, nil
	}
	if len(out.Points) < 2 {
		return inputJSON, nil
	}

	shapeType := in.Type
	switch {
	case out.LowerType != nil:
		shapeType = *out.LowerType
	case out.Type != nil:
		shapeType = *out.Type
	}

	merged := Shape{
		ShapeId:        *in.ShapeId,
		Type:           shapeType,
		Points:         out.Points[:2],
		Color:          *in.Color,
		Thickness:      int(*in.Thickness),
		CreatedBy:      *in.CreatedBy,
		LastModifiedBy: *in.LastModifiedBy,
		IsDeleted:      *in.IsDeleted,
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return inputJSON, nil
	}
	return string(data), nil
}

func decodeShapeInput(inputJSON string) (*shapeInput, error) {
	var in shapeInput
	if err := json.Unmarshal([]byte(inputJSON), &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}

	missing := []string{}
	if in.ShapeId == nil {
		missing = append(missing, "ShapeId")
	}
	if in.Color == nil {
		missing = append(missing, "Color")
	}
	if in.Thickness == nil {
		missing = append(missing, "Thickness")
	}
	if in.CreatedBy == nil {
		missing = append(missing, "CreatedBy")
	}
	if in.LastModifiedBy == nil {
		missing = append(missing, "LastModifiedBy")
	}
	if in.IsDeleted == nil {
		missing = append(missing, "IsDeleted")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidShape, strings.Join(missing, ", "))
	}
	return &in, nil
}
