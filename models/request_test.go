package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestKind(t *testing.T) {
	kind, err := ParseRequestKind("action-items")
	require.NoError(t, err)
	assert.Equal(t, KindActionItems, kind)

	kind, err = ParseRequestKind(" Question_Answer ")
	require.NoError(t, err)
	assert.Equal(t, KindQuestionAnswer, kind)

	_, err = ParseRequestKind("translate")
	assert.Error(t, err)
}

func TestDispatchResult_JSONCarriesKind(t *testing.T) {
	result := &DispatchResult{Kind: KindInsights, Text: "[]", Backend: "ollama"}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"INSIGHTS","text":"[]","backend":"ollama"}`, string(data))

	var decoded DispatchResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, KindInsights, decoded.Kind)
}

func TestDispatchRequest_WithPrompt(t *testing.T) {
	req := NewSummarizeRequest("chat")
	custom := req.WithPrompt("Be brief.")

	assert.Equal(t, "Be brief.", custom.Prompt)
	assert.Equal(t, DefaultPrompt(KindSummarize), req.Prompt)
	assert.Equal(t, req.ID, custom.ID)
	assert.Equal(t, KindSummarize, custom.Kind())
}
