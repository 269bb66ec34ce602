package models

const describePrompt = "Describe this image in detail."

const regularizePrompt = `You are given a list of 2D points representing a freehand drawing, together with shape metadata.

Your tasks:
1. Use ONLY the provided points.
2. Identify the geometric shape that best matches those points.
   Allowed values (case-sensitive): ELLIPSE, TRIANGLE, RECTANGLE, STRAIGHTLINE.
3. Compute the axis-aligned bounding box of that shape.
4. Output EXACTLY TWO points: the top-left coordinate first, then the bottom-right coordinate.

Return ONLY one JSON object with this structure and nothing else:
{
  "ShapeId": "<ShapeId>",
  "Type": "<ELLIPSE | TRIANGLE | RECTANGLE | STRAIGHTLINE>",
  "Points": [ { "X": <number>, "Y": <number> }, { "X": <number>, "Y": <number> } ],
  "Color": "<Color>",
  "Thickness": <Thickness>,
  "CreatedBy": "<CreatedBy>",
  "LastModifiedBy": "<LastModifiedBy>",
  "IsDeleted": <true|false>
}

Copy ShapeId, Color, Thickness, CreatedBy, LastModifiedBy and IsDeleted verbatim from the input.
Use only the points provided below.`

const insightsPrompt = `You are performing sentiment analysis on a chronological chat conversation.

For each message in the chat:
- Determine the sentiment on a scale from -10.0 (very negative) through 0 (neutral) to +10.0 (very positive).
- Use only the "message" field to determine sentiment.
- Preserve the exact timestamp associated with each message.

Return the output as a JSON array of objects in exactly this format, without any commentary:
[
  { "time": "<timestamp>", "sentiment": <float> }
]`

const summarizePrompt = "Summarize the following chat data into a concise, meaningful summary."

const actionItemsPrompt = `From the following chat transcript, identify only the most important and concrete action items.
Rewrite each as a short, clear statement in the third person, using as few words as possible while keeping full meaning.
Exclude general discussions, suggestions or decisions; include only actions that someone explicitly commits to doing.
Return the output strictly as a JSON list of strings and nothing else.`

const questionAnswerPrompt = `You are a strict, rule-based Q&A system. Follow these rules:
1. CLASSIFICATION: decide whether USER_QUESTION is CONTEXTUAL (needs the accumulated context) or GENERIC (general knowledge).
2. ANSWERING:
   - CONTEXTUAL: search the whole ACCUMULATED_CONTEXT and answer from it. Only if the answer is absent, reply "The information is missing from the context."
   - GENERIC: answer from general knowledge and ignore the context.
3. FORMAT: begin with "Classification: [CONTEXTUAL/GENERIC]" followed by the answer.`

// DefaultPrompt 返回请求类型的默认提示词
func DefaultPrompt(kind RequestKind) string {
	switch kind {
	case KindDescribe:
		return describePrompt
	case KindRegularize:
		return regularizePrompt
	case KindInsights:
		return insightsPrompt
	case KindSummarize:
		return summarizePrompt
	case KindActionItems:
		return actionItemsPrompt
	case KindQuestionAnswer:
		return questionAnswerPrompt
	}
	return ""
}
