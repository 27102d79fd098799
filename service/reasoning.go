package service

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/rushteam/agentrec/core"
)

const repairSystemPrompt = `You repair invalid JSON.
Return ONLY valid JSON.
Do NOT include commentary.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate 实现 core.ReasoningService。
//
// 有界修复协议：首次调用得到的内容无法解析或缺少期望字段时，
// 把上一次输出与 SchemaHint 一起提交做修复，最多 MaxRepairs 次；
// 仍失败则返回 ReasoningFailed，Data 为空。
func (c *OpenAIClient) Generate(ctx context.Context, req *core.ReasoningRequest) core.ReasoningResult {
	if req == nil {
		return core.ReasoningFailed("reasoning_request_nil")
	}
	task := string(req.Task)

	var (
		trace []string
		raw   string
	)
	for attempt := 0; attempt <= c.MaxRepairs; attempt++ {
		system, user := req.SystemPrompt, req.UserPrompt
		callTag, parseTag := "call_failed", "json_parse_failed"
		if attempt > 0 {
			system, user = repairSystemPrompt, repairPrompt(req.SchemaHint, raw)
			callTag, parseTag = "repair_call_failed", "json_repair_failed"
		}

		content, err := c.chat(ctx, req.Task, system, user)
		if err != nil {
			kind := errorKind(err)
			trace = append(trace, callTag+":"+kind)
			c.metrics.IncReasoningAttempt(task, "call_failed")
			c.logger.Warn().Str("task", task).Int("attempt", attempt).Err(err).Msg("reasoning call failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		raw = content
		data, problem := decodeObject(content, req.ExpectedKeys)
		if problem == "" {
			if attempt > 0 {
				trace = append(trace, "json_repair_success")
			}
			c.metrics.IncReasoningAttempt(task, "ok")
			return core.ReasoningOK(data, trace...)
		}
		trace = append(trace, parseTag+":"+problem)
		c.metrics.IncReasoningAttempt(task, "invalid")
		c.logger.Debug().Str("task", task).Int("attempt", attempt).Str("problem", problem).Msg("reasoning output rejected")
	}

	return core.ReasoningFailed(append(trace, "reasoning_exhausted")...)
}

func (c *OpenAIClient) chat(ctx context.Context, task core.ReasoningTask, system, user string) (string, error) {
	req := chatRequest{
		Model:       c.Model,
		Temperature: c.temperatures[task],
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(system)},
			{Role: "user", Content: strings.TrimSpace(user)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	var resp chatResponse
	if err := c.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", core.NewDomainError(core.ModuleReasoning, core.ErrorCodeInvalidInput, "empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func repairPrompt(schemaHint map[string]any, raw string) string {
	var b strings.Builder
	b.WriteString("The previous output was not valid JSON.\n")
	b.WriteString("Fix it and return ONLY JSON.\n")
	b.WriteString("If content is missing, use safe defaults.\n")
	if len(schemaHint) > 0 {
		if hint, err := json.MarshalIndent(schemaHint, "", "  "); err == nil {
			fmt.Fprintf(&b, "\nJSON schema hint:\n%s\n", hint)
		}
	}
	fmt.Fprintf(&b, "\nInvalid output:\n%s\n", raw)
	return b.String()
}

// decodeObject 把模型输出解析为 JSON 对象：先整体解析，失败时取第一个 '{'
// 到最后一个 '}' 之间的内容。返回非空 problem 表示输出不可用。
func decodeObject(raw string, expectedKeys []string) (map[string]any, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "empty"
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil, "not_json"
		}
		obj = nil
		if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
			return nil, "not_json"
		}
	}
	if obj == nil {
		return nil, "not_object"
	}

	var missing []string
	for _, k := range expectedKeys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, "missing_keys:" + strings.Join(missing, ",")
	}
	return obj, ""
}

var _ core.ReasoningService = (*OpenAIClient)(nil)
