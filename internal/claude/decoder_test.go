package claude

import (
	"encoding/json"
	"testing"
)

func decodeJSON(t *testing.T, raw string) []Message {
	t.Helper()

	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("failed to unmarshal fixture: %v", err)
	}
	return Decode(record)
}

func TestDecodeSystemInit(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "system",
		"subtype": "init",
		"session_id": "abc-123",
		"tools": ["Bash", "Read"],
		"model": "claude-sonnet-4-6"
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindSessionInit {
		t.Fatalf("expected kind %q, got %q", KindSessionInit, msgs[0].Kind)
	}
	if msgs[0].SessionID != "abc-123" {
		t.Fatalf("expected session id %q, got %q", "abc-123", msgs[0].SessionID)
	}
}

func TestDecodeAssistantText(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [{"type": "text", "text": "Hello! How can I help?"}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindTextChunk {
		t.Fatalf("expected kind %q, got %q", KindTextChunk, msgs[0].Kind)
	}
	if msgs[0].Text != "Hello! How can I help?" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
}

func TestDecodeAssistantBlankTextDropped(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {"role": "assistant", "content": [{"type": "text", "text": "   "}]}
	}`)

	if len(msgs) != 0 {
		t.Fatalf("expected no messages for blank text, got %d", len(msgs))
	}
}

func TestDecodeToolUseBash(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [{
				"type": "tool_use",
				"id": "tool-1",
				"name": "Bash",
				"input": {"command": "git status", "description": "Check git status"}
			}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindToolStart {
		t.Fatalf("expected kind %q, got %q", KindToolStart, msgs[0].Kind)
	}
	if msgs[0].ToolName != "Bash" {
		t.Fatalf("expected tool name %q, got %q", "Bash", msgs[0].ToolName)
	}
	if got, want := msgs[0].Text, "Running command: Check git status"; got != want {
		t.Fatalf("expected summary %q, got %q", want, got)
	}
}

func TestDecodeToolUseRead(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [{
				"type": "tool_use",
				"id": "tool-2",
				"name": "Read",
				"input": {"file_path": "/home/user/auth.go"}
			}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if got, want := msgs[0].Text, "Reading file /home/user/auth.go"; got != want {
		t.Fatalf("expected summary %q, got %q", want, got)
	}
}

func TestDecodeUnknownToolFallsBack(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [{"type": "tool_use", "id": "t", "name": "MysteryTool", "input": {}}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if got, want := msgs[0].Text, "Using tool MysteryTool"; got != want {
		t.Fatalf("expected summary %q, got %q", want, got)
	}
}

func TestDecodeToolResultError(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "user",
		"message": {
			"role": "user",
			"content": [{
				"type": "tool_result",
				"tool_use_id": "tool-1",
				"is_error": true,
				"content": [{"type": "text", "text": "Permission denied"}]
			}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindError {
		t.Fatalf("expected kind %q, got %q", KindError, msgs[0].Kind)
	}
	if msgs[0].Text != "Permission denied" {
		t.Fatalf("unexpected error text %q", msgs[0].Text)
	}
}

func TestDecodeToolResultSuccessDropped(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "user",
		"message": {
			"role": "user",
			"content": [{
				"type": "tool_result",
				"tool_use_id": "tool-1",
				"is_error": false,
				"content": [{"type": "text", "text": "ok"}]
			}]
		}
	}`)

	if len(msgs) != 0 {
		t.Fatalf("expected non-error tool results to be dropped, got %d messages", len(msgs))
	}
}

func TestDecodeToolResultStringContent(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "user",
		"message": {
			"role": "user",
			"content": [{"type": "tool_result", "is_error": true, "content": "boom"}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "boom" {
		t.Fatalf("unexpected error text %q", msgs[0].Text)
	}
}

func TestDecodeResultSuccess(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "result",
		"subtype": "success",
		"is_error": false,
		"result": "Task done",
		"total_cost_usd": 0.0123,
		"duration_ms": 4500,
		"session_id": "abc-123"
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if msg.Kind != KindResult {
		t.Fatalf("expected kind %q, got %q", KindResult, msg.Kind)
	}
	if msg.IsError {
		t.Fatalf("expected success result")
	}
	if msg.CostUSD == nil || *msg.CostUSD != 0.0123 {
		t.Fatalf("expected cost 0.0123, got %v", msg.CostUSD)
	}
	if msg.DurationMS == nil || *msg.DurationMS != 4500 {
		t.Fatalf("expected duration 4500, got %v", msg.DurationMS)
	}
	if msg.SessionID != "abc-123" {
		t.Fatalf("expected session id to be copied, got %q", msg.SessionID)
	}
}

func TestDecodeResultError(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "result",
		"subtype": "error_max_turns",
		"is_error": true,
		"result": "Max turns reached"
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !msgs[0].IsError {
		t.Fatalf("expected error result")
	}
	if msgs[0].CostUSD != nil || msgs[0].DurationMS != nil {
		t.Fatalf("expected absent cost and duration to stay nil")
	}
}

func TestDecodeThinkingBlock(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [{"type": "thinking", "thinking": "Let me consider..."}]
		}
	}`)

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Kind != KindThinking {
		t.Fatalf("expected kind %q, got %q", KindThinking, msgs[0].Kind)
	}
}

func TestDecodeMixedContentPreservesOrder(t *testing.T) {
	msgs := decodeJSON(t, `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [
				{"type": "text", "text": "Let me check that."},
				{"type": "tool_use", "id": "tool-1", "name": "Read", "input": {"file_path": "/tmp/test.go"}}
			]
		}
	}`)

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Kind != KindTextChunk || msgs[1].Kind != KindToolStart {
		t.Fatalf("expected text then tool start, got %q then %q", msgs[0].Kind, msgs[1].Kind)
	}
}

func TestDecodeUnknownTypeIgnored(t *testing.T) {
	msgs := decodeJSON(t, `{"type": "telemetry", "payload": {"x": 1}}`)
	if len(msgs) != 0 {
		t.Fatalf("expected unknown record types to decode to nothing, got %d", len(msgs))
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	raw := `{
		"type": "assistant",
		"message": {
			"role": "assistant",
			"content": [
				{"type": "text", "text": "One."},
				{"type": "tool_use", "id": "t", "name": "Grep", "input": {"pattern": "foo"}},
				{"type": "text", "text": "Two."}
			]
		}
	}`

	first := decodeJSON(t, raw)
	second := decodeJSON(t, raw)
	if len(first) != len(second) {
		t.Fatalf("expected identical message counts, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || first[i].Text != second[i].Text {
			t.Fatalf("decode not deterministic at index %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
