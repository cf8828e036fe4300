package claude

import (
	"fmt"
	"strings"
)

// Decode turns one parsed stream-json record into zero or more messages,
// preserving the order of content blocks within the record. Unrecognized
// record shapes decode to nothing; Decode never fails.
func Decode(record map[string]any) []Message {
	switch stringField(record, "type") {
	case "assistant":
		return decodeAssistant(record)
	case "user":
		return decodeUser(record)
	case "system":
		return decodeSystem(record)
	case "result":
		return decodeResult(record)
	}
	return nil
}

func decodeAssistant(record map[string]any) []Message {
	var messages []Message
	for _, block := range contentBlocks(record) {
		switch stringField(block, "type") {
		case "text":
			text := stringField(block, "text")
			if strings.TrimSpace(text) == "" {
				continue
			}
			messages = append(messages, Message{
				Kind: KindTextChunk,
				Text: text,
				Raw:  record,
			})
		case "tool_use":
			name := stringField(block, "name")
			if name == "" {
				name = "unknown"
			}
			input, _ := block["input"].(map[string]any)
			messages = append(messages, Message{
				Kind:     KindToolStart,
				Text:     summarizeTool(name, input),
				ToolName: name,
				Raw:      record,
			})
		case "thinking":
			messages = append(messages, Message{
				Kind: KindThinking,
				Text: stringField(block, "thinking"),
				Raw:  record,
			})
		}
	}
	return messages
}

func decodeUser(record map[string]any) []Message {
	var messages []Message
	for _, block := range contentBlocks(record) {
		if stringField(block, "type") != "tool_result" {
			continue
		}
		isError, _ := block["is_error"].(bool)
		if !isError {
			// Successful tool results are not speakable.
			continue
		}
		messages = append(messages, Message{
			Kind:    KindError,
			Text:    toolResultText(block["content"]),
			IsError: true,
			Raw:     record,
		})
	}
	return messages
}

func decodeSystem(record map[string]any) []Message {
	if stringField(record, "subtype") != "init" {
		return nil
	}
	return []Message{{
		Kind:      KindSessionInit,
		SessionID: stringField(record, "session_id"),
		Raw:       record,
	}}
}

func decodeResult(record map[string]any) []Message {
	isError, _ := record["is_error"].(bool)
	msg := Message{
		Kind:      KindResult,
		Text:      stringField(record, "result"),
		IsError:   isError,
		SessionID: stringField(record, "session_id"),
		Raw:       record,
	}
	if cost, ok := floatField(record, "total_cost_usd"); ok {
		msg.CostUSD = &cost
	}
	if duration, ok := floatField(record, "duration_ms"); ok {
		ms := int64(duration)
		msg.DurationMS = &ms
	}
	return []Message{msg}
}

// toolResultText joins nested text sub-blocks of a tool_result content
// value, falling back to stringification for non-list content.
func toolResultText(content any) string {
	blocks, ok := content.([]any)
	if !ok {
		if content == nil {
			return ""
		}
		if s, ok := content.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", content)
	}

	var parts []string
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok || stringField(block, "type") != "text" {
			continue
		}
		parts = append(parts, stringField(block, "text"))
	}
	return strings.Join(parts, " ")
}

// summarizeTool builds the one-line spoken summary for a tool invocation.
// The table is keyed by tool name; unknown tools get a generic line.
func summarizeTool(name string, input map[string]any) string {
	switch name {
	case "Read":
		return "Reading file " + stringFieldOr(input, "file_path", "unknown")
	case "Write":
		return "Writing file " + stringFieldOr(input, "file_path", "unknown")
	case "Edit":
		return "Editing file " + stringFieldOr(input, "file_path", "unknown")
	case "Bash":
		if description := stringField(input, "description"); description != "" {
			return "Running command: " + description
		}
		command := stringFieldOr(input, "command", "unknown")
		if len(command) > 60 {
			command = command[:60]
		}
		return "Running command: " + command
	case "Glob":
		return "Searching for files matching " + stringFieldOr(input, "pattern", "unknown")
	case "Grep":
		return "Searching for " + stringFieldOr(input, "pattern", "unknown")
	case "WebFetch":
		return "Fetching a web page"
	case "WebSearch":
		return "Searching the web for " + stringFieldOr(input, "query", "unknown")
	case "Task":
		return "Launching agent: " + stringFieldOr(input, "description", "subtask")
	case "NotebookEdit":
		return "Editing notebook"
	}
	return "Using tool " + name
}

func contentBlocks(record map[string]any) []map[string]any {
	message, _ := record["message"].(map[string]any)
	content, _ := message["content"].([]any)

	var blocks []map[string]any
	for _, raw := range content {
		if block, ok := raw.(map[string]any); ok {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringFieldOr(m map[string]any, key, fallback string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return fallback
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
