// Package transcript converts conversation history between the JSON-safe
// form kept in the session store and the messages handed to the model.
//
// It is the only place that knows the storage shape; handlers and the
// model client never serialize messages themselves.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
)

// ErrCorrupted reports a stored transcript that cannot be turned back into
// well-formed messages. Callers discard the whole transcript.
var ErrCorrupted = errors.New("corrupted transcript")

// Stored is the storage representation: a list of plain mappings of the form
// {"role": "user", "parts": [{"text": "..."}]}.
type Stored []any

// Encode produces the canonical storage shape for messages. It never fails.
func Encode(messages []chat.Message) Stored {
	stored := make(Stored, 0, len(messages))
	for _, msg := range messages {
		parts := make([]any, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			parts = append(parts, map[string]any{"text": part.Text})
		}
		stored = append(stored, map[string]any{
			"role":  string(msg.Role),
			"parts": parts,
		})
	}
	return stored
}

// Decode rebuilds messages from their storage shape. Nil or empty input is a
// fresh conversation. Any malformed item fails the whole decode.
func Decode(stored Stored) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, len(stored))
	for i, item := range stored {
		msg, err := decodeItem(item)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrCorrupted, i, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DecodeJSON decodes a raw session payload. An empty payload is a fresh
// conversation.
func DecodeJSON(raw []byte) ([]chat.Message, error) {
	if len(raw) == 0 {
		return []chat.Message{}, nil
	}

	var stored Stored
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return Decode(stored)
}

// MarshalJSON encodes messages straight to the session payload.
func MarshalJSON(messages []chat.Message) ([]byte, error) {
	return json.Marshal(Encode(messages))
}

func decodeItem(item any) (chat.Message, error) {
	fields, ok := item.(map[string]any)
	if !ok {
		return chat.Message{}, fmt.Errorf("expected mapping, got %T", item)
	}

	role, err := decodeRole(fields["role"])
	if err != nil {
		return chat.Message{}, err
	}

	parts, err := decodeParts(fields)
	if err != nil {
		return chat.Message{}, err
	}

	return chat.Message{Role: role, Parts: parts}, nil
}

func decodeRole(raw any) (chat.Role, error) {
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", errors.New("missing role")
	}

	role := chat.Role(value)
	// older sessions stored OpenAI-style roles
	if value == "assistant" {
		role = chat.RoleModel
	}
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

func decodeParts(fields map[string]any) ([]chat.Part, error) {
	raw, hasParts := fields["parts"]
	if !hasParts {
		if content, ok := fields["content"].(string); ok {
			return []chat.Part{{Text: content}}, nil
		}
		return nil, errors.New("missing parts")
	}

	var items []any
	switch typed := raw.(type) {
	case []any:
		items = typed
	case []map[string]any:
		items = make([]any, 0, len(typed))
		for _, part := range typed {
			items = append(items, part)
		}
	case []string:
		items = make([]any, 0, len(typed))
		for _, part := range typed {
			items = append(items, part)
		}
	case string:
		items = []any{typed}
	default:
		return nil, fmt.Errorf("parts must be a list, got %T", raw)
	}

	if len(items) == 0 {
		return nil, errors.New("empty parts")
	}

	parts := make([]chat.Part, 0, len(items))
	for _, item := range items {
		switch part := item.(type) {
		case string:
			parts = append(parts, chat.Part{Text: part})
		case map[string]any:
			text, ok := part["text"].(string)
			if !ok {
				return nil, errors.New("part without text")
			}
			parts = append(parts, chat.Part{Text: text})
		default:
			return nil, fmt.Errorf("unsupported part %T", item)
		}
	}
	return parts, nil
}
