package chat

import "strings"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	default:
		return false
	}
}

// Part is one text segment of a message. Only text parts are produced today,
// but messages keep the list shape the model SDKs expose.
type Part struct {
	Text string `json:"text"`
}

// Message is one turn of a conversation. Parts is never empty.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserMessage builds a single-part user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// ModelMessage builds a single-part model turn.
func ModelMessage(text string) Message {
	return Message{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// Text joins the text of every part.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	texts := make([]string, 0, len(m.Parts))
	for _, part := range m.Parts {
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "\n")
}
