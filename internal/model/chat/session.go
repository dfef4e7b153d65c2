package chat

import "time"

// Session captures one browser's conversation state.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeen   time.Time `json:"lastSeen"`
	Transcript []byte    `json:"transcript,omitempty"`
	Admin      bool      `json:"admin"`
}
