package chat

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Request is one chat turn as received from the client.
type Request struct {
	Message       string    `json:"message"`
	History       []Message `json:"history"`
	MemorySummary string    `json:"memorySummary"`
	UserID        string    `json:"userId,omitempty"`
}
