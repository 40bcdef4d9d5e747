package session

import "time"

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Message represents a single chat message
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Speaker is the label a display shows next to the message
func (m Message) Speaker() string {
	if m.Role == RoleUser {
		return "You"
	}
	return "Assistant"
}

// Entry is one item of the display feed
type Entry struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryFor converts a history message into a display entry
func EntryFor(m Message) Entry {
	return Entry{
		Speaker:   m.Speaker(),
		Content:   m.Content,
		Role:      m.Role,
		Timestamp: m.Timestamp,
	}
}

// History is the ordered record of a conversation. It is not safe for
// concurrent use; its owner serializes access.
type History struct {
	messages []Message
}

// Append adds a message at the end
func (h *History) Append(m Message) {
	h.messages = append(h.messages, m)
}

// Messages returns a copy of the history in chronological order
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages
func (h *History) Len() int {
	return len(h.messages)
}

// Count returns how many messages have the given role
func (h *History) Count(role Role) int {
	n := 0
	for _, m := range h.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Last returns the most recent message
func (h *History) Last() (Message, bool) {
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Clear drops every message
func (h *History) Clear() {
	h.messages = nil
}
