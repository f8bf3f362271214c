package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ChatEntry is one message in a session transcript.
type ChatEntry struct {
	Sender    ChatSender  `json:"sender"`
	Content   string      `json:"content"`
	Action    AgentAction `json:"action,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatLog is the append-only, time-ordered transcript of a session,
// stored as a JSON column.
type ChatLog []ChatEntry

func (l ChatLog) Value() (driver.Value, error) {
	if l == nil {
		l = ChatLog{}
	}
	return json.Marshal(l)
}

func (l *ChatLog) Scan(value interface{}) error {
	if value == nil {
		*l = ChatLog{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("chat log must be stored as JSON bytes")
	}
	if len(raw) == 0 {
		*l = ChatLog{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Append returns a new log with the entry added. The receiver is never
// mutated, so callers can branch off a log without clobbering each other.
func (l ChatLog) Append(sender ChatSender, action AgentAction, content string) ChatLog {
	out := make(ChatLog, len(l), len(l)+1)
	copy(out, l)
	return append(out, ChatEntry{
		Sender:    sender,
		Content:   content,
		Action:    action,
		Timestamp: time.Now().UTC(),
	})
}

// LastSender reports who spoke last, if anyone.
func (l ChatLog) LastSender() (ChatSender, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].Sender == ChatSenderSeeker || l[i].Sender == ChatSenderFinder {
			return l[i].Sender, true
		}
	}
	return "", false
}
