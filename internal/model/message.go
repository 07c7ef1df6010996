// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session.
//
// Content only changes while a reveal is disclosing an assistant answer;
// afterwards the message is treated as immutable.
type Message struct {
	Role      Role
	Content   string
	CreatedAt *time.Time
}

// NewUserMessage creates a timestamped user message.
func NewUserMessage(content string) Message {
	now := time.Now()
	return Message{Role: RoleUser, Content: content, CreatedAt: &now}
}

// NewAssistantPlaceholder creates the empty, timestamped assistant message
// a reveal writes into.
func NewAssistantPlaceholder() Message {
	now := time.Now()
	return Message{Role: RoleAssistant, CreatedAt: &now}
}

// IsAssistant reports whether the message was authored by the assistant.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

type messageJSON struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

// MarshalJSON encodes CreatedAt as Unix milliseconds under "timestamp".
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{Role: m.Role, Content: m.Content}
	if m.CreatedAt != nil {
		ms := m.CreatedAt.UnixMilli()
		out.Timestamp = &ms
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the millisecond "timestamp" field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Role = in.Role
	m.Content = in.Content
	m.CreatedAt = nil
	if in.Timestamp != nil {
		t := time.UnixMilli(*in.Timestamp)
		m.CreatedAt = &t
	}
	return nil
}

// =============================================================================
// SLICE HELPERS
// =============================================================================

// CloneMessages returns an independent copy of msgs. A nil input yields an
// empty, non-nil slice so "no messages" is always len()==0.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// LastUserMessage returns the most recent user message.
func LastUserMessage(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// FirstUserContent returns the content of the first user message, or "".
func FirstUserContent(msgs []Message) string {
	for _, m := range msgs {
		if m.Role == RoleUser {
			return m.Content
		}
	}
	return ""
}
