// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Session holds one conversation thread.
type Session struct {
	// ID never changes after creation.
	ID string

	// Title is at most 50 characters; derived from the first user message
	// until the user renames the session.
	Title string

	Messages []Message

	// UpdatedAt moves only when the number of messages changes.
	UpdatedAt time.Time
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Messages = CloneMessages(s.Messages)
	return s
}

// MessageCount returns the number of messages in the session.
func (s Session) MessageCount() int {
	return len(s.Messages)
}

type sessionJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"`
}

// MarshalJSON encodes UpdatedAt as Unix milliseconds.
func (s Session) MarshalJSON() ([]byte, error) {
	msgs := s.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(sessionJSON{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  msgs,
		UpdatedAt: s.UpdatedAt.UnixMilli(),
	})
}

// UnmarshalJSON decodes the millisecond "updatedAt" field.
func (s *Session) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.ID = in.ID
	s.Title = in.Title
	s.Messages = in.Messages
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	s.UpdatedAt = time.UnixMilli(in.UpdatedAt)
	return nil
}
