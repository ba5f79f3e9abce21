package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID identifies a message. Server ids arrive as JSON numbers or strings;
// local ids are UUIDv7 strings.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Button is an interactive action attached to a message.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action"`
	Data   any    `json:"data,omitempty"`
}

// AttachmentType is the kind of media attached to a message.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentLink  AttachmentType = "link"
)

// Attachment is an image or link shown with a message.
type Attachment struct {
	Type      AttachmentType `json:"type"`
	URL       string         `json:"url"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Title     string         `json:"title,omitempty"`
}

// Message is one entry of the conversation. CreatedAt is kept as the server
// sent it; local messages use RFC 3339.
type Message struct {
	ID          ID           `json:"id"`
	Content     string       `json:"content"`
	IsFromUser  bool         `json:"is_from_user"`
	CreatedAt   string       `json:"created_at"`
	Buttons     []Button     `json:"buttons,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Time parses CreatedAt. ok is false when it is empty or not a recognised
// timestamp.
func (m Message) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// HistoryPage is one page of the server's message history.
type HistoryPage struct {
	Results []Message `json:"results"`
	Page    int       `json:"page"`
}

// QuickCommand is published on the quickCommand topic when a slash command
// is sent. Known is false for slash words outside the command table.
type QuickCommand struct {
	Command string
	Params  []string
	Known   bool
}

// ButtonPress is published on the buttonPress topic.
type ButtonPress struct {
	MessageID ID
	Action    string
	Data      any
}

// SendFailure is published on the sendFailed topic when delivery of a user
// message fails. The echoed message stays in the history.
type SendFailure struct {
	MessageID ID
	Err       error
}
