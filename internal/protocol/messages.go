// ABOUTME: Voice channel message type definitions
// ABOUTME: Defines the JSON text frames exchanged alongside binary PCM audio
package protocol

import (
	"encoding/json"
	"fmt"
)

// Text frame types
const (
	TypeCozyAudio      = "cozy_audio"
	TypeGeminiResponse = "gemini_response"
	TypeUserActivity   = "user_activity"
	TypeStatus         = "status"
	TypeExpression     = "expression"
)

// cozy_audio formats. Only base64 frames carry audio; a blob frame
// announces binary audio that follows and may still mark a new message.
const (
	FormatBase64 = "base64"
	FormatBlob   = "blob"
)

// Message is the common shape of every text frame. Only the fields
// relevant to Type are populated.
type Message struct {
	Type         string `json:"type"`
	Format       string `json:"format,omitempty"`
	AudioData    string `json:"audioData,omitempty"`
	Text         string `json:"text,omitempty"`
	Message      string `json:"message,omitempty"`
	IsNewMessage bool   `json:"isNewMessage,omitempty"`
}

// Parse decodes a text frame and checks the fields its type requires
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Type {
	case TypeCozyAudio, TypeGeminiResponse, TypeUserActivity, TypeStatus, TypeExpression:
	case "":
		return msg, fmt.Errorf("message has no type")
	default:
		return msg, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

// NewCozyAudio builds an encoded audio frame
func NewCozyAudio(audioData string, isNewMessage bool) Message {
	return Message{Type: TypeCozyAudio, Format: FormatBase64, AudioData: audioData, IsNewMessage: isNewMessage}
}

// HasAudio reports whether a cozy_audio frame carries an inline payload
func (m Message) HasAudio() bool {
	return m.Type == TypeCozyAudio && m.Format == FormatBase64
}

// NewGeminiResponse builds a text frame. isNewMessage marks the start of a reply.
func NewGeminiResponse(text string, isNewMessage bool) Message {
	return Message{Type: TypeGeminiResponse, Text: text, IsNewMessage: isNewMessage}
}

// NewUserActivity builds a barge-in notification
func NewUserActivity() Message {
	return Message{Type: TypeUserActivity}
}

// NewStatus builds a status frame
func NewStatus(message string) Message {
	return Message{Type: TypeStatus, Message: message}
}
