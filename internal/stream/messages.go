package stream

import (
	"encoding/json"

	"github.com/eleven-am/focus-backend/internal/vision"
)

type MessageType string

const (
	TypeVideoFrame         MessageType = "video_frame"
	TypeRequestHelp        MessageType = "request_help"
	TypeConnectionResponse MessageType = "connection_response"
	TypeAnalysisResult     MessageType = "analysis_result"
	TypeAnalysisError      MessageType = "analysis_error"
	TypeHelpResponse       MessageType = "help_response"
)

// Message is the envelope for every frame on the socket.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type VideoFrame struct {
	SessionID string `json:"session_id"`
	Frame     string `json:"frame"`
	Timestamp int64  `json:"timestamp"`
}

type HelpRequest struct {
	SessionID string `json:"session_id"`
}

type ConnectionResponse struct {
	Status       string `json:"status"`
	ConnectionID string `json:"connection_id"`
	SessionID    string `json:"session_id,omitempty"`
}

type AnalysisPayload struct {
	SessionID string `json:"session_id"`
	Timestamp int64  `json:"timestamp"`
	vision.AnalysisResult
}

type ErrorPayload struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type HelpResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

const (
	errSessionNotFound = "session not found"
	helpAcknowledged   = "Help request noted. Take a breath and break the problem into smaller steps."
)

func newMessage(t MessageType, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Data: raw}, nil
}
