package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Inbound frame types.
const (
	FramePong        = "pong"
	FrameGreeting    = "greeting"
	FrameMessage     = "message"
	FrameCVProcessed = "cv_processed"
	FrameClose       = "close"
	FrameError       = "error"

	frameCVUpload = "cv_upload"
	framePing     = "ping"
)

// Inbound is a server frame.
type Inbound struct {
	Type    string       `json:"type"`
	Data    *InboundData `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
}

// InboundData is the payload of greeting, message, cv_processed and close frames.
type InboundData struct {
	Response        string `json:"response,omitempty"`
	WorkflowStage   string `json:"workflow_stage,omitempty"`
	CurrentTest     *int   `json:"current_test,omitempty"`
	CurrentQuestion *int   `json:"current_question,omitempty"`
	IsComplete      bool   `json:"is_complete,omitempty"`
	Message         string `json:"message,omitempty"`
	ProspectID      string `json:"prospect_id,omitempty"`
}

func (d *InboundData) response() string {
	if d == nil {
		return ""
	}
	return d.Response
}

func (d *InboundData) stage() string {
	if d == nil {
		return ""
	}
	return d.WorkflowStage
}

// ParseInbound decodes a server frame. Frames without a type are rejected.
func ParseInbound(raw []byte) (*Inbound, error) {
	var frame Inbound
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if frame.Type == "" {
		return nil, fmt.Errorf("frame has no type")
	}

	return &frame, nil
}

type userMessage struct {
	Message string `json:"message"`
}

type cvUpload struct {
	Type        string `json:"type"`
	FileContent string `json:"file_content"`
	FileName    string `json:"file_name"`
}

type ping struct {
	Type string `json:"type"`
}

// EncodeUserMessage builds the frame for a free-text candidate turn.
func EncodeUserMessage(text string) ([]byte, error) {
	return json.Marshal(userMessage{Message: text})
}

// EncodeCVUpload builds the cv_upload frame; content is sent as plain base64.
func EncodeCVUpload(name string, content []byte) ([]byte, error) {
	return json.Marshal(cvUpload{
		Type:        frameCVUpload,
		FileContent: base64.StdEncoding.EncodeToString(content),
		FileName:    name,
	})
}

// EncodePing builds the keepalive frame answered by the server with pong.
func EncodePing() []byte {
	data, _ := json.Marshal(ping{Type: framePing})
	return data
}
