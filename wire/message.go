package wire

import (
	"encoding/json"
	"fmt"
)

// Message kinds as they appear in the "type" tag.
const (
	KindAuth               = "auth"
	KindAuthSuccess        = "auth_success"
	KindFrame              = "frame"
	KindFrameReceived      = "frame_received"
	KindProcessingStarted  = "processing_started"
	KindProcessingComplete = "processing_complete"
	KindError              = "error"
	KindDisconnect         = "disconnect"
)

// Message is one protocol message, in either direction.
type Message interface {
	Kind() string
}

// Auth requests authentication with the given token.
type Auth struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// AuthSuccess confirms successful authentication.
type AuthSuccess struct {
	Type string `json:"type"`
}

// Frame carries one encoded frame to the service.
type Frame struct {
	Type        string  `json:"type"`
	FrameNumber uint64  `json:"frame_number"`
	FrameData   string  `json:"frame_data"` // base64
	Timestamp   float64 `json:"timestamp"`  // epoch seconds
}

// FrameReceived acknowledges a frame and reports the service backlog.
type FrameReceived struct {
	Type        string `json:"type"`
	FrameNumber uint64 `json:"frame_number"`
	TotalFrames int    `json:"total_frames"`
}

// ProcessingStarted signals that the service started analyzing.
type ProcessingStarted struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Result is the analysis outcome of a processing run.
type Result struct {
	Prediction            string  `json:"prediction"`
	AIProbability         float64 `json:"ai_probability"`
	Confidence            float64 `json:"confidence"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// ProcessingComplete delivers an analysis result.
type ProcessingComplete struct {
	Type            string `json:"type"`
	FramesProcessed int    `json:"frames_processed"`
	Result          Result `json:"result"`
}

// ServerError is an error reported by the service.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Disconnect is a service-initiated session termination.
type Disconnect struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Unknown is the fallback for unrecognized message kinds.
type Unknown struct {
	Type string `json:"type"`
}

// Kind implementations.
func (m Auth) Kind() string               { return KindAuth }
func (m AuthSuccess) Kind() string        { return KindAuthSuccess }
func (m Frame) Kind() string              { return KindFrame }
func (m FrameReceived) Kind() string      { return KindFrameReceived }
func (m ProcessingStarted) Kind() string  { return KindProcessingStarted }
func (m ProcessingComplete) Kind() string { return KindProcessingComplete }
func (m ServerError) Kind() string        { return KindError }
func (m Disconnect) Kind() string         { return KindDisconnect }
func (m Unknown) Kind() string            { return m.Type }

// NewAuth returns an auth request for the given token.
func NewAuth(token string) Auth {
	return Auth{Type: KindAuth, Token: token}
}

// NewFrame returns a frame message.
func NewFrame(frameNumber uint64, frameData string, timestamp float64) Frame {
	return Frame{
		Type:        KindFrame,
		FrameNumber: frameNumber,
		FrameData:   frameData,
		Timestamp:   timestamp,
	}
}

// Marshal serializes the given message to its JSON text form.
func Marshal(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", msg.Kind(), err)
	}
	return data, nil
}

// Parse deserializes one inbound message, dispatching on the "type" tag.
// Unrecognized kinds are returned as Unknown, not an error.
func Parse(data []byte) (Message, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	var (
		msg Message
		err error
	)
	switch tag.Type {
	case KindAuthSuccess:
		var v AuthSuccess
		err = json.Unmarshal(data, &v)
		msg = v
	case KindFrameReceived:
		var v FrameReceived
		err = json.Unmarshal(data, &v)
		msg = v
	case KindProcessingStarted:
		var v ProcessingStarted
		err = json.Unmarshal(data, &v)
		msg = v
	case KindProcessingComplete:
		var v ProcessingComplete
		err = json.Unmarshal(data, &v)
		msg = v
	case KindError:
		var v ServerError
		err = json.Unmarshal(data, &v)
		msg = v
	case KindDisconnect:
		var v Disconnect
		err = json.Unmarshal(data, &v)
		msg = v
	default:
		msg = Unknown{Type: tag.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s message: %w", tag.Type, err)
	}

	return msg, nil
}
