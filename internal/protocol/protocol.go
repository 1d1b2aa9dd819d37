package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"vidmentor/internal/services"
)

// MessageType names an operation handled by the background daemon.
type MessageType string

const (
	AnalyzeFrame      MessageType = "ANALYZE_FRAME"
	TestGemini        MessageType = "TEST_GEMINI"
	SimplifyText      MessageType = "SIMPLIFY_TEXT"
	GenerateChecklist MessageType = "GENERATE_CHECKLIST"
	DetectConfusion   MessageType = "DETECT_CONFUSION"
	GetSettings       MessageType = "GET_SETTINGS"
	UpdateSettings    MessageType = "UPDATE_SETTINGS"
	ToggleFeature     MessageType = "TOGGLE_FEATURE"
	RecordInteraction MessageType = "RECORD_INTERACTION"
	ExtensionReady    MessageType = "EXTENSION_READY"
)

// Types lists every supported message type.
func Types() []MessageType {
	return []MessageType{
		AnalyzeFrame, TestGemini, SimplifyText, GenerateChecklist, DetectConfusion,
		GetSettings, UpdateSettings, ToggleFeature, RecordInteraction, ExtensionReady,
	}
}

// Strategy selects how a request reaches the daemon.
type Strategy int

const (
	// Transient sends one request over a short-lived connection.
	Transient Strategy = iota
	// Persistent holds a duplex channel open until the response arrives, which
	// keeps the daemon alive for long-running AI work.
	Persistent
)

func (s Strategy) String() string {
	if s == Persistent {
		return "persistent"
	}
	return "transient"
}

// StrategyFor classifies a message type. AI-bound operations use the
// persistent channel; everything else is transient.
func StrategyFor(t MessageType) Strategy {
	switch t {
	case AnalyzeFrame, TestGemini, SimplifyText, GenerateChecklist, DetectConfusion:
		return Persistent
	default:
		return Transient
	}
}

// Request is the envelope a foreground context sends.
type Request struct {
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	RequestID string         `json:"requestId"`
}

// Response is the envelope the daemon returns. RequestID echoes the request.
type Response struct {
	RequestID string          `json:"requestId"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"errorKind,omitempty"`
}

// Success builds a successful response carrying value as data.
func Success(requestID string, value any) Response {
	resp := Response{RequestID: requestID, Success: true}
	if value == nil {
		return resp
	}
	if raw, ok := value.(json.RawMessage); ok {
		resp.Data = raw
		return resp
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return Failure(requestID, fmt.Errorf("encode response: %w", err))
	}
	resp.Data = payload
	return resp
}

// Failure builds a failed response from err, classifying it for the wire.
func Failure(requestID string, err error) Response {
	if err == nil {
		err = errors.New("request failed")
	}
	return Response{
		RequestID: requestID,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: services.Kind(err),
	}
}

// Err returns nil for successful responses and a classified error otherwise.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return services.FromKind(r.ErrorKind, r.Error)
}

// Decode unmarshals the response data into target. Failed responses return
// their classified error.
func (r Response) Decode(target any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if target == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Data, target); err != nil {
		return fmt.Errorf("decode %s response: %w", r.RequestID, err)
	}
	return nil
}

// String reads a string field from the request data.
func (r Request) String(key string) string {
	if r.Data == nil {
		return ""
	}
	value, _ := r.Data[key].(string)
	return value
}

// Value returns a raw field from the request data.
func (r Request) Value(key string) (any, bool) {
	if r.Data == nil {
		return nil, false
	}
	value, ok := r.Data[key]
	return value, ok
}

// DecodeField re-marshals a structured field into target.
func (r Request) DecodeField(key string, target any) (bool, error) {
	value, ok := r.Value(key)
	if !ok || value == nil {
		return false, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(payload, target)
}
