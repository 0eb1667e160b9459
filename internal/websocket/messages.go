package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/sayword/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Inbound message types
const (
	MessageTypeGameStart         MessageType = "game_start"
	MessageTypeListeningStart    MessageType = "listening_start"
	MessageTypeListeningEnd      MessageType = "listening_end"
	MessageTypeListeningStop     MessageType = "listening_stop"
	MessageTypeInterimTranscript MessageType = "interim_transcript"
	MessageTypeFinalTranscript   MessageType = "final_transcript"
	MessageTypeRecognitionError  MessageType = "recognition_error"
	MessageTypeSkip              MessageType = "skip"
	MessageTypeHintRequest       MessageType = "hint_request"
	MessageTypePronounceRequest  MessageType = "pronounce_request"
	MessageTypePing              MessageType = "ping"
)

// Outbound message types
const (
	MessageTypeAdjudication  MessageType = "adjudication"
	MessageTypeAdvance       MessageType = "advance"
	MessageTypeGameOver      MessageType = "game_over"
	MessageTypeStatus        MessageType = "status"
	MessageTypeError         MessageType = "error"
	MessageTypeHint          MessageType = "hint"
	MessageTypeSpeakingStart MessageType = "speaking_start"
	MessageTypeSpeakingEnd   MessageType = "speaking_end"
	MessageTypePong          MessageType = "pong"
)

// Recognition sources for listening_start
const (
	SourceBrowser = "browser"
	SourceCloud   = "cloud"
)

// Error codes sent in error messages, besides the recognition error kinds
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeNoGame           = "no_game"
	ErrorCodeAlreadyListening = "already_listening"
	ErrorCodeNotListening     = "not_listening"
	ErrorCodeBusy             = "busy"
	ErrorCodeUnavailable      = "unavailable"
	ErrorCodeInternal         = "internal_error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// GameStartMessage starts a new game. An empty difficulty uses every word.
type GameStartMessage struct {
	BaseMessage
	Difficulty entities.Difficulty `json:"difficulty,omitempty"`
}

// ListeningStartMessage opens a listening session. With the cloud source
// binary frames carry audio until listening_end.
type ListeningStartMessage struct {
	BaseMessage
	Source     string `json:"source"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// TranscriptMessage carries a browser recognizer hypothesis
type TranscriptMessage struct {
	BaseMessage
	Transcript   string                            `json:"transcript"`
	Alternatives []entities.RecognitionAlternative `json:"alternatives,omitempty"`
}

// RecognitionErrorMessage reports a browser recognizer failure
type RecognitionErrorMessage struct {
	BaseMessage
	Error string `json:"error"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ControlMessage is an inbound message without a payload. listening_end
// finalizes the session on what was heard so far; listening_stop abandons it
// without a verdict.
type ControlMessage struct {
	BaseMessage
}

// AdjudicationMessage reports a decided attempt or skip
type AdjudicationMessage struct {
	BaseMessage
	Entry entities.GameLogEntry `json:"entry"`
}

// AdvanceMessage announces the next word. Word is null once the list is
// exhausted.
type AdvanceMessage struct {
	BaseMessage
	Word  *entities.Word `json:"word"`
	Index int            `json:"index"`
	Total int            `json:"total"`
}

// GameOverMessage carries the frozen log and score
type GameOverMessage struct {
	BaseMessage
	Log      []entities.GameLogEntry `json:"log"`
	Correct  int                     `json:"correct"`
	FirstTry int                     `json:"first_try"`
	Total    int                     `json:"total"`
}

// StatusMessage is a human-readable progress line
type StatusMessage struct {
	BaseMessage
	Status string `json:"status"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// HintMessage carries an example sentence for the current word
type HintMessage struct {
	BaseMessage
	Word string `json:"word"`
	Hint string `json:"hint"`
}

// SpeakingMessage brackets the binary audio of a pronounced word
type SpeakingMessage struct {
	BaseMessage
	Word string `json:"word"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// MessageValidator decodes and validates inbound messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage decodes an inbound message into its typed form
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeGameStart:
		var msg GameStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid game start message: %w", err)
		}
		if msg.Difficulty != "" && !msg.Difficulty.IsValid() {
			return nil, fmt.Errorf("difficulty must be one of: easy, medium, hard")
		}
		return &msg, nil

	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeInterimTranscript, MessageTypeFinalTranscript:
		var msg TranscriptMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid transcript message: %w", err)
		}
		for i, a := range msg.Alternatives {
			if a.Confidence < 0 || a.Confidence > 1 {
				return nil, fmt.Errorf("alternative %d: confidence must be between 0 and 1", i)
			}
		}
		return &msg, nil

	case MessageTypeRecognitionError:
		var msg RecognitionErrorMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid recognition error message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeListeningEnd, MessageTypeListeningStop, MessageTypeSkip, MessageTypeHintRequest, MessageTypePronounceRequest:
		return &ControlMessage{BaseMessage: base}, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.Source == "" {
		msg.Source = SourceBrowser
	}
	switch msg.Source {
	case SourceBrowser, SourceCloud:
	default:
		return fmt.Errorf("source must be one of: browser, cloud")
	}
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError), Code: code, Message: message}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong), Data: data}
}

// CreateStatusMessage creates a status message
func CreateStatusMessage(status string) *StatusMessage {
	return &StatusMessage{BaseMessage: newBase(MessageTypeStatus), Status: status}
}
