// Package protocol defines the websocket payloads exchanged with the
// composer UI while a generation streams progress.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Asmit-coder-Arduino/TTS/internal/speech"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeGenerateRequest      MessageType = "generate_request"
	TypeGenerationStarted    MessageType = "generation_started"
	TypeParagraphSynthesized MessageType = "paragraph_synthesized"
	TypeAssembling           MessageType = "assembling"
	TypeGenerationCompleted  MessageType = "generation_completed"
	TypeGenerationFailed     MessageType = "generation_failed"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// GenerateRequest is the single client message: one generation to run.
type GenerateRequest struct {
	Type    MessageType              `json:"type"`
	Request speech.GenerationRequest `json:"request"`
}

type GenerationStarted struct {
	Type           MessageType `json:"type"`
	RequestedWords int         `json:"requested_words"`
	Paragraphs     int         `json:"paragraphs"`
}

type ParagraphSynthesized struct {
	Type           MessageType `json:"type"`
	ParagraphIndex int         `json:"paragraph_index"`
	ParagraphID    string      `json:"paragraph_id"`
	Words          int         `json:"words"`
}

type Assembling struct {
	Type     MessageType `json:"type"`
	Segments int         `json:"segments"`
}

type GenerationCompleted struct {
	Type           MessageType `json:"type"`
	AudioURL       string      `json:"audioUrl"`
	WordsUsed      int         `json:"wordsUsed"`
	TotalWordsUsed int         `json:"totalWordsUsed"`
	WordsRemaining int         `json:"wordsRemaining"`
	MonthlyLimit   int         `json:"monthlyLimit"`
}

type GenerationFailed struct {
	Type  MessageType `json:"type"`
	Code  string      `json:"code"`
	Error string      `json:"error"`
}

// ParseClientMessage decodes one inbound websocket frame.
func ParseClientMessage(data []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeGenerateRequest:
		var msg GenerateRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}
