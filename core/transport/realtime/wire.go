package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
)

// Wire event names of the provider protocol. Control events travel as
// newline-free JSON text messages on the control stream.
const (
	wireSessionUpdate          = "session.update"
	wireInputBufferClear       = "input_audio_buffer.clear"
	wireInputBufferCommit      = "input_audio_buffer.commit"
	wireResponseCreate         = "response.create"
	wireConversationItemCreate = "conversation.item.create"

	wireTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	wireTranscriptDelta        = "response.audio_transcript.delta"
	wireTranscriptDone         = "response.audio_transcript.done"
	wireAudioDelta             = "response.audio.delta"
	wireResponseDone           = "response.done"
	wireError                  = "error"
)

type wireEnvelope struct {
	Type string `json:"type"`

	// inbound fields, populated depending on Type
	ItemID     string           `json:"item_id,omitempty"`
	ResponseID string           `json:"response_id,omitempty"`
	Transcript string           `json:"transcript,omitempty"`
	Delta      string           `json:"delta,omitempty"`
	Response   *wireResponse    `json:"response,omitempty"`
	Error      *wireErrorDetail `json:"error,omitempty"`
}

type wireResponse struct {
	Output []wireOutputItem `json:"output,omitempty"`
}

type wireOutputItem struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// decodeEvent maps one wire message to the typed event union. Unknown kinds
// decode to nil with no error; the remote stream is trusted but not assumed
// perfectly well-formed.
func decodeEvent(payload []byte) (events.Event, error) {
	var envelope wireEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode control event: %w", err)
	}

	switch envelope.Type {
	case wireTranscriptionCompleted:
		return events.NewUserTranscriptionCompleted(envelope.ItemID, envelope.Transcript), nil
	case wireTranscriptDelta:
		return events.NewAssistantTranscriptDelta(envelope.ResponseID, envelope.Delta), nil
	case wireTranscriptDone:
		return events.NewAssistantTranscriptDone(envelope.ResponseID, envelope.Transcript), nil
	case wireAudioDelta:
		audio, err := base64.StdEncoding.DecodeString(envelope.Delta)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio fragment: %w", err)
		}
		return events.NewAudioDelta(audio), nil
	case wireResponseDone:
		var toolCalls []events.ToolCall
		if envelope.Response != nil {
			for _, item := range envelope.Response.Output {
				if item.Type != "function_call" {
					continue
				}
				toolCalls = append(toolCalls, events.ToolCall{
					CallID:    item.CallID,
					Name:      item.Name,
					Arguments: item.Arguments,
				})
			}
		}
		return events.NewGenerationDone(toolCalls), nil
	case wireError:
		detail := envelope.Error
		if detail == nil {
			detail = &wireErrorDetail{Message: "unknown remote error"}
		}
		return events.NewError(detail.Code, detail.Message), nil
	}

	return nil, nil
}

type wireSessionConfig struct {
	Instructions  string             `json:"instructions,omitempty"`
	Transcription *wireTranscription `json:"input_audio_transcription,omitempty"`
	TurnDetection *wireTurnDetection `json:"turn_detection"`
	Temperature   float64            `json:"temperature,omitempty"`
	Tools         []wireTool         `json:"tools,omitempty"`
	ToolChoice    string             `json:"tool_choice,omitempty"`
}

type wireTranscription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type wireTurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response,omitempty"`
}

type wireTool struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type wireResponseRequest struct {
	Modalities   []string `json:"modalities,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
}

type wireItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id,omitempty"`
	Output string `json:"output,omitempty"`
}

// encodeEvent maps one outbound typed event to its wire form. The switch is
// exhaustive over the Outbound union.
func encodeEvent(event events.Outbound) ([]byte, error) {
	switch typedEvent := event.(type) {
	case events.SessionConfig:
		config := wireSessionConfig{
			Instructions: typedEvent.Instructions,
			Transcription: &wireTranscription{
				Model:    typedEvent.Transcription.Model,
				Language: typedEvent.Transcription.Language,
			},
			Temperature: typedEvent.Temperature,
		}
		// TurnDetection stays an explicit null in manual mode so the remote
		// side disables its own turn detection.
		if typedEvent.TurnDetection != nil {
			config.TurnDetection = &wireTurnDetection{
				Type:              typedEvent.TurnDetection.Type,
				Threshold:         typedEvent.TurnDetection.Threshold,
				PrefixPaddingMs:   typedEvent.TurnDetection.PrefixPaddingMs,
				SilenceDurationMs: typedEvent.TurnDetection.SilenceDurationMs,
				CreateResponse:    typedEvent.TurnDetection.CreateResponse,
			}
		}
		if len(typedEvent.Tools) > 0 {
			config.ToolChoice = "auto"
			for _, tool := range typedEvent.Tools {
				config.Tools = append(config.Tools, wireTool{
					Type:        "function",
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				})
			}
		}
		return json.Marshal(struct {
			Type    string            `json:"type"`
			Session wireSessionConfig `json:"session"`
		}{Type: wireSessionUpdate, Session: config})

	case events.InputBufferClear:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: wireInputBufferClear})

	case events.InputBufferCommit:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{Type: wireInputBufferCommit})

	case events.GenerationRequest:
		if len(typedEvent.Modalities) == 0 && typedEvent.Instructions == "" {
			return json.Marshal(struct {
				Type string `json:"type"`
			}{Type: wireResponseCreate})
		}
		return json.Marshal(struct {
			Type     string              `json:"type"`
			Response wireResponseRequest `json:"response"`
		}{
			Type: wireResponseCreate,
			Response: wireResponseRequest{
				Modalities:   typedEvent.Modalities,
				Instructions: typedEvent.Instructions,
			},
		})

	case events.ToolResult:
		return json.Marshal(struct {
			Type string   `json:"type"`
			Item wireItem `json:"item"`
		}{
			Type: wireConversationItemCreate,
			Item: wireItem{
				Type:   "function_call_output",
				CallID: typedEvent.CallID,
				Output: typedEvent.Output,
			},
		})
	}

	return nil, fmt.Errorf("unsupported outbound event kind: %s", event.Kind())
}
