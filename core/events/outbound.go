package events

import "github.com/invopop/jsonschema"

const (
	// KindSessionConfig identifies the outbound session-configuration event.
	// It is the first event sent after the channel opens and is re-sent on
	// every input-mode change.
	KindSessionConfig Kind = "session.config"
	// KindInputBufferClear identifies the outbound buffered-input discard.
	KindInputBufferClear Kind = "input_buffer.clear"
	// KindInputBufferCommit identifies the outbound buffered-input commit.
	KindInputBufferCommit Kind = "input_buffer.commit"
	// KindGenerationRequest identifies the explicit "continue generating"
	// request. A tool result alone never resumes the conversation.
	KindGenerationRequest Kind = "generation.request"
	// KindToolResult identifies the outbound result for one tool call.
	KindToolResult Kind = "tool.result"
)

// Outbound marks events the local side may send over the channel.
type Outbound interface {
	Event
	outbound()
}

// TranscriptionConfig declares how the remote side should transcribe user
// audio.
type TranscriptionConfig struct {
	Model    string
	Language string
}

// TurnDetection declares the server-side voice-activity policy. A nil
// TurnDetection in SessionConfig disables remote turn detection entirely
// (manual input mode).
type TurnDetection struct {
	Type              string
	Threshold         float64
	PrefixPaddingMs   int
	SilenceDurationMs int
	CreateResponse    bool
}

// ToolDefinition is one entry of the tool catalog declared to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// SessionConfig declares transcription options, turn-detection policy,
// temperature and the tool catalog.
type SessionConfig struct {
	Base
	Instructions  string
	Transcription TranscriptionConfig
	TurnDetection *TurnDetection
	Temperature   float64
	Tools         []ToolDefinition
}

func (SessionConfig) outbound() {}

func NewSessionConfig(instructions string, transcription TranscriptionConfig, turnDetection *TurnDetection, temperature float64, tools []ToolDefinition) SessionConfig {
	return SessionConfig{
		Base:          NewBase(KindSessionConfig),
		Instructions:  instructions,
		Transcription: transcription,
		TurnDetection: turnDetection,
		Temperature:   temperature,
		Tools:         tools,
	}
}

// InputBufferClear discards any audio buffered on the remote side.
type InputBufferClear struct{ Base }

func (InputBufferClear) outbound() {}

func NewInputBufferClear() InputBufferClear {
	return InputBufferClear{Base: NewBase(KindInputBufferClear)}
}

// InputBufferCommit seals the buffered audio into a user turn.
type InputBufferCommit struct{ Base }

func (InputBufferCommit) outbound() {}

func NewInputBufferCommit() InputBufferCommit {
	return InputBufferCommit{Base: NewBase(KindInputBufferCommit)}
}

// GenerationRequest asks the model for its next generation step.
type GenerationRequest struct {
	Base
	Modalities   []string
	Instructions string
}

func (GenerationRequest) outbound() {}

func NewGenerationRequest() GenerationRequest {
	return GenerationRequest{Base: NewBase(KindGenerationRequest)}
}

// NewTextGenerationRequest builds a text-modality generation request with
// one-off instructions, used for the opening prompt of a session.
func NewTextGenerationRequest(instructions string) GenerationRequest {
	return GenerationRequest{
		Base:         NewBase(KindGenerationRequest),
		Modalities:   []string{"text"},
		Instructions: instructions,
	}
}

// ToolResult answers one tool call. Output is the serialized payload handed
// back to the model; Output is sent whether the invocation succeeded or
// failed so generation never stalls.
type ToolResult struct {
	Base
	CallID string
	Output string
}

func (ToolResult) outbound() {}

func NewToolResult(callID, output string) ToolResult {
	return ToolResult{Base: NewBase(KindToolResult), CallID: callID, Output: output}
}
