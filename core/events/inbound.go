package events

const (
	// KindUserTranscriptionCompleted identifies a finished user-side
	// transcription. The text is final, never incremental.
	KindUserTranscriptionCompleted Kind = "user.transcription.completed"
	// KindAssistantTranscriptDelta identifies an incremental piece of the
	// assistant's spoken transcript.
	KindAssistantTranscriptDelta Kind = "assistant.transcript.delta"
	// KindAssistantTranscriptDone identifies the authoritative final
	// assistant transcript for the current response.
	KindAssistantTranscriptDone Kind = "assistant.transcript.done"
	// KindAudioDelta identifies one synthesized audio fragment.
	KindAudioDelta Kind = "audio.delta"
	// KindGenerationDone identifies the end of a generation step, possibly
	// carrying tool invocations.
	KindGenerationDone Kind = "generation.done"
	// KindError identifies a remote error notice.
	KindError Kind = "error"
)

// UserTranscriptionCompleted carries the final transcript of one user turn.
type UserTranscriptionCompleted struct {
	Base
	ItemID     string
	Transcript string
}

func NewUserTranscriptionCompleted(itemID, transcript string) UserTranscriptionCompleted {
	return UserTranscriptionCompleted{Base: NewBase(KindUserTranscriptionCompleted), ItemID: itemID, Transcript: transcript}
}

// AssistantTranscriptDelta carries a preview fragment of the assistant's
// transcript. Deltas are not guaranteed to concatenate to the final text.
type AssistantTranscriptDelta struct {
	Base
	ResponseID string
	Delta      string
}

func NewAssistantTranscriptDelta(responseID, delta string) AssistantTranscriptDelta {
	return AssistantTranscriptDelta{Base: NewBase(KindAssistantTranscriptDelta), ResponseID: responseID, Delta: delta}
}

// AssistantTranscriptDone carries the authoritative final transcript that
// replaces any accumulated deltas.
type AssistantTranscriptDone struct {
	Base
	ResponseID string
	Transcript string
}

func NewAssistantTranscriptDone(responseID, transcript string) AssistantTranscriptDone {
	return AssistantTranscriptDone{Base: NewBase(KindAssistantTranscriptDone), ResponseID: responseID, Transcript: transcript}
}

// AudioDelta carries one decoded synthesized-audio fragment. Fragments are
// consumed exactly once, in arrival order.
type AudioDelta struct {
	Base
	Audio []byte
}

func NewAudioDelta(audio []byte) AudioDelta {
	return AudioDelta{Base: NewBase(KindAudioDelta), Audio: audio}
}

// ToolCall is one model-requested tool invocation embedded in a
// generation-done event.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// GenerationDone marks the end of a generation step.
type GenerationDone struct {
	Base
	ToolCalls []ToolCall
}

func NewGenerationDone(toolCalls []ToolCall) GenerationDone {
	return GenerationDone{Base: NewBase(KindGenerationDone), ToolCalls: toolCalls}
}

// Error carries a remote error notice. It does not terminate the session.
type Error struct {
	Base
	Code    string
	Message string
}

func NewError(code, message string) Error {
	return Error{Base: NewBase(KindError), Code: code, Message: message}
}
