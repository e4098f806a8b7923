package realtime

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
)

func TestDecodeTranscriptionCompleted(t *testing.T) {
	payload := `{"type":"conversation.item.input_audio_transcription.completed","item_id":"item-1","transcript":"Hi"}`

	event, err := decodeEvent([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	completed, ok := event.(events.UserTranscriptionCompleted)
	if !ok {
		t.Fatalf("expected UserTranscriptionCompleted, got %T", event)
	}
	if completed.ItemID != "item-1" || completed.Transcript != "Hi" {
		t.Fatalf("unexpected event: %+v", completed)
	}
}

func TestDecodeTranscriptDeltaAndDone(t *testing.T) {
	delta, err := decodeEvent([]byte(`{"type":"response.audio_transcript.delta","response_id":"r1","delta":"Hel"}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if d, ok := delta.(events.AssistantTranscriptDelta); !ok || d.Delta != "Hel" {
		t.Fatalf("unexpected delta event: %#v", delta)
	}

	done, err := decodeEvent([]byte(`{"type":"response.audio_transcript.done","response_id":"r1","transcript":"Hello"}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if d, ok := done.(events.AssistantTranscriptDone); !ok || d.Transcript != "Hello" {
		t.Fatalf("unexpected done event: %#v", done)
	}
}

func TestDecodeAudioDelta(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("pcm-bytes"))
	event, err := decodeEvent([]byte(`{"type":"response.audio.delta","delta":"` + encoded + `"}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	audioDelta, ok := event.(events.AudioDelta)
	if !ok {
		t.Fatalf("expected AudioDelta, got %T", event)
	}
	if string(audioDelta.Audio) != "pcm-bytes" {
		t.Fatalf("unexpected audio payload: %q", audioDelta.Audio)
	}
}

func TestDecodeAudioDeltaRejectsBadBase64(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"type":"response.audio.delta","delta":"%%%"}`)); err == nil {
		t.Fatalf("expected error for invalid base64 audio")
	}
}

func TestDecodeResponseDoneExtractsFunctionCalls(t *testing.T) {
	payload := `{"type":"response.done","response":{"output":[` +
		`{"type":"message"},` +
		`{"type":"function_call","name":"check_availability","call_id":"call-1","arguments":"{\"date\":\"2026-09-01\"}"},` +
		`{"type":"function_call","name":"query_company_info","call_id":"call-2","arguments":"{}"}]}}`

	event, err := decodeEvent([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	done, ok := event.(events.GenerationDone)
	if !ok {
		t.Fatalf("expected GenerationDone, got %T", event)
	}
	if len(done.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(done.ToolCalls))
	}
	if done.ToolCalls[0].CallID != "call-1" || done.ToolCalls[0].Name != "check_availability" {
		t.Fatalf("unexpected first tool call: %+v", done.ToolCalls[0])
	}
}

func TestDecodeErrorEvent(t *testing.T) {
	event, err := decodeEvent([]byte(`{"type":"error","error":{"code":"server_error","message":"boom"}}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	errorEvent, ok := event.(events.Error)
	if !ok {
		t.Fatalf("expected Error, got %T", event)
	}
	if errorEvent.Code != "server_error" || errorEvent.Message != "boom" {
		t.Fatalf("unexpected error event: %+v", errorEvent)
	}
}

func TestDecodeUnknownTypeIsSkipped(t *testing.T) {
	event, err := decodeEvent([]byte(`{"type":"rate_limits.updated"}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if event != nil {
		t.Fatalf("expected unknown types to decode to nil, got %T", event)
	}
}

func TestEncodeSessionConfigKeepsExplicitNullTurnDetection(t *testing.T) {
	payload, err := encodeEvent(events.NewSessionConfig(
		"be helpful",
		events.TranscriptionConfig{Model: "whisper-1", Language: "en"},
		nil,
		0.6,
		nil,
	))
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	if !strings.Contains(string(payload), `"turn_detection":null`) {
		t.Fatalf("expected an explicit null turn_detection, got %s", payload)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("encoded payload is not valid JSON: %v", err)
	}
	if decoded["type"] != "session.update" {
		t.Fatalf("unexpected wire type: %v", decoded["type"])
	}
}

func TestEncodeSessionConfigWithToolsSetsToolChoice(t *testing.T) {
	payload, err := encodeEvent(events.NewSessionConfig(
		"",
		events.TranscriptionConfig{Model: "whisper-1"},
		&events.TurnDetection{Type: "server_vad", Threshold: 0.7, CreateResponse: true},
		0.6,
		[]events.ToolDefinition{{Name: "check_availability", Description: "check"}},
	))
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	var decoded struct {
		Session struct {
			ToolChoice    string `json:"tool_choice"`
			TurnDetection *struct {
				Type string `json:"type"`
			} `json:"turn_detection"`
			Tools []struct {
				Type string `json:"type"`
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"session"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Session.ToolChoice != "auto" {
		t.Fatalf("expected tool_choice auto with tools present, got %q", decoded.Session.ToolChoice)
	}
	if decoded.Session.TurnDetection == nil || decoded.Session.TurnDetection.Type != "server_vad" {
		t.Fatalf("expected server_vad turn detection, got %+v", decoded.Session.TurnDetection)
	}
	if len(decoded.Session.Tools) != 1 || decoded.Session.Tools[0].Type != "function" {
		t.Fatalf("expected one function tool, got %+v", decoded.Session.Tools)
	}
}

func TestEncodeBufferEvents(t *testing.T) {
	clearPayload, err := encodeEvent(events.NewInputBufferClear())
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(clearPayload) != `{"type":"input_audio_buffer.clear"}` {
		t.Fatalf("unexpected clear payload: %s", clearPayload)
	}

	commit, err := encodeEvent(events.NewInputBufferCommit())
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(commit) != `{"type":"input_audio_buffer.commit"}` {
		t.Fatalf("unexpected commit payload: %s", commit)
	}
}

func TestEncodeGenerationRequestVariants(t *testing.T) {
	plain, err := encodeEvent(events.NewGenerationRequest())
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(plain) != `{"type":"response.create"}` {
		t.Fatalf("unexpected plain payload: %s", plain)
	}

	text, err := encodeEvent(events.NewTextGenerationRequest("Greet the caller."))
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	var decoded struct {
		Response struct {
			Modalities   []string `json:"modalities"`
			Instructions string   `json:"instructions"`
		} `json:"response"`
	}
	if err := json.Unmarshal(text, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if len(decoded.Response.Modalities) != 1 || decoded.Response.Modalities[0] != "text" {
		t.Fatalf("expected text modality, got %v", decoded.Response.Modalities)
	}
	if decoded.Response.Instructions != "Greet the caller." {
		t.Fatalf("unexpected instructions: %q", decoded.Response.Instructions)
	}
}

func TestEncodeToolResult(t *testing.T) {
	payload, err := encodeEvent(events.NewToolResult("call-1", `{"success":true}`))
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}

	var decoded struct {
		Type string `json:"type"`
		Item struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		} `json:"item"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Type != "conversation.item.create" {
		t.Fatalf("unexpected wire type: %s", decoded.Type)
	}
	if decoded.Item.Type != "function_call_output" || decoded.Item.CallID != "call-1" {
		t.Fatalf("unexpected item: %+v", decoded.Item)
	}
	if decoded.Item.Output != `{"success":true}` {
		t.Fatalf("unexpected output: %q", decoded.Item.Output)
	}
}
