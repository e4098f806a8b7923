package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
)

// Tool is one entry of the dispatch table. Execute receives the raw argument
// payload and returns the serialized result handed back to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	execute func(ctx context.Context, arguments string) (string, error)
}

// toolDispatcher routes model-invoked tool calls to their handlers and
// answers every call exactly once. Calls are tracked independently by callId,
// so several may be in flight concurrently.
type toolDispatcher struct {
	send func(ctx context.Context, event events.Outbound) error

	mu      sync.Mutex
	tools   map[string]Tool
	open    map[string]struct{}
	retired map[string]struct{}
}

func newToolDispatcher(send func(ctx context.Context, event events.Outbound) error) *toolDispatcher {
	return &toolDispatcher{
		send:    send,
		tools:   map[string]Tool{},
		open:    map[string]struct{}{},
		retired: map[string]struct{}{},
	}
}

// register validates the dispatch table entries up front: a broken tool
// should fail session construction, not a live conversation.
func (d *toolDispatcher) register(tools ...Tool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("tool with empty name")
		}
		if tool.execute == nil {
			return fmt.Errorf("tool %q has no handler", tool.Name)
		}
		if _, exists := d.tools[tool.Name]; exists {
			return fmt.Errorf("tool %q registered twice", tool.Name)
		}
		d.tools[tool.Name] = tool
	}
	return nil
}

// catalog lists the registered tools as declared to the model.
func (d *toolDispatcher) catalog() []events.ToolDefinition {
	d.mu.Lock()
	defer d.mu.Unlock()

	definitions := make([]events.ToolDefinition, 0, len(d.tools))
	for _, tool := range d.tools {
		definitions = append(definitions, events.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return definitions
}

// HandleCall resolves one tool call and sends its result followed by an
// explicit generation request; a ToolResult alone never resumes the
// conversation. The model always receives a result, success or failure, so
// generation cannot stall.
func (d *toolDispatcher) HandleCall(ctx context.Context, call events.ToolCall) {
	ctx, span := tracer.Start(ctx, "dispatch tool call")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.CallID),
	)

	if !d.admit(call.CallID) {
		logger.Warn("dropping duplicate tool call", "call_id", call.CallID)
		return
	}

	output, err := d.resolve(ctx, call)
	if err != nil {
		invocationErr := ToolInvocationError{Tool: call.Name, Err: err}
		span.RecordError(invocationErr)
		span.SetStatus(codes.Error, invocationErr.Error())
		output = failureOutput(invocationErr.Error())
	}

	d.sendResult(ctx, call.CallID, output)
}

func (d *toolDispatcher) resolve(ctx context.Context, call events.ToolCall) (string, error) {
	d.mu.Lock()
	tool, known := d.tools[call.Name]
	d.mu.Unlock()

	if !known {
		return "", fmt.Errorf("unknown tool")
	}
	return tool.execute(ctx, call.Arguments)
}

// admit marks a callId as in flight. A callId the dispatcher has already
// seen, live or retired, is refused.
func (d *toolDispatcher) admit(callID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if callID == "" {
		return false
	}
	if _, inFlight := d.open[callID]; inFlight {
		return false
	}
	if _, done := d.retired[callID]; done {
		return false
	}
	d.open[callID] = struct{}{}
	return true
}

// sendResult answers one open callId and retires it. A result is never sent
// against a callId the dispatcher did not itself receive.
func (d *toolDispatcher) sendResult(ctx context.Context, callID, output string) {
	d.mu.Lock()
	if _, inFlight := d.open[callID]; !inFlight {
		d.mu.Unlock()
		logger.Warn("dropping result for unknown call", "call_id", callID)
		return
	}
	delete(d.open, callID)
	d.retired[callID] = struct{}{}
	d.mu.Unlock()

	if err := d.send(ctx, events.NewToolResult(callID, output)); err != nil {
		logger.Warn("failed to send tool result", "call_id", callID, "error", err)
		return
	}
	if err := d.send(ctx, events.NewGenerationRequest()); err != nil {
		logger.Warn("failed to request generation after tool result", "call_id", callID, "error", err)
	}
}

func failureOutput(message string) string {
	payload, err := json.Marshal(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: false, Message: message})
	if err != nil {
		return `{"success":false,"message":"tool invocation failed"}`
	}
	return string(payload)
}
