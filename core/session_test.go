package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
	"github.com/frontdesk-ai/frontdesk-core/core/transport"
)

type fakeCredentials struct {
	expiresIn time.Duration
	err       error
}

func (f fakeCredentials) Issue(context.Context) (transport.Credential, error) {
	if f.err != nil {
		return transport.Credential{}, f.err
	}
	expiresIn := f.expiresIn
	if expiresIn == 0 {
		expiresIn = time.Minute
	}
	return transport.Credential{Secret: "ephemeral", ExpiresIn: expiresIn}, nil
}

type fakeChannel struct {
	mu        sync.Mutex
	callbacks transport.Callbacks
	sent      []events.Outbound
	frames    int
	closed    bool
	reason    transport.CloseReason
	openErr   error
}

func (c *fakeChannel) Open(_ context.Context, _ transport.Credential, callbacks transport.Callbacks) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = callbacks
	return nil
}

func (c *fakeChannel) SendEvent(_ context.Context, event events.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("channel closed")
	}
	c.sent = append(c.sent, event)
	return nil
}

func (c *fakeChannel) SendAudio([]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	return nil
}

func (c *fakeChannel) Close(reason transport.CloseReason) error {
	c.mu.Lock()
	callbacks := c.callbacks
	alreadyClosed := c.closed
	c.closed = true
	c.reason = reason
	c.mu.Unlock()

	if !alreadyClosed && callbacks.OnClosed != nil {
		callbacks.OnClosed(reason, nil)
	}
	return nil
}

// deliver injects an inbound event as if it arrived from the remote side.
func (c *fakeChannel) deliver(event events.Event) {
	c.mu.Lock()
	onEvent := c.callbacks.OnEvent
	c.mu.Unlock()
	if onEvent != nil {
		onEvent(event)
	}
}

func (c *fakeChannel) remoteClose() {
	c.mu.Lock()
	callbacks := c.callbacks
	c.closed = true
	c.mu.Unlock()
	if callbacks.OnClosed != nil {
		callbacks.OnClosed(transport.CloseReasonRemoteClosed, nil)
	}
}

func (c *fakeChannel) sentEvents() []events.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Outbound{}, c.sent...)
}

type sessionFixture struct {
	sess    *Session
	channel *fakeChannel
	device  *fakeDevice
	sink    *recordingSink
	stopped chan StopReason
}

func newSessionFixture(t *testing.T, extra ...Option) *sessionFixture {
	t.Helper()

	fixture := &sessionFixture{
		channel: &fakeChannel{},
		device:  &fakeDevice{},
		sink:    &recordingSink{},
		stopped: make(chan StopReason, 4),
	}

	opts := append([]Option{
		WithCredentialSource(fakeCredentials{}),
		WithChannel(fixture.channel),
		WithCaptureDevice(fixture.device),
		WithPlaybackSink(fixture.sink),
		WithCallbacks(Callbacks{
			OnStopped: func(reason StopReason) { fixture.stopped <- reason },
		}),
	}, extra...)

	sess, err := NewSession(opts...)
	if err != nil {
		t.Fatalf("unexpected session construction error: %v", err)
	}
	fixture.sess = sess
	return fixture
}

func (f *sessionFixture) waitStopped(t *testing.T) StopReason {
	t.Helper()
	select {
	case reason := <-f.stopped:
		return reason
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for session stop")
		return ""
	}
}

func TestStartSendsSessionConfigFirst(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	if fixture.sess.State() != StateActive {
		t.Fatalf("expected active session, got %s", fixture.sess.State())
	}

	sent := fixture.channel.sentEvents()
	if len(sent) == 0 {
		t.Fatalf("expected at least the session config to be sent")
	}
	config, ok := sent[0].(events.SessionConfig)
	if !ok {
		t.Fatalf("expected session config first, got %T", sent[0])
	}
	if config.TurnDetection == nil {
		t.Fatalf("expected server turn detection in continuous mode")
	}
}

func TestStartInManualModeDisablesTurnDetection(t *testing.T) {
	fixture := newSessionFixture(t, WithInputMode(InputModeManual))

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	config := fixture.channel.sentEvents()[0].(events.SessionConfig)
	if config.TurnDetection != nil {
		t.Fatalf("expected no turn detection in manual mode")
	}
}

func TestStartCredentialFailureLeavesSessionIdle(t *testing.T) {
	fixture := &sessionFixture{channel: &fakeChannel{}, device: &fakeDevice{}, sink: &recordingSink{}}
	sess, err := NewSession(
		WithCredentialSource(fakeCredentials{err: fmt.Errorf("backend down")}),
		WithChannel(fixture.channel),
		WithCaptureDevice(fixture.device),
		WithPlaybackSink(fixture.sink),
	)
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	err = sess.Start(context.Background())
	var credentialErr CredentialError
	if !errors.As(err, &credentialErr) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle session after credential failure, got %s", sess.State())
	}
	if len(fixture.channel.sentEvents()) != 0 {
		t.Fatalf("expected nothing sent after credential failure")
	}
}

func TestStartHandshakeFailureLeavesSessionIdle(t *testing.T) {
	channel := &fakeChannel{openErr: fmt.Errorf("dial refused")}
	sess, err := NewSession(
		WithCredentialSource(fakeCredentials{}),
		WithChannel(channel),
		WithCaptureDevice(&fakeDevice{}),
		WithPlaybackSink(&recordingSink{}),
	)
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	err = sess.Start(context.Background())
	var transportErr TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle session after handshake failure, got %s", sess.State())
	}
}

func TestSessionStopsAtCredentialExpiry(t *testing.T) {
	fixture := newSessionFixture(t)
	fixture.sess.credentials = fakeCredentials{expiresIn: 30 * time.Millisecond}

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if reason := fixture.waitStopped(t); reason != StopReasonExpired {
		t.Fatalf("expected expiry stop, got %s", reason)
	}
	if fixture.sess.State() != StateIdle {
		t.Fatalf("expected idle session after expiry, got %s", fixture.sess.State())
	}

	turns := fixture.sess.Transcript()
	last := turns[len(turns)-1]
	if last.Role != TurnRoleSystem || last.Text != "Session expired. Please start a new conversation." {
		t.Fatalf("expected expiry notice as terminal system turn, got %+v", last)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	fixture.sess.Stop()
	fixture.sess.Stop()

	if reason := fixture.waitStopped(t); reason != StopReasonUserRequested {
		t.Fatalf("expected user-requested stop, got %s", reason)
	}
	select {
	case reason := <-fixture.stopped:
		t.Fatalf("expected a single stop notification, got a second: %s", reason)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPostStopEventsAreInert(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	fixture.sess.Stop()
	fixture.waitStopped(t)

	turnsBefore := len(fixture.sess.Transcript())
	fixture.channel.deliver(events.NewAssistantTranscriptDelta("resp-9", "late"))
	fixture.channel.deliver(events.NewAudioDelta([]byte("late-audio")))

	if len(fixture.sess.Transcript()) != turnsBefore {
		t.Fatalf("expected late events to leave the transcript untouched")
	}
	if len(fixture.sink.playedStrings()) != 0 {
		t.Fatalf("expected no playback after stop")
	}
}

func TestRemoteCloseStopsSession(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	fixture.channel.remoteClose()

	if reason := fixture.waitStopped(t); reason != StopReasonRemoteClosed {
		t.Fatalf("expected remote-closed stop, got %s", reason)
	}
}

func TestInboundEventsFlowToTranscriptAndPlayback(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	fixture.channel.deliver(events.NewUserTranscriptionCompleted("item-1", "Hi"))
	fixture.channel.deliver(events.NewAssistantTranscriptDone("resp-1", "Hello there, how can I help?"))
	fixture.channel.deliver(events.NewAudioDelta([]byte("pcm")))

	turns := fixture.sess.Transcript()
	if len(turns) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(turns))
	}
	if turns[0].Text != "Hi" || turns[1].Text != "Hello there, how can I help?" {
		t.Fatalf("unexpected transcript: %+v", turns)
	}

	waitForPlayed(t, fixture.sink, 1)
}

func TestSetInputModeRequiresActiveSession(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.SetInputMode(InputModeManual); err == nil {
		t.Fatalf("expected error switching mode on an idle session")
	}
}

func TestSetInputModeReannouncesConfig(t *testing.T) {
	fixture := newSessionFixture(t)

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	if err := fixture.sess.SetInputMode(InputModeManual); err != nil {
		t.Fatalf("unexpected mode switch error: %v", err)
	}

	sent := fixture.channel.sentEvents()
	last := sent[len(sent)-1]
	config, ok := last.(events.SessionConfig)
	if !ok {
		t.Fatalf("expected a session config after mode switch, got %T", last)
	}
	if config.TurnDetection != nil {
		t.Fatalf("expected turn detection disabled after switching to manual")
	}
	if fixture.sess.Mode() != InputModeManual {
		t.Fatalf("expected manual mode, got %s", fixture.sess.Mode())
	}
}

func TestOpeningPromptRequestsTextGeneration(t *testing.T) {
	fixture := newSessionFixture(t, WithOpeningPrompt("Greet the caller."))

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	var request *events.GenerationRequest
	for _, event := range fixture.channel.sentEvents() {
		if r, ok := event.(events.GenerationRequest); ok {
			request = &r
			break
		}
	}
	if request == nil {
		t.Fatalf("expected an opening generation request")
	}
	if request.Instructions != "Greet the caller." {
		t.Fatalf("unexpected opening instructions: %q", request.Instructions)
	}
}

func TestToolCallsDispatchConcurrently(t *testing.T) {
	calls := make(chan string, 2)
	tool := Tool{
		Name: "probe",
		execute: func(_ context.Context, arguments string) (string, error) {
			calls <- arguments
			return "{}", nil
		},
	}
	fixture := newSessionFixture(t, WithTools(tool))

	if err := fixture.sess.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer fixture.sess.Stop()

	fixture.channel.deliver(events.NewGenerationDone([]events.ToolCall{
		{CallID: "call-1", Name: "probe", Arguments: `{"n":1}`},
		{CallID: "call-2", Name: "probe", Arguments: `{"n":2}`},
	}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case arguments := <-calls:
			seen[arguments] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for tool invocations")
		}
	}
	if !seen[`{"n":1}`] || !seen[`{"n":2}`] {
		t.Fatalf("expected both tool calls invoked, got %v", seen)
	}
}

func TestNewSessionRequiresCollaborators(t *testing.T) {
	if _, err := NewSession(); err == nil {
		t.Fatalf("expected construction error without a credential source")
	}
	if _, err := NewSession(WithCredentialSource(fakeCredentials{})); err == nil {
		t.Fatalf("expected construction error without a channel")
	}
}
