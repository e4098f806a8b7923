// Package session implements the realtime conversation core: it owns the
// duplex channel to the remote model service, arbitrates the two input modes,
// reconstructs the transcript from streaming events, sequences audio playback
// and dispatches tool calls, all under a single lifecycle state machine.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
	"github.com/frontdesk-ai/frontdesk-core/core/transport"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle       State = "idle"
	StateAcquiring  State = "acquiring"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
)

// StopReason tags why a session stopped. None of these are auto-retried; a
// stopped session must be rebuilt by the caller.
type StopReason string

const (
	StopReasonUserRequested  StopReason = "user_requested"
	StopReasonExpired        StopReason = "expired"
	StopReasonRemoteClosed   StopReason = "remote_closed"
	StopReasonTransportError StopReason = "transport_error"
)

// CredentialSource issues the time-limited credential a session authenticates
// with.
type CredentialSource interface {
	Issue(ctx context.Context) (transport.Credential, error)
}

// Callbacks surface session activity to the embedding UI. All of them may be
// nil.
type Callbacks struct {
	OnStateChanged      func(state State)
	OnTranscriptChanged func()
	OnStopped           func(reason StopReason)
}

const defaultInstructions = "You are an AI receptionist and assistant. You have two main functions: " +
	"1) Answer questions using the company knowledge base by calling the query_company_info function, " +
	"2) Help schedule appointments by collecting visitor information (name, date/time, reason for visit), " +
	"checking availability with check_availability and storing confirmed bookings with schedule_appointment. " +
	"Guide users through the booking process step by step and confirm all details before finalizing. " +
	"Always be professional, courteous and helpful. If asked about company information not available in " +
	"the knowledge base, politely inform the user."

const defaultTemperature = 0.6

// Session is the top-level state machine of one realtime conversation. It
// exclusively owns its credential, channel, capture and playback resources;
// nothing survives Stop.
type Session struct {
	id string

	channel    transport.Channel
	capture    *captureManager
	playback   *playbackSequencer
	transcript *transcript
	dispatcher *toolDispatcher

	credentials CredentialSource
	callbacks   Callbacks

	instructions  string
	temperature   float64
	openingPrompt string
	initialMode   InputMode

	captureDevice CaptureDevice
	playbackSink  PlaybackSink
	knowledge     KnowledgeBase
	appointments  AppointmentBook
	extraTools    []Tool

	// live gates every outbound send and every inbound mutation; it flips
	// off synchronously at the start of stop so late asynchronous
	// completions no-op instead of mutating a torn-down session.
	live atomic.Bool

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	expiresAt   time.Time
	expiryTimer *time.Timer
	baseContext context.Context
}

// NewSession builds an idle session. Start opens it.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		id:           uuid.NewString(),
		state:        StateIdle,
		instructions: defaultInstructions,
		temperature:  defaultTemperature,
		initialMode:  InputModeContinuous,
		baseContext:  context.Background(),
	}

	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.credentials == nil:
		return nil, fmt.Errorf("session requires a credential source")
	case s.channel == nil:
		return nil, fmt.Errorf("session requires a transport channel")
	case s.captureDevice == nil:
		return nil, fmt.Errorf("session requires a capture device")
	case s.playbackSink == nil:
		return nil, fmt.Errorf("session requires a playback sink")
	}

	s.transcript = newTranscript()
	s.transcript.setOnChanged(func() {
		if s.callbacks.OnTranscriptChanged != nil {
			s.callbacks.OnTranscriptChanged()
		}
	})

	s.playback = newPlaybackSequencer(s.playbackSink)

	s.dispatcher = newToolDispatcher(s.send)
	tools := receptionistTools(s.knowledge, s.appointments, s.transcript.SetPendingContext)
	tools = append(tools, s.extraTools...)
	if err := s.dispatcher.register(tools...); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	s.capture = newCaptureManager(s.captureDevice, s.forwardAudio, captureCallbacks{
		onUtteranceBegin:   func() { s.sendOrLog(events.NewInputBufferClear()) },
		onUtteranceCommit:  s.commitUtterance,
		onUtteranceDiscard: func() { s.sendOrLog(events.NewInputBufferClear()) },
	})

	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Mode() InputMode { return s.capture.Mode() }

// ExpiresAt reports when the session credential runs out; zero while idle.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Transcript returns a point-in-time copy of the conversation log.
func (s *Session) Transcript() []Turn { return s.transcript.Snapshot() }

// InputLevel reports the instantaneous microphone energy, for level meters.
func (s *Session) InputLevel() float64 { return s.capture.Level() }

// Start acquires a credential, opens the channel and begins capturing. Valid
// only from Idle. A failure leaves no partial session behind.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.state = StateAcquiring
	s.baseContext = ctx
	s.mu.Unlock()
	s.notifyState(StateAcquiring)

	credential, err := s.credentials.Issue(ctx)
	if err != nil {
		s.setState(StateIdle)
		credErr := CredentialError{Err: err}
		span.RecordError(credErr)
		span.SetStatus(codes.Error, credErr.Error())
		return credErr
	}

	s.live.Store(true)
	now := time.Now()
	s.mu.Lock()
	s.startedAt = now
	s.expiresAt = now.Add(credential.ExpiresIn)
	s.expiryTimer = time.AfterFunc(credential.ExpiresIn, s.expire)
	s.state = StateConnecting
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	if err := s.channel.Open(ctx, credential, transport.Callbacks{
		OnEvent:  s.handleEvent,
		OnClosed: s.handleClosed,
	}); err != nil {
		s.abortStart()
		transportErr := TransportError{Err: err}
		span.RecordError(transportErr)
		span.SetStatus(codes.Error, transportErr.Error())
		return transportErr
	}

	// The session configuration must be the first event on the stream.
	if err := s.send(ctx, s.configEvent(s.initialMode)); err != nil {
		s.abortStart()
		_ = s.channel.Close(transport.CloseReasonTransportError)
		return TransportError{Err: err}
	}

	s.playback.Start(ctx)

	if err := s.capture.Start(ctx, s.initialMode); err != nil {
		s.abortStart()
		_ = s.channel.Close(transport.CloseReasonTransportError)
		s.playback.Stop()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	s.setState(StateActive)

	if s.openingPrompt != "" {
		s.sendOrLog(events.NewTextGenerationRequest(s.openingPrompt))
	}

	return nil
}

// Stop tears the session down at the user's request. Stopping an idle
// session is a no-op.
func (s *Session) Stop() {
	s.stop(StopReasonUserRequested, nil)
}

// SetInputMode switches between continuous and manual input. Only meaningful
// while active; any open utterance is discarded, never committed, before the
// new mode applies.
func (s *Session) SetInputMode(mode InputMode) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return fmt.Errorf("input mode can only change while active")
	}
	s.mu.Unlock()

	if s.capture.Mode() == mode {
		return nil
	}

	s.capture.SetMode(mode)
	s.sendOrLog(events.NewInputBufferClear())
	// Re-announce the mode so the remote side adjusts its turn detection.
	return s.send(s.currentContext(), s.configEvent(mode))
}

// BeginUtterance opens a manual-mode push-to-talk capture.
func (s *Session) BeginUtterance() {
	if !s.live.Load() {
		return
	}
	s.capture.BeginUtterance()
}

// EndUtterance releases a manual-mode capture; too little speech discards it.
func (s *Session) EndUtterance() {
	s.capture.EndUtterance()
}

func (s *Session) expire() {
	s.stop(StopReasonExpired, nil)
}

func (s *Session) handleClosed(reason transport.CloseReason, cause error) {
	if !s.live.Load() {
		return
	}

	switch reason {
	case transport.CloseReasonRemoteClosed:
		s.stop(StopReasonRemoteClosed, cause)
	default:
		s.stop(StopReasonTransportError, cause)
	}
}

func (s *Session) stop(reason StopReason, cause error) {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	timer := s.expiryTimer
	s.expiryTimer = nil
	s.mu.Unlock()
	s.notifyState(StateClosing)

	// Flip liveness first: nothing sends and nothing mutates from here on.
	s.live.Store(false)
	if timer != nil {
		timer.Stop()
	}

	// An open capture is always discarded, never committed, on teardown.
	s.capture.DiscardUtterance()
	_ = s.channel.Close(closeReasonFor(reason))
	if err := s.capture.Close(); err != nil {
		logger.Warn("failed to close audio capture", "error", err)
	}
	s.playback.Stop()

	s.transcript.AppendSystemNotice(stopNotice(reason, cause))

	s.mu.Lock()
	s.state = StateIdle
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	s.notifyState(StateIdle)

	if s.callbacks.OnStopped != nil {
		s.callbacks.OnStopped(reason)
	}
}

// abortStart rolls a failed Start back to Idle without the full stop path.
func (s *Session) abortStart() {
	s.live.Store(false)
	s.mu.Lock()
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	s.expiresAt = time.Time{}
	s.state = StateIdle
	s.mu.Unlock()
	s.notifyState(StateIdle)
}

// handleEvent processes inbound control events in arrival order. Audio
// fragments go to the sequencer, tool calls to the dispatcher, everything
// else to the transcript.
func (s *Session) handleEvent(event events.Event) {
	if !s.live.Load() {
		return
	}

	switch typedEvent := event.(type) {
	case events.AudioDelta:
		s.playback.Enqueue(typedEvent.Audio)
	case events.GenerationDone:
		for _, call := range typedEvent.ToolCalls {
			// Each call resolves independently; two may be in flight.
			go s.dispatcher.HandleCall(s.currentContext(), call)
		}
	default:
		s.transcript.Apply(event)
	}
}

func (s *Session) commitUtterance() {
	span := trace.SpanFromContext(s.currentContext())
	span.AddEvent("utterance committed")

	s.sendOrLog(events.NewInputBufferCommit())
	s.sendOrLog(events.NewGenerationRequest())
}

func (s *Session) forwardAudio(frame []byte) {
	if !s.live.Load() {
		return
	}
	if err := s.channel.SendAudio(frame); err != nil {
		logger.Warn("failed to forward audio frame", "error", err)
	}
}

func (s *Session) send(ctx context.Context, event events.Outbound) error {
	if !s.live.Load() {
		return fmt.Errorf("session is not live")
	}
	return s.channel.SendEvent(ctx, event)
}

func (s *Session) sendOrLog(event events.Outbound) {
	if err := s.send(s.currentContext(), event); err != nil {
		logger.Warn("failed to send control event", "kind", string(event.Kind()), "error", err)
	}
}

func (s *Session) configEvent(mode InputMode) events.SessionConfig {
	var turnDetection *events.TurnDetection
	if mode == InputModeContinuous {
		turnDetection = &events.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.7,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 800,
			CreateResponse:    true,
		}
	}

	return events.NewSessionConfig(
		s.instructions,
		events.TranscriptionConfig{Model: "whisper-1", Language: "en"},
		turnDetection,
		s.temperature,
		s.dispatcher.catalog(),
	)
}

func (s *Session) currentContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseContext != nil {
		return s.baseContext
	}
	return context.Background()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.notifyState(state)
}

func (s *Session) notifyState(state State) {
	if s.callbacks.OnStateChanged != nil {
		s.callbacks.OnStateChanged(state)
	}
}

func closeReasonFor(reason StopReason) transport.CloseReason {
	switch reason {
	case StopReasonExpired:
		return transport.CloseReasonExpired
	case StopReasonRemoteClosed:
		return transport.CloseReasonRemoteClosed
	case StopReasonTransportError:
		return transport.CloseReasonTransportError
	}
	return transport.CloseReasonUserRequested
}

func stopNotice(reason StopReason, cause error) string {
	switch reason {
	case StopReasonExpired:
		return "Session expired. Please start a new conversation."
	case StopReasonRemoteClosed:
		return "The assistant ended the connection. Please start a new conversation."
	case StopReasonTransportError:
		if cause != nil {
			return fmt.Sprintf("Connection lost: %v. Please start a new conversation.", cause)
		}
		return "Connection lost. Please start a new conversation."
	}
	return "Disconnected from the assistant."
}
