package session

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
)

// InputMode selects who decides turn boundaries.
type InputMode string

const (
	// InputModeContinuous keeps the capture gate open for the whole active
	// period; the remote service detects turn boundaries.
	InputModeContinuous InputMode = "continuous"
	// InputModeManual is push-to-talk: the gate opens on BeginUtterance and
	// closes on EndUtterance.
	InputModeManual InputMode = "manual"
)

// CaptureDevice is a local microphone source. Exactly one capture device
// exists per session.
type CaptureDevice interface {
	StartCapture(ctx context.Context, onAudio func(frame []byte)) error
	StopCapture() error
	Close() error
	EncodingInfo() audio.EncodingInfo
}

type captureCallbacks struct {
	// onUtteranceBegin clears the remote input buffer before capture opens.
	onUtteranceBegin func()
	// onUtteranceCommit commits the buffered audio and requests a generation.
	onUtteranceCommit func()
	// onUtteranceDiscard clears the buffered audio without committing.
	onUtteranceDiscard func()
}

// captureManager owns the session's one microphone source and enforces the
// input-mode policy. The enabled flag is the only thing permitted to decide
// whether captured samples reach the transport.
type captureManager struct {
	device    CaptureDevice
	forward   func(frame []byte)
	callbacks captureCallbacks

	enabled   atomic.Bool
	levelBits atomic.Uint64

	mu            sync.Mutex
	mode          InputMode
	capturing     bool
	utteranceOpen bool

	gate *voiceGate
}

func newCaptureManager(device CaptureDevice, forward func(frame []byte), callbacks captureCallbacks) *captureManager {
	if forward == nil {
		forward = func([]byte) {}
	}
	manager := &captureManager{
		device:    device,
		forward:   forward,
		callbacks: callbacks,
		mode:      InputModeContinuous,
	}
	manager.gate = newVoiceGate(manager.Level, manager.autoEndUtterance)
	return manager
}

func (m *captureManager) Start(ctx context.Context, mode InputMode) error {
	m.mu.Lock()
	if m.capturing {
		m.mu.Unlock()
		return nil
	}
	m.capturing = true
	m.mode = mode
	m.mu.Unlock()

	m.enabled.Store(mode == InputModeContinuous)
	return m.device.StartCapture(ctx, m.onFrame)
}

// Mode reports the current input mode.
func (m *captureManager) Mode() InputMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode flips the gating policy. A mode switch never happens mid-capture:
// any open utterance is force-discarded first.
func (m *captureManager) SetMode(mode InputMode) {
	m.DiscardUtterance()

	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	m.enabled.Store(mode == InputModeContinuous)
}

// BeginUtterance opens a manual-mode capture (press-and-hold edge). It clears
// the remote buffer first so no stale audio precedes the utterance.
func (m *captureManager) BeginUtterance() {
	m.mu.Lock()
	if m.mode != InputModeManual || m.utteranceOpen || !m.capturing {
		m.mu.Unlock()
		return
	}
	m.utteranceOpen = true
	m.mu.Unlock()

	if m.callbacks.onUtteranceBegin != nil {
		m.callbacks.onUtteranceBegin()
	}
	m.enabled.Store(true)
	m.gate.Begin()
}

// EndUtterance closes a manual-mode capture (release edge or hangover). The
// buffered audio commits only when enough speech accumulated; a too-short
// press is silently treated as a non-event.
func (m *captureManager) EndUtterance() {
	m.endUtterance(true)
}

// DiscardUtterance closes any open capture through the discard path, never
// the commit path. Used on mode switches and session stop.
func (m *captureManager) DiscardUtterance() {
	m.endUtterance(false)
}

func (m *captureManager) autoEndUtterance() {
	m.endUtterance(true)
}

func (m *captureManager) endUtterance(mayCommit bool) {
	m.mu.Lock()
	if !m.utteranceOpen {
		m.mu.Unlock()
		return
	}
	m.utteranceOpen = false
	m.mu.Unlock()

	m.enabled.Store(false)
	speech := m.gate.End()

	if mayCommit && speech >= m.gate.minSpeech {
		if m.callbacks.onUtteranceCommit != nil {
			m.callbacks.onUtteranceCommit()
		}
		return
	}

	if m.callbacks.onUtteranceDiscard != nil {
		m.callbacks.onUtteranceDiscard()
	}
}

// Level reports the instantaneous energy of the most recent frame, whether or
// not the frame was forwarded.
func (m *captureManager) Level() float64 {
	return math.Float64frombits(m.levelBits.Load())
}

func (m *captureManager) Close() error {
	m.DiscardUtterance()
	m.gate.Close()
	m.enabled.Store(false)

	m.mu.Lock()
	m.capturing = false
	m.mu.Unlock()

	if err := m.device.StopCapture(); err != nil {
		_ = m.device.Close()
		return err
	}
	return m.device.Close()
}

func (m *captureManager) onFrame(frame []byte) {
	m.levelBits.Store(math.Float64bits(audio.Level(frame, m.device.EncodingInfo())))

	if !m.enabled.Load() {
		return
	}
	m.forward(frame)
}
