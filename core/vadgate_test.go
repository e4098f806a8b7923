package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestGate(onAutoEnd func()) (*voiceGate, *time.Time) {
	current := time.Unix(1000, 0)
	gate := newVoiceGate(func() float64 { return 0 }, onAutoEnd)
	// A long sample interval keeps the background sampler out of the way;
	// tests drive the gate through observe directly.
	gate.sampleEvery = time.Hour
	gate.now = func() time.Time { return current }
	return gate, &current
}

func TestGateReportsZeroSpeechWhenThresholdNeverCrossed(t *testing.T) {
	gate, current := newTestGate(func() {})

	gate.Begin()
	gate.observe(0.005, *current)
	*current = current.Add(150 * time.Millisecond)
	gate.observe(0.004, *current)

	if speech := gate.End(); speech != 0 {
		t.Fatalf("expected zero speech below threshold, got %v", speech)
	}
}

func TestGateMeasuresSpeechFromFirstLoudSample(t *testing.T) {
	gate, current := newTestGate(func() {})

	gate.Begin()
	gate.observe(0.004, *current)
	*current = current.Add(100 * time.Millisecond)
	gate.observe(0.2, *current)
	*current = current.Add(400 * time.Millisecond)

	if speech := gate.End(); speech != 400*time.Millisecond {
		t.Fatalf("expected 400ms of speech, got %v", speech)
	}
}

func TestGateArmsHangoverAfterSpeechGoesQuiet(t *testing.T) {
	autoEnds := atomic.Int32{}
	gate, current := newTestGate(func() { autoEnds.Add(1) })
	gate.hangover = 20 * time.Millisecond

	gate.Begin()
	gate.observe(0.2, *current)
	*current = current.Add(350 * time.Millisecond)
	gate.observe(0.001, *current)

	deadline := time.Now().Add(time.Second)
	for autoEnds.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected hangover timer to fire")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGateDisarmsHangoverWhenSpeechResumes(t *testing.T) {
	autoEnds := atomic.Int32{}
	gate, current := newTestGate(func() { autoEnds.Add(1) })
	gate.hangover = 30 * time.Millisecond

	gate.Begin()
	gate.observe(0.2, *current)
	gate.observe(0.001, *current)
	// Speech resumes before the hangover elapses.
	gate.observe(0.2, *current)

	time.Sleep(80 * time.Millisecond)
	if autoEnds.Load() != 0 {
		t.Fatalf("expected resumed speech to disarm the hangover timer")
	}
	gate.End()
}

func TestGateEndCancelsPendingHangover(t *testing.T) {
	autoEnds := atomic.Int32{}
	gate, current := newTestGate(func() { autoEnds.Add(1) })
	gate.hangover = 30 * time.Millisecond

	gate.Begin()
	gate.observe(0.2, *current)
	gate.observe(0.001, *current)
	gate.End()

	time.Sleep(80 * time.Millisecond)
	if autoEnds.Load() != 0 {
		t.Fatalf("expected End to cancel the armed hangover timer")
	}
}

func TestGateIgnoresSamplesWhileClosed(t *testing.T) {
	gate, current := newTestGate(func() {})

	gate.observe(0.5, *current)
	gate.Begin()
	*current = current.Add(time.Second)

	if speech := gate.End(); speech != 0 {
		t.Fatalf("expected samples before Begin to be ignored, got %v", speech)
	}
}
