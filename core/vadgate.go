package session

import (
	"sync"
	"time"
)

const (
	// defaultSilenceThreshold is the normalized RMS energy above which a
	// frame counts as speech.
	defaultSilenceThreshold = 0.01
	// defaultMinSpeech is the minimum accumulated speech time for a manual
	// utterance to commit.
	defaultMinSpeech = 300 * time.Millisecond
	// defaultHangover is the trailing silence required before an open manual
	// utterance auto-closes.
	defaultHangover = 500 * time.Millisecond
	// defaultSampleEvery is the fixed energy-sampling interval.
	defaultSampleEvery = 33 * time.Millisecond
)

// voiceGate watches local audio energy during a manual-mode utterance. It
// records when speech first exceeded the silence threshold and arms a
// hangover timer whenever energy drops back below it; energy rising again
// before the timer fires disarms it.
//
// Sampling runs on a fixed-interval ticker that starts on Begin and stops on
// End, so the gate is deterministic to drive from tests via observe.
type voiceGate struct {
	threshold   float64
	minSpeech   time.Duration
	hangover    time.Duration
	sampleEvery time.Duration

	level     func() float64
	onAutoEnd func()
	now       func() time.Time

	mu              sync.Mutex
	active          bool
	speechStartedAt time.Time
	hangoverTimer   *time.Timer
	stopSampler     chan struct{}
}

func newVoiceGate(level func() float64, onAutoEnd func()) *voiceGate {
	return &voiceGate{
		threshold:   defaultSilenceThreshold,
		minSpeech:   defaultMinSpeech,
		hangover:    defaultHangover,
		sampleEvery: defaultSampleEvery,
		level:       level,
		onAutoEnd:   onAutoEnd,
		now:         time.Now,
	}
}

func (g *voiceGate) Begin() {
	g.mu.Lock()
	if g.active {
		g.mu.Unlock()
		return
	}
	g.active = true
	g.speechStartedAt = time.Time{}
	stop := make(chan struct{})
	g.stopSampler = stop
	g.mu.Unlock()

	go g.sampleLoop(stop)
}

// End closes the gate and reports how much speech time accumulated before the
// close. Zero means energy never crossed the threshold.
func (g *voiceGate) End() time.Duration {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return 0
	}
	g.active = false
	if g.stopSampler != nil {
		close(g.stopSampler)
		g.stopSampler = nil
	}
	g.cancelHangoverLocked()
	speechStartedAt := g.speechStartedAt
	g.speechStartedAt = time.Time{}
	now := g.now()
	g.mu.Unlock()

	if speechStartedAt.IsZero() {
		return 0
	}
	return now.Sub(speechStartedAt)
}

func (g *voiceGate) Close() {
	g.End()
}

func (g *voiceGate) sampleLoop(stop chan struct{}) {
	ticker := time.NewTicker(g.sampleEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.observe(g.level(), g.now())
		}
	}
}

// observe folds one energy sample into the gate state.
func (g *voiceGate) observe(level float64, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return
	}

	if level > g.threshold {
		if g.speechStartedAt.IsZero() {
			g.speechStartedAt = now
		}
		g.cancelHangoverLocked()
		return
	}

	if !g.speechStartedAt.IsZero() && g.hangoverTimer == nil {
		g.hangoverTimer = time.AfterFunc(g.hangover, g.onAutoEnd)
	}
}

func (g *voiceGate) cancelHangoverLocked() {
	if g.hangoverTimer != nil {
		g.hangoverTimer.Stop()
		g.hangoverTimer = nil
	}
}
