//go:build cgo

package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	pending []byte
	marks   []playbackMark

	mu      sync.Mutex
	audioMu sync.Mutex
}

type playbackMark struct {
	position int
	done     chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// Play queues one fragment on the device and blocks until the device has
// consumed it, the context is cancelled, or the buffer is aborted.
func (c *playbackClient) Play(ctx context.Context, fragment []byte) error {
	c.mu.Lock()
	if c.device == nil {
		c.mu.Unlock()
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		c.mu.Unlock()
		return fmt.Errorf("device not started")
	}
	c.mu.Unlock()

	done := make(chan struct{})
	c.audioMu.Lock()
	c.pending = append(c.pending, fragment...)
	c.marks = append(c.marks, playbackMark{position: len(c.pending), done: done})
	c.audioMu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort drops all queued audio and releases every waiter.
func (c *playbackClient) Abort() {
	c.audioMu.Lock()
	marks := c.marks
	c.pending = nil
	c.marks = nil
	c.audioMu.Unlock()

	for _, mark := range marks {
		close(mark.done)
	}
}

func (c *playbackClient) Uninit() error {
	c.Abort()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		if need < len(pOutput) {
			pOutput = pOutput[:need]
		}

		c.audioMu.Lock()
		consumed := copy(pOutput, c.pending)
		if consumed > 0 {
			c.pending = c.pending[consumed:]
		}
		passed := 0
		for i := range c.marks {
			c.marks[i].position -= consumed
			if c.marks[i].position <= 0 && passed == i {
				passed++
			}
		}
		toRelease := c.marks[:passed]
		c.marks = c.marks[passed:]
		c.audioMu.Unlock()

		for _, mark := range toRelease {
			close(mark.done)
		}
	}
}
