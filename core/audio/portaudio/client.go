//go:build cgo

// Package portaudio provides a PortAudio-backed capture/playback client as an
// alternative to the miniaudio one for hosts where malgo misbehaves.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []int16
	out []int16

	capturing atomic.Bool
	stopped   chan struct{}

	writeMu sync.Mutex
	aborted atomic.Bool
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(frame []byte)) error {
	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		c.capturing.Store(false)
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	c.stopped = make(chan struct{})
	go func() {
		defer close(c.stopped)
		for {
			select {
			case <-ctx.Done():
				c.capturing.Store(false)
				return
			default:
			}
			if !c.capturing.Load() {
				return
			}

			if err := c.stream.Read(); err != nil {
				continue
			}

			frame := bytes.Buffer{}
			_ = binary.Write(&frame, binary.LittleEndian, c.in)
			onAudio(frame.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if !c.capturing.CompareAndSwap(true, false) {
		return nil
	}
	if c.stopped != nil {
		<-c.stopped
	}
	return nil
}

// Play writes one fragment to the output stream, blocking for its duration.
func (c *Client) Play(ctx context.Context, fragment []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.aborted.Store(false)
	frameBytes := c.bufferSize * 2
	for off := 0; off < len(fragment); off += frameBytes {
		if c.aborted.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := off + frameBytes
		chunk := fragment[off:min(end, len(fragment))]
		for i := range c.out {
			c.out[i] = 0
		}
		_ = binary.Read(bytes.NewBuffer(chunk), binary.LittleEndian, c.out[:len(chunk)/2])
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
	}

	return nil
}

// Abort stops feeding the current fragment as soon as possible.
func (c *Client) Abort() {
	c.aborted.Store(true)
}

func (c *Client) Close() error {
	_ = c.StopCapture()
	err := c.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
