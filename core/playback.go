package session

import (
	"context"
	"sync"
)

// PlaybackSink plays one fragment to completion. Play blocks until the
// fragment finished (or failed) and must be abortable via Abort.
type PlaybackSink interface {
	Play(ctx context.Context, fragment []byte) error
	Abort()
}

// playbackSequencer plays synthesized-audio fragments strictly in arrival
// order, one fragment fully played before the next starts. A fragment that
// fails to decode or play counts as finished so the queue never deadlocks.
type playbackSequencer struct {
	sink PlaybackSink

	mu      sync.Mutex
	queue   [][]byte
	playing bool
	stopped bool
	started bool

	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
}

func newPlaybackSequencer(sink PlaybackSink) *playbackSequencer {
	return &playbackSequencer{
		sink: sink,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (p *playbackSequencer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		cancel()
		return
	}
	p.started = true
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *playbackSequencer) Enqueue(fragment []byte) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, fragment)
	p.mu.Unlock()
	p.signal()
}

func (p *playbackSequencer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Stop clears the queue and abandons any in-flight playback. Stale audio
// never plays after a session ends.
func (p *playbackSequencer) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.queue = nil
	cancel := p.cancel
	started := p.started
	p.mu.Unlock()

	p.sink.Abort()
	if cancel != nil {
		cancel()
	}
	p.signal()
	if started {
		<-p.done
	}
}

func (p *playbackSequencer) run(ctx context.Context) {
	defer close(p.done)

	for {
		fragment, ok := p.next()
		if !ok {
			p.mu.Lock()
			stopped := p.stopped
			p.mu.Unlock()
			if stopped {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		if err := p.sink.Play(ctx, fragment); err != nil && ctx.Err() == nil {
			// Treated as finished; skipping keeps the queue moving.
			logger.Warn("skipping audio fragment", "error", PlaybackError{Err: err})
		}
	}
}

func (p *playbackSequencer) next() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || len(p.queue) == 0 {
		p.playing = false
		return nil, false
	}

	fragment := p.queue[0]
	p.queue = p.queue[1:]
	p.playing = true
	return fragment, true
}

func (p *playbackSequencer) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
