// Package transport defines the duplex channel contract between the session
// core and a remote realtime model service.
package transport

import (
	"context"
	"time"

	"github.com/frontdesk-ai/frontdesk-core/core/events"
)

// CloseReason tags why a channel stopped. OnClosed fires exactly once per
// open channel with one of these.
type CloseReason string

const (
	CloseReasonUserRequested  CloseReason = "user_requested"
	CloseReasonExpired        CloseReason = "expired"
	CloseReasonRemoteClosed   CloseReason = "remote_closed"
	CloseReasonTransportError CloseReason = "transport_error"
)

// Credential is the time-limited secret used to authenticate the handshake.
type Credential struct {
	Secret    string
	ExpiresIn time.Duration
}

// Callbacks receive inbound traffic and the terminal close notice. OnEvent is
// invoked in strict channel arrival order.
type Callbacks struct {
	OnEvent  func(event events.Event)
	OnClosed func(reason CloseReason, err error)
}

// Channel is a duplex connection carrying structured control events and raw
// outbound media frames.
type Channel interface {
	// Open performs the one-shot offer/answer handshake and establishes the
	// control stream. It returns only once the channel is ready to send.
	Open(ctx context.Context, credential Credential, callbacks Callbacks) error

	// SendEvent encodes and sends one control event.
	SendEvent(ctx context.Context, event events.Outbound) error

	// SendAudio sends one raw media frame.
	SendAudio(frame []byte) error

	// Close tears the channel down with the given reason. Closing an already
	// closed channel is a no-op.
	Close(reason CloseReason) error
}
