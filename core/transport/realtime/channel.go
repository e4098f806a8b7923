// Package realtime implements the transport channel to the realtime model
// provider: a one-shot offer/answer handshake over HTTP followed by a
// websocket stream carrying JSON control events (text messages) and raw
// outbound media frames (binary messages).
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
	"github.com/frontdesk-ai/frontdesk-core/core/events"
	"github.com/frontdesk-ai/frontdesk-core/core/transport"
)

const DefaultBaseURL = "https://api.frontdesk.dev/v1/realtime"

type Config struct {
	BaseURL      string
	Model        string
	EncodingInfo audio.EncodingInfo
	HTTPClient   *http.Client
	Dialer       *websocket.Dialer
}

type Option func(*Config)

func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) Option {
	return func(c *Config) { c.EncodingInfo = encodingInfo }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// Channel is the concrete transport.Channel. A Channel may be opened at most
// once; a new session builds a new Channel.
type Channel struct {
	config Config

	mu        sync.Mutex
	conn      *websocket.Conn
	callbacks transport.Callbacks
	writeMu   sync.Mutex

	closeOnce   sync.Once
	closeReason transport.CloseReason
	closed      chan struct{}
}

var _ transport.Channel = (*Channel)(nil)

func NewChannel(opts ...Option) *Channel {
	config := Config{
		BaseURL:      DefaultBaseURL,
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		HTTPClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Dialer:       websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Channel{
		config: config,
		closed: make(chan struct{}),
	}
}

// Open performs the offer/answer handshake and dials the control stream. On
// return the channel is ready to send; a partial failure tears down whatever
// was established.
func (c *Channel) Open(ctx context.Context, credential transport.Credential, callbacks transport.Callbacks) error {
	ctx, span := tracer.Start(ctx, "open realtime channel")
	defer span.End()

	offer := buildOffer(uuid.NewString(), c.config.EncodingInfo)
	answer, err := c.exchangeOffer(ctx, offer, credential.Secret)
	if err != nil {
		return fmt.Errorf("offer/answer handshake failed: %w", err)
	}

	endpoint, err := parseAnswer(answer)
	if err != nil {
		return fmt.Errorf("invalid handshake answer: %w", err)
	}

	conn, resp, err := c.config.Dialer.DialContext(ctx, endpoint,
		http.Header{"Authorization": {"Bearer " + credential.Secret}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to open control stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.conn = conn
	c.callbacks = callbacks
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Channel) SendEvent(ctx context.Context, event events.Outbound) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

func (c *Channel) SendAudio(frame []byte) error {
	return c.write(websocket.BinaryMessage, frame)
}

func (c *Channel) write(messageType int, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel not open")
	}

	select {
	case <-c.closed:
		return fmt.Errorf("channel closed")
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(messageType, payload); err != nil {
		return fmt.Errorf("failed to send over control stream: %w", err)
	}
	return nil
}

// Close tears the stream down. The first close (local or remote) wins and
// fires OnClosed exactly once with its reason.
func (c *Channel) Close(reason transport.CloseReason) error {
	return c.closeWithReason(reason, nil)
}

func (c *Channel) closeWithReason(reason transport.CloseReason, cause error) error {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.closed)

		c.mu.Lock()
		conn := c.conn
		callbacks := c.callbacks
		c.mu.Unlock()

		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(reason)),
				closeDeadline())
			_ = conn.Close()
		}

		if callbacks.OnClosed != nil {
			callbacks.OnClosed(reason, cause)
		}
	})
	return nil
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				_ = c.closeWithReason(transport.CloseReasonRemoteClosed, nil)
			} else {
				_ = c.closeWithReason(transport.CloseReasonTransportError, err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		event, err := decodeEvent(payload)
		if err != nil {
			logger.Warn("dropping malformed control event", "error", err)
			continue
		}
		if event == nil {
			continue
		}

		c.mu.Lock()
		onEvent := c.callbacks.OnEvent
		c.mu.Unlock()
		if onEvent != nil {
			onEvent(event)
		}
	}
}
