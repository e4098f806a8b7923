package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
)

// buildOffer describes the local media capabilities as an SDP-style text
// blob. The remote side answers with the control-stream endpoint to dial.
func buildOffer(sessionID string, encodingInfo audio.EncodingInfo) string {
	var offer strings.Builder
	offer.WriteString("v=0\r\n")
	fmt.Fprintf(&offer, "o=frontdesk %s 0 IN IP4 0.0.0.0\r\n", sessionID)
	offer.WriteString("s=frontdesk-realtime\r\n")
	fmt.Fprintf(&offer, "m=audio 0 RAW/%d\r\n", encodingInfo.SampleRate)
	fmt.Fprintf(&offer, "a=encoding:%s\r\n", encodingInfo.Format.Name())
	fmt.Fprintf(&offer, "a=sample-rate:%d\r\n", encodingInfo.SampleRate)
	offer.WriteString("a=channels:1\r\n")
	return offer.String()
}

// exchangeOffer performs the one-shot offer/answer round trip, carrying the
// ephemeral credential as a bearer token.
func (c *Channel) exchangeOffer(ctx context.Context, offer, secret string) (string, error) {
	ctx, span := tracer.Start(ctx, "exchange realtime offer")
	defer span.End()
	span.SetAttributes(attribute.String("realtime.model", c.config.Model))

	handshakeURL := c.config.BaseURL
	if c.config.Model != "" {
		handshakeURL += "?" + url.Values{"model": {c.config.Model}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, handshakeURL, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("failed to build handshake request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("handshake request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read handshake answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("handshake rejected: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return string(body), nil
}

// parseAnswer extracts the control-stream endpoint from the remote answer.
func parseAnswer(answer string) (string, error) {
	for line := range strings.Lines(answer) {
		line = strings.TrimSpace(line)
		if endpoint, ok := strings.CutPrefix(line, "a=control:"); ok && endpoint != "" {
			return endpoint, nil
		}
	}
	return "", fmt.Errorf("answer carries no control endpoint")
}
