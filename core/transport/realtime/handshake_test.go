package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frontdesk-ai/frontdesk-core/core/audio"
	"github.com/frontdesk-ai/frontdesk-core/core/transport"
)

func TestBuildOfferDescribesEncoding(t *testing.T) {
	offer := buildOffer("session-1", audio.GetDefaultEncodingInfo())

	for _, want := range []string{
		"v=0",
		"o=frontdesk session-1",
		"m=audio 0 RAW/24000",
		"a=encoding:linear16",
		"a=sample-rate:24000",
		"a=channels:1",
	} {
		if !strings.Contains(offer, want) {
			t.Fatalf("expected offer to contain %q, got:\n%s", want, offer)
		}
	}
}

func TestParseAnswerExtractsControlEndpoint(t *testing.T) {
	answer := "v=0\r\ns=answer\r\na=control:wss://rt.example.com/v1/stream?id=abc\r\n"

	endpoint, err := parseAnswer(answer)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if endpoint != "wss://rt.example.com/v1/stream?id=abc" {
		t.Fatalf("unexpected endpoint: %q", endpoint)
	}
}

func TestParseAnswerWithoutControlLineFails(t *testing.T) {
	if _, err := parseAnswer("v=0\r\ns=answer\r\n"); err == nil {
		t.Fatalf("expected error for answer without a control endpoint")
	}
}

func TestExchangeOfferCarriesBearerCredential(t *testing.T) {
	var gotAuth, gotContentType, gotModel, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotModel = r.URL.Query().Get("model")
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = string(body)
		w.Write([]byte("v=0\r\na=control:wss://rt.example.com/stream\r\n"))
	}))
	defer server.Close()

	channel := NewChannel(WithBaseURL(server.URL), WithModel("gpt-4o-realtime-preview"))
	answer, err := channel.exchangeOffer(context.Background(), "v=0\r\n", "secret-token")
	if err != nil {
		t.Fatalf("unexpected handshake error: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("expected bearer credential, got %q", gotAuth)
	}
	if gotContentType != "application/sdp" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if gotModel != "gpt-4o-realtime-preview" {
		t.Fatalf("unexpected model parameter: %q", gotModel)
	}
	if gotBody != "v=0\r\n" {
		t.Fatalf("unexpected offer body: %q", gotBody)
	}
	if _, err := parseAnswer(answer); err != nil {
		t.Fatalf("expected a parseable answer, got %v", err)
	}
}

func TestOpenFailsWhenHandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credential", http.StatusUnauthorized)
	}))
	defer server.Close()

	channel := NewChannel(WithBaseURL(server.URL))
	err := channel.Open(context.Background(), transport.Credential{Secret: "bad"}, transport.Callbacks{})
	if err == nil {
		t.Fatalf("expected open to fail on a rejected handshake")
	}
}
