package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ValentinKolb/dCoord/rpc/common"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := &httpServerTransport{}
	srv.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{shardId}", loggerMiddleware(srv.handleRequest))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHttpRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	client := NewHttpClientTransport()
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{ts.URL}, RetryCount: 2},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	resp, err := client.Send(100, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "100:ping" {
		t.Errorf("expected 100:ping, got %q", resp)
	}
}

func TestHttpInvalidShard(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/not-a-number", "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHttpConnectErrors(t *testing.T) {
	client := NewHttpClientTransport()

	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("expected error without endpoints")
	}
	err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"localhost"}}})
	if err == nil {
		t.Error("expected error for endpoint without scheme")
	}
	if _, err := NewHttpClientTransport().Send(1, nil); err == nil {
		t.Error("expected error for unconnected transport")
	}
}

func TestHttpUnreachable(t *testing.T) {
	ts := newTestServer(t)
	url := ts.URL
	ts.Close()

	client := NewHttpClientTransport()
	if err := client.Connect(common.ClientConfig{
		TimeoutSecond: 1,
		Transport:     common.ClientTransportConfig{Endpoints: []string{url}, RetryCount: 2},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Error("expected error for closed server")
	}
}
