package base

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dCoord/rpc/common"
)

// pipeConnector connects the client transport to an in-process server transport using net.Pipe
type pipeConnector struct {
	srv    *serverTransport
	refuse atomic.Bool
	dials  atomic.Int32
}

func (c *pipeConnector) GetName() string { return "pipe" }

func (c *pipeConnector) Connect(string) (net.Conn, error) {
	if c.refuse.Load() {
		return nil, errors.New("connection refused")
	}
	c.dials.Add(1)
	client, server := net.Pipe()
	go c.srv.handleConnection(server)
	return client, nil
}

func (c *pipeConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

func newPipeTransport(t *testing.T, connsPerEndpoint int) (*clientTransport, *pipeConnector) {
	t.Helper()
	srv := NewBaseServerTransport(nil, 1024, 4).(*serverTransport)
	srv.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})
	srv.prepare(common.ServerConfig{TimeoutSecond: 5})

	connector := &pipeConnector{srv: srv}
	client := NewBaseClientTransport(connector).(*clientTransport)
	err := client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{"pipe"},
			RetryCount:             2,
			ConnectionsPerEndpoint: connsPerEndpoint,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, connector
}

func TestSendRoundTrip(t *testing.T) {
	client, _ := newPipeTransport(t, 1)

	resp, err := client.Send(7, []byte("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "7:hello" {
		t.Errorf("expected 7:hello, got %q", resp)
	}

	// empty payloads are valid frames
	resp, err = client.Send(1, nil)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "1:" {
		t.Errorf("expected 1:, got %q", resp)
	}
}

func TestSendLargePayload(t *testing.T) {
	client, _ := newPipeTransport(t, 1)

	// larger than the pooled server buffer
	payload := bytes.Repeat([]byte("x"), 16*1024)
	resp, err := client.Send(3, payload)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(resp, append([]byte("3:"), payload...)) {
		t.Errorf("response of %d bytes does not match payload", len(resp))
	}
}

func TestConcurrentSendsAreCorrelated(t *testing.T) {
	client, connector := newPipeTransport(t, 3)
	if n := connector.dials.Load(); n != 3 {
		t.Fatalf("expected 3 connections, got %d", n)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(uint64(i), payload)
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("%d:req-%d", i, i); string(resp) != want {
				errs <- fmt.Errorf("expected %q, got %q", want, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestConcurrentSendsOnOneConnection(t *testing.T) {
	client, _ := newPipeTransport(t, 1)

	// more senders than server workers, the reader must drain responses while senders block on writes
	const senders = 50
	errs := make(chan error, senders)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < senders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				payload := bytes.Repeat([]byte{byte(i)}, 4096)
				resp, err := client.Send(uint64(i), payload)
				if err != nil {
					errs <- err
					return
				}
				if want := append([]byte(fmt.Sprintf("%d:", i)), payload...); !bytes.Equal(resp, want) {
					errs <- fmt.Errorf("response of sender %d does not match its request", i)
				}
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("concurrent sends did not finish in time")
	}
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestConnectErrors(t *testing.T) {
	connector := &pipeConnector{srv: NewBaseServerTransport(nil, 1024, 1).(*serverTransport)}
	client := NewBaseClientTransport(connector)

	if err := client.Connect(common.ClientConfig{}); err == nil {
		t.Error("expected error without endpoints")
	}

	connector.refuse.Store(true)
	err := client.Connect(common.ClientConfig{Transport: common.ClientTransportConfig{Endpoints: []string{"pipe"}}})
	if err == nil {
		t.Error("expected error if no endpoint is reachable")
	}
}

func TestSendAfterClose(t *testing.T) {
	client, _ := newPipeTransport(t, 1)
	_ = client.Close()

	if _, err := client.Send(1, []byte("x")); err == nil {
		t.Error("expected error after close")
	}
}

func TestOversizedFrameIsRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		header := make([]byte, frameHeaderSize)
		header[16] = 0xff // announces a payload of almost 4 GiB
		_, _ = client.Write(header)
	}()

	if _, _, _, err := readFrame(server, nil); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := bytes.Repeat([]byte("x"), 100)
	go func() {
		_ = writeFrame(client, 42, 7, payload)
	}()

	// the buffer is smaller than the payload, readFrame must allocate
	shardID, requestID, data, err := readFrame(server, make([]byte, 32))
	if err != nil {
		t.Fatalf("readFrame failed: %v", err)
	}
	if shardID != 42 || requestID != 7 {
		t.Errorf("expected shard 42 and request 7, got %d and %d", shardID, requestID)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch")
	}
}
