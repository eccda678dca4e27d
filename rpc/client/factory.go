package client

import (
	"fmt"

	"github.com/ValentinKolb/dCoord/rpc/serializer"
	"github.com/ValentinKolb/dCoord/rpc/transport"
	"github.com/ValentinKolb/dCoord/rpc/transport/http"
	"github.com/ValentinKolb/dCoord/rpc/transport/tcp"
	"github.com/ValentinKolb/dCoord/rpc/transport/unix"
)

// NewTransport creates a client transport by name (http, tcp or unix)
func NewTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// NewSerializer creates a serializer by name (json, gob or binary)
func NewSerializer(name string) (serializer.IRPCSerializer, error) {
	switch name {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", name)
	}
}
