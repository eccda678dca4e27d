// Package common holds what the RPC client, server and transports share.
//
//   - Message is the single flat struct of every request and response. Store errors
//     travel as return code plus text, AsError turns them back into a *store.Error so
//     errors.Is(err, store.ErrBackendUnavailable) works on both sides of the wire.
//   - ServerConfig lists the shards a server hosts (lstore or dstore), the RAFT
//     settings of the dstore shards and the listen endpoint.
//   - ClientConfig lists the endpoints, timeout, retries and socket options of a client.
//   - InitLoggers routes the Dragonboat logger factory through one formatter, so RAFT
//     and dcoord log lines look the same.
package common
