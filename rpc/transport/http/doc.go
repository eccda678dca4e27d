// Package http carries RPC messages as HTTP POST bodies.
//
// The server accepts POST /{shardId} and answers with the encoded response message.
// The client spreads requests round robin over its endpoints and retries on other
// endpoints when a request fails. Unlike the socket transports there is no pipelining,
// every request is a separate HTTP exchange, which makes it the easiest transport to
// put behind a load balancer.
package http
