// Package pool implements the transport independent core of a fan-out
// connection pool: a growing set of live connections to a single endpoint and
// a broadcast/scatter dispatch of payloads over them.
//
// A pool is created for an already resolved Endpoint and an IConnector that
// knows how to dial (and optionally handshake) a single connection. The tcp and
// tls subpackages provide the connectors and NewPool factories most callers use.
//
// Operations:
//
//	Connect(n)    n concurrent attempts, joins all, appends successes to the live set
//	Send(payload) writes payloads[i mod M] to live connection i, joins all
//	Close()       closes every live connection, further operations fail
//
// Failed attempts and failed writes are reported in ConnectReport and
// SendReport. They never abort the other attempts or writes of the same call.
package pool
