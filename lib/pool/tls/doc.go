// Package tls implements the TLS connection pool. It builds on the tcp
// package for the raw connection and adds a client handshake on top of it.
//
// Every connect attempt runs Connecting -> Handshaking -> {Connected | Failed}.
// The handshake validates the server certificate against the domain given to
// NewPool (tls.Config.ServerName). A certificate that does not match the domain,
// an untrusted certificate or a failed protocol negotiation is reported as an
// AttemptFailure of kind pool.FailureHandshake; the connection never enters the
// live set.
//
// Trusted roots come from common.TLSConf: an explicit pool, a PEM file, or the
// system roots if neither is given.
package tls
