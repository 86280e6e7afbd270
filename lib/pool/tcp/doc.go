// Package tcp implements the plain TCP connection pool. It provides the
// pool.IConnector for raw TCP sockets and the NewPool factory.
//
// Dialed sockets are upgraded with the options of common.TCPConf and
// common.SocketConf (TCP_NODELAY, buffer sizes, keep-alive, linger) before they
// are admitted to the live set. A socket that can not be upgraded counts as a
// failed attempt.
//
// See the pool package documentation for the connect and send semantics.
package tcp
