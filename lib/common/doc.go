// Package common provides the configuration structures and the logging setup
// shared by all fanout packages.
//
// Key Components:
//
//   - PoolConfig: Timeouts, concurrency limit, socket options and TLS settings
//     of a connection pool. DefaultPoolConfig returns sane defaults and String
//     renders the configuration for the command line tools.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger registry. Every package declares its logger with NewLogger(name),
//     InitLoggers sets a default level and per-logger overrides such as
//     "warn,pool=debug".
package common
