// Package cmd implements the command-line interface of fanout.
//
// The package is organized into several subpackages:
//
//   - blast: Open N connections to an endpoint and send payloads over them
//   - sink: Accept connections and record what arrives on each
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See fanout -help for a list of all commands.
package cmd
