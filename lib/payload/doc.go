// Package payload loads the payload sequences sent by fanout blast, either from
// a YAML manifest or from command line values.
package payload
