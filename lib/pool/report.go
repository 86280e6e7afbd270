package pool

import (
	"fmt"
	"strings"
	"time"
)

// ConnectReport summarises one Connect call
type ConnectReport struct {
	Requested int
	Succeeded int
	Failed    int
	// Live is the size of the live set after the call
	Live int
	// Failures holds one entry per failed attempt, ordered by attempt index
	Failures []AttemptFailure
	Duration time.Duration
}

// HandshakeFailures returns the number of failures of kind FailureHandshake
func (r ConnectReport) HandshakeFailures() int {
	n := 0
	for _, f := range r.Failures {
		if f.IsHandshake() {
			n++
		}
	}
	return n
}

// String returns a one line summary
func (r ConnectReport) String() string {
	return fmt.Sprintf("connect: %d/%d succeeded (%d failed, %d handshake) in %s, live=%d",
		r.Succeeded, r.Requested, r.Failed, r.HandshakeFailures(), r.Duration, r.Live)
}

// SendReport summarises one Send call
type SendReport struct {
	// Connections is the size of the live set the payloads were spread over
	Connections int
	// Payloads is the number of payloads given by the caller
	Payloads int
	// UnusedPayloads counts payloads that had no connection left (Payloads > Connections)
	UnusedPayloads int
	// Written is the number of writes that completed
	Written int
	// Bytes is the total number of bytes written, including partial writes
	Bytes int64
	// Assignment maps live position i to the payload index it was sent
	Assignment []int
	// BytesPerConnection maps live position i to the bytes written on it
	BytesPerConnection []int
	Failures           []WriteFailure
	Duration           time.Duration
}

// String returns a one line summary
func (r SendReport) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("send: %d/%d writes completed, %d bytes in %s",
		r.Written, r.Connections, r.Bytes, r.Duration))
	if len(r.Failures) > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", len(r.Failures)))
	}
	if r.UnusedPayloads > 0 {
		sb.WriteString(fmt.Sprintf(", %d payloads unused", r.UnusedPayloads))
	}
	return sb.String()
}
