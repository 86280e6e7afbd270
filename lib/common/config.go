package common

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Socket level configuration (applied to every dialed connection)
// --------------------------------------------------------------------------

// SocketConf holds buffer sizes for the kernel socket, 0 keeps the OS default
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec > 0 sets SO_LINGER, otherwise the OS default is kept
	TCPLingerSec int
}

// TLSConf configures the client side of the TLS handshake
type TLSConf struct {
	// RootCAs is used to verify the server certificate. If nil, CAFile is loaded,
	// and if that is empty too the system pool is used.
	RootCAs *x509.CertPool
	// CAFile is a path to a PEM bundle with additional trusted roots
	CAFile string
	// InsecureSkipVerify disables certificate and server name verification
	InsecureSkipVerify bool
	// MinVersion is the minimal TLS version (e.g. tls.VersionTLS12), 0 = library default
	MinVersion uint16
	// HandshakeTimeout bounds the handshake of a single attempt, 0 = no timeout
	HandshakeTimeout time.Duration
}

// --------------------------------------------------------------------------
// Pool configuration struct
// --------------------------------------------------------------------------

// PoolConfig holds all parameters of a connection pool
type PoolConfig struct {
	// ID identifies the pool in logs and metric labels, generated if empty
	ID string

	// ConnectTimeout bounds a single TCP connect attempt, 0 = transport default
	ConnectTimeout time.Duration
	// WriteTimeout bounds a single write during Send, 0 = no deadline
	WriteTimeout time.Duration
	// MaxInFlight limits concurrent connect attempts and writes, 0 = unlimited
	MaxInFlight int

	Socket SocketConf
	TCP    TCPConf
	TLS    TLSConf
}

// DefaultPoolConfig returns the configuration used when nothing else is given
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		TCP: TCPConf{
			TCPNoDelay: true,
		},
		TLS: TLSConf{
			MinVersion:       tls.VersionTLS12,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// String returns a formatted string representation of the pool configuration
func (c *PoolConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	optDuration := func(d time.Duration) string {
		if d <= 0 {
			return "default"
		}
		return d.String()
	}

	// General pool settings
	addSection("Pool Configuration")
	addField("ID", c.ID)
	addField("Connect Timeout", optDuration(c.ConnectTimeout))
	addField("Write Timeout", optDuration(c.WriteTimeout))
	if c.MaxInFlight > 0 {
		addField("Max In Flight", strconv.Itoa(c.MaxInFlight))
	} else {
		addField("Max In Flight", "unlimited")
	}

	// Socket options
	addSection("Socket")
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Socket.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Socket.ReadBufferSize))
	addField("TCP NoDelay", strconv.FormatBool(c.TCP.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCP.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCP.TCPLingerSec))

	// TLS
	addSection("TLS")
	addField("CA File", c.TLS.CAFile)
	addField("Skip Verify", strconv.FormatBool(c.TLS.InsecureSkipVerify))
	addField("Min Version", tls.VersionName(c.TLS.MinVersion))
	addField("Handshake Timeout", optDuration(c.TLS.HandshakeTimeout))

	return sb.String()
}
