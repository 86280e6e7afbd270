package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/pool"
	"github.com/ValentinKolb/fanout/lib/pool/tcp"
	"github.com/ValentinKolb/fanout/lib/resolve"
	"net"
	"os"
)

var Logger = common.NewLogger("pool/tls")

// Connector implements pool.IConnector and pool.IHandshaker. The raw connection
// is dialed and upgraded by the embedded TCP connector, the handshake verifies
// the peer against the configured domain.
type Connector struct {
	tcp.Connector
	config *tls.Config
}

// NewConnector creates a TLS connector that validates the server identity
// against domain
func NewConnector(domain string, conf common.TLSConf) (*Connector, error) {
	roots := conf.RootCAs
	if roots == nil && conf.CAFile != "" {
		pem, err := os.ReadFile(conf.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", conf.CAFile)
		}
	}

	return &Connector{
		config: &tls.Config{
			ServerName:         domain,
			RootCAs:            roots,
			InsecureSkipVerify: conf.InsecureSkipVerify,
			MinVersion:         conf.MinVersion,
		},
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pool.IConnector and pool.IHandshaker)
// --------------------------------------------------------------------------

func (c *Connector) GetName() string {
	return "tls"
}

func (c *Connector) Handshake(ctx context.Context, conn net.Conn) (net.Conn, error) {
	tlsConn := tls.Client(conn, c.config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}

	state := tlsConn.ConnectionState()
	Logger.Debugf("Handshake with %s done (%s, %s)",
		conn.RemoteAddr(), tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))

	return tlsConn, nil
}

// --------------------------------------------------------------------------
// Pool Factory Method
// --------------------------------------------------------------------------

// NewPool resolves host and port and creates a TLS pool whose handshakes
// validate the server certificate against domain. An empty domain falls back to
// host. Resolution errors are returned as *resolve.ResolutionError.
func NewPool(host string, port uint32, domain string, config common.PoolConfig) (*pool.Pool, error) {
	addr, err := resolve.Resolve(host, port)
	if err != nil {
		Logger.Errorf("Failed to create pool: %v", err)
		return nil, err
	}

	if domain == "" {
		domain = host
	}

	connector, err := NewConnector(domain, config.TLS)
	if err != nil {
		return nil, err
	}

	endpoint := pool.Endpoint{Host: host, Port: port, Addr: addr, Domain: domain}
	return pool.NewPool(endpoint, connector, config), nil
}
