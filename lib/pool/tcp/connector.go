package tcp

import (
	"context"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/pool"
	"github.com/ValentinKolb/fanout/lib/resolve"
	"net"
	"time"
)

var Logger = common.NewLogger("pool/tcp")

// Connector implements the pool.IConnector interface for plain TCP sockets.
// The TLS connector builds on it for the raw connection.
type Connector struct {
	dialer net.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pool.IConnector)
// --------------------------------------------------------------------------

func (c *Connector) GetName() string {
	return "tcp"
}

func (c *Connector) Dial(ctx context.Context, addr *net.TCPAddr) (net.Conn, error) {
	return c.dialer.DialContext(ctx, "tcp", addr.String())
}

// UpgradeConnection applies TCPConf and SocketConf to a dialed connection
func (c *Connector) UpgradeConnection(conn net.Conn, config common.PoolConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(config.TCP.TCPNoDelay); err != nil {
		return err
	}

	if config.Socket.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(config.Socket.WriteBufferSize); err != nil {
			return err
		}
	}

	if config.Socket.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(config.Socket.ReadBufferSize); err != nil {
			return err
		}
	}

	if config.TCP.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}

		keepAlivePeriod := time.Duration(config.TCP.TCPKeepAliveSec) * time.Second
		if err := tcpConn.SetKeepAlivePeriod(keepAlivePeriod); err != nil {
			return err
		}
	}

	if config.TCP.TCPLingerSec > 0 {
		if err := tcpConn.SetLinger(config.TCP.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Pool Factory Method
// --------------------------------------------------------------------------

// NewPool resolves host and port and creates a plain TCP pool. Resolution
// happens now, connections are opened by Connect. The error is a
// *resolve.ResolutionError.
func NewPool(host string, port uint32, config common.PoolConfig) (*pool.Pool, error) {
	addr, err := resolve.Resolve(host, port)
	if err != nil {
		Logger.Errorf("Failed to create pool: %v", err)
		return nil, err
	}

	endpoint := pool.Endpoint{Host: host, Port: port, Addr: addr}
	return pool.NewPool(endpoint, &Connector{}, config), nil
}
