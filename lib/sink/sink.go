package sink

import (
	"crypto/tls"
	"errors"
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = common.NewLogger("sink")

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// Config configures a sink
type Config struct {
	// Endpoint is the listen address, e.g. 127.0.0.1:0
	Endpoint string
	// TLS terminates TLS on accepted connections if set
	TLS *tls.Config
	// ReadTimeout closes a connection that stays silent this long, 0 = never
	ReadTimeout time.Duration
	// BufferSize is the size of the read buffers, 0 = 64 KB
	BufferSize int
	// Limit closes every connection accepted after the first Limit ones, 0 = unlimited
	Limit int
}

// Sink accepts connections and records every byte received per connection
type Sink struct {
	config     Config
	listener   net.Listener
	bufferPool *sync.Pool

	recordings *xsync.MapOf[uint64, *Recording]
	nextID     atomic.Uint64
	accepted   *xsync.Counter
	rejected   *xsync.Counter
	received   *xsync.Counter

	// admitMu orders admitting a connection against Close draining open
	admitMu sync.Mutex
	open    *xsync.MapOf[uint64, net.Conn]
	wg      sync.WaitGroup
	closed  atomic.Bool
	serving atomic.Bool
}

// Listen creates the listener of a sink. Connections are accepted once Serve
// or Start is called.
func Listen(config Config) (*Sink, error) {
	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %w", err)
	}

	if config.TLS != nil {
		listener = tls.NewListener(listener, config.TLS)
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	return &Sink{
		config:   config,
		listener: listener,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
		recordings: xsync.NewMapOf[uint64, *Recording](),
		open:       xsync.NewMapOf[uint64, net.Conn](),
		accepted:   xsync.NewCounter(),
		rejected:   xsync.NewCounter(),
		received:   xsync.NewCounter(),
	}, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Addr returns the address the sink listens on
func (s *Sink) Addr() *net.TCPAddr {
	return s.listener.Addr().(*net.TCPAddr)
}

// Port returns the port the sink listens on
func (s *Sink) Port() uint32 {
	return uint32(s.Addr().Port)
}

// Serve accepts connections until Close is called. It always returns a non nil
// error, net.ErrClosed after Close.
func (s *Sink) Serve() error {
	if !s.serving.CompareAndSwap(false, true) {
		return errors.New("sink is already serving")
	}

	tlsInfo := "plain"
	if s.config.TLS != nil {
		tlsInfo = "tls"
	}
	Logger.Infof("Starting %s sink on %s", tlsInfo, s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return net.ErrClosed
			}
			Logger.Errorf("Accept error: %v", err)
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		if s.config.Limit > 0 && s.accepted.Value() >= int64(s.config.Limit) {
			s.rejected.Inc()
			Logger.Debugf("Rejecting connection from %s, limit of %d reached", conn.RemoteAddr(), s.config.Limit)
			conn.Close()
			continue
		}
		rec, ok := s.admit(conn)
		if !ok {
			conn.Close()
			return net.ErrClosed
		}

		// Handle the connection in a goroutine
		go s.handleConnection(conn, rec)
	}
}

// Start runs Serve in the background
func (s *Sink) Start() {
	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
			Logger.Errorf("Sink stopped: %v", err)
		}
	}()
}

// Close stops accepting, closes all open connections and waits for their
// handlers to finish
func (s *Sink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	err := s.listener.Close()

	// after this no connection can be admitted anymore
	s.admitMu.Lock()
	s.open.Range(func(id uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})
	s.admitMu.Unlock()

	s.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Inspection
// --------------------------------------------------------------------------

// Accepted returns the number of admitted connections
func (s *Sink) Accepted() int {
	return int(s.accepted.Value())
}

// Rejected returns the number of connections closed because of Limit
func (s *Sink) Rejected() int {
	return int(s.rejected.Value())
}

// Received returns the total number of bytes received
func (s *Sink) Received() int64 {
	return s.received.Value()
}

// Recordings returns a snapshot of every connection, ordered by accept order
func (s *Sink) Recordings() []Snapshot {
	snapshots := make([]Snapshot, 0, s.recordings.Size())
	s.recordings.Range(func(id uint64, rec *Recording) bool {
		snapshots = append(snapshots, rec.Snapshot())
		return true
	})
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })
	return snapshots
}

// WaitFor polls until cond holds or timeout elapsed. Returns whether cond held.
func (s *Sink) WaitFor(timeout time.Duration, cond func(s *Sink) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond(s) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// WaitReceived waits until at least total bytes have been received
func (s *Sink) WaitReceived(total int64, timeout time.Duration) bool {
	return s.WaitFor(timeout, func(s *Sink) bool { return s.Received() >= total })
}

// Summary returns accept counts and the spread of bytes over connections
func (s *Sink) Summary() Summary {
	snapshots := s.Recordings()
	perConn := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		perConn[i] = float64(len(snap.Data))
	}

	return Summary{
		Accepted:     s.Accepted(),
		Rejected:     s.Rejected(),
		Received:     s.Received(),
		Distribution: util.NewDistributionStats(perConn),
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// admit registers an accepted connection. It fails once Close has started.
func (s *Sink) admit(conn net.Conn) (*Recording, bool) {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	if s.closed.Load() {
		return nil, false
	}
	s.accepted.Inc()

	id := s.nextID.Add(1)
	rec := &Recording{ID: id, Remote: conn.RemoteAddr().String(), Accepted: time.Now()}
	s.recordings.Store(id, rec)
	s.open.Store(id, conn)
	s.wg.Add(1)

	return rec, true
}

// handleConnection reads from one connection until EOF, error or Close
func (s *Sink) handleConnection(conn net.Conn, rec *Recording) {
	defer s.wg.Done()
	defer s.open.Delete(rec.ID)
	defer conn.Close()

	buf := s.bufferPool.Get().([]byte)
	defer s.bufferPool.Put(buf)

	for {
		if s.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
				rec.finish(fmt.Errorf("failed to set read deadline: %w", err))
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			rec.append(buf[:n])
			s.received.Add(int64(n))
		}

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Debugf("Connection %d closed by client after %d bytes", rec.ID, rec.Len())
			rec.finish(nil)
			return
		}

		// Case error: log and close connection
		if err != nil {
			if !s.closed.Load() {
				Logger.Debugf("Error reading from connection %d: %v", rec.ID, err)
			}
			rec.finish(err)
			return
		}
	}
}
