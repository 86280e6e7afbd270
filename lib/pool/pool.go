package pool

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/util"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = common.NewLogger("pool")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the transport-specific part of establishing a connection
type IConnector interface {
	// GetName returns the name of the transport type (e.g., "tcp", "tls")
	GetName() string

	// Dial establishes a single raw connection to addr
	Dial(ctx context.Context, addr *net.TCPAddr) (net.Conn, error)

	// UpgradeConnection applies protocol-specific settings to a dialed connection
	UpgradeConnection(conn net.Conn, config common.PoolConfig) error
}

// IHandshaker is implemented by connectors that need a second setup stage on
// top of the dialed connection (e.g. TLS). The returned connection replaces the
// raw one in the live set.
type IHandshaker interface {
	Handshake(ctx context.Context, conn net.Conn) (net.Conn, error)
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// Endpoint is the resolved target of a pool. It never changes after construction.
type Endpoint struct {
	Host string
	Port uint32
	Addr *net.TCPAddr
	// Domain is the name the peer certificate is verified against (TLS only)
	Domain string
}

func (e Endpoint) String() string {
	target := net.JoinHostPort(e.Host, strconv.FormatUint(uint64(e.Port), 10))
	if e.Addr != nil && e.Addr.String() != target {
		target = fmt.Sprintf("%s (%s)", target, e.Addr)
	}
	if e.Domain != "" {
		target += " domain=" + e.Domain
	}
	return target
}

// Pool owns a growing set of live connections to one endpoint and spreads
// payloads over them
type Pool struct {
	id        string
	endpoint  Endpoint
	connector IConnector
	config    common.PoolConfig
	metrics   *poolMetrics

	opMu    sync.Mutex // serialises Connect, Send and Close
	conns   []net.Conn
	connsMu sync.RWMutex
	closed  atomic.Bool
}

// -----------------------------------------------------------
// Pool Factory Method (used for tcp, tls)
// -----------------------------------------------------------

// NewPool creates a pool for an already resolved endpoint. No connection is
// opened until Connect is called.
func NewPool(endpoint Endpoint, connector IConnector, config common.PoolConfig) *Pool {
	id := config.ID
	if id == "" {
		id = uuid.NewString()
	}
	config.ID = id

	p := &Pool{
		id:        id,
		endpoint:  endpoint,
		connector: connector,
		config:    config,
	}
	p.metrics = newPoolMetrics(id, connector.GetName(), func() float64 {
		return float64(p.Len())
	})

	Logger.Debugf("Created %s pool %s for %s", connector.GetName(), id, endpoint)
	return p
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// ID returns the pool id used in logs and metric labels
func (p *Pool) ID() string {
	return p.id
}

// Name returns the transport name of the pool
func (p *Pool) Name() string {
	return p.connector.GetName()
}

// Endpoint returns the resolved target of the pool
func (p *Pool) Endpoint() Endpoint {
	return p.endpoint
}

// Config returns the configuration of the pool
func (p *Pool) Config() common.PoolConfig {
	return p.config
}

// Len returns the size of the live set
func (p *Pool) Len() int {
	p.connsMu.RLock()
	defer p.connsMu.RUnlock()
	return len(p.conns)
}

// WriteMetrics writes the metrics of the pool in Prometheus text format
func (p *Pool) WriteMetrics(w io.Writer) {
	p.metrics.write(w)
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Connect launches count concurrent connect attempts and returns once all of
// them settled. Successful connections are appended to the live set in the
// order they completed. Failed attempts are reported, never retried.
// The only error is ErrPoolClosed.
func (p *Pool) Connect(count uint32) (ConnectReport, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	report := ConnectReport{Requested: int(count)}
	if p.closed.Load() {
		return report, ErrPoolClosed
	}

	start := time.Now()
	established := util.NewCollector[net.Conn]()
	failed := util.NewCollector[AttemptFailure]()

	var g errgroup.Group
	if p.config.MaxInFlight > 0 {
		g.SetLimit(p.config.MaxInFlight)
	}

	for i := 0; i < int(count); i++ {
		attempt := i
		g.Go(func() error {
			conn, failure := p.attempt(attempt)
			if failure != nil {
				failed.Push(*failure)
			} else {
				established.Push(conn)
			}
			return nil
		})
	}

	// join barrier, no attempt returns an error
	_ = g.Wait()
	established.Seal()
	failed.Seal()

	admitted := established.Drain()

	p.connsMu.Lock()
	p.conns = append(p.conns, admitted...)
	live := len(p.conns)
	p.connsMu.Unlock()

	failures := failed.Drain()
	sort.Slice(failures, func(i, j int) bool { return failures[i].Attempt < failures[j].Attempt })

	report.Succeeded = len(admitted)
	report.Failed = len(failures)
	report.Failures = failures
	report.Live = live
	report.Duration = time.Since(start)

	if report.Failed > 0 {
		Logger.Warningf("Pool %s: %d of %d connect attempts to %s failed (%d handshake)",
			p.id, report.Failed, report.Requested, p.endpoint, report.HandshakeFailures())
	}
	Logger.Infof("Pool %s: connected %d out of %d to %s using %s transport, %d live",
		p.id, report.Succeeded, report.Requested, p.endpoint, p.connector.GetName(), live)

	return report, nil
}

// Send writes payloads[i mod len(payloads)] to the connection at live position i,
// all writes concurrently, and returns once every write has settled. A failed
// write is reported and does not affect the others.
//
// With an empty live set Send does nothing. Without payloads but with live
// connections it returns ErrNoPayloads. If there are more payloads than live
// connections, only the first Len() payloads are sent.
func (p *Pool) Send(payloads [][]byte) (SendReport, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	report := SendReport{Payloads: len(payloads)}
	if p.closed.Load() {
		return report, ErrPoolClosed
	}

	p.connsMu.RLock()
	targets := make([]Target, len(p.conns))
	for i, conn := range p.conns {
		targets[i] = conn
	}
	p.connsMu.RUnlock()

	report.Connections = len(targets)
	if len(targets) == 0 {
		return report, nil
	}
	if len(payloads) == 0 {
		return report, ErrNoPayloads
	}
	if len(payloads) > len(targets) {
		report.UnusedPayloads = len(payloads) - len(targets)
	}

	start := time.Now()
	outcomes := Dispatch(targets, payloads, DispatchOptions{
		WriteTimeout: p.config.WriteTimeout,
		Limit:        p.config.MaxInFlight,
	})

	report.Assignment = make([]int, len(outcomes))
	report.BytesPerConnection = make([]int, len(outcomes))
	for i, outcome := range outcomes {
		p.metrics.observeWrite(outcome)

		report.Assignment[i] = outcome.PayloadIndex
		report.BytesPerConnection[i] = outcome.Written
		report.Bytes += int64(outcome.Written)

		if outcome.Err != nil {
			Logger.Debugf("Pool %s: write to connection %d failed: %v", p.id, i, outcome.Err)
			report.Failures = append(report.Failures, WriteFailure{
				Position:     outcome.Position,
				PayloadIndex: outcome.PayloadIndex,
				Written:      outcome.Written,
				Err:          outcome.Err,
			})
			continue
		}
		report.Written++
	}
	report.Duration = time.Since(start)

	if len(report.Failures) > 0 {
		Logger.Warningf("Pool %s: %d of %d writes failed", p.id, len(report.Failures), len(outcomes))
	}
	Logger.Debugf("Pool %s: %s", p.id, report)

	return report, nil
}

// Close closes all live connections and releases the pool. Calling Close again
// is a no-op.
func (p *Pool) Close() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}

	p.connsMu.Lock()
	conns := p.conns
	p.conns = nil
	p.connsMu.Unlock()

	var errs []error
	for i, conn := range conns {
		if err := conn.Close(); err != nil {
			Logger.Warningf("Pool %s: failed to close connection %d: %v", p.id, i, err)
			errs = append(errs, err)
		}
	}

	Logger.Infof("Pool %s: closed %d connections", p.id, len(conns))
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// attempt runs the state machine of a single connect attempt
func (p *Pool) attempt(index int) (net.Conn, *AttemptFailure) {
	start := time.Now()
	state := StateConnecting

	fail := func(kind FailureKind, err error) (net.Conn, *AttemptFailure) {
		failure := &AttemptFailure{Attempt: index, FailedIn: state, Kind: kind, Err: err}
		p.metrics.observeAttempt(start, failure)
		Logger.Debugf("Pool %s: %v", p.id, failure)
		return nil, failure
	}

	ctx, cancel := withTimeout(p.config.ConnectTimeout)
	conn, err := p.connector.Dial(ctx, p.endpoint.Addr)
	cancel()
	if err != nil {
		return fail(FailureConnect, err)
	}

	if err := p.connector.UpgradeConnection(conn, p.config); err != nil {
		conn.Close()
		return fail(FailureConnect, fmt.Errorf("failed to upgrade connection: %w", err))
	}

	if hs, ok := p.connector.(IHandshaker); ok {
		state = StateHandshaking

		hctx, hcancel := withTimeout(p.config.TLS.HandshakeTimeout)
		secured, err := hs.Handshake(hctx, conn)
		hcancel()
		if err != nil {
			conn.Close()
			return fail(FailureHandshake, err)
		}
		conn = secured
	}

	p.metrics.observeAttempt(start, nil)
	return conn, nil
}

// withTimeout returns a context bounded by d, or an unbounded one for d <= 0
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}
