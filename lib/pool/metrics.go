package pool

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// poolMetrics holds the metric set of a single pool
type poolMetrics struct {
	set *metrics.Set

	attempts          *metrics.Counter
	connected         *metrics.Counter
	connectFailures   *metrics.Counter
	handshakeFailures *metrics.Counter
	writes            *metrics.Counter
	writeFailures     *metrics.Counter
	bytesWritten      *metrics.Counter
	connectDuration   *metrics.Histogram
	writeDuration     *metrics.Histogram
}

// newPoolMetrics registers all pool metrics in a fresh set. live is called on
// every scrape to report the size of the live set.
func newPoolMetrics(poolID, transport string, live func() float64) *poolMetrics {
	set := metrics.NewSet()

	name := func(metric string, extra ...string) string {
		labels := fmt.Sprintf("pool=%q,transport=%q", poolID, transport)
		for i := 0; i+1 < len(extra); i += 2 {
			labels += fmt.Sprintf(",%s=%q", extra[i], extra[i+1])
		}
		return fmt.Sprintf("fanout_%s{%s}", metric, labels)
	}

	set.NewGauge(name("live_connections"), live)

	return &poolMetrics{
		set:               set,
		attempts:          set.NewCounter(name("connect_attempts_total")),
		connected:         set.NewCounter(name("connect_success_total")),
		connectFailures:   set.NewCounter(name("connect_failures_total", "stage", "connect")),
		handshakeFailures: set.NewCounter(name("connect_failures_total", "stage", "handshake")),
		writes:            set.NewCounter(name("writes_total")),
		writeFailures:     set.NewCounter(name("write_failures_total")),
		bytesWritten:      set.NewCounter(name("written_bytes_total")),
		connectDuration:   set.NewHistogram(name("connect_duration_seconds")),
		writeDuration:     set.NewHistogram(name("write_duration_seconds")),
	}
}

// observeAttempt records the outcome of a single connect attempt
func (m *poolMetrics) observeAttempt(start time.Time, failure *AttemptFailure) {
	m.attempts.Inc()
	m.connectDuration.UpdateDuration(start)

	switch {
	case failure == nil:
		m.connected.Inc()
	case failure.IsHandshake():
		m.handshakeFailures.Inc()
	default:
		m.connectFailures.Inc()
	}
}

// observeWrite records the outcome of a single write
func (m *poolMetrics) observeWrite(outcome WriteOutcome) {
	m.writes.Inc()
	m.bytesWritten.Add(outcome.Written)
	m.writeDuration.Update(outcome.Duration.Seconds())
	if outcome.Err != nil {
		m.writeFailures.Inc()
	}
}

// write dumps the set in Prometheus text format
func (m *poolMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
}
