package report

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"github.com/ValentinKolb/fanout/lib/pool"
	"github.com/rcrowley/go-metrics"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Round is the outcome of one Send of a blast run
type Round struct {
	Index int
	Send  pool.SendReport
}

// Recorder aggregates the reports of a blast run
type Recorder struct {
	registry metrics.Registry

	connectTimer  metrics.Timer
	sendTimer     metrics.Timer
	bytes         metrics.Counter
	writeFailures metrics.Counter
	connFailures  metrics.Counter

	mu       sync.Mutex
	connects []pool.ConnectReport
	rounds   []Round
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	r := &Recorder{
		registry:      metrics.NewRegistry(),
		connectTimer:  metrics.NewTimer(),
		sendTimer:     metrics.NewTimer(),
		bytes:         metrics.NewCounter(),
		writeFailures: metrics.NewCounter(),
		connFailures:  metrics.NewCounter(),
	}

	r.registry.Register("connect", r.connectTimer)
	r.registry.Register("send", r.sendTimer)
	r.registry.Register("bytes", r.bytes)
	r.registry.Register("write.failures", r.writeFailures)
	r.registry.Register("connect.failures", r.connFailures)

	return r
}

// ObserveConnect records the report of a Connect call
func (r *Recorder) ObserveConnect(rep pool.ConnectReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connects = append(r.connects, rep)
	r.connectTimer.Update(rep.Duration)
	r.connFailures.Inc(int64(rep.Failed))
}

// ObserveSend records the report of a Send call as the next round
func (r *Recorder) ObserveSend(rep pool.SendReport) Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := Round{Index: len(r.rounds), Send: rep}
	r.rounds = append(r.rounds, round)

	r.sendTimer.Update(rep.Duration)
	r.bytes.Inc(rep.Bytes)
	r.writeFailures.Inc(int64(len(rep.Failures)))

	return round
}

// Rounds returns all recorded rounds
func (r *Recorder) Rounds() []Round {
	r.mu.Lock()
	defer r.mu.Unlock()

	rounds := make([]Round, len(r.rounds))
	copy(rounds, r.rounds)
	return rounds
}

// Stop releases the meters of the recorder
func (r *Recorder) Stop() {
	r.connectTimer.Stop()
	r.sendTimer.Stop()
}

// --------------------------------------------------------------------------
// Summary
// --------------------------------------------------------------------------

// Summary is the aggregate of a blast run
type Summary struct {
	Connects          int
	Requested         int
	Connected         int
	ConnectFailures   int
	HandshakeFailures int
	ConnectTime       time.Duration

	Rounds        int
	Writes        int
	WriteFailures int
	Bytes         int64

	SendMin  time.Duration
	SendMax  time.Duration
	SendMean time.Duration
	SendP50  time.Duration
	SendP95  time.Duration
	SendP99  time.Duration
	SendTime time.Duration
}

// Summary computes the aggregate of everything recorded so far
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Connects:        len(r.connects),
		Rounds:          len(r.rounds),
		ConnectFailures: int(r.connFailures.Count()),
		WriteFailures:   int(r.writeFailures.Count()),
		Bytes:           r.bytes.Count(),
	}

	for _, c := range r.connects {
		s.Requested += c.Requested
		s.Connected += c.Succeeded
		s.HandshakeFailures += c.HandshakeFailures()
		s.ConnectTime += c.Duration
	}
	for _, round := range r.rounds {
		s.Writes += round.Send.Written
		s.SendTime += round.Send.Duration
	}

	snapshot := r.sendTimer.Snapshot()
	if snapshot.Count() > 0 {
		ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})
		s.SendMin = time.Duration(snapshot.Min())
		s.SendMax = time.Duration(snapshot.Max())
		s.SendMean = time.Duration(snapshot.Mean())
		s.SendP50 = time.Duration(ps[0])
		s.SendP95 = time.Duration(ps[1])
		s.SendP99 = time.Duration(ps[2])
	}

	return s
}

// Throughput returns the bytes per second over the accumulated send time
func (s Summary) Throughput() float64 {
	if s.SendTime <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.SendTime.Seconds()
}

// String returns a formatted string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	addSection := func(name string) {
		sb.WriteString(fmt.Sprintf("\n%s\n", name))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("CONNECT")
	addField("Calls", strconv.Itoa(s.Connects))
	addField("Connected", fmt.Sprintf("%d / %d", s.Connected, s.Requested))
	addField("Failures", fmt.Sprintf("%d (%d handshake)", s.ConnectFailures, s.HandshakeFailures))
	addField("Time", s.ConnectTime.String())

	addSection("SEND")
	addField("Rounds", strconv.Itoa(s.Rounds))
	addField("Writes", fmt.Sprintf("%d (%d failed)", s.Writes, s.WriteFailures))
	addField("Bytes", strconv.FormatInt(s.Bytes, 10))
	addField("Round Latency (mean)", s.SendMean.String())
	addField("Round Latency (min/max)", fmt.Sprintf("%s / %s", s.SendMin, s.SendMax))
	addField("Round Latency (p50)", s.SendP50.String())
	addField("Round Latency (p95)", s.SendP95.String())
	addField("Round Latency (p99)", s.SendP99.String())
	addField("Throughput", fmt.Sprintf("%.2f MB/s", s.Throughput()/1e6))

	return sb.String()
}

// --------------------------------------------------------------------------
// CSV Export
// --------------------------------------------------------------------------

// WriteCSVFile writes one row per round to csvPath
func (r *Recorder) WriteCSVFile(csvPath string, target string, transport string, config common.PoolConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	return r.WriteCSV(file, target, transport, config)
}

// WriteCSV writes one row per round to w
func (r *Recorder) WriteCSV(w io.Writer, target string, transport string, config common.PoolConfig) error {
	writer := csv.NewWriter(w)

	// Write header
	header := []string{
		"Round", "Connections", "Payloads", "UnusedPayloads", "Written", "Failed", "Bytes",
		"DurationNs", "Duration", "MBPerSec",
		"Target", "Transport", "PoolID", "ConnectTimeout", "WriteTimeout", "MaxInFlight",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, round := range r.Rounds() {
		rep := round.Send

		var mbps float64
		if rep.Duration > 0 {
			mbps = float64(rep.Bytes) / rep.Duration.Seconds() / 1e6
		}

		row := []string{
			strconv.Itoa(round.Index),
			strconv.Itoa(rep.Connections),
			strconv.Itoa(rep.Payloads),
			strconv.Itoa(rep.UnusedPayloads),
			strconv.Itoa(rep.Written),
			strconv.Itoa(len(rep.Failures)),
			strconv.FormatInt(rep.Bytes, 10),
			strconv.FormatInt(rep.Duration.Nanoseconds(), 10),
			rep.Duration.String(),
			fmt.Sprintf("%.3f", mbps),
			target,
			transport,
			config.ID,
			config.ConnectTimeout.String(),
			config.WriteTimeout.String(),
			strconv.Itoa(config.MaxInFlight),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for round %d: %w", round.Index, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
