package sink

import (
	"fmt"
	"github.com/ValentinKolb/fanout/lib/util"
	"strings"
	"sync"
	"time"
)

// Recording collects the bytes received on one accepted connection
type Recording struct {
	ID       uint64
	Remote   string
	Accepted time.Time

	mu     sync.Mutex
	data   []byte
	done   bool
	err    error
	closed time.Time
}

// Snapshot is an immutable copy of a Recording
type Snapshot struct {
	ID       uint64
	Remote   string
	Accepted time.Time
	Data     []byte
	// Done is set once the connection ended; Err holds the reason if it was not EOF
	Done bool
	Err  error
}

func (r *Recording) append(p []byte) {
	r.mu.Lock()
	r.data = append(r.data, p...)
	r.mu.Unlock()
}

func (r *Recording) finish(err error) {
	r.mu.Lock()
	r.done = true
	r.err = err
	r.closed = time.Now()
	r.mu.Unlock()
}

// Len returns the number of bytes received so far
func (r *Recording) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Snapshot copies the current state
func (r *Recording) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]byte, len(r.data))
	copy(data, r.data)

	return Snapshot{
		ID:       r.ID,
		Remote:   r.Remote,
		Accepted: r.Accepted,
		Data:     data,
		Done:     r.done,
		Err:      r.err,
	}
}

// Summary describes what a sink has seen so far
type Summary struct {
	Accepted     int
	Rejected     int
	Received     int64
	Distribution util.DistributionStats
}

// String returns a formatted string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("\nSINK\n")
	addField("Accepted", fmt.Sprintf("%d", s.Accepted))
	addField("Rejected", fmt.Sprintf("%d", s.Rejected))
	addField("Received", fmt.Sprintf("%d bytes", s.Received))
	addField("Bytes/Conn (mean)", fmt.Sprintf("%.1f", s.Distribution.Mean))
	addField("Bytes/Conn (min/max)", fmt.Sprintf("%.0f / %.0f", s.Distribution.Min, s.Distribution.Max))
	addField("Distribution Quality", fmt.Sprintf("%.3f", s.Distribution.DistributionQuality))

	return sb.String()
}
