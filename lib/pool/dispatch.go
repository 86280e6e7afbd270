package pool

import (
	"golang.org/x/sync/errgroup"
	"io"
	"time"
)

// Target is anything a payload can be written to. net.Conn and *tls.Conn satisfy it.
type Target interface {
	io.Writer
	SetWriteDeadline(t time.Time) error
}

// DispatchOptions controls a Dispatch call
type DispatchOptions struct {
	// WriteTimeout is applied as deadline to every write, 0 = no deadline
	WriteTimeout time.Duration
	// Limit bounds the number of concurrent writes, 0 = one goroutine per target
	Limit int
}

// WriteOutcome is the result of the write to one target
type WriteOutcome struct {
	Position     int
	PayloadIndex int
	Written      int
	Err          error
	Duration     time.Duration
}

// PayloadIndex returns the payload assigned to live position i for m payloads
func PayloadIndex(i, m int) int {
	return i % m
}

// Dispatch writes payloads[i mod len(payloads)] to targets[i] for every target.
// All writes run concurrently and Dispatch returns once every write has settled.
// A failed write never aborts the others. The result holds one outcome per
// target in target order. Without targets or payloads nothing is written.
func Dispatch(targets []Target, payloads [][]byte, opts DispatchOptions) []WriteOutcome {
	if len(targets) == 0 || len(payloads) == 0 {
		return nil
	}

	outcomes := make([]WriteOutcome, len(targets))

	var g errgroup.Group
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}

	for i, target := range targets {
		position := i
		g.Go(func() error {
			// every task owns exactly one slot of outcomes
			outcomes[position] = write(position, target, payloads, opts.WriteTimeout)
			return nil
		})
	}

	// join barrier, failures live in outcomes and no task returns an error
	_ = g.Wait()
	return outcomes
}

// write sends the assigned payload to a single target
func write(position int, target Target, payloads [][]byte, timeout time.Duration) WriteOutcome {
	start := time.Now()
	idx := PayloadIndex(position, len(payloads))
	outcome := WriteOutcome{Position: position, PayloadIndex: idx}

	if timeout > 0 {
		if err := target.SetWriteDeadline(start.Add(timeout)); err != nil {
			outcome.Err = err
			outcome.Duration = time.Since(start)
			return outcome
		}
	}

	n, err := target.Write(payloads[idx])
	outcome.Written = n
	outcome.Err = err
	outcome.Duration = time.Since(start)
	return outcome
}
