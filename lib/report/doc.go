// Package report aggregates the connect and send reports of a blast run into
// latency percentiles and totals, and exports the rounds as CSV.
package report
