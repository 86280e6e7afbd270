// Package resolve turns a host/port pair into a single socket address.
//
// Resolution is deterministic: IP literals are used as given, names are looked
// up once and the first returned address wins. Nothing is retried and no
// alternate address is ever attempted. Every failure is reported as a
// *ResolutionError, which wraps ErrMalformed for input that can never resolve
// and ErrNoAddress for lookups that came back empty.
package resolve
