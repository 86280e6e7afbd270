package resolve

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/fanout/lib/common"
	"math"
	"net"
	"strings"
	"time"
)

var Logger = common.NewLogger("resolve")

var (
	// ErrMalformed is returned for hosts or ports that can never resolve
	ErrMalformed = errors.New("malformed address")
	// ErrNoAddress is returned if the lookup succeeded but yielded nothing
	ErrNoAddress = errors.New("no address found")
)

// ResolutionError is returned when a host/port pair can not be turned into a
// socket address
type ResolutionError struct {
	Host string
	Port uint32
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// LookupFunc returns all IP addresses of a host, in resolver order
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Resolver turns a host/port pair into exactly one TCP address
type Resolver struct {
	// Lookup defaults to net.DefaultResolver.LookupIPAddr
	Lookup LookupFunc
	// Timeout bounds the lookup, 0 = no timeout
	Timeout time.Duration
}

var defaultResolver = &Resolver{Timeout: 10 * time.Second}

// Resolve resolves host and port with the default resolver
func Resolve(host string, port uint32) (*net.TCPAddr, error) {
	return defaultResolver.Resolve(host, port)
}

// Resolve returns the first address the lookup yields. Alternates are never
// tried and a failed lookup is not retried.
func (r *Resolver) Resolve(host string, port uint32) (*net.TCPAddr, error) {
	fail := func(err error) (*net.TCPAddr, error) {
		return nil, &ResolutionError{Host: host, Port: port, Err: err}
	}

	if err := validate(host, port); err != nil {
		return fail(err)
	}

	// strip brackets of IPv6 literals like [::1]
	name := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	// IP literals need no lookup
	if ip := net.ParseIP(name); ip != nil {
		return &net.TCPAddr{IP: ip, Port: int(port)}, nil
	}

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver.LookupIPAddr
	}

	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	addrs, err := lookup(ctx, name)
	if err != nil {
		return fail(err)
	}
	if len(addrs) == 0 {
		return fail(ErrNoAddress)
	}

	if len(addrs) > 1 {
		Logger.Debugf("%s resolved to %d addresses, using %s", name, len(addrs), addrs[0].String())
	}

	first := addrs[0]
	return &net.TCPAddr{IP: first.IP, Port: int(port), Zone: first.Zone}, nil
}

// validate rejects input no resolver could ever accept
func validate(host string, port uint32) error {
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrMalformed)
	}
	if strings.ContainsAny(host, " \t\r\n/\\") {
		return fmt.Errorf("%w: invalid character in host %q", ErrMalformed, host)
	}
	if port > math.MaxUint16 {
		return fmt.Errorf("%w: port %d out of range", ErrMalformed, port)
	}
	return nil
}
