// Package dnscheck answers whether a domain currently resolves by sending
// A queries to a list of recursive DNS servers.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/time/rate"

	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

// Error message constants for consistent error handling
const (
	errServerFailed     = "server %s: %w"
	errAllServersFailed = "all %d servers failed"
	errUnexpectedRcode  = "unexpected rcode %s"
	errRateWait         = "rate limit wait: %w"
)

// ErrNoServers is returned by NewResolver when no servers are configured.
var ErrNoServers = errors.New("no DNS servers provided")

// ExchangeFunc sends one message to server and returns the reply.
type ExchangeFunc func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error)

// Options configures a Resolver.
type Options struct {
	// required parameters
	Servers []string
	// Timeout bounds a whole lookup across all servers. Defaults to 5s.
	Timeout time.Duration
	// DialTimeout bounds connection setup per server. Defaults to Timeout.
	DialTimeout time.Duration
	// QueryRate caps queries per second across all callers; 0 disables the cap.
	QueryRate float64
	Logger    log.Logger
	// options to inject for testing purposes
	Exchange ExchangeFunc
}

// Resolver implements cleaner.Lookup with miekg/dns. Servers are tried in
// order; the first definitive answer wins.
type Resolver struct {
	servers  []string
	timeout  time.Duration
	limiter  *rate.Limiter
	exchange ExchangeFunc
	logger   log.Logger
}

// NewResolver creates a resolver with the specified options.
func NewResolver(opts Options) (*Resolver, error) {
	if len(opts.Servers) == 0 {
		return nil, ErrNoServers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = opts.Timeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Exchange == nil {
		opts.Exchange = clientExchange(opts.Timeout, opts.DialTimeout)
	}
	var limiter *rate.Limiter
	if opts.QueryRate > 0 {
		burst := int(opts.QueryRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.QueryRate), burst)
	}
	return &Resolver{
		servers:  opts.Servers,
		timeout:  opts.Timeout,
		limiter:  limiter,
		exchange: opts.Exchange,
		logger:   opts.Logger,
	}, nil
}

// clientExchange returns an ExchangeFunc backed by a UDP client that retries
// truncated replies over TCP.
func clientExchange(timeout, dialTimeout time.Duration) ExchangeFunc {
	udp := &dns.Client{Net: "udp", Timeout: timeout, DialTimeout: dialTimeout}
	tcp := &dns.Client{Net: "tcp", Timeout: timeout, DialTimeout: dialTimeout}
	return func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
		resp, _, err := udp.ExchangeContext(ctx, m, server)
		if err == nil && resp.Truncated {
			resp, _, err = tcp.ExchangeContext(ctx, m, server)
		}
		return resp, err
	}
}

// ensureContextDeadline ensures the context has a deadline, adding the resolver's default timeout if needed.
func (r *Resolver) ensureContextDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.timeout)
	}
	return ctx, nil
}

// LookupA reports whether name has at least one A record.
// NXDOMAIN and empty NOERROR answers are definitive and return (false, nil).
// Any other outcome moves on to the next server; if none answers, the last
// error is returned.
func (r *Resolver) LookupA(ctx context.Context, name string) (bool, error) {
	ctx, cancel := r.ensureContextDeadline(ctx)
	if cancel != nil {
		defer cancel()
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return false, fmt.Errorf(errRateWait, err)
			}
		}
		ok, err := r.query(ctx, m, server)
		if err == nil {
			return ok, nil
		}
		r.logger.Debug(map[string]any{"domain": name, "server": server, "error": err.Error()}, "server_failed")
		lastErr = fmt.Errorf(errServerFailed, server, err)
		if ctx.Err() != nil {
			break
		}
	}
	return false, fmt.Errorf(errAllServersFailed+": %w", len(r.servers), lastErr)
}

func (r *Resolver) query(ctx context.Context, m *dns.Msg, server string) (bool, error) {
	resp, err := r.exchange(ctx, m.Copy(), server)
	if err != nil {
		return false, err
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
		return hasA(resp), nil
	case dns.RcodeNameError:
		return false, nil
	default:
		return false, fmt.Errorf(errUnexpectedRcode, dns.RcodeToString[resp.Rcode])
	}
}

// hasA reports whether the answer section carries an A record, following
// whatever CNAME chain the server included.
func hasA(resp *dns.Msg) bool {
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.A); ok {
			return true
		}
	}
	return false
}

var _ cleaner.Lookup = (*Resolver)(nil)
