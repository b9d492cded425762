package k8sdns

import (
	"context"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc/resolver"

	"github.com/deixis/grpc-k8sdns/internal/log"
	"github.com/deixis/grpc-k8sdns/internal/syncctx"
	"github.com/deixis/grpc-k8sdns/internal/tracing"
)

// queryTimeout bounds one tick's DNS lookup (every name server tried in
// turn), independent of the poll cadence.
const queryTimeout = 5 * time.Second

// resolveResult is the last successful resolution snapshot (spec
// SuccessResult).
type resolveResult struct {
	addrs      []string // canonicalized: ascending, deduped
	receivedAt time.Time
}

type dnsResolverOptions struct {
	refreshInterval time.Duration
	dnsClient       *dnsClient
	logger          log.Logger
	tracer          tracing.Tracer
}

// dnsResolver is the resolver core (spec component C4). It implements
// resolver.Resolver. All of its state is mutated exclusively on its
// serializer goroutine (the "sync context"); the DNS client's completion
// always hops back through the serializer before touching state.
type dnsResolver struct {
	target          *ParsedTarget
	cc              resolver.ClientConn
	client          *dnsClient
	refreshInterval time.Duration
	logger          log.Logger
	tracer          tracing.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	serializer *syncctx.Serializer

	// The following fields are owned exclusively by funcs scheduled on
	// serializer; they must never be read or written from any other
	// goroutine.
	closed      bool
	refreshing  bool
	pollCancel  context.CancelFunc // non-nil iff Polling
	lastSuccess *resolveResult
}

func newDNSResolver(target *ParsedTarget, cc resolver.ClientConn, opts dnsResolverOptions) *dnsResolver {
	ctx, cancel := context.WithCancel(context.Background())

	logger := opts.logger
	if logger == nil {
		logger = log.NopLogger()
	}
	tracer := opts.tracer
	if tracer == nil {
		tracer = tracing.NoopTracer()
	}

	return &dnsResolver{
		target:          target,
		cc:              cc,
		client:          opts.dnsClient,
		refreshInterval: opts.refreshInterval,
		logger:          logger.With(log.String("host", target.HostStr)),
		tracer:          tracer,
		ctx:             ctx,
		cancel:          cancel,
		serializer:      syncctx.New(),
	}
}

// Authority returns the service authority presented to the RPC channel
// (spec: serviceAuthority()). Pure; safe to call at any time.
func (r *dnsResolver) Authority() string {
	return r.target.Authority
}

// start arms the initial immediate refresh followed by recurring polls.
// Called exactly once, from Builder.Build, before the resolver is handed
// back to the channel.
func (r *dnsResolver) start() {
	r.serializer.Schedule(func() {
		r.armPolling(0)
	})
}

// ResolveNow implements resolver.Resolver (spec: refresh()). If a recurring
// task is already scheduled, this is a no-op; otherwise it restarts
// polling with a delay computed so the next tick lands no earlier than
// lastSuccess.receiveTime + refreshInterval.
func (r *dnsResolver) ResolveNow(resolver.ResolveNowOptions) {
	r.serializer.Schedule(func() {
		if r.closed || r.pollCancel != nil {
			return
		}
		r.armPolling(r.nextDelayAfterFailure())
	})
}

// Close implements resolver.Resolver (spec: shutdown()). Idempotent;
// cancels the scheduled task if any, aborts any in-flight DNS exchange,
// and guarantees no further listener calls occur once it returns.
func (r *dnsResolver) Close() {
	r.serializer.Schedule(func() {
		if r.closed {
			return
		}
		r.closed = true
		if r.pollCancel != nil {
			r.pollCancel()
			r.pollCancel = nil
		}
	})
	r.cancel()
	r.serializer.Close()
}

// nextDelayAfterFailure computes the delay spec §4.4 prescribes for a
// refresh() issued after a failure: no earlier than one refreshInterval
// after the last success, or immediately if there was none or that time
// has already passed. Must be called from the serializer goroutine.
func (r *dnsResolver) nextDelayAfterFailure() time.Duration {
	if r.lastSuccess == nil {
		return 0
	}
	target := r.lastSuccess.receivedAt.Add(r.refreshInterval)
	if d := time.Until(target); d > 0 {
		return d
	}
	return 0
}

// armPolling schedules a single future tick after delay, recording its
// cancellation func so the resolver stays in the Polling state until Close
// or a failed tick cancels it; a successful tick re-arms it through
// successPath. Must be called from the serializer goroutine.
func (r *dnsResolver) armPolling(delay time.Duration) {
	if r.closed {
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.pollCancel = cancel

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		r.serializer.Schedule(r.refreshInner)
	}()
}

// refreshInner is the tick algorithm (spec §4.4). Must be called from the
// serializer goroutine.
func (r *dnsResolver) refreshInner() {
	if r.closed {
		return
	}
	if r.refreshing {
		return // single-flight gate: ticks never overlap
	}
	r.refreshing = true

	host := r.target.Host
	hostStr := r.target.HostStr
	client := r.client

	span := tracing.StartSpan(r.tracer, "k8sdns.refresh")
	r.logger.Trace("k8sdns.refresh.start", "Polling DNS", log.String("host", hostStr))

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, queryTimeout)
		defer cancel()

		ips, err := client.lookupA(ctx, host)

		r.serializer.Schedule(func() {
			r.refreshing = false
			r.handleTickResult(ips, err, span)
		})
	}()
}

// handleTickResult applies the success/failure path (spec §4.4) and
// finishes the tracing span. Must be called from the serializer goroutine.
func (r *dnsResolver) handleTickResult(ips []net.IP, err error, span interface{ Finish() }) {
	defer span.Finish()

	if r.closed {
		return
	}

	if err != nil {
		r.failurePath(&TransportError{HostStr: r.target.HostStr, cause: err})
		return
	}
	if len(ips) == 0 {
		r.failurePath(&EmptyResolutionError{HostStr: r.target.HostStr})
		return
	}
	r.successPath(ips)
}

// failurePath cancels the scheduled task (transitioning to Quiescent) and
// notifies the listener. lastSuccess is left untouched so it can seed a
// later refresh()'s delay computation. Must be called from the serializer
// goroutine.
func (r *dnsResolver) failurePath(domainErr error) {
	if r.pollCancel != nil {
		r.pollCancel()
		r.pollCancel = nil
	}

	r.logger.Warning("k8sdns.refresh.fail", "DNS resolution failed", log.Err(domainErr))

	var retryAfter time.Duration
	if r.lastSuccess != nil {
		retryAfter = time.Until(r.lastSuccess.receivedAt.Add(r.refreshInterval))
		if retryAfter < 0 {
			retryAfter = 0
		}
	}
	r.cc.ReportError(errorToStatus(domainErr, retryAfter).Err())
}

// successPath canonicalizes the resolution, suppresses the notification if
// unchanged from lastSuccess, updates lastSuccess, and re-arms the next
// tick. Must be called from the serializer goroutine.
func (r *dnsResolver) successPath(ips []net.IP) {
	addrs := sortUniqueIPs(ips)

	changed := r.lastSuccess == nil || !addrsEqual(r.lastSuccess.addrs, addrs)
	if changed {
		state := resolver.State{Addresses: make([]resolver.Address, len(addrs))}
		for i, addr := range addrs {
			state.Addresses[i] = resolver.Address{
				Addr: net.JoinHostPort(addr, strconv.Itoa(int(r.target.Port))),
			}
		}
		r.cc.UpdateState(state)
		r.logger.Trace("k8sdns.refresh.changed", "Address set changed", log.Int("count", len(addrs)))
	} else {
		r.logger.Trace("k8sdns.refresh.unchanged", "Address set unchanged", log.Int("count", len(addrs)))
	}

	r.lastSuccess = &resolveResult{addrs: addrs, receivedAt: time.Now()}
	r.armPolling(r.refreshInterval)
}
