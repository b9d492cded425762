package k8sdns

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"google.golang.org/grpc/resolver"

	"github.com/deixis/grpc-k8sdns/internal/log"
	"github.com/deixis/grpc-k8sdns/internal/tracing"
)

// DefaultScheme is the URI scheme this package's builder registers under
// when no Option overrides it.
const DefaultScheme = "k8s-dns"

// DefaultRefreshInterval is roughly twice the typical in-cluster DNS TTL,
// balancing propagation latency against name server load.
const DefaultRefreshInterval = 10 * time.Second

const (
	minPriority = 0
	maxPriority = 10
	// DefaultPriority is used by competing providers when none is given.
	DefaultPriority = 5
)

// Config holds the recognized provider configuration options (spec §4.3).
// It is the shape both NewBuilder and LoadConfig produce.
type Config struct {
	Scheme                 string
	Priority               int
	RefreshIntervalSeconds int
	DefaultPort            uint16
	DNSServers             []string
}

// LoadConfig parses a TOML configuration document into a Config, following
// the same option names as the [resolver] table below:
//
//	[resolver]
//	scheme = "k8s-dns"
//	priority = 5
//	refresh_interval_seconds = 10
//	default_port = 8080
//	dns_servers = ["10.0.0.10:53"]
func LoadConfig(r io.Reader) (Config, error) {
	var doc struct {
		Resolver struct {
			Scheme                 string   `toml:"scheme"`
			Priority               int      `toml:"priority"`
			RefreshIntervalSeconds int      `toml:"refresh_interval_seconds"`
			DefaultPort            uint16   `toml:"default_port"`
			DNSServers             []string `toml:"dns_servers"`
		} `toml:"resolver"`
	}

	dec := toml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Config{}, errors.Wrap(err, "decode resolver config")
	}

	return Config{
		Scheme:                 doc.Resolver.Scheme,
		Priority:               doc.Resolver.Priority,
		RefreshIntervalSeconds: doc.Resolver.RefreshIntervalSeconds,
		DefaultPort:            doc.Resolver.DefaultPort,
		DNSServers:             doc.Resolver.DNSServers,
	}, nil
}

// Option configures a Builder.
type Option func(*Builder) error

// WithScheme sets the URI scheme the Builder claims.
func WithScheme(scheme string) Option {
	return func(b *Builder) error {
		if scheme == "" {
			return &ConfigError{Option: "scheme", cause: errors.New("must not be empty")}
		}
		b.scheme = scheme
		return nil
	}
}

// WithPriority sets the Builder's priority in [0, 10]; higher values are
// preferred by Register when two Builders compete for the same scheme.
func WithPriority(priority int) Option {
	return func(b *Builder) error {
		if priority < minPriority || priority > maxPriority {
			return &ConfigError{Option: "priority", cause: errors.Errorf("must be in [%d, %d], got %d", minPriority, maxPriority, priority)}
		}
		b.priority = priority
		return nil
	}
}

// WithRefreshInterval sets the delay between successive polls while the
// resolver is in the Polling state. Must be positive.
func WithRefreshInterval(d time.Duration) Option {
	return func(b *Builder) error {
		if d <= 0 {
			return &ConfigError{Option: "refreshIntervalSeconds", cause: errors.Errorf("must be positive, got %s", d)}
		}
		b.refreshInterval = d
		return nil
	}
}

// WithDefaultPort sets the port used when a target URI carries none.
func WithDefaultPort(port uint16) Option {
	return func(b *Builder) error {
		if port == 0 {
			return &ConfigError{Option: "defaultPort", cause: errors.New("must be non-zero")}
		}
		b.defaultPort = port
		return nil
	}
}

// WithDNSServers overrides nameserver discovery (normally via
// /etc/resolv.conf) with an explicit list of "ip:port" servers.
func WithDNSServers(servers ...string) Option {
	return func(b *Builder) error {
		b.dnsServers = append([]string(nil), servers...)
		return nil
	}
}

// WithLogger attaches a logger used by every resolver this Builder builds.
func WithLogger(l log.Logger) Option {
	return func(b *Builder) error {
		b.logger = l
		return nil
	}
}

// WithTracer attaches a tracer used by every resolver this Builder builds.
func WithTracer(t tracing.Tracer) Option {
	return func(b *Builder) error {
		b.tracer = t
		return nil
	}
}

// FromConfig applies a previously loaded Config as an Option.
func FromConfig(cfg Config) Option {
	return func(b *Builder) error {
		if cfg.Scheme != "" {
			if err := WithScheme(cfg.Scheme)(b); err != nil {
				return err
			}
		}
		if cfg.Priority != 0 {
			if err := WithPriority(cfg.Priority)(b); err != nil {
				return err
			}
		}
		if cfg.RefreshIntervalSeconds != 0 {
			if err := WithRefreshInterval(time.Duration(cfg.RefreshIntervalSeconds) * time.Second)(b); err != nil {
				return err
			}
		}
		if cfg.DefaultPort != 0 {
			if err := WithDefaultPort(cfg.DefaultPort)(b); err != nil {
				return err
			}
		}
		if len(cfg.DNSServers) > 0 {
			if err := WithDNSServers(cfg.DNSServers...)(b); err != nil {
				return err
			}
		}
		return nil
	}
}

// Builder implements resolver.Builder for DNS-polled k8s headless-service
// targets (spec component C3).
//
// A Builder's configuration is fixed at construction time; mutating a
// shared Builder's fields after resolvers have been built from it does not
// retroactively affect those live resolvers.
type Builder struct {
	scheme          string
	priority        int
	refreshInterval time.Duration
	defaultPort     uint16
	dnsServers      []string
	logger          log.Logger
	tracer          tracing.Tracer
}

// NewBuilder constructs a Builder. Defaults: scheme "k8s-dns", priority 5,
// a 10s refresh interval, default port 443.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		scheme:          DefaultScheme,
		priority:        DefaultPriority,
		refreshInterval: DefaultRefreshInterval,
		defaultPort:     443,
		logger:          log.NopLogger(),
		tracer:          tracing.NoopTracer(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Scheme implements resolver.Builder.
func (b *Builder) Scheme() string { return b.scheme }

// Priority returns the Builder's configured priority.
func (b *Builder) Priority() int { return b.priority }

// Build implements resolver.Builder. It parses target via ParseTarget and
// constructs a resolver core bound to cc, immediately arming the first
// poll (spec §4.4, start()).
func (b *Builder) Build(
	target resolver.Target, cc resolver.ClientConn, opts resolver.BuildOptions,
) (resolver.Resolver, error) {
	pt, err := ParseTarget(target, b.defaultPort)
	if err != nil {
		return nil, err
	}

	r := newDNSResolver(pt, cc, dnsResolverOptions{
		refreshInterval: b.refreshInterval,
		dnsClient:       newDNSClient(b.dnsServers, b.refreshInterval),
		logger:          b.logger,
		tracer:          b.tracer,
	})
	r.start()
	return r, nil
}

// registry is the package-level bookkeeping for scheme -> (priority,
// Builder), generalizing spec §4.3's "host uses priority to rank competing
// providers" to the one place in a Go process where two Builders can
// actually compete for a scheme: distinct packages both calling Register.
var (
	registryMu sync.RWMutex
	registry   = map[string]*Builder{}
)

// Register makes b available under its scheme, both in this package's
// registry and in google.golang.org/grpc/resolver's global registry. If a
// Builder with equal-or-higher priority is already registered for the same
// scheme, Register is a no-op and returns false.
func Register(b *Builder) bool {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := registry[b.scheme]; ok && existing.priority >= b.priority {
		return false
	}

	registry[b.scheme] = b
	resolver.Register(b)
	return true
}

// Resolvers returns the schemes currently registered through Register, in
// lexicographic order.
func Resolvers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for scheme := range registry {
		names = append(names, scheme)
	}
	sort.Strings(names)
	return names
}

func init() {
	b, err := NewBuilder()
	if err != nil {
		panic(err)
	}
	Register(b)
}
