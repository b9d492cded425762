package k8sdns

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// defaultResolvConf is the path consulted for nameserver discovery unless a
// Builder is configured with explicit servers (WithDNSServers).
const defaultResolvConf = "/etc/resolv.conf"

// dnsClient issues A-record lookups directly against authoritative/cluster
// name servers, bypassing any host resolver cache. It reloads its server
// list from resolvConfPath on every lookup, so changes to /etc/resolv.conf
// take effect without restarting the process.
type dnsClient struct {
	resolvConfPath string
	servers        []string // explicit override; nil means "discover"
	timeout        time.Duration

	mu     sync.Mutex
	client *dns.Client
}

func newDNSClient(servers []string, timeout time.Duration) *dnsClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &dnsClient{
		resolvConfPath: defaultResolvConf,
		servers:        servers,
		timeout:        timeout,
		client:         &dns.Client{Timeout: timeout},
	}
}

// lookupA queries host (a fully-qualified name) for its A records. It tries
// each configured nameserver in order until one responds, falling back to
// TCP if the UDP response is truncated.
func (c *dnsClient) lookupA(ctx context.Context, host string) ([]net.IP, error) {
	servers, err := c.nameServers()
	if err != nil {
		return nil, errors.Wrap(err, "discover name servers")
	}
	if len(servers) == 0 {
		return nil, errors.New("no name servers configured")
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range servers {
		resp, err := c.exchange(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.Rcode == dns.RcodeNameError {
			// NXDOMAIN: authoritative "no such name", equivalent to an
			// empty record set for our purposes.
			return nil, nil
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = errors.Errorf("name server %s returned %s", server, dns.RcodeToString[resp.Rcode])
			continue
		}

		return aRecords(resp), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no name server responded")
	}
	return nil, lastErr
}

func (c *dnsClient) exchange(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
	resp, _, err := c.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}
	if resp.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: c.timeout}
		resp, _, err = tcp.ExchangeContext(ctx, m, server)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *dnsClient) nameServers() ([]string, error) {
	if len(c.servers) > 0 {
		return c.servers, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := dns.ClientConfigFromFile(c.resolvConfPath)
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		servers = append(servers, net.JoinHostPort(s, cfg.Port))
	}
	return servers, nil
}

func aRecords(resp *dns.Msg) []net.IP {
	var ips []net.IP
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}
	return ips
}
