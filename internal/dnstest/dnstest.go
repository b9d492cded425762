// Package dnstest provides a minimal, in-process authoritative DNS server
// for driving the resolver core's end-to-end scenarios without a real
// CoreDNS instance — the integration harness spec.md scopes out of the
// core design.
package dnstest

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// Server serves A records from an in-memory name -> addresses map on a
// loopback UDP port. Its record set can be mutated between test phases with
// SetRecords and Clear to drive "live discovery of a new backend" /
// "transient failure" scenarios.
type Server struct {
	t      *testing.T
	addr   string
	server *dns.Server

	mu      sync.RWMutex
	records map[string][]string // fqdn -> A record values
}

// NewServer starts a Server listening on a loopback UDP port and returns it;
// its "ip:port" address is available from Addr. The server is shut down
// automatically when the test finishes.
func NewServer(t *testing.T) *Server {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("dnstest: listen: %v", err)
	}

	s := &Server{
		t:       t,
		addr:    conn.LocalAddr().String(),
		records: map[string][]string{},
	}
	s.server = &dns.Server{PacketConn: conn, Handler: dns.HandlerFunc(s.handle)}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ActivateAndServe() }()

	t.Cleanup(func() {
		_ = s.server.Shutdown()
	})

	return s
}

// Addr returns the "ip:port" address of the fixture server, suitable for
// use as an explicit nameserver override (WithDNSServers).
func (s *Server) Addr() string { return s.addr }

// SetRecords replaces the A records served for fqdn (trailing dot
// required) with ips.
func (s *Server) SetRecords(fqdn string, ips ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[strings.ToLower(fqdn)] = append([]string(nil), ips...)
}

// Clear removes all records for fqdn, causing subsequent queries to
// receive an empty (NOERROR/no-answer) response.
func (s *Server) Clear(fqdn string) {
	s.SetRecords(fqdn)
}

// Stop shuts the server down before test cleanup would.
func (s *Server) Stop() {
	_ = s.server.Shutdown()
}

func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	if len(req.Question) == 1 && req.Question[0].Qtype == dns.TypeA {
		name := strings.ToLower(req.Question[0].Name)

		s.mu.RLock()
		ips := s.records[name]
		s.mu.RUnlock()

		for _, ip := range ips {
			rr, err := dns.NewRR(fmt.Sprintf("%s 5 IN A %s", name, ip))
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		}
	}

	_ = w.WriteMsg(m)
}
