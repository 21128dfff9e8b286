// Package dnstest provides an in-process authoritative DNS server that
// accepts RFC 2136 updates and zone transfers, for use in tests.
package dnstest

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// Server is a TCP-only authoritative server for a single zone.
type Server struct {
	Addr string

	zone    string
	keyName string
	alg     string

	mu          sync.Mutex
	records     []dns.RR
	updates     int
	refuseXFR   bool
	updateRcode int

	srv *dns.Server
}

// Option configures a Server.
type Option func(*Server)

// WithTSIG requires every message to carry a valid signature from keyName.
func WithTSIG(keyName, secret string) Option {
	return func(s *Server) {
		s.keyName = dns.Fqdn(keyName)
		s.srv.TsigSecret = map[string]string{s.keyName: secret}
	}
}

// WithRecords seeds the zone from presentation-format lines.
func WithRecords(lines ...string) Option {
	return func(s *Server) {
		for _, line := range lines {
			s.records = append(s.records, mustRR(line))
		}
	}
}

// NewServer starts a server on 127.0.0.1 that is shut down with t.Cleanup.
func NewServer(t *testing.T, zone string, opts ...Option) *Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	started := make(chan struct{})
	s := &Server{
		Addr: l.Addr().String(),
		zone: dns.Fqdn(strings.ToLower(zone)),
		alg:  dns.HmacSHA256,
	}
	s.srv = &dns.Server{
		Listener:          l,
		Handler:           dns.HandlerFunc(s.serveDNS),
		NotifyStartedFunc: func() { close(started) },
	}

	for _, opt := range opts {
		opt(s)
	}

	go func() { _ = s.srv.ActivateAndServe() }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("dns test server did not start")
	}

	t.Cleanup(func() { _ = s.srv.Shutdown() })

	return s
}

// RefuseTransfers makes AXFR requests fail with REFUSED.
func (s *Server) RefuseTransfers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuseXFR = true
}

// FailUpdates answers every UPDATE with rcode.
func (s *Server) FailUpdates(rcode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateRcode = rcode
}

// Updates returns the number of UPDATE messages applied.
func (s *Server) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// Lookup returns the rdata of every record of rrtype owned by name.
func (s *Server) Lookup(name string, rrtype uint16) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, rr := range s.records {
		h := rr.Header()
		if h.Rrtype == rrtype && strings.EqualFold(h.Name, dns.Fqdn(name)) {
			out = append(out, strings.TrimPrefix(rr.String(), h.String()))
		}
	}
	return out
}

func (s *Server) soa() dns.RR {
	return mustRR(s.zone + " 3600 IN SOA ns1." + s.zone + " hostmaster." + s.zone + " 1 7200 3600 1209600 300")
}

func (s *Server) serveDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	signed := r.IsTsig() != nil
	switch {
	case s.keyName != "" && (!signed || w.TsigStatus() != nil):
		m.Rcode = dns.RcodeNotAuth
		_ = w.WriteMsg(m)
		return
	case len(r.Question) != 1 || !strings.EqualFold(r.Question[0].Name, s.zone):
		m.Rcode = dns.RcodeNotZone
	default:
		s.handle(r, m)
	}

	if signed && s.keyName != "" {
		m.SetTsig(s.keyName, s.alg, 300, time.Now().Unix())
	}
	_ = w.WriteMsg(m)
}

func (s *Server) handle(r, m *dns.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Opcode == dns.OpcodeUpdate {
		if s.updateRcode != dns.RcodeSuccess {
			m.Rcode = s.updateRcode
			return
		}
		s.applyUpdate(r.Ns)
		s.updates++
		return
	}

	switch r.Question[0].Qtype {
	case dns.TypeSOA:
		m.Answer = []dns.RR{s.soa()}
	case dns.TypeAXFR:
		if s.refuseXFR {
			m.Rcode = dns.RcodeRefused
			return
		}
		m.Answer = append([]dns.RR{s.soa()}, s.records...)
		m.Answer = append(m.Answer, s.soa())
	default:
		m.Rcode = dns.RcodeNotImplemented
	}
}

// applyUpdate handles the delete-one-RR and add-RR forms of RFC 2136.
func (s *Server) applyUpdate(ns []dns.RR) {
	for _, rr := range ns {
		switch rr.Header().Class {
		case dns.ClassNONE:
			probe := dns.Copy(rr)
			probe.Header().Class = dns.ClassINET
			kept := s.records[:0]
			for _, existing := range s.records {
				if !dns.IsDuplicate(probe, existing) {
					kept = append(kept, existing)
				}
			}
			s.records = kept
		case dns.ClassINET:
			s.records = append(s.records, dns.Copy(rr))
		}
	}
}

func mustRR(s string) dns.RR {
	rr, err := dns.NewRR(s)
	if err != nil {
		panic(err)
	}
	return rr
}
