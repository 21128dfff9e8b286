package dnsupdate

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// Record is a resource record in presentation form.
type Record struct {
	// Name is the fully qualified owner name.
	Name string

	// Type is the RR type, e.g. dns.TypeA.
	Type uint16

	TTL uint32

	// RData is the record data: an address for A/AAAA, a target for CNAME/NS/PTR/MX.
	RData string
}

// TypeString returns the string representation of the record type.
func (r Record) TypeString() string {
	if name, ok := dns.TypeToString[r.Type]; ok {
		return name
	}
	return fmt.Sprintf("TYPE%d", r.Type)
}

// ToRR converts the Record to a dns.RR.
func (r Record) ToRR() (dns.RR, error) {
	header := dns.RR_Header{
		Name:   dns.Fqdn(r.Name),
		Rrtype: r.Type,
		Class:  dns.ClassINET,
		Ttl:    r.TTL,
	}

	switch r.Type {
	case dns.TypeA:
		addr, err := netip.ParseAddr(r.RData)
		if err != nil || !addr.Unmap().Is4() {
			return nil, fmt.Errorf("invalid IPv4 address: %s", r.RData)
		}
		return &dns.A{Hdr: header, A: addr.Unmap().AsSlice()}, nil

	case dns.TypeAAAA:
		addr, err := netip.ParseAddr(r.RData)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			return nil, fmt.Errorf("invalid IPv6 address: %s", r.RData)
		}
		return &dns.AAAA{Hdr: header, AAAA: addr.AsSlice()}, nil

	case dns.TypeCNAME:
		return &dns.CNAME{Hdr: header, Target: dns.Fqdn(r.RData)}, nil

	case dns.TypeTXT:
		return &dns.TXT{Hdr: header, Txt: []string{r.RData}}, nil

	default:
		return nil, fmt.Errorf("unsupported record type: %s", r.TypeString())
	}
}

// RecordFromRR creates a Record from a dns.RR.
func RecordFromRR(rr dns.RR) (Record, error) {
	header := rr.Header()
	record := Record{
		Name: header.Name,
		Type: header.Rrtype,
		TTL:  header.Ttl,
	}

	switch v := rr.(type) {
	case *dns.A:
		record.RData = v.A.String()
	case *dns.AAAA:
		record.RData = v.AAAA.String()
	case *dns.CNAME:
		record.RData = v.Target
	case *dns.TXT:
		record.RData = strings.Join(v.Txt, " ")
	case *dns.MX:
		record.RData = v.Mx
	case *dns.NS:
		record.RData = v.Ns
	case *dns.PTR:
		record.RData = v.Ptr
	default:
		return record, fmt.Errorf("unsupported record type: %s", dns.TypeToString[header.Rrtype])
	}

	return record, nil
}

// StringToType converts a record type string to its uint16 value.
func StringToType(s string) (uint16, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if t, ok := dns.StringToType[s]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown record type: %s", s)
}
