// Package dnsupdate provides an RFC 2136 Dynamic DNS Update client.
//
// It talks to any server that accepts signed updates, including BIND, Knot DNS,
// PowerDNS and Windows DNS Server. Records are listed with a zone transfer
// (AXFR) and changed with a single UPDATE message that removes the old
// resource record and inserts the new one, which the server applies
// atomically.
//
// # TSIG Authentication
//
// Messages are signed with TSIG (RFC 8945) when a key name and secret are
// configured. Generate a key with BIND's tsig-keygen:
//
//	tsig-keygen -a hmac-sha256 dyndns > dyndns.key
//
// and allow it both update and transfer rights on the zone.
//
// # Usage
//
//	client, err := dnsupdate.NewClient(&dnsupdate.Config{
//	    Server:      "ns1.example.com:53",
//	    Zone:        "example.com.",
//	    TSIGKeyName: "dyndns.",
//	    TSIGSecret:  secret,
//	})
//	if err != nil {
//	    return err
//	}
//
//	records, err := client.ListByAXFR(ctx)
package dnsupdate
