// Package rfc2136 implements the dyndns provider interface for RFC 2136 Dynamic DNS updates.
//
// Any authoritative server that accepts signed updates can be used: BIND, Knot DNS,
// PowerDNS, Windows DNS and others. The zone is listed with AXFR and a record is
// changed with one UPDATE message, so the server must grant the TSIG key both
// transfer and update rights on the zone.
//
// # Configuration
//
// Settings live under the provider type; the TSIG secret is the domain's api_token:
//
//	providers:
//	  rfc2136:
//	    server: ns1.example.com:53
//	    tsig_key_name: dyndns.
//	    tsig_algorithm: hmac-sha256
//	    timeout: 10s
//	    use_tcp: "true"
//
// A domain with an empty api_token sends unsigned messages.
package rfc2136
