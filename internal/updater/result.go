package updater

import (
	"net/netip"
	"strings"
	"time"
)

// IPVersion identifies the address family of one update.
type IPVersion int

const (
	IPv4 IPVersion = 4
	IPv6 IPVersion = 6
)

// String returns "IPv4" or "IPv6".
func (v IPVersion) String() string {
	if v == IPv6 {
		return "IPv6"
	}
	return "IPv4"
}

// Label returns the metrics label value, "4" or "6".
func (v IPVersion) Label() string {
	if v == IPv6 {
		return "6"
	}
	return "4"
}

// Status represents the outcome of one update.
type Status string

const (
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "error"
)

// Result is the outcome of updating one IP version of one host.
type Result struct {
	Version  IPVersion
	Provider string
	Host     string
	IP       netip.Addr
	Status   Status

	// Err is set when Status is StatusFailed.
	Err error

	Duration time.Duration
}

// Message returns the response line for this result, without a newline.
func (r Result) Message() string {
	switch r.Status {
	case StatusChanged:
		return "Updated " + r.Version.String() + " successfully"
	case StatusUnchanged:
		return r.Version.String() + " already set correctly"
	default:
		detail := "unknown error"
		if r.Err != nil {
			detail = r.Err.Error()
		}
		return "Error: " + detail
	}
}

// Results holds per-version results, IPv4 first.
type Results []Result

// Failed reports whether any update failed.
func (rs Results) Failed() bool {
	for _, r := range rs {
		if r.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Body joins the result messages, one newline-terminated line each.
func (rs Results) Body() string {
	var b strings.Builder
	for _, r := range rs {
		b.WriteString(r.Message())
		b.WriteByte('\n')
	}
	return b.String()
}
