// Package events defines the canonical DNS query event schema consumed by
// every detector, plus the subdomain split applied to query names.
package events

import (
	"strings"
	"time"
)

// DNS record types observed in canonical events. Detectors only ever match
// on the rare types, but the full set is kept for reference.
const (
	TypeA     = "A"
	TypeAAAA  = "AAAA"
	TypeCNAME = "CNAME"
	TypeMX    = "MX"
	TypeNS    = "NS"
	TypePTR   = "PTR"
	TypeTXT   = "TXT"
	TypeANY   = "ANY"
	TypeHINFO = "HINFO"
	TypeAXFR  = "AXFR"
)

// RareTypes are the record types scored by the record-type ratio detectors.
var RareTypes = []string{TypeTXT, TypeANY, TypeHINFO, TypeAXFR}

// QueryEvent is a normalized DNS query record. Events are supplied by the
// external log pipeline and are read-only to the engine.
type QueryEvent struct {
	Time        time.Time `json:"time"`
	SourceHost  string    `json:"source_host"`
	QueryName   string    `json:"query_name"`
	RecordType  string    `json:"record_type"`
	Destination string    `json:"destination"`
}

// Split derives (subdomain, parent domain) from a query name. The rightmost
// two labels form the parent domain and everything before them is the
// subdomain chain. Names with fewer than two labels have no parent domain
// and return ok=false; names with exactly two labels return an empty
// subdomain. Malformed names are never an error, callers simply exclude
// them from subdomain-dependent aggregates.
func Split(qname string) (subdomain, parentDomain string, ok bool) {
	name := strings.Trim(strings.TrimSpace(qname), ".")
	if name == "" {
		return "", "", false
	}
	labels := strings.Split(name, ".")
	for _, l := range labels {
		if l == "" {
			// consecutive dots
			return "", "", false
		}
	}
	if len(labels) < 2 {
		return "", "", false
	}
	parentDomain = strings.Join(labels[len(labels)-2:], ".")
	if len(labels) > 2 {
		subdomain = strings.Join(labels[:len(labels)-2], ".")
	}
	return subdomain, parentDomain, true
}
