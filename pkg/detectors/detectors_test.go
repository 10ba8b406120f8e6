package detectors

import (
	"time"

	"github.com/aleeric/dnsguard/pkg/events"
)

var t0 = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

func query(at time.Time, source, qname, rtype string) events.QueryEvent {
	return events.QueryEvent{
		Time:       at,
		SourceHost: source,
		QueryName:  qname,
		RecordType: rtype,
	}
}

// gapSeries lays out queries from source to qname separated by the given
// gaps in seconds, starting at start.
func gapSeries(start time.Time, source, qname string, gaps []float64) []events.QueryEvent {
	evs := []events.QueryEvent{query(start, source, qname, events.TypeA)}
	at := start
	for _, gap := range gaps {
		at = at.Add(time.Duration(gap * float64(time.Second)))
		evs = append(evs, query(at, source, qname, events.TypeA))
	}
	return evs
}

func repeatGap(gap float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = gap
	}
	return out
}
