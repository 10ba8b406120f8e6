// Package feature computes the windowed aggregates every detector consumes.
// Extraction is a pure transform of a window of canonical events; nothing
// here is persisted.
package feature

import (
	"sort"
	"time"

	"github.com/aleeric/dnsguard/pkg/events"
)

// PairKey groups events by (source host, parent domain).
type PairKey struct {
	Source string
	Domain string
}

// Group holds the derived features for one group key within a window.
type Group struct {
	// Events ordered by time ascending.
	Events []events.QueryEvent
	// Gaps are look-ahead inter-query gaps in seconds: entry i is the time
	// to the next event of the same group. The last event of a group has no
	// gap. Only populated for pair groups.
	Gaps []float64
	// RecordTypes tallies events per record type.
	RecordTypes map[string]int
	// Subdomains is the set of distinct non-empty subdomains queried.
	Subdomains map[string]struct{}
}

// Snapshot is the extracted feature view of one window.
type Snapshot struct {
	// Pairs keys groups by (source, parent domain). Events whose query name
	// has no parent domain are excluded here but still appear in Sources.
	Pairs map[PairKey]*Group
	// Sources keys groups by source host alone.
	Sources map[string]*Group
}

// Extract computes the snapshot for a window of events. Input order does not
// matter; events are sorted by time before gaps are derived.
func Extract(evs []events.QueryEvent) *Snapshot {
	ordered := make([]events.QueryEvent, len(evs))
	copy(ordered, evs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time.Before(ordered[j].Time) })

	snap := &Snapshot{
		Pairs:   make(map[PairKey]*Group),
		Sources: make(map[string]*Group),
	}
	for _, ev := range ordered {
		if ev.SourceHost == "" {
			continue
		}
		src := snap.Sources[ev.SourceHost]
		if src == nil {
			src = newGroup()
			snap.Sources[ev.SourceHost] = src
		}
		src.add(ev, "")

		sub, parent, ok := events.Split(ev.QueryName)
		if !ok {
			continue
		}
		key := PairKey{Source: ev.SourceHost, Domain: parent}
		pair := snap.Pairs[key]
		if pair == nil {
			pair = newGroup()
			snap.Pairs[key] = pair
		}
		pair.add(ev, sub)
		if sub != "" {
			src.Subdomains[sub+"."+parent] = struct{}{}
		}
	}

	for _, g := range snap.Pairs {
		g.Gaps = lookAheadGaps(g.Events)
	}
	return snap
}

func newGroup() *Group {
	return &Group{
		RecordTypes: make(map[string]int),
		Subdomains:  make(map[string]struct{}),
	}
}

func (g *Group) add(ev events.QueryEvent, subdomain string) {
	g.Events = append(g.Events, ev)
	g.RecordTypes[ev.RecordType]++
	if subdomain != "" {
		g.Subdomains[subdomain] = struct{}{}
	}
}

func lookAheadGaps(ordered []events.QueryEvent) []float64 {
	if len(ordered) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(ordered)-1)
	for i := 0; i < len(ordered)-1; i++ {
		gaps = append(gaps, ordered[i+1].Time.Sub(ordered[i].Time).Seconds())
	}
	return gaps
}

// QueryLengths returns the non-zero query name lengths of the group's
// events, aligned with the events they came from. Zero-length names are
// malformed input and are dropped.
func (g *Group) QueryLengths() (lengths []float64, evs []events.QueryEvent) {
	for _, ev := range g.Events {
		if len(ev.QueryName) == 0 {
			continue
		}
		lengths = append(lengths, float64(len(ev.QueryName)))
		evs = append(evs, ev)
	}
	return lengths, evs
}

// BucketCounts bins the group's events into span-sized buckets and returns
// the per-bucket counts in bucket order.
func (g *Group) BucketCounts(span time.Duration) (buckets []time.Time, counts []float64) {
	if span <= 0 || len(g.Events) == 0 {
		return nil, nil
	}
	byBucket := make(map[time.Time]int)
	for _, ev := range g.Events {
		byBucket[ev.Time.Truncate(span)]++
	}
	for b := range byBucket {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })
	counts = make([]float64, len(buckets))
	for i, b := range buckets {
		counts[i] = float64(byBucket[b])
	}
	return buckets, counts
}
