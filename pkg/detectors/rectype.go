package detectors

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// RecordType flags outlying counts of one rare record type (TXT, ANY, HINFO
// or AXFR) per hourly bucket. Each of the four detectors is an instance of
// this type with its own anomalous type namespace.
type RecordType struct {
	source      db.EventSource
	store       db.Anomalies
	recordType  string
	bucket      time.Duration
	sensitivity float64
}

func NewRecordType(source db.EventSource, store db.Anomalies, recordType string, bucket time.Duration, sensitivity float64) *RecordType {
	if bucket <= 0 {
		bucket = time.Hour
	}
	return &RecordType{
		source:      source,
		store:       store,
		recordType:  recordType,
		bucket:      bucket,
		sensitivity: sensitivity,
	}
}

func (r *RecordType) Name() string { return "record-type-" + r.recordType }

func (r *RecordType) Run(ctx context.Context, from, to time.Time) error {
	evs, err := r.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Name(), err)
	}

	// per-type count per (bucket, source, domain)
	type cell struct {
		bucket time.Time
		source string
		domain string
	}
	counts := make(map[cell]float64)
	for _, ev := range evs {
		if ev.RecordType != r.recordType {
			continue
		}
		_, parent, ok := events.Split(ev.QueryName)
		if !ok {
			continue
		}
		counts[cell{bucket: ev.Time.Truncate(r.bucket), source: ev.SourceHost, domain: parent}]++
	}

	byDomain := make(map[string][]cell)
	for c := range counts {
		byDomain[c.domain] = append(byDomain[c.domain], c)
	}

	flagged := make(recordSet)
	for domain, cells := range byDomain {
		sort.Slice(cells, func(i, j int) bool {
			if !cells[i].bucket.Equal(cells[j].bucket) {
				return cells[i].bucket.Before(cells[j].bucket)
			}
			return cells[i].source < cells[j].source
		})
		values := make([]float64, len(cells))
		for i, c := range cells {
			values[i] = counts[c]
		}
		outliers, _ := statistics.Outliers(values, r.sensitivity)
		for i, isOutlier := range outliers {
			if !isOutlier {
				continue
			}
			flagged.add(domain, db.RecordTypeAnomaly(r.recordType))
			log.WithFields(log.Fields{
				"source": cells[i].source,
				"domain": domain,
				"bucket": cells[i].bucket,
				"count":  values[i],
				"type":   r.recordType,
			}).Info("record type outlier flagged")
		}
	}

	if err := r.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("%s: %w", r.Name(), err)
	}
	log.WithFields(log.Fields{
		"type":    r.recordType,
		"domains": len(byDomain),
		"flagged": len(flagged),
	}).Info("record type run complete")
	return nil
}
