package detectors

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/feature"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// Volume detects DNS tunneling by query volume: events are binned into
// fixed buckets per (source, domain) and each pair's bucket counts are
// scored for outliers against the pair's own series.
type Volume struct {
	source      db.EventSource
	store       db.Anomalies
	bucket      time.Duration
	sensitivity float64
}

func NewVolume(source db.EventSource, store db.Anomalies, bucket time.Duration, sensitivity float64) *Volume {
	if bucket <= 0 {
		bucket = time.Minute
	}
	return &Volume{source: source, store: store, bucket: bucket, sensitivity: sensitivity}
}

func (v *Volume) Name() string { return "volume" }

func (v *Volume) Run(ctx context.Context, from, to time.Time) error {
	evs, err := v.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	snap := feature.Extract(evs)

	flagged := make(recordSet)
	for pair, grp := range snap.Pairs {
		_, counts := grp.BucketCounts(v.bucket)
		outliers, _ := statistics.Outliers(counts, v.sensitivity)
		for i := range outliers {
			if outliers[i] {
				flagged.add(pair.Domain, db.TypeC2Tunneling)
				log.WithFields(log.Fields{
					"source": pair.Source,
					"domain": pair.Domain,
					"count":  counts[i],
				}).Info("query volume outlier flagged")
				break
			}
		}
	}

	if err := v.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	log.WithFields(log.Fields{
		"pairs":   len(snap.Pairs),
		"flagged": len(flagged),
	}).Info("volume run complete")
	return nil
}
