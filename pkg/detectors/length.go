package detectors

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/feature"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// Length flags statistically long query names per source. Long names are a
// tunneling and exfiltration tell: encoded payloads ride in the subdomain
// chain. The parent domain is derived only for flagged rows.
type Length struct {
	source      db.EventSource
	store       db.Anomalies
	sensitivity float64
}

func NewLength(source db.EventSource, store db.Anomalies, sensitivity float64) *Length {
	return &Length{source: source, store: store, sensitivity: sensitivity}
}

func (l *Length) Name() string { return "query-length" }

func (l *Length) Run(ctx context.Context, from, to time.Time) error {
	evs, err := l.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("query-length: %w", err)
	}
	snap := feature.Extract(evs)

	flagged := make(recordSet)
	for source, grp := range snap.Sources {
		lengths, rows := grp.QueryLengths()
		outliers, _ := statistics.Outliers(lengths, l.sensitivity)
		for i, isOutlier := range outliers {
			if !isOutlier {
				continue
			}
			_, parent, ok := events.Split(rows[i].QueryName)
			if !ok {
				continue
			}
			flagged.add(parent, db.TypeQueryLength)
			log.WithFields(log.Fields{
				"source": source,
				"domain": parent,
				"length": int(lengths[i]),
			}).Info("query length outlier flagged")
		}
	}

	if err := l.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("query-length: %w", err)
	}
	log.WithFields(log.Fields{
		"sources": len(snap.Sources),
		"flagged": len(flagged),
	}).Info("query length run complete")
	return nil
}
