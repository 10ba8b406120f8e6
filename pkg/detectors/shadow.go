package detectors

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/feature"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// Shadow detects domain shadowing: sources querying an outlying number of
// distinct subdomains under one parent domain, compared with that domain's
// other clients. Events without a subdomain never contribute.
type Shadow struct {
	source      db.EventSource
	store       db.Anomalies
	sensitivity float64
}

func NewShadow(source db.EventSource, store db.Anomalies, sensitivity float64) *Shadow {
	return &Shadow{source: source, store: store, sensitivity: sensitivity}
}

func (s *Shadow) Name() string { return "domain-shadowing" }

func (s *Shadow) Run(ctx context.Context, from, to time.Time) error {
	evs, err := s.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("domain-shadowing: %w", err)
	}
	snap := feature.Extract(evs)

	// distinct-subdomain count per source, grouped by parent domain
	type row struct {
		source string
		count  float64
	}
	byDomain := make(map[string][]row)
	for pair, grp := range snap.Pairs {
		n := len(grp.Subdomains)
		if n == 0 {
			continue
		}
		byDomain[pair.Domain] = append(byDomain[pair.Domain], row{source: pair.Source, count: float64(n)})
	}

	flagged := make(recordSet)
	for domain, rows := range byDomain {
		sort.Slice(rows, func(i, j int) bool { return rows[i].source < rows[j].source })
		counts := make([]float64, len(rows))
		for i, r := range rows {
			counts[i] = r.count
		}
		outliers, _ := statistics.Outliers(counts, s.sensitivity)
		for i, isOutlier := range outliers {
			if !isOutlier {
				continue
			}
			flagged.add(domain, db.TypeDomainShadowing)
			log.WithFields(log.Fields{
				"source":     rows[i].source,
				"domain":     domain,
				"subdomains": int(rows[i].count),
			}).Info("domain shadowing pair flagged")
		}
	}

	if err := s.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("domain-shadowing: %w", err)
	}
	log.WithFields(log.Fields{
		"domains": len(byDomain),
		"flagged": len(flagged),
	}).Info("domain shadowing run complete")
	return nil
}
