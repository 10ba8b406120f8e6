// Package detectors contains the statistical detectors that score windows
// of DNS query events and upsert anomaly records. Each detector owns a
// disjoint anomalous type namespace and exposes a single Run entry point
// invoked by the scheduler for a window.
package detectors

import (
	"context"
	"time"

	"github.com/aleeric/dnsguard/pkg/db"
)

// Detector scores one window of events. Run is a pure function of the
// window and the detector's loaded model state; a failed run commits
// neither anomaly records nor model updates.
type Detector interface {
	Name() string
	Run(ctx context.Context, from, to time.Time) error
}

// recordSet deduplicates anomaly records within a run. Several window rows
// can flag the same (domain, type) pair; the store key makes the write
// idempotent, but there is no point sending the key twice in one batch.
type recordSet map[string]db.AnomalyRecord

func (s recordSet) add(domain, anomalousType string) {
	r := db.NewAnomalyRecord(domain, anomalousType)
	s[r.Key] = r
}

func (s recordSet) records() []db.AnomalyRecord {
	if len(s) == 0 {
		return nil
	}
	out := make([]db.AnomalyRecord, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	return out
}
