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

// BeaconModelPrefix namespaces the per-pair gap models in the model store.
const BeaconModelPrefix = "beacon/"

// BeaconConfig carries the beaconing decision thresholds.
type BeaconConfig struct {
	// StdDevThreshold is the gap standard deviation, in seconds, below
	// which a pair counts as periodic.
	StdDevThreshold float64
	// DegenerateFloor is the deviation value that marks a model as unable
	// to estimate variance. Flagging excludes it exactly.
	DegenerateFloor float64
	// StrictDensity is the tail probability threshold of the strict
	// bootstrap fit used to trim tail gaps when a pair is seen for the
	// first time.
	StrictDensity float64
}

// DefaultBeaconConfig matches the shipped detection thresholds.
func DefaultBeaconConfig() BeaconConfig {
	return BeaconConfig{
		StdDevThreshold: 60,
		DegenerateFloor: statistics.DefaultDegenerateStdDev,
		StrictDensity:   0.01,
	}
}

// Beacon detects C2 beaconing: per (source, domain) pairs whose inter-query
// gaps show persistently low variance. The gap model is incremental; every
// run merges the window's gap samples into the pair's lifetime statistics.
type Beacon struct {
	source db.EventSource
	store  db.Anomalies
	models db.Models
	cfg    BeaconConfig
}

func NewBeacon(source db.EventSource, store db.Anomalies, models db.Models, cfg BeaconConfig) *Beacon {
	return &Beacon{source: source, store: store, models: models, cfg: cfg}
}

func (b *Beacon) Name() string { return "beaconing" }

// BeaconModelKey is the model store key for a pair's gap model.
func BeaconModelKey(source, domain string) string {
	return BeaconModelPrefix + source + "/" + domain
}

func (b *Beacon) Run(ctx context.Context, from, to time.Time) error {
	evs, err := b.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("beaconing: %w", err)
	}
	snap := feature.Extract(evs)

	flagged := make(recordSet)
	updated := make(map[string]interface{})
	for pair, grp := range snap.Pairs {
		if len(grp.Gaps) == 0 {
			continue
		}
		key := BeaconModelKey(pair.Source, pair.Domain)

		var model statistics.Gaussian
		found, err := b.models.Load(ctx, key, &model)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("gap model unreadable, bootstrapping fresh")
			model = statistics.Gaussian{}
			found = false
		}

		samples := grp.Gaps
		if !found {
			samples = b.trimBootstrap(samples)
		}
		model.Merge(statistics.Fit(samples))
		updated[key] = model

		sd := model.StdDev(b.cfg.DegenerateFloor)
		if sd < b.cfg.StdDevThreshold && sd != b.cfg.DegenerateFloor {
			flagged.add(pair.Domain, db.TypeBeaconing)
			log.WithFields(log.Fields{
				"source": pair.Source,
				"domain": pair.Domain,
				"stddev": sd,
				"n":      model.N,
			}).Info("beaconing pair flagged")
		}
	}

	if err := b.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("beaconing: %w", err)
	}
	if err := b.models.Save(ctx, updated); err != nil {
		return fmt.Errorf("beaconing: %w", err)
	}
	log.WithFields(log.Fields{
		"pairs":   len(snap.Pairs),
		"flagged": len(flagged),
	}).Info("beaconing run complete")
	return nil
}

// trimBootstrap seeds a first-time pair from the window with one-off tail
// gaps removed, using the strict fresh fit. A wide fit can mark every sample
// as sparse; in that case the window is kept whole rather than discarded.
func (b *Beacon) trimBootstrap(samples []float64) []float64 {
	outliers := statistics.StrictOutliers(samples, b.cfg.StrictDensity, b.cfg.DegenerateFloor)
	kept := make([]float64, 0, len(samples))
	for i, x := range samples {
		if !outliers[i] {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		return samples
	}
	return kept
}
