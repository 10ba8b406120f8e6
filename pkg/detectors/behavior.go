package detectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aleeric/dnsguard/pkg/clustering"
	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/feature"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// ClusterModelKey is the model store key for the behavioral cluster model.
const ClusterModelKey = "cluster/behavior"

// ClusterModel is the persisted behavioral partition. Unlike the gap models
// it is not incremental: every run refits it from scratch and overwrites it.
type ClusterModel struct {
	Centroids [][]float64 `json:"centroids"`
	Sources   int         `json:"sources"`
	FittedAt  time.Time   `json:"fitted_at"`
}

// BehaviorConfig carries the clustering parameters.
type BehaviorConfig struct {
	// ClusterCount is k.
	ClusterCount int
	// DegenerateFloor mirrors the beaconing floor when reading gap models.
	DegenerateFloor float64
}

func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		ClusterCount:    5,
		DegenerateFloor: statistics.DefaultDegenerateStdDev,
	}
}

// Behavior clusters sources by a multi-dimensional behavioral feature
// vector and flags the members of the anomalous cluster. Policy for picking
// that cluster: smallest population, ties broken by the larger centroid
// norm in standardized space. Coordinated anomalous sources are a minority
// by definition, and of two equally small clusters the one farther from the
// population center is the suspicious one.
type Behavior struct {
	source db.EventSource
	store  db.Anomalies
	models db.Models
	cfg    BehaviorConfig
}

func NewBehavior(source db.EventSource, store db.Anomalies, models db.Models, cfg BehaviorConfig) *Behavior {
	if cfg.ClusterCount < 1 {
		cfg.ClusterCount = 5
	}
	return &Behavior{source: source, store: store, models: models, cfg: cfg}
}

func (b *Behavior) Name() string { return "behavioral-clustering" }

func (b *Behavior) Run(ctx context.Context, from, to time.Time) error {
	evs, err := b.source.Query(ctx, from, to)
	if err != nil {
		return fmt.Errorf("behavioral-clustering: %w", err)
	}
	snap := feature.Extract(evs)
	if len(snap.Sources) <= b.cfg.ClusterCount {
		log.WithFields(log.Fields{
			"sources": len(snap.Sources),
			"k":       b.cfg.ClusterCount,
		}).Info("too few sources to cluster, skipping run")
		return nil
	}

	sources := make([]string, 0, len(snap.Sources))
	for s := range snap.Sources {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	matrix := make([][]float64, len(sources))
	for i, s := range sources {
		vec, err := b.featureVector(ctx, s, snap, to.Sub(from))
		if err != nil {
			return fmt.Errorf("behavioral-clustering: %w", err)
		}
		matrix[i] = vec
	}
	clustering.Standardize(matrix)

	km := clustering.KMeans{K: b.cfg.ClusterCount, MaxIter: 100}
	res, ok := km.Fit(matrix)
	if !ok {
		// fewer distinct behavioral profiles than clusters
		log.Info("degenerate feature space, skipping run")
		return nil
	}

	anomalous := anomalousCluster(res)
	flagged := make(recordSet)
	for i, s := range sources {
		if res.Assignments[i] != anomalous {
			continue
		}
		flagged.add(s, db.TypeBehavioralAnomaly)
		log.WithFields(log.Fields{
			"source":  s,
			"cluster": anomalous,
		}).Info("behavioral anomaly flagged")
	}

	if err := b.store.Upsert(ctx, flagged.records()); err != nil {
		return fmt.Errorf("behavioral-clustering: %w", err)
	}
	model := ClusterModel{Centroids: res.Centroids, Sources: len(sources), FittedAt: time.Now().UTC()}
	if err := b.models.Save(ctx, map[string]interface{}{ClusterModelKey: model}); err != nil {
		return fmt.Errorf("behavioral-clustering: %w", err)
	}
	log.WithFields(log.Fields{
		"sources": len(sources),
		"flagged": len(flagged),
	}).Info("behavioral clustering run complete")
	return nil
}

// featureVector builds the per-source behavioral vector: average hourly
// query frequency, average distinct-subdomain count across the source's
// domain pairs, mean/std/max query length, total volume, the four rare
// record type ratios (zero when absent), and the minimum gap-model standard
// deviation across the source's pairs as a beaconing proxy.
func (b *Behavior) featureVector(ctx context.Context, source string, snap *feature.Snapshot, window time.Duration) ([]float64, error) {
	grp := snap.Sources[source]
	total := float64(len(grp.Events))

	hours := window.Hours()
	if hours <= 0 {
		hours = 1
	}

	var subCounts []float64
	for pair, pg := range snap.Pairs {
		if pair.Source != source {
			continue
		}
		subCounts = append(subCounts, float64(len(pg.Subdomains)))
	}
	avgSubdomains := 0.0
	if len(subCounts) > 0 {
		avgSubdomains = stat.Mean(subCounts, nil)
	}

	lengths, _ := grp.QueryLengths()
	var meanLen, stdLen, maxLen float64
	if len(lengths) > 0 {
		meanLen = stat.Mean(lengths, nil)
		stdLen = stat.StdDev(lengths, nil)
		if len(lengths) < 2 {
			stdLen = 0
		}
		maxLen = floats.Max(lengths)
	}

	ratios := make([]float64, len(events.RareTypes))
	if total > 0 {
		for i, t := range events.RareTypes {
			ratios[i] = float64(grp.RecordTypes[t]) / total
		}
	}

	minGapStd, err := b.minGapStdDev(ctx, source, window)
	if err != nil {
		return nil, err
	}

	vec := []float64{total / hours, avgSubdomains, meanLen, stdLen, maxLen, total}
	vec = append(vec, ratios...)
	vec = append(vec, minGapStd)
	return vec, nil
}

// anomalousCluster applies the selection policy: smallest population, ties
// broken by the larger centroid L2 norm. In standardized space the
// population center is the origin, so the larger norm is the cluster that
// deviates most from typical behavior.
func anomalousCluster(res clustering.Result) int {
	best := 0
	for c := 1; c < len(res.Sizes); c++ {
		if res.Sizes[c] < res.Sizes[best] {
			best = c
			continue
		}
		if res.Sizes[c] == res.Sizes[best] &&
			floats.Norm(res.Centroids[c], 2) > floats.Norm(res.Centroids[best], 2) {
			best = c
		}
	}
	return best
}

// minGapStdDev scans the source's persisted gap models for the smallest
// standard deviation: a proxy for how beacon-like the source's most
// suspicious pair is. Sources with no gap history score the window length,
// the maximally un-beacon-like value.
func (b *Behavior) minGapStdDev(ctx context.Context, source string, window time.Duration) (float64, error) {
	docs, err := b.models.LoadPrefix(ctx, BeaconModelPrefix+source+"/")
	if err != nil {
		return 0, err
	}
	min := window.Seconds()
	for key, raw := range docs {
		var g statistics.Gaussian
		if err := json.Unmarshal(raw, &g); err != nil {
			log.WithError(err).WithField("key", key).Warn("skipping unreadable gap model")
			continue
		}
		if sd := g.StdDev(b.cfg.DegenerateFloor); sd < min {
			min = sd
		}
	}
	return min, nil
}
