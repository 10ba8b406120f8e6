// The dnsguard controller wires the detectors to Elasticsearch and runs
// each on its cadence: record-type detectors hourly, everything else every
// six hours. The detectors themselves expose only Run(from, to); this
// binary is the deployment surface around them.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/config"
	"github.com/aleeric/dnsguard/pkg/detectors"
	"github.com/aleeric/dnsguard/pkg/elastic"
	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/health"
	"github.com/aleeric/dnsguard/pkg/runloop"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	u := &url.URL{
		Scheme: cfg.ElasticScheme,
		Host:   fmt.Sprintf("%s:%d", cfg.ElasticHost, cfg.ElasticPort),
	}
	e, err := elastic.NewElastic(&http.Client{}, u, cfg.ElasticUser, cfg.ElasticPassword,
		elastic.WithEventIndex(cfg.EventIndex),
		elastic.WithAnomalyIndex(cfg.AnomalyIndex),
		elastic.WithModelIndex(cfg.ModelIndex),
	)
	if err != nil {
		log.WithError(err).Fatal("could not connect to Elasticsearch")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	beaconCfg := detectors.BeaconConfig{
		StdDevThreshold: cfg.BeaconStdDevThreshold,
		DegenerateFloor: cfg.BeaconDegenerateFloor,
		StrictDensity:   cfg.BeaconStrictDensity,
	}
	behaviorCfg := detectors.BehaviorConfig{
		ClusterCount:    cfg.ClusterCount,
		DegenerateFloor: cfg.BeaconDegenerateFloor,
	}

	type job struct {
		detector detectors.Detector
		period   time.Duration
		lookback time.Duration
	}
	jobs := []job{
		{detectors.NewBeacon(e, e, e, beaconCfg), cfg.DetectorPeriod, cfg.DetectorLookback},
		{detectors.NewVolume(e, e, cfg.VolumeBucket, cfg.OutlierSensitivity), cfg.DetectorPeriod, cfg.VolumeLookback},
		{detectors.NewLength(e, e, cfg.OutlierSensitivity), cfg.DetectorPeriod, cfg.DetectorLookback},
		{detectors.NewShadow(e, e, cfg.OutlierSensitivity), cfg.DetectorPeriod, cfg.DetectorLookback},
		{detectors.NewBehavior(e, e, e, behaviorCfg), cfg.DetectorPeriod, cfg.DetectorLookback},
	}
	for _, t := range events.RareTypes {
		jobs = append(jobs, job{
			detector: detectors.NewRecordType(e, e, t, cfg.RecordTypeBucket, cfg.OutlierSensitivity),
			period:   cfg.RecordTypePeriod,
			lookback: cfg.RecordTypeLookback,
		})
	}

	for _, j := range jobs {
		j := j
		go func() {
			err := runloop.RunLoop(ctx, func() {
				to := time.Now()
				from := to.Add(-j.lookback)
				if err := j.detector.Run(ctx, from, to); err != nil {
					log.WithError(err).WithField("detector", j.detector.Name()).Error("detection run failed")
				}
			}, j.period)
			log.WithError(err).WithField("detector", j.detector.Name()).Info("detector stopped")
		}()
	}
	log.WithField("detectors", len(jobs)).Info("detection started")

	hs := health.NewServer(e, health.AlwaysReady{}, cfg.HealthzSockPort)
	go func() {
		if err := hs.Serve(); err != nil {
			log.WithError(err).Error("health server failed")
		}
	}()
	defer func() {
		if err := hs.Close(); err != nil {
			log.WithError(err).Error("health server close failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}
