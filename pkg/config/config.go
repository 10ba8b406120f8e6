// Package config supplies the engine configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ElasticScheme   string `envconfig:"ELASTIC_SCHEME" default:"http"`
	ElasticHost     string `envconfig:"ELASTIC_HOST" default:"localhost"`
	ElasticPort     int    `envconfig:"ELASTIC_PORT" default:"9200"`
	ElasticUser     string `envconfig:"ELASTIC_USER"`
	ElasticPassword string `envconfig:"ELASTIC_PASSWORD"`

	EventIndex   string `envconfig:"DNS_EVENT_INDEX" default:"dns-query-events*"`
	AnomalyIndex string `envconfig:"ANOMALY_INDEX" default:".dnsguard.anomalies"`
	ModelIndex   string `envconfig:"MODEL_INDEX" default:".dnsguard.models"`

	HealthzSockPort int `envconfig:"HEALTHZ_PORT" default:"50000"`

	// Cadences. Record-type detectors run hourly, the rest every 6 hours;
	// the external scheduler contract guarantees runs of one detector never
	// overlap, which the per-detector run loops preserve.
	DetectorPeriod   time.Duration `envconfig:"DETECTOR_PERIOD" default:"6h"`
	RecordTypePeriod time.Duration `envconfig:"RECORD_TYPE_PERIOD" default:"1h"`

	// Window and bucket spans.
	DetectorLookback   time.Duration `envconfig:"DETECTOR_LOOKBACK" default:"6h"`
	VolumeLookback     time.Duration `envconfig:"VOLUME_LOOKBACK" default:"4h"`
	RecordTypeLookback time.Duration `envconfig:"RECORD_TYPE_LOOKBACK" default:"1h"`
	VolumeBucket       time.Duration `envconfig:"VOLUME_BUCKET" default:"1m"`
	RecordTypeBucket   time.Duration `envconfig:"RECORD_TYPE_BUCKET" default:"1h"`

	// Detection knobs.
	OutlierSensitivity    float64 `envconfig:"OUTLIER_SENSITIVITY" default:"6.0"`
	BeaconStdDevThreshold float64 `envconfig:"BEACON_STDDEV_THRESHOLD" default:"60"`
	BeaconDegenerateFloor float64 `envconfig:"BEACON_DEGENERATE_FLOOR" default:"1e-6"`
	BeaconStrictDensity   float64 `envconfig:"BEACON_STRICT_DENSITY" default:"0.01"`
	ClusterCount          int     `envconfig:"CLUSTER_COUNT" default:"5"`
}

func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
