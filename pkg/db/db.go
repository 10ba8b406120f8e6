// Package db declares the storage interfaces the detectors depend on, and
// the anomaly record entity they persist. Implementations live in
// pkg/elastic; in-memory fakes live in pkg/mock.
package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aleeric/dnsguard/pkg/events"
)

// Anomalous type namespaces. Each detector owns exactly one, which is what
// makes concurrent detector runs race-free on the anomaly store.
const (
	TypeBeaconing         = "Beaconing"
	TypeC2Tunneling       = "C2 Tunneling"
	TypeQueryLength       = "Query Length"
	TypeDomainShadowing   = "Domain Shadowing"
	TypeBehavioralAnomaly = "Behavioral Anomaly"
)

// RecordTypeAnomaly returns the anomalous type for a record-type ratio
// detector, e.g. "TXT Record Anomalies".
func RecordTypeAnomaly(recordType string) string {
	return recordType + " Record Anomalies"
}

// AnomalyRecord is the sole externally durable artifact of the engine.
// At most one live record exists per (domain, anomalous_type); re-detection
// updates last_update in place.
type AnomalyRecord struct {
	Key           string    `json:"_key"`
	Domain        string    `json:"domain"`
	AnomalousType string    `json:"anomalous_type"`
	LastUpdate    time.Time `json:"last_update"`
}

// RecordKey is the anomaly store primary key.
func RecordKey(domain, anomalousType string) string {
	return domain + "#" + anomalousType
}

// NewAnomalyRecord builds a record for upsert. LastUpdate is stamped by the
// store at write time.
func NewAnomalyRecord(domain, anomalousType string) AnomalyRecord {
	return AnomalyRecord{
		Key:           RecordKey(domain, anomalousType),
		Domain:        domain,
		AnomalousType: anomalousType,
	}
}

// Anomalies is the anomaly store. Upsert is a single batch write with
// write-or-replace semantics per key; a failed batch commits nothing, so a
// failed detector run leaves the store untouched.
type Anomalies interface {
	Upsert(ctx context.Context, records []AnomalyRecord) error
	Lookup(ctx context.Context, domain string) ([]AnomalyRecord, error)
}

// EventSource supplies the canonical DNS query events for a window.
// The window is [from, to).
type EventSource interface {
	Query(ctx context.Context, from, to time.Time) ([]events.QueryEvent, error)
}

// Models persists detector model state between runs. Load reports found=false
// for absent keys; any other failure is surfaced so the caller can log the
// degradation and bootstrap a fresh model. Save writes all models as one
// batch so a run never leaves partially updated state behind.
type Models interface {
	Load(ctx context.Context, key string, into interface{}) (found bool, err error)
	LoadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error)
	Save(ctx context.Context, models map[string]interface{}) error
}
