// Package mock provides in-memory implementations of the pkg/db interfaces
// for tests.
package mock

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/events"
)

// EventSource serves a fixed set of events, filtered to the queried window.
type EventSource struct {
	Events []events.QueryEvent
	Err    error
}

func (s *EventSource) Query(_ context.Context, from, to time.Time) ([]events.QueryEvent, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	var out []events.QueryEvent
	for _, ev := range s.Events {
		if ev.Time.Before(from) || !ev.Time.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Anomalies is an in-memory anomaly store with upsert semantics.
type Anomalies struct {
	sync.Mutex
	Err     error
	Records map[string]db.AnomalyRecord
	Upserts int

	// Now lets tests control the write timestamp.
	Now func() time.Time
}

func (a *Anomalies) Upsert(_ context.Context, records []db.AnomalyRecord) error {
	a.Lock()
	defer a.Unlock()
	if a.Err != nil {
		return a.Err
	}
	if a.Records == nil {
		a.Records = make(map[string]db.AnomalyRecord)
	}
	now := time.Now().UTC()
	if a.Now != nil {
		now = a.Now()
	}
	for _, r := range records {
		r.Key = db.RecordKey(r.Domain, r.AnomalousType)
		r.LastUpdate = now
		a.Records[r.Key] = r
	}
	a.Upserts++
	return nil
}

func (a *Anomalies) Lookup(_ context.Context, domain string) ([]db.AnomalyRecord, error) {
	a.Lock()
	defer a.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	var out []db.AnomalyRecord
	for _, r := range a.Records {
		if r.Domain == domain {
			out = append(out, r)
		}
	}
	return out, nil
}

// Models is an in-memory model store.
type Models struct {
	sync.Mutex
	Docs    map[string]json.RawMessage
	LoadErr error
	SaveErr error
	Saves   int
}

func (m *Models) Load(_ context.Context, key string, into interface{}) (bool, error) {
	m.Lock()
	defer m.Unlock()
	if m.LoadErr != nil {
		return false, m.LoadErr
	}
	raw, ok := m.Docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, into)
}

func (m *Models) LoadPrefix(_ context.Context, prefix string) (map[string]json.RawMessage, error) {
	m.Lock()
	defer m.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	out := make(map[string]json.RawMessage)
	for k, v := range m.Docs {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Models) Save(_ context.Context, models map[string]interface{}) error {
	m.Lock()
	defer m.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	staged := make(map[string]json.RawMessage, len(models))
	for k, v := range models {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		staged[k] = raw
	}
	if m.Docs == nil {
		m.Docs = make(map[string]json.RawMessage)
	}
	for k, v := range staged {
		m.Docs[k] = v
	}
	m.Saves++
	return nil
}
