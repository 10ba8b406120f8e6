// Package elastic implements the pkg/db storage interfaces on
// Elasticsearch: the windowed DNS event source, the anomaly store, and the
// detector model store.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/olivere/elastic/v7"
	log "github.com/sirupsen/logrus"

	"github.com/aleeric/dnsguard/pkg/db"
	"github.com/aleeric/dnsguard/pkg/events"
)

const (
	DefaultEventIndex   = "dns-query-events*"
	DefaultAnomalyIndex = ".dnsguard.anomalies"
	DefaultModelIndex   = ".dnsguard.models"

	QuerySize = 1000
)

// Elastic implements db.EventSource, db.Anomalies and db.Models.
type Elastic struct {
	c            *elastic.Client
	url          string
	eventIndex   string
	anomalyIndex string
	modelIndex   string
}

// Option overrides an index name.
type Option func(*Elastic)

func WithEventIndex(idx string) Option   { return func(e *Elastic) { e.eventIndex = idx } }
func WithAnomalyIndex(idx string) Option { return func(e *Elastic) { e.anomalyIndex = idx } }
func WithModelIndex(idx string) Option   { return func(e *Elastic) { e.modelIndex = idx } }

// NewElastic connects to the cluster. Sniffing is disabled because the
// engine typically talks to a single proxy endpoint.
func NewElastic(h *http.Client, u *url.URL, username, password string, opts ...Option) (*Elastic, error) {
	options := []elastic.ClientOptionFunc{
		elastic.SetURL(u.String()),
		elastic.SetHttpClient(h),
		elastic.SetErrorLog(log.StandardLogger()),
		elastic.SetSniff(false),
	}
	if username != "" {
		options = append(options, elastic.SetBasicAuth(username, password))
	}
	c, err := elastic.NewClient(options...)
	if err != nil {
		return nil, err
	}
	e := &Elastic{
		c:            c,
		url:          u.String(),
		eventIndex:   DefaultEventIndex,
		anomalyIndex: DefaultAnomalyIndex,
		modelIndex:   DefaultModelIndex,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Ping reports whether the cluster answers.
func (e *Elastic) Ping(ctx context.Context) error {
	_, _, err := e.c.Ping(e.url).Do(ctx)
	return err
}

// Query returns the canonical DNS query events in [from, to), ascending by
// time. Documents that do not unmarshal are dropped with a warning rather
// than failing the window.
func (e *Elastic) Query(ctx context.Context, from, to time.Time) ([]events.QueryEvent, error) {
	q := elastic.NewBoolQuery().Filter(
		elastic.NewRangeQuery("time").Gte(from).Lt(to),
	)
	scroll := e.c.Scroll(e.eventIndex).Query(q).Sort("time", true).Size(QuerySize)
	defer func() {
		if err := scroll.Clear(context.Background()); err != nil {
			log.WithError(err).Debug("failed to clear scroll")
		}
	}()

	var out []events.QueryEvent
	for {
		res, err := scroll.Do(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("dns event query: %w", err)
		}
		for _, hit := range res.Hits.Hits {
			var ev events.QueryEvent
			if err := json.Unmarshal(hit.Source, &ev); err != nil {
				log.WithError(err).WithField("id", hit.Id).Warn("skipping malformed dns event")
				continue
			}
			out = append(out, ev)
		}
	}
}

// Upsert writes all records in a single bulk request, doc id = record key,
// stamping last_update at write time. Either the whole batch is acknowledged
// or the run fails; no partial flags are committed.
func (e *Elastic) Upsert(ctx context.Context, records []db.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := e.ensureIndexExists(ctx, e.anomalyIndex, anomalyMapping); err != nil {
		return err
	}

	now := time.Now().UTC()
	bulk := e.c.Bulk()
	for _, r := range records {
		r.Key = db.RecordKey(r.Domain, r.AnomalousType)
		r.LastUpdate = now
		bulk.Add(elastic.NewBulkIndexRequest().Index(e.anomalyIndex).Id(r.Key).Doc(r))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("anomaly upsert: %w", err)
	}
	if res.Errors {
		for _, item := range res.Failed() {
			log.WithField("key", item.Id).Errorf("anomaly upsert failed: %v", item.Error)
		}
		return fmt.Errorf("anomaly upsert: %d of %d records failed", len(res.Failed()), len(records))
	}
	log.WithField("num", len(records)).Debug("anomaly records upserted")
	return nil
}

// Lookup returns the live anomaly records for a domain.
func (e *Elastic) Lookup(ctx context.Context, domain string) ([]db.AnomalyRecord, error) {
	res, err := e.c.Search(e.anomalyIndex).
		Query(elastic.NewTermQuery("domain", domain)).
		Size(QuerySize).
		Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("anomaly lookup: %w", err)
	}
	var out []db.AnomalyRecord
	for _, hit := range res.Hits.Hits {
		var r db.AnomalyRecord
		if err := json.Unmarshal(hit.Source, &r); err != nil {
			return nil, fmt.Errorf("anomaly lookup: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

type modelDoc struct {
	Key       string          `json:"key"`
	UpdatedAt time.Time       `json:"updated_at"`
	Model     json.RawMessage `json:"model"`
}

// Load reads one model document by key.
func (e *Elastic) Load(ctx context.Context, key string, into interface{}) (bool, error) {
	res, err := e.c.Get().Index(e.modelIndex).Id(key).Do(ctx)
	if err != nil {
		if elastic.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("model load %q: %w", key, err)
	}
	if !res.Found {
		return false, nil
	}
	var doc modelDoc
	if err := json.Unmarshal(res.Source, &doc); err != nil {
		return false, fmt.Errorf("model load %q: %w", key, err)
	}
	if err := json.Unmarshal(doc.Model, into); err != nil {
		return false, fmt.Errorf("model load %q: %w", key, err)
	}
	return true, nil
}

// LoadPrefix reads every model document whose key starts with prefix.
func (e *Elastic) LoadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	scroll := e.c.Scroll(e.modelIndex).
		Query(elastic.NewPrefixQuery("key", prefix)).
		Size(QuerySize)
	defer func() {
		if err := scroll.Clear(context.Background()); err != nil {
			log.WithError(err).Debug("failed to clear scroll")
		}
	}()
	for {
		res, err := scroll.Do(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			if elastic.IsNotFound(err) {
				return out, nil
			}
			return nil, fmt.Errorf("model load prefix %q: %w", prefix, err)
		}
		for _, hit := range res.Hits.Hits {
			var doc modelDoc
			if err := json.Unmarshal(hit.Source, &doc); err != nil {
				log.WithError(err).WithField("id", hit.Id).Warn("skipping unreadable model document")
				continue
			}
			out[doc.Key] = doc.Model
		}
	}
}

// Save writes all models of a run in a single bulk request so the run's
// model state lands as one unit.
func (e *Elastic) Save(ctx context.Context, models map[string]interface{}) error {
	if len(models) == 0 {
		return nil
	}
	if err := e.ensureIndexExists(ctx, e.modelIndex, modelMapping); err != nil {
		return err
	}
	now := time.Now().UTC()
	bulk := e.c.Bulk()
	for key, model := range models {
		raw, err := json.Marshal(model)
		if err != nil {
			return fmt.Errorf("model save %q: %w", key, err)
		}
		doc := modelDoc{Key: key, UpdatedAt: now, Model: raw}
		bulk.Add(elastic.NewBulkIndexRequest().Index(e.modelIndex).Id(key).Doc(doc))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("model save: %w", err)
	}
	if res.Errors {
		return fmt.Errorf("model save: %d of %d documents failed", len(res.Failed()), len(models))
	}
	return nil
}

func (e *Elastic) ensureIndexExists(ctx context.Context, idx, mapping string) error {
	exists, err := e.c.IndexExists(idx).Do(ctx)
	if err != nil {
		return err
	}
	if !exists {
		r, err := e.c.CreateIndex(idx).Body(mapping).Do(ctx)
		if err != nil {
			if elastic.IsConflict(err) {
				// concurrent detector created it first
				return nil
			}
			return err
		}
		if !r.Acknowledged {
			return fmt.Errorf("not acknowledged index %s create", idx)
		}
	}
	return nil
}
