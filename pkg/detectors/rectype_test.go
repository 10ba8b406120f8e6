package detectors

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/mock"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

// typedBurst lays out count queries of one record type inside an hour
// bucket, each to a distinct subdomain.
func typedBurst(bucket time.Time, source, domain, rtype string, count int) []events.QueryEvent {
	evs := make([]events.QueryEvent, 0, count)
	for j := 0; j < count; j++ {
		qname := fmt.Sprintf("q%d.%s", j, domain)
		evs = append(evs, query(bucket.Add(time.Duration(j)*time.Second), source, qname, rtype))
	}
	return evs
}

func TestRecordTypeFlagsTXTBurst(t *testing.T) {
	g := NewGomegaWithT(t)
	ctx := context.Background()

	// routine TXT traffic (SPF lookups and the like) across hosts and
	// hours, then a single-host exfiltration burst in the third hour
	var evs []events.QueryEvent
	evs = append(evs, typedBurst(t0, "host-01", "evil.com", events.TypeTXT, 1)...)
	evs = append(evs, typedBurst(t0, "host-02", "evil.com", events.TypeTXT, 1)...)
	evs = append(evs, typedBurst(t0.Add(time.Hour), "host-01", "evil.com", events.TypeTXT, 2)...)
	evs = append(evs, typedBurst(t0.Add(time.Hour), "host-02", "evil.com", events.TypeTXT, 2)...)
	evs = append(evs, typedBurst(t0.Add(time.Hour), "host-03", "evil.com", events.TypeTXT, 2)...)
	evs = append(evs, typedBurst(t0.Add(2*time.Hour), "host-01", "evil.com", events.TypeTXT, 3)...)
	evs = append(evs, typedBurst(t0.Add(2*time.Hour), "attacker", "evil.com", events.TypeTXT, 500)...)

	// heavy A-record traffic to the same domain is out of scope here
	evs = append(evs, typedBurst(t0.Add(2*time.Hour), "attacker", "evil.com", events.TypeA, 800)...)

	store := &mock.Anomalies{}
	d := NewRecordType(&mock.EventSource{Events: evs}, store, events.TypeTXT, time.Hour, statistics.DefaultSensitivity)
	g.Expect(d.Name()).To(Equal("record-type-TXT"))
	g.Expect(d.Run(ctx, t0, t0.Add(3*time.Hour))).To(Succeed())

	g.Expect(store.Records).To(HaveLen(1))
	g.Expect(store.Records).To(HaveKey("evil.com#TXT Record Anomalies"))
}

func TestRecordTypeIgnoresOtherTypes(t *testing.T) {
	g := NewGomegaWithT(t)
	ctx := context.Background()

	// an ANY detector sees no ANY traffic at all
	evs := typedBurst(t0, "host-01", "evil.com", events.TypeTXT, 50)
	store := &mock.Anomalies{}
	d := NewRecordType(&mock.EventSource{Events: evs}, store, events.TypeANY, time.Hour, statistics.DefaultSensitivity)
	g.Expect(d.Run(ctx, t0, t0.Add(time.Hour))).To(Succeed())
	g.Expect(store.Records).To(BeEmpty())
}
