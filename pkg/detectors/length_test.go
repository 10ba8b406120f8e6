package detectors

import (
	"context"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/aleeric/dnsguard/pkg/events"
	"github.com/aleeric/dnsguard/pkg/mock"
	"github.com/aleeric/dnsguard/pkg/statistics"
)

func TestLengthFlagsEncodedName(t *testing.T) {
	g := NewGomegaWithT(t)
	ctx := context.Background()

	routine := []string{
		"www.shop.com",
		"mail.shop.com",
		"cdn.images.com",
		"api.vendor.com",
		"login.portal.com",
		"files.portal.com",
		"img.news.com",
		"sync.vendor.com",
	}
	var evs []events.QueryEvent
	for i, name := range routine {
		evs = append(evs, query(t0.Add(time.Duration(i)*time.Second), "host-01", name, events.TypeA))
	}
	// a base64-feeling payload rides the subdomain
	payload := strings.Repeat("a", 60) + ".evil.com"
	evs = append(evs, query(t0.Add(time.Minute), "host-01", payload, events.TypeA))

	store := &mock.Anomalies{}
	d := NewLength(&mock.EventSource{Events: evs}, store, statistics.DefaultSensitivity)
	g.Expect(d.Run(ctx, t0, t0.Add(time.Hour))).To(Succeed())

	g.Expect(store.Records).To(HaveLen(1))
	g.Expect(store.Records).To(HaveKey("evil.com#Query Length"))
}

func TestLengthSkipsUnsplittableOutlier(t *testing.T) {
	g := NewGomegaWithT(t)
	ctx := context.Background()

	var evs []events.QueryEvent
	for i := 0; i < 8; i++ {
		evs = append(evs, query(t0.Add(time.Duration(i)*time.Second), "host-02", "www.benign.com", events.TypeA))
	}
	// an outlying length with no parent domain cannot be attributed
	evs = append(evs, query(t0.Add(time.Minute), "host-02", strings.Repeat("b", 120), events.TypeA))

	store := &mock.Anomalies{}
	d := NewLength(&mock.EventSource{Events: evs}, store, statistics.DefaultSensitivity)
	g.Expect(d.Run(ctx, t0, t0.Add(time.Hour))).To(Succeed())
	g.Expect(store.Records).To(BeEmpty())
}
