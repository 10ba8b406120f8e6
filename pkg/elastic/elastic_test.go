package elastic

import (
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"
)

func TestMappingsAreValid(t *testing.T) {
	g := NewGomegaWithT(t)

	var anomaly map[string]interface{}
	g.Expect(json.Unmarshal([]byte(anomalyMapping), &anomaly)).To(Succeed())
	props := anomaly["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	g.Expect(props).To(HaveKey("domain"))
	g.Expect(props).To(HaveKey("anomalous_type"))
	g.Expect(props).To(HaveKey("last_update"))

	var model map[string]interface{}
	g.Expect(json.Unmarshal([]byte(modelMapping), &model)).To(Succeed())
	props = model["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	g.Expect(props).To(HaveKey("key"))
	g.Expect(props).To(HaveKey("model"))
	// model bodies are opaque: stored, never indexed
	g.Expect(props["model"].(map[string]interface{})["enabled"]).To(Equal(false))
}

func TestIndexOptions(t *testing.T) {
	g := NewGomegaWithT(t)

	e := &Elastic{
		eventIndex:   DefaultEventIndex,
		anomalyIndex: DefaultAnomalyIndex,
		modelIndex:   DefaultModelIndex,
	}
	for _, o := range []Option{
		WithEventIndex("dns-lab*"),
		WithAnomalyIndex(".lab.anomalies"),
		WithModelIndex(".lab.models"),
	} {
		o(e)
	}
	g.Expect(e.eventIndex).To(Equal("dns-lab*"))
	g.Expect(e.anomalyIndex).To(Equal(".lab.anomalies"))
	g.Expect(e.modelIndex).To(Equal(".lab.models"))
}
