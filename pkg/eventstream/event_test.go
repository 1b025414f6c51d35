package eventstream_test

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramhq/engram/pkg/eventstream"
)

var _ = Describe("Events", func() {
	Describe("NewStatusEvent", func() {
		It("populates the envelope", func() {
			event := eventstream.NewStatusEvent("alice", "Loading your memories...", false)

			Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
			Expect(event.EventType).To(Equal(eventstream.EventTypeStatus))
			Expect(uuid.Validate(event.EventID)).To(Succeed())
			Expect(event.EmittedAt).To(BeTemporally("~", time.Now().UTC(), time.Second))
			Expect(event.UserID).To(Equal("alice"))
			Expect(event.Description).To(Equal("Loading your memories..."))
			Expect(event.Done).To(BeFalse())
		})

		It("gives every event a distinct id", func() {
			a := eventstream.NewStatusEvent("alice", "one", false)
			b := eventstream.NewStatusEvent("alice", "two", true)

			Expect(a.EventID).NotTo(Equal(b.EventID))
		})
	})

	Describe("NewMemoryUpdatedEvent", func() {
		It("populates the envelope and converts the duration", func() {
			event := eventstream.NewMemoryUpdatedEvent("alice", 7, 1500*time.Millisecond, true)

			Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
			Expect(event.EventType).To(Equal(eventstream.EventTypeMemoryUpdated))
			Expect(uuid.Validate(event.EventID)).To(Succeed())
			Expect(event.UserID).To(Equal("alice"))
			Expect(event.FactCount).To(Equal(7))
			Expect(event.DurationMs).To(Equal(int64(1500)))
			Expect(event.Degraded).To(BeTrue())
		})

		It("encodes to the wire shape consumers expect", func() {
			event := eventstream.NewMemoryUpdatedEvent("alice", 2, 40*time.Millisecond, false)

			payload, err := json.Marshal(event)
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(payload, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKeyWithValue("schema_version", float64(1)))
			Expect(decoded).To(HaveKeyWithValue("event_type", "engram.memory.updated"))
			Expect(decoded).To(HaveKeyWithValue("user_id", "alice"))
			Expect(decoded).To(HaveKeyWithValue("fact_count", float64(2)))
			Expect(decoded).To(HaveKeyWithValue("duration_ms", float64(40)))
			Expect(decoded).To(HaveKeyWithValue("degraded", false))
		})
	})
})
