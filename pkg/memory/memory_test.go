package memory_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramhq/engram/pkg/memory"
)

var _ = Describe("MemoryState", func() {
	Describe("NewState", func() {
		It("returns an empty snapshot keyed by user", func() {
			state := memory.NewState("alice")

			Expect(state.UserID).To(Equal("alice"))
			Expect(state.Facts).To(BeEmpty())
			Expect(state.Facts).NotTo(BeNil())
			Expect(state.FactCount).To(BeZero())
			Expect(state.Summary).To(BeEmpty())
		})
	})

	Describe("Clone", func() {
		It("returns nil for a nil state", func() {
			var state *memory.MemoryState
			Expect(state.Clone()).To(BeNil())
		})

		It("copies facts so the original cannot be mutated through the clone", func() {
			state := memory.NewState("alice")
			state.Facts = []memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice"},
			}

			clone := state.Clone()
			clone.Facts[0].Value = "Mallory"
			clone.UserID = "mallory"

			Expect(state.Facts[0].Value).To(Equal("Alice"))
			Expect(state.UserID).To(Equal("alice"))
		})

		It("copies pending turns", func() {
			state := memory.NewState("alice")
			state.PendingTurns = []memory.Turn{
				{Role: memory.RoleUser, Content: "hello"},
			}

			clone := state.Clone()
			clone.PendingTurns[0].Content = "changed"

			Expect(state.PendingTurns[0].Content).To(Equal("hello"))
		})
	})

	Describe("GroupByKind", func() {
		It("buckets facts preserving insertion order within each kind", func() {
			facts := []memory.Fact{
				{Kind: memory.KindPreference, Subject: "coffee"},
				{Kind: memory.KindIdentity, Subject: "name"},
				{Kind: memory.KindPreference, Subject: "tea"},
			}

			groups := memory.GroupByKind(facts)

			Expect(groups).To(HaveLen(2))
			Expect(groups[memory.KindPreference][0].Subject).To(Equal("coffee"))
			Expect(groups[memory.KindPreference][1].Subject).To(Equal("tea"))
			Expect(groups[memory.KindIdentity]).To(HaveLen(1))
		})

		It("carries unknown kinds through untouched", func() {
			facts := []memory.Fact{{Kind: "quirk", Subject: "whistles"}}
			Expect(memory.GroupByKind(facts)).To(HaveKey("quirk"))
		})
	})

	Describe("ByConfidenceDesc", func() {
		It("sorts descending without mutating the input", func() {
			facts := []memory.Fact{
				{Subject: "low", Confidence: 0.2},
				{Subject: "high", Confidence: 0.9},
				{Subject: "mid", Confidence: 0.5},
			}

			sorted := memory.ByConfidenceDesc(facts)

			Expect(sorted[0].Subject).To(Equal("high"))
			Expect(sorted[1].Subject).To(Equal("mid"))
			Expect(sorted[2].Subject).To(Equal("low"))
			Expect(facts[0].Subject).To(Equal("low"))
		})

		It("keeps insertion order for equal confidence", func() {
			facts := []memory.Fact{
				{Subject: "first", Confidence: 0.5},
				{Subject: "second", Confidence: 0.5},
			}

			sorted := memory.ByConfidenceDesc(facts)

			Expect(sorted[0].Subject).To(Equal("first"))
			Expect(sorted[1].Subject).To(Equal("second"))
		})
	})
})

var _ = Describe("Normalize", func() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	It("rejects a fact without a kind", func() {
		_, ok := memory.Normalize(memory.Fact{Subject: "name"}, now)
		Expect(ok).To(BeFalse())
	})

	It("rejects a fact without a subject", func() {
		_, ok := memory.Normalize(memory.Fact{Kind: memory.KindIdentity}, now)
		Expect(ok).To(BeFalse())
	})

	It("fills FirstSeen when absent and always overwrites LastUpdated", func() {
		earlier := now.Add(-24 * time.Hour)
		f, ok := memory.Normalize(memory.Fact{
			Kind:        memory.KindIdentity,
			Subject:     "name",
			FirstSeen:   earlier,
			LastUpdated: earlier,
			Confidence:  0.9,
		}, now)

		Expect(ok).To(BeTrue())
		Expect(f.FirstSeen).To(Equal(earlier))
		Expect(f.LastUpdated).To(Equal(now))
	})

	It("stamps FirstSeen with now when zero", func() {
		f, ok := memory.Normalize(memory.Fact{Kind: memory.KindIdentity, Subject: "name"}, now)

		Expect(ok).To(BeTrue())
		Expect(f.FirstSeen).To(Equal(now))
	})

	It("keeps an explicit zero confidence", func() {
		f, ok := memory.Normalize(memory.Fact{Kind: memory.KindIdentity, Subject: "name", Confidence: 0.0}, now)
		Expect(ok).To(BeTrue())
		Expect(f.Confidence).To(BeZero())
	})

	It("clamps confidence into [0, 1]", func() {
		f, _ := memory.Normalize(memory.Fact{Kind: "k", Subject: "s", Confidence: 1.7}, now)
		Expect(f.Confidence).To(Equal(1.0))

		f, _ = memory.Normalize(memory.Fact{Kind: "k", Subject: "s", Confidence: -0.3}, now)
		Expect(f.Confidence).To(Equal(0.0))
	})
})
