package format_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/pipeline"
)

// profileState builds a snapshot the way the pipeline would leave it, with
// Summary derived from the facts.
func profileState(facts []memory.Fact) *memory.MemoryState {
	state := memory.NewState("alice")
	state.Facts = facts
	state.FactCount = len(facts)
	state.Summary = pipeline.Summarize(facts)
	return state
}

var _ = Describe("ParseMode", func() {
	It("accepts the three known modes", func() {
		for _, name := range []string{"structured", "natural", "bullet"} {
			mode, err := format.ParseMode(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(mode)).To(Equal(name))
		}
	})

	It("rejects anything else", func() {
		_, err := format.ParseMode("markdown")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Render", func() {
	Describe("empty snapshots", func() {
		It("returns empty for every mode", func() {
			state := memory.NewState("alice")

			for _, mode := range []format.Mode{format.ModeStructured, format.ModeNatural, format.ModeBullet} {
				Expect(format.Render(state, mode, format.Options{})).To(BeEmpty())
			}
		})

		It("returns empty for a nil state", func() {
			Expect(format.Render(nil, format.ModeStructured, format.Options{})).To(BeEmpty())
		})
	})

	Describe("structured mode", func() {
		It("wraps sections in the profile markers", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(out).To(HavePrefix("=== USER MEMORY PROFILE ==="))
			Expect(out).To(HaveSuffix("=== END MEMORY PROFILE ==="))
		})

		It("renders identity and preference sections", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
				{Kind: memory.KindPreference, Subject: "coffee", Value: "espresso", Sentiment: memory.SentimentPositive, Confidence: 0.8},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(out).To(ContainSubstring("About You:\n  - Name: Alice"))
			Expect(out).To(ContainSubstring("Preferences:\n  - Likes: espresso"))
		})

		It("labels negative preferences as dislikes", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindPreference, Subject: "tea", Value: "chamomile", Sentiment: memory.SentimentNegative, Confidence: 0.7},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(out).To(ContainSubstring("  - Dislikes: chamomile"))
		})

		It("orders preferences by descending confidence", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindPreference, Subject: "tea", Value: "chamomile", Sentiment: memory.SentimentPositive, Confidence: 0.4},
				{Kind: memory.KindPreference, Subject: "coffee", Value: "espresso", Sentiment: memory.SentimentPositive, Confidence: 0.9},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(strings.Index(out, "espresso")).To(BeNumerically("<", strings.Index(out, "chamomile")))
		})

		It("caps the identity section via options", func() {
			facts := []memory.Fact{
				{Kind: memory.KindIdentity, Subject: "first", Value: "one", Confidence: 0.9},
				{Kind: memory.KindIdentity, Subject: "second", Value: "two", Confidence: 0.9},
				{Kind: memory.KindIdentity, Subject: "third", Value: "three", Confidence: 0.9},
			}
			state := profileState(facts)

			out := format.Render(state, format.ModeStructured, format.Options{MaxIdentity: 2})

			Expect(out).To(ContainSubstring("First: one"))
			Expect(out).To(ContainSubstring("Second: two"))
			Expect(out).NotTo(ContainSubstring("Third: three"))
		})

		It("omits sections with no facts", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(out).NotTo(ContainSubstring("You Own:"))
			Expect(out).NotTo(ContainSubstring("Goals:"))
		})

		It("renders skills and events sections", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindSkill, Subject: "go", Value: "writes Go services", Confidence: 0.8},
				{Kind: memory.KindEvent, Subject: "birthday", Value: "March 3", Confidence: 0.8},
			})

			out := format.Render(state, format.ModeStructured, format.Options{})

			Expect(out).To(ContainSubstring("Skills/Interests:\n  - writes Go services"))
			Expect(out).To(ContainSubstring("Important Dates:\n  - Birthday: March 3"))
		})
	})

	Describe("natural mode", func() {
		It("wraps the summary in a narrative preamble", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
			})

			out := format.Render(state, format.ModeNatural, format.Options{})

			Expect(out).To(HavePrefix("Based on previous conversations, I know the following about you:"))
			Expect(out).To(ContainSubstring("Identity: name: Alice"))
			Expect(out).To(HaveSuffix("I'll use this context to personalize my responses."))
		})
	})

	Describe("bullet mode", func() {
		It("prefixes the summary with the reveal line", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
			})

			out := format.Render(state, format.ModeBullet, format.Options{})

			Expect(out).To(Equal("Previous conversations revealed:\nIdentity: name: Alice"))
		})
	})

	Describe("idempotence", func() {
		It("renders identically for the same snapshot", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindIdentity, Subject: "name", Value: "Alice", Confidence: 0.9},
				{Kind: memory.KindPreference, Subject: "coffee", Value: "espresso", Sentiment: memory.SentimentPositive, Confidence: 0.8},
			})

			for _, mode := range []format.Mode{format.ModeStructured, format.ModeNatural, format.ModeBullet} {
				first := format.Render(state, mode, format.Options{})
				second := format.Render(state, mode, format.Options{})
				Expect(second).To(Equal(first))
			}
		})

		It("does not mutate the snapshot", func() {
			state := profileState([]memory.Fact{
				{Kind: memory.KindPreference, Subject: "tea", Value: "chamomile", Confidence: 0.4},
				{Kind: memory.KindPreference, Subject: "coffee", Value: "espresso", Confidence: 0.9},
			})

			format.Render(state, format.ModeStructured, format.Options{})

			Expect(state.Facts[0].Subject).To(Equal("tea"))
		})
	})
})
