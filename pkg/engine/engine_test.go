package engine_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/engramhq/engram/pkg/checkpoint"
	"github.com/engramhq/engram/pkg/checkpoint/inmemory"
	"github.com/engramhq/engram/pkg/engine"
	"github.com/engramhq/engram/pkg/eventstream"
	"github.com/engramhq/engram/pkg/format"
	"github.com/engramhq/engram/pkg/llm"
	"github.com/engramhq/engram/pkg/memory"
	"github.com/engramhq/engram/pkg/merge"
)

// scriptedCompleter returns queued replies in order, then repeats the last.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	delay   time.Duration
}

func (c *scriptedCompleter) Complete(ctx context.Context, _ *llm.ChatRequest) (string, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.err != nil {
		return "", c.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", nil
	}
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return reply, nil
}

// failingStore errors on every read and write but accepts schema setup.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (*memory.MemoryState, error) {
	return nil, errors.New("disk on fire")
}
func (failingStore) Put(context.Context, *memory.MemoryState) error {
	return errors.New("disk on fire")
}
func (failingStore) EnsureSchema(context.Context) error { return nil }
func (failingStore) Close() error                       { return nil }

// brokenSchemaStore fails initialization.
type brokenSchemaStore struct{ failingStore }

func (brokenSchemaStore) EnsureSchema(context.Context) error {
	return errors.New("permission denied")
}

// slowStore delays every read past any reasonable test timeout.
type slowStore struct {
	inner checkpoint.Store
	delay time.Duration
}

func (s *slowStore) Get(ctx context.Context, userID string) (*memory.MemoryState, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.inner.Get(ctx, userID)
}
func (s *slowStore) Put(ctx context.Context, state *memory.MemoryState) error {
	return s.inner.Put(ctx, state)
}
func (s *slowStore) EnsureSchema(ctx context.Context) error { return s.inner.EnsureSchema(ctx) }
func (s *slowStore) Close() error                           { return s.inner.Close() }

// recordingPublisher captures update events.
type recordingPublisher struct {
	mu      sync.Mutex
	updated []*eventstream.MemoryUpdatedEvent
}

func (p *recordingPublisher) PublishStatus(context.Context, *eventstream.StatusEvent) error {
	return nil
}
func (p *recordingPublisher) PublishMemoryUpdated(_ context.Context, e *eventstream.MemoryUpdatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, e)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) events() []*eventstream.MemoryUpdatedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*eventstream.MemoryUpdatedEvent, len(p.updated))
	copy(out, p.updated)
	return out
}

var _ = Describe("Engine", func() {
	var (
		store     *inmemory.Store
		completer *scriptedCompleter
		ctx       context.Context
	)

	const mergedReply = `{"facts": [
		{"kind": "identity", "subject": "name", "value": "Alice", "confidence": 0.9},
		{"kind": "preference", "subject": "coffee", "value": "espresso", "sentiment": "positive", "confidence": 0.8}
	]}`

	turns := []memory.Turn{
		{Role: memory.RoleUser, Content: "I'm Alice and I love espresso"},
	}

	newEngine := func(s checkpoint.Store, cfg engine.Config, opts ...engine.Option) *engine.Engine {
		orch := merge.New(completer, merge.Config{Model: "test"}, zap.NewNop())
		return engine.New(s, orch, cfg, zap.NewNop(), opts...)
	}

	BeforeEach(func() {
		store = inmemory.NewStore()
		completer = &scriptedCompleter{replies: []string{mergedReply}}
		ctx = context.Background()
	})

	Describe("Load", func() {
		It("returns an empty snapshot for an unknown user", func() {
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Load(ctx, "alice")

			Expect(err).NotTo(HaveOccurred())
			Expect(state.UserID).To(Equal("alice"))
			Expect(state.Facts).To(BeEmpty())
		})

		It("returns the stored snapshot", func() {
			seeded := memory.NewState("alice")
			seeded.Facts = []memory.Fact{{Kind: memory.KindIdentity, Subject: "name", Value: "Alice"}}
			seeded.FactCount = 1
			Expect(store.Put(ctx, seeded)).To(Succeed())

			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Load(ctx, "alice")

			Expect(err).NotTo(HaveOccurred())
			Expect(state.FactCount).To(Equal(1))
		})

		It("degrades to an empty snapshot on storage failure", func() {
			eng := newEngine(failingStore{}, engine.Config{})
			defer eng.Close()

			state, err := eng.Load(ctx, "alice")

			Expect(err).NotTo(HaveOccurred())
			Expect(state.UserID).To(Equal("alice"))
			Expect(state.Facts).To(BeEmpty())
		})

		It("degrades to an empty snapshot on a slow read", func() {
			slow := &slowStore{inner: store, delay: time.Second}
			eng := newEngine(slow, engine.Config{LoadTimeout: 20 * time.Millisecond})
			defer eng.Close()

			start := time.Now()
			state, err := eng.Load(ctx, "alice")

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Facts).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("surfaces schema initialization failure", func() {
			eng := newEngine(brokenSchemaStore{}, engine.Config{})
			defer eng.Close()

			_, err := eng.Load(ctx, "alice")

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("permission denied"))
		})

		It("records the migration ledger on first use", func() {
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			_, err := eng.Load(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Versions()).NotTo(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("runs a full cycle and persists the merged facts", func() {
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Update(ctx, "alice", turns)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.FactCount).To(Equal(2))
			Expect(state.PendingTurns).To(BeEmpty())
			Expect(state.Summary).To(ContainSubstring("Identity: name: Alice"))
			Expect(state.Summary).To(ContainSubstring("likes espresso"))

			persisted, err := store.Get(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted.FactCount).To(Equal(2))
		})

		It("drops invalid facts from the merged list", func() {
			completer.replies = []string{`{"facts": [
				{"kind": "identity", "subject": "name", "value": "Alice"},
				{"kind": "", "subject": "nameless", "value": "dropped"}
			]}`}
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Update(ctx, "alice", turns)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.FactCount).To(Equal(1))
		})

		It("replaces facts wholesale on consecutive updates", func() {
			completer.replies = []string{
				`{"facts": [{"kind": "ownership", "subject": "car", "value": "a bmw", "confidence": 0.8}]}`,
				`{"facts": [{"kind": "ownership", "subject": "car", "value": "a tesla", "confidence": 0.8}]}`,
			}
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			_, err := eng.Update(ctx, "alice", turns)
			Expect(err).NotTo(HaveOccurred())

			state, err := eng.Update(ctx, "alice", []memory.Turn{
				{Role: memory.RoleUser, Content: "I sold the bmw and got a tesla"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(state.FactCount).To(Equal(1))
			Expect(state.Facts[0].Value).To(Equal("a tesla"))
		})

		It("keeps stored facts when the collaborator is unreachable", func() {
			seeded := memory.NewState("alice")
			seeded.Facts = []memory.Fact{{Kind: memory.KindIdentity, Subject: "name", Value: "Alice"}}
			seeded.FactCount = 1
			Expect(store.Put(ctx, seeded)).To(Succeed())

			completer.err = errors.New("connection refused")
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Update(ctx, "alice", turns)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Facts).To(HaveLen(1))

			persisted, err := store.Get(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(persisted.Facts).To(HaveLen(1))
		})

		It("keeps stored facts when the merge is unusable", func() {
			seeded := memory.NewState("alice")
			seeded.Facts = []memory.Fact{{Kind: memory.KindIdentity, Subject: "name", Value: "Alice"}}
			seeded.FactCount = 1
			Expect(store.Put(ctx, seeded)).To(Succeed())

			completer.replies = []string{"I refuse to answer in JSON."}
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Update(ctx, "alice", turns)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.Facts).To(HaveLen(1))
			Expect(state.PendingTurns).To(BeEmpty())
		})

		It("degrades to an empty snapshot on a slow cycle", func() {
			completer.delay = time.Second
			eng := newEngine(store, engine.Config{UpdateTimeout: 20 * time.Millisecond})
			defer eng.Close()

			start := time.Now()
			state, err := eng.Update(ctx, "alice", turns)

			Expect(err).NotTo(HaveOccurred())
			Expect(state.UserID).To(Equal("alice"))
			Expect(state.Facts).To(BeEmpty())
			Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
		})

		It("publishes a memory updated event", func() {
			publisher := &recordingPublisher{}
			eng := newEngine(store, engine.Config{}, engine.WithPublisher(publisher))
			defer eng.Close()

			_, err := eng.Update(ctx, "alice", turns)
			Expect(err).NotTo(HaveOccurred())

			events := publisher.events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].UserID).To(Equal("alice"))
			Expect(events[0].FactCount).To(Equal(2))
			Expect(events[0].Degraded).To(BeFalse())
		})

		It("marks the event degraded when the collaborator fails", func() {
			completer.err = errors.New("connection refused")
			publisher := &recordingPublisher{}
			eng := newEngine(store, engine.Config{}, engine.WithPublisher(publisher))
			defer eng.Close()

			_, err := eng.Update(ctx, "alice", turns)
			Expect(err).NotTo(HaveOccurred())

			events := publisher.events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Degraded).To(BeTrue())
		})
	})

	Describe("Format", func() {
		It("renders empty for a fresh user in every mode", func() {
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Load(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			for _, mode := range []format.Mode{format.ModeStructured, format.ModeNatural, format.ModeBullet} {
				Expect(eng.Format(state, mode)).To(BeEmpty())
			}
		})

		It("renders the updated snapshot", func() {
			eng := newEngine(store, engine.Config{})
			defer eng.Close()

			state, err := eng.Update(ctx, "alice", turns)
			Expect(err).NotTo(HaveOccurred())

			out := eng.Format(state, format.ModeStructured)
			Expect(out).To(ContainSubstring("=== USER MEMORY PROFILE ==="))
			Expect(out).To(ContainSubstring("Name: Alice"))
		})
	})
})
