package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"basegraph.app/triage/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeChat struct {
	reply   string
	err     error
	lastReq llm.Request
}

func (f *fakeChat) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{}, json.Unmarshal([]byte(f.reply), result)
}

func (f *fakeChat) Model() string { return "fake" }

var _ = Describe("ChatReranker", func() {
	ctx := context.Background()

	It("aligns scores with documents and clamps them", func() {
		chat := &fakeChat{reply: `{"scores":[{"index":1,"relevance":0.7},{"index":0,"relevance":1.4},{"index":9,"relevance":1}]}`}
		scores, err := llm.NewChatReranker(chat, 200).Rerank(ctx, "timeout calling tool", []string{"a", "b", "c"})
		Expect(err).NotTo(HaveOccurred())
		Expect(scores).To(Equal([]float64{1, 0.7, 0}))
		Expect(chat.lastReq.UserPrompt).To(ContainSubstring("[2] c"))
	})

	It("skips the provider for no documents", func() {
		chat := &fakeChat{err: errors.New("should not be called")}
		scores, err := llm.NewChatReranker(chat, 200).Rerank(ctx, "q", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(scores).To(BeEmpty())
	})

	It("wraps provider errors", func() {
		chat := &fakeChat{err: errors.New("boom")}
		_, err := llm.NewChatReranker(chat, 200).Rerank(ctx, "q", []string{"a"})
		Expect(err).To(MatchError(ContainSubstring("rerank: boom")))
	})
})

type countingEmbedder struct {
	calls atomic.Int32
	delay time.Duration
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.calls.Add(1)
	time.Sleep(e.delay)
	return []float64{3, 4}, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }

type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func (c *memCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

var _ = Describe("CachedEmbedder", func() {
	var (
		ctx   context.Context
		inner *countingEmbedder
		store *memCache
	)

	BeforeEach(func() {
		ctx = context.Background()
		inner = &countingEmbedder{}
		store = &memCache{values: map[string][]byte{}}
	})

	It("normalizes and caches by content", func() {
		e := llm.NewCachedEmbedder(inner, store, llm.CachedEmbedderConfig{Model: "m"})

		v, err := e.Embed(ctx, "reason")
		Expect(err).NotTo(HaveOccurred())
		Expect(v[0]).To(BeNumerically("~", 0.6, 1e-12))
		Expect(v[1]).To(BeNumerically("~", 0.8, 1e-12))

		_, err = e.Embed(ctx, "reason")
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.calls.Load()).To(Equal(int32(1)))
		Expect(e.Dimensions()).To(Equal(2))
	})

	It("falls through to the provider when the cache fails", func() {
		store.getErr = errors.New("redis down")
		e := llm.NewCachedEmbedder(inner, store, llm.CachedEmbedderConfig{Model: "m"})

		_, err := e.Embed(ctx, "reason")
		Expect(err).NotTo(HaveOccurred())
		_, err = e.Embed(ctx, "reason")
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.calls.Load()).To(Equal(int32(2)))
	})

	It("collapses identical concurrent requests", func() {
		inner.delay = 50 * time.Millisecond
		e := llm.NewCachedEmbedder(inner, nil, llm.CachedEmbedderConfig{Model: "m"})

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := e.Embed(ctx, "same")
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()
		Expect(inner.calls.Load()).To(BeNumerically("<", 4))
	})
})
