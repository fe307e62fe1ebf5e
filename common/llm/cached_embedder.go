package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"basegraph.app/triage/common/cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CachedEmbedderConfig tunes NewCachedEmbedder.
type CachedEmbedderConfig struct {
	Model string
	TTL   time.Duration
	// RateLimit in requests per second against the provider. Zero disables limiting.
	RateLimit float64
}

// cachedEmbedder returns unit vectors, keyed by a hash of the model and
// text. Identical concurrent requests share one provider call. Cache
// failures are logged and ignored.
type cachedEmbedder struct {
	next    Embedder
	cache   cache.Cache
	cfg     CachedEmbedderConfig
	limiter *rate.Limiter
	group   singleflight.Group
}

func NewCachedEmbedder(next Embedder, c cache.Cache, cfg CachedEmbedderConfig) Embedder {
	e := &cachedEmbedder{next: next, cache: c, cfg: cfg}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return e
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cache.Key(e.cfg.Model, text)

	if e.cache != nil {
		var cached []float64
		ok, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.WarnContext(ctx, "embedding cache read failed", "error", err)
		}
		if ok && len(cached) > 0 {
			return cached, nil
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
			}
		}
		vec, err := e.next.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return unit(vec), nil
	})
	if err != nil {
		return nil, err
	}
	vec := v.([]float64)

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, vec, e.cfg.TTL); err != nil {
			slog.WarnContext(ctx, "embedding cache write failed", "error", err)
		}
	}

	// singleflight shares the slice between callers.
	out := make([]float64, len(vec))
	copy(out, vec)
	return out, nil
}

func (e *cachedEmbedder) Dimensions() int {
	return e.next.Dimensions()
}

func unit(v []float64) []float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
