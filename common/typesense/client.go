package typesense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ts "github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

var ErrNotFound = errors.New("typesense: not found")

// Client is the subset of Typesense the engine uses.
type Client interface {
	EnsureCollection(ctx context.Context, schema *api.CollectionSchema) error
	Upsert(ctx context.Context, collection string, doc any) error
	Delete(ctx context.Context, collection, id string) error
	Search(ctx context.Context, collection string, params *api.SearchCollectionParams) ([]Hit, error)
	// HybridSearch runs a keyword plus vector query with both scores
	// computed for every hit.
	HybridSearch(ctx context.Context, collection string, params api.MultiSearchCollectionParameters) ([]Hit, error)
}

// Hit is a search result document with its vector distance when the
// query carried a vector_query.
type Hit struct {
	Document       map[string]any
	VectorDistance *float64
	// TokensMatched is the number of query tokens found in the document.
	TokensMatched int
	// FusionScore is the rank fusion score of a hybrid query.
	FusionScore *float64
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type client struct {
	ts *ts.Client
}

func New(cfg Config) (Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("typesense URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("typesense API key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &client{
		ts: ts.NewClient(
			ts.WithServer(cfg.URL),
			ts.WithAPIKey(cfg.APIKey),
			ts.WithConnectionTimeout(timeout),
		),
	}, nil
}

func (c *client) EnsureCollection(ctx context.Context, schema *api.CollectionSchema) error {
	_, err := c.ts.Collection(schema.Name).Retrieve(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("retrieving collection %s: %w", schema.Name, err)
	}

	slog.InfoContext(ctx, "creating typesense collection", "collection", schema.Name)
	if _, err := c.ts.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("creating collection %s: %w", schema.Name, err)
	}
	return nil
}

func (c *client) Upsert(ctx context.Context, collection string, doc any) error {
	if _, err := c.ts.Collection(collection).Documents().Upsert(ctx, doc, &api.DocumentIndexParameters{}); err != nil {
		return fmt.Errorf("upserting into %s: %w", collection, err)
	}
	return nil
}

func (c *client) Delete(ctx context.Context, collection, id string) error {
	if _, err := c.ts.Collection(collection).Document(id).Delete(ctx); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *client) Search(ctx context.Context, collection string, params *api.SearchCollectionParams) ([]Hit, error) {
	res, err := c.ts.Collection(collection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collection, err)
	}
	return hitsFrom(res.Hits), nil
}

func (c *client) HybridSearch(ctx context.Context, collection string, params api.MultiSearchCollectionParameters) ([]Hit, error) {
	params.Collection = &collection
	params.RerankHybridMatches = pointer.True()

	res, err := c.ts.MultiSearch.Perform(ctx, &api.MultiSearchParams{}, api.MultiSearchSearchesParameter{
		Searches: []api.MultiSearchCollectionParameters{params},
	})
	if err != nil {
		return nil, fmt.Errorf("hybrid searching %s: %w", collection, err)
	}
	if len(res.Results) == 0 {
		return nil, nil
	}

	item := res.Results[0]
	if item.Error != nil {
		return nil, fmt.Errorf("hybrid searching %s: %s", collection, *item.Error)
	}
	return hitsFrom(item.Hits), nil
}

func hitsFrom(results *[]api.SearchResultHit) []Hit {
	if results == nil {
		return nil
	}

	hits := make([]Hit, 0, len(*results))
	for _, h := range *results {
		if h.Document == nil {
			continue
		}
		hit := Hit{Document: *h.Document}
		if h.VectorDistance != nil {
			d := float64(*h.VectorDistance)
			hit.VectorDistance = &d
		}
		if h.TextMatchInfo != nil && h.TextMatchInfo.TokensMatched != nil {
			hit.TokensMatched = *h.TextMatchInfo.TokensMatched
		}
		if h.HybridSearchInfo != nil && h.HybridSearchInfo.RankFusionScore != nil {
			score := float64(*h.HybridSearchInfo.RankFusionScore)
			hit.FusionScore = &score
		}
		hits = append(hits, hit)
	}
	return hits
}

func isNotFound(err error) bool {
	var httpErr *ts.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}
