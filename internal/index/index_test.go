package index_test

import (
	"context"
	"strings"
	"time"

	"basegraph.app/triage/common/typesense"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/model"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/typesense/typesense-go/v4/typesense/api"
)

type mockTypesense struct {
	upserted   []any
	deleted    []string
	lastSearch *api.SearchCollectionParams
	lastHybrid *api.MultiSearchCollectionParameters
	hits       []typesense.Hit
	deleteErr  error
}

func (m *mockTypesense) EnsureCollection(ctx context.Context, schema *api.CollectionSchema) error {
	return nil
}

func (m *mockTypesense) Upsert(ctx context.Context, collection string, doc any) error {
	m.upserted = append(m.upserted, doc)
	return nil
}

func (m *mockTypesense) Delete(ctx context.Context, collection, id string) error {
	m.deleted = append(m.deleted, id)
	return m.deleteErr
}

func (m *mockTypesense) Search(ctx context.Context, collection string, params *api.SearchCollectionParams) ([]typesense.Hit, error) {
	m.lastSearch = params
	return m.hits, nil
}

func (m *mockTypesense) HybridSearch(ctx context.Context, collection string, params api.MultiSearchCollectionParameters) ([]typesense.Hit, error) {
	m.lastHybrid = &params
	return m.hits, nil
}

// hybridHit is a hit as a reranked hybrid query returns it.
func hybridHit(id string, distance float64, tokens int, fusion float64) typesense.Hit {
	h := hit(id, "issue "+id, "", distance)
	h.TokensMatched = tokens
	h.FusionScore = &fusion
	return h
}

func hit(id, title, description string, distance float64) typesense.Hit {
	return typesense.Hit{
		Document: map[string]any{
			"id":          id,
			"uuid":        uuid.NewString(),
			"title":       title,
			"description": description,
		},
		VectorDistance: &distance,
	}
}

var _ = Describe("Typesense index", func() {
	var (
		ctx    context.Context
		client *mockTypesense
		idx    *index.Typesense
		scope  model.DocumentScope
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockTypesense{}
		idx = index.NewTypesense(client, index.Config{Collection: "issues", Dimensions: 2})
		scope = model.DocumentScope{WorkspaceID: 1, ProjectID: 2, DocumentUUID: uuid.New()}
	})

	Describe("HybridSearch", func() {
		It("sends the reason text with the weighted vector query", func() {
			_, err := idx.HybridSearch(ctx, index.SearchQuery{
				Scope:       scope,
				Text:        "refund policy ignored",
				Embedding:   []float64{1, 0},
				Alpha:       0.7,
				MaxDistance: 0.3,
				Limit:       2,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.lastSearch).To(BeNil())
			Expect(client.lastHybrid).NotTo(BeNil())
			Expect(*client.lastHybrid.Q).To(Equal("refund policy ignored"))
			Expect(*client.lastHybrid.QueryBy).To(Equal("title,description"))
			Expect(*client.lastHybrid.FilterBy).To(ContainSubstring("workspace_id:=1"))
			Expect(*client.lastHybrid.FilterBy).To(ContainSubstring(scope.DocumentUUID.String()))
			Expect(*client.lastHybrid.FilterBy).To(ContainSubstring("merged:=false"))
			Expect(*client.lastHybrid.VectorQuery).To(HavePrefix("embedding:([1,0], k: 8"))
			Expect(*client.lastHybrid.VectorQuery).To(ContainSubstring("distance_threshold: 0.3"))
			Expect(*client.lastHybrid.VectorQuery).To(ContainSubstring("alpha: 0.7"))
		})

		It("ranks by fusion score and drops hits with too few keywords or too far away", func() {
			client.hits = []typesense.Hit{
				hybridHit("10", 0.2, 3, 0.6),
				hybridHit("11", 0.05, 0, 0.5),
				hybridHit("12", 0.1, 1, 0.8),
				hybridHit("13", 0.45, 3, 0.9),
			}

			got, err := idx.HybridSearch(ctx, index.SearchQuery{
				Scope:             scope,
				Text:              "refund policy ignored",
				Embedding:         []float64{1, 0},
				Alpha:             0.5,
				MaxDistance:       0.3,
				MinKeywordMatches: 1,
				Limit:             5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].IssueID).To(Equal(int64(12)))
			Expect(got[0].Score).To(BeNumerically("~", 0.8, 1e-9))
			Expect(got[0].KeywordMatches).To(Equal(1))
			Expect(got[1].IssueID).To(Equal(int64(10)))
			Expect(got[1].KeywordMatches).To(Equal(3))
		})

		It("keeps a keyword match that lies outside the nearest vectors", func() {
			client.hits = []typesense.Hit{hybridHit("30", 0.28, 4, 0.35)}

			got, err := idx.HybridSearch(ctx, index.SearchQuery{
				Scope: scope, Text: "refund policy", Embedding: []float64{1, 0},
				Alpha: 0.7, MaxDistance: 0.3, MinKeywordMatches: 2, Limit: 1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].IssueID).To(Equal(int64(30)))
		})

		It("scores hits without fusion info by weighted similarity and caps the result", func() {
			client.hits = []typesense.Hit{
				hit("40", "a", "", 0.1),
				hit("41", "b", "", 0.2),
			}

			got, err := idx.HybridSearch(ctx, index.SearchQuery{
				Scope: scope, Embedding: []float64{1, 0}, Alpha: 0.5, Limit: 1,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(*client.lastHybrid.Q).To(Equal("*"))
			Expect(got).To(HaveLen(1))
			Expect(got[0].IssueID).To(Equal(int64(40)))
			Expect(got[0].Score).To(BeNumerically("~", 0.45, 1e-9))
		})

		It("returns nothing for a zero embedding", func() {
			got, err := idx.HybridSearch(ctx, index.SearchQuery{Scope: scope, Embedding: []float64{0, 0}, Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
			Expect(client.lastHybrid).To(BeNil())
		})
	})

	Describe("Nearest", func() {
		It("orders by similarity", func() {
			client.hits = []typesense.Hit{
				hit("21", "b", "", 0.08),
				hit("20", "a", "", 0.02),
				{Document: map[string]any{"id": "not-a-number"}},
			}

			got, err := idx.Nearest(ctx, index.NearestQuery{Scope: scope, Embedding: []float64{0, 1}, MaxDistance: 0.1, Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
			Expect(got[0].IssueID).To(Equal(int64(20)))
			Expect(got[0].Score).To(BeNumerically("~", 0.98, 1e-9))
			Expect(got[1].IssueID).To(Equal(int64(21)))
		})
	})

	Describe("Upsert", func() {
		It("omits the embedding until the centroid has one", func() {
			issue := &model.Issue{ID: 7, UUID: uuid.New(), DocumentUUID: scope.DocumentUUID, Centroid: centroid.New(), CreatedAt: time.Now()}
			Expect(idx.Upsert(ctx, issue)).To(Succeed())

			issue.Centroid = centroid.Centroid{Base: []float64{0, 2}, Weight: 2}
			Expect(idx.Upsert(ctx, issue)).To(Succeed())

			Expect(client.upserted).To(HaveLen(2))
			Expect(client.upserted[0]).To(HaveField("Embedding", BeEmpty()))
			Expect(client.upserted[1]).To(HaveField("Embedding", Equal([]float64{0, 1})))
		})
	})

	Describe("Delete", func() {
		It("treats a missing document as deleted", func() {
			client.deleteErr = typesense.ErrNotFound
			Expect(idx.Delete(ctx, 9)).To(Succeed())
			Expect(client.deleted).To(Equal([]string{"9"}))
		})
	})

	It("declares the embedding dimensionality in the schema", func() {
		schema := idx.Schema()
		var names []string
		for _, f := range schema.Fields {
			names = append(names, f.Name)
			if f.Name == "embedding" {
				Expect(*f.NumDim).To(Equal(2))
			}
		}
		Expect(strings.Join(names, ",")).To(ContainSubstring("embedding"))
	})
})
