// Package index keeps the searchable projection of issues in Typesense and
// answers the two similarity queries the engine needs: hybrid candidate
// discovery for a new failure and nearest-neighbour lookups for merging.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"basegraph.app/triage/common/typesense"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"github.com/google/uuid"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

// Candidate is an indexed issue scored against a query.
type Candidate struct {
	IssueID     int64
	UUID        uuid.UUID
	Title       string
	Description string
	Distance    float64
	Score       float64
	// KeywordMatches counts the query tokens found in title or description.
	KeywordMatches int
}

// SearchQuery asks for the issues of one document most similar to a
// failure reason.
type SearchQuery struct {
	Scope             model.DocumentScope
	Text              string
	Embedding         []float64
	Alpha             float64 // weight of vector similarity against keyword relevance
	MaxDistance       float64
	MinKeywordMatches int
	Limit             int
}

type NearestQuery struct {
	Scope       model.DocumentScope
	Embedding   []float64
	MaxDistance float64
	Limit       int
}

type Config struct {
	Collection string
	Dimensions int
}

// Typesense is the issue index backed by a Typesense collection.
type Typesense struct {
	client typesense.Client
	cfg    Config
}

func NewTypesense(client typesense.Client, cfg Config) *Typesense {
	if cfg.Collection == "" {
		cfg.Collection = "issues"
	}
	return &Typesense{client: client, cfg: cfg}
}

// Schema is the collection definition the index expects.
func (t *Typesense) Schema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: t.cfg.Collection,
		Fields: []api.Field{
			{Name: "uuid", Type: "string", Index: pointer.False()},
			{Name: "workspace_id", Type: "int64", Facet: pointer.True()},
			{Name: "project_id", Type: "int64", Facet: pointer.True()},
			{Name: "document_uuid", Type: "string", Facet: pointer.True()},
			{Name: "title", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "merged", Type: "bool"},
			{Name: "created_at", Type: "int64"},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(t.cfg.Dimensions), Optional: pointer.True()},
		},
		DefaultSortingField: pointer.String("created_at"),
	}
}

func (t *Typesense) EnsureCollection(ctx context.Context) error {
	return t.client.EnsureCollection(ctx, t.Schema())
}

type issueDocument struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	WorkspaceID  int64     `json:"workspace_id"`
	ProjectID    int64     `json:"project_id"`
	DocumentUUID string    `json:"document_uuid"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Merged       bool      `json:"merged"`
	CreatedAt    int64     `json:"created_at"`
	Embedding    []float64 `json:"embedding,omitempty"`
}

func documentFor(issue *model.Issue) issueDocument {
	doc := issueDocument{
		ID:           strconv.FormatInt(issue.ID, 10),
		UUID:         issue.UUID.String(),
		WorkspaceID:  issue.WorkspaceID,
		ProjectID:    issue.ProjectID,
		DocumentUUID: issue.DocumentUUID.String(),
		Title:        issue.Title,
		Description:  issue.Description,
		Merged:       issue.IsMerged(),
		CreatedAt:    issue.CreatedAt.Unix(),
	}
	// Issues whose centroid was never updated stay keyword-only.
	if embedding := centroid.Embed(issue.Centroid); centroid.Norm(embedding) > 0 {
		doc.Embedding = embedding
	}
	return doc
}

func (t *Typesense) Upsert(ctx context.Context, issue *model.Issue) error {
	if err := t.client.Upsert(ctx, t.cfg.Collection, documentFor(issue)); err != nil {
		return fmt.Errorf("indexing issue %d: %w", issue.ID, err)
	}
	return nil
}

// Delete is idempotent.
func (t *Typesense) Delete(ctx context.Context, issueID int64) error {
	err := t.client.Delete(ctx, t.cfg.Collection, strconv.FormatInt(issueID, 10))
	if err != nil && !errors.Is(err, typesense.ErrNotFound) {
		return fmt.Errorf("removing issue %d from index: %w", issueID, err)
	}
	return nil
}

// HybridSearch runs the reason text and the embedding as one Typesense
// hybrid query weighted by Alpha.
func (t *Typesense) HybridSearch(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	if q.Limit <= 0 || centroid.Norm(q.Embedding) == 0 {
		return nil, nil
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		text = "*"
	}

	// Over-fetch so the distance and keyword filters still leave enough candidates.
	k := q.Limit * 4
	hits, err := t.client.HybridSearch(ctx, t.cfg.Collection, api.MultiSearchCollectionParameters{
		Q:                   pointer.String(text),
		QueryBy:             pointer.String("title,description"),
		FilterBy:            pointer.String(scopeFilter(q.Scope)),
		VectorQuery:         pointer.String(vectorQuery(q.Embedding, k, q.MaxDistance, q.Alpha)),
		ExcludeFields:       pointer.String("embedding"),
		PerPage:             pointer.Int(k),
		DropTokensThreshold: pointer.Int(k),
		Prefix:              pointer.String("false"),
	})
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}

	return rankHybrid(hits, q), nil
}

// Nearest returns up to Limit issues of the document within MaxDistance
// of the embedding, closest first.
func (t *Typesense) Nearest(ctx context.Context, q NearestQuery) ([]Candidate, error) {
	if q.Limit <= 0 || centroid.Norm(q.Embedding) == 0 {
		return nil, nil
	}

	hits, err := t.search(ctx, q.Scope, q.Embedding, q.MaxDistance, q.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(hits))
	for _, c := range hits {
		c.Score = 1 - c.Distance
		out = append(out, c)
	}
	sortCandidates(out)
	return out, nil
}

func (t *Typesense) search(ctx context.Context, scope model.DocumentScope, embedding []float64, maxDistance float64, k int) ([]Candidate, error) {
	params := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		QueryBy:       pointer.String("title,description"),
		FilterBy:      pointer.String(scopeFilter(scope)),
		VectorQuery:   pointer.String(vectorQuery(embedding, k, maxDistance, 0)),
		ExcludeFields: pointer.String("embedding"),
		PerPage:       pointer.Int(k),
	}

	hits, err := t.client.Search(ctx, t.cfg.Collection, params)
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		c, ok := candidateFrom(h)
		if !ok {
			slog.WarnContext(ctx, "skipping malformed issue document", "document", h.Document["id"])
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func scopeFilter(scope model.DocumentScope) string {
	return fmt.Sprintf("workspace_id:=%d && project_id:=%d && document_uuid:=`%s` && merged:=false",
		scope.WorkspaceID, scope.ProjectID, scope.DocumentUUID)
}

func vectorQuery(embedding []float64, k int, maxDistance, alpha float64) string {
	var b strings.Builder
	b.WriteString("embedding:([")
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	fmt.Fprintf(&b, "], k: %d", k)
	if maxDistance > 0 {
		fmt.Fprintf(&b, ", distance_threshold: %s", strconv.FormatFloat(maxDistance, 'g', -1, 64))
	}
	if alpha > 0 {
		fmt.Fprintf(&b, ", alpha: %s", strconv.FormatFloat(alpha, 'g', -1, 64))
	}
	b.WriteString(")")
	return b.String()
}

func candidateFrom(h typesense.Hit) (Candidate, bool) {
	rawID, _ := h.Document["id"].(string)
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Candidate{}, false
	}

	c := Candidate{IssueID: id, Distance: 1}
	if raw, ok := h.Document["uuid"].(string); ok {
		c.UUID, _ = uuid.Parse(raw)
	}
	c.Title, _ = h.Document["title"].(string)
	c.Description, _ = h.Document["description"].(string)
	if h.VectorDistance != nil {
		c.Distance = *h.VectorDistance
	}
	c.KeywordMatches = h.TokensMatched
	return c, true
}
