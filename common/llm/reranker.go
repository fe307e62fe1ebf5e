package llm

import (
	"context"
	"fmt"
	"strings"
)

// Reranker scores documents against a query. Scores are in [0, 1] and
// aligned with the input documents.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

type rerankScore struct {
	Index     int     `json:"index" jsonschema_description:"Zero-based index of the document"`
	Relevance float64 `json:"relevance" jsonschema_description:"Relevance between 0 (unrelated) and 1 (same failure)"`
}

type rerankResponse struct {
	Scores []rerankScore `json:"scores" jsonschema_description:"One score per document"`
}

const rerankSystemPrompt = `You compare a failure reason against a list of known issues.
For every issue, rate how likely it is that the failure is another occurrence of that issue.
Score 1 when the failure is clearly the same problem, 0 when it is unrelated.
Judge the underlying problem, not wording.`

// chatReranker is a cross-encoder style reranker built on a structured
// chat completion: the model sees the query and every document at once.
type chatReranker struct {
	client    Client
	maxTokens int
}

func NewChatReranker(client Client, maxTokens int) Reranker {
	return &chatReranker{client: client, maxTokens: maxTokens}
}

func (r *chatReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Failure reason:\n%s\n\nKnown issues:\n", query)
	for i, doc := range documents {
		fmt.Fprintf(&b, "[%d] %s\n", i, doc)
	}

	var resp rerankResponse
	_, err := r.client.Chat(ctx, Request{
		SystemPrompt: rerankSystemPrompt,
		UserPrompt:   b.String(),
		SchemaName:   "rerank_scores",
		Schema:       GenerateSchema[rerankResponse](),
		MaxTokens:    r.maxTokens,
		Temperature:  Temp(0),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	scores := make([]float64, len(documents))
	for _, s := range resp.Scores {
		if s.Index < 0 || s.Index >= len(documents) {
			continue
		}
		scores[s.Index] = clamp01(s.Relevance)
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
