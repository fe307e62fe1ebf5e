package issues

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/model"
)

type DiscoverParams struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
	Scope      model.DocumentScope
}

// Discovery is the embedding of a failure reason and the existing issue it
// most likely belongs to, if any.
type Discovery struct {
	Embedding []float64
	Candidate *index.Candidate
}

// Discover embeds the failure reason and looks for a matching issue of the
// same document. Finding nothing is not an error.
func (s *service) Discover(ctx context.Context, p DiscoverParams) (*Discovery, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		EvaluationResultID: logger.Ptr(p.Result.ID),
		Component:          "triage.issues.discover",
	})

	if err := s.validate(ctx, s.stores, Eligibility{Result: p.Result, Evaluation: p.Evaluation}); err != nil {
		return nil, err
	}

	reason, err := s.enrichedReason(ctx, p.Result, p.Evaluation)
	if err != nil {
		return nil, err
	}

	embedding := p.Result.Embedding
	if len(embedding) == 0 {
		if embedding, err = s.embedder.Embed(ctx, reason); err != nil {
			return nil, fmt.Errorf("embedding reason: %w", err)
		}
	}

	candidates, err := s.index.HybridSearch(ctx, index.SearchQuery{
		Scope:             p.Scope,
		Text:              reason,
		Embedding:         embedding,
		Alpha:             s.cfg.HybridAlpha,
		MaxDistance:       s.cfg.MaxVectorDistance,
		MinKeywordMatches: s.cfg.MinKeywordMatches,
		Limit:             s.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching issue candidates: %w", err)
	}
	if len(candidates) == 0 {
		return &Discovery{Embedding: embedding}, nil
	}

	ranked, err := s.rerank(ctx, reason, candidates)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		slog.DebugContext(ctx, "no candidate survived reranking", "candidates", len(candidates))
		return &Discovery{Embedding: embedding}, nil
	}

	best := ranked[0]
	slog.DebugContext(ctx, "discovered issue candidate", "issue_id", best.IssueID, "score", best.Score)
	return &Discovery{Embedding: embedding, Candidate: &best}, nil
}

// rerank scores every candidate, even a lone one, to get a calibrated
// relevance; candidates below the minimum are dropped and the rest keep
// the mean of their search and rerank scores. A reranker outage falls
// back to the search order.
func (s *service) rerank(ctx context.Context, reason string, candidates []index.Candidate) ([]index.Candidate, error) {
	if s.reranker == nil {
		return topCandidates(candidates, s.cfg.CandidateLimit), nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Title + "\n" + c.Description
	}

	scores, err := s.reranker.Rerank(ctx, reason, docs)
	if err != nil {
		slog.WarnContext(ctx, "reranking unavailable, using search scores", "error", err)
		return topCandidates(candidates, s.cfg.CandidateLimit), nil
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d scores for %d candidates", len(scores), len(candidates))
	}

	out := make([]index.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] < s.cfg.MinRerankRelevance {
			continue
		}
		c.Score = (c.Score + scores[i]) / 2
		out = append(out, c)
	}
	return topCandidates(out, s.cfg.CandidateLimit), nil
}

func topCandidates(cs []index.Candidate, n int) []index.Candidate {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].IssueID < cs[j].IssueID
	})
	if n > 0 && len(cs) > n {
		cs = cs[:n]
	}
	return cs
}
