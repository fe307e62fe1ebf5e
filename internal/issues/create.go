package issues

import (
	"context"
	"fmt"
	"log/slog"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"github.com/google/uuid"
)

// createOrReuse creates the issue for a new cluster. It holds the
// document's creation lock and first looks for an issue a concurrent
// writer created for the same cluster since discovery ran.
func (s *service) createOrReuse(ctx context.Context, sp StoreProvider, scope model.DocumentScope, embedding []float64, details *model.IssueDetails) (*model.Issue, error) {
	if err := sp.Issues().LockDocument(ctx, scope); err != nil {
		return nil, fmt.Errorf("locking document %s: %w", scope.DocumentUUID, err)
	}

	if existing, err := s.recentMatch(ctx, sp, scope, embedding); err != nil || existing != nil {
		return existing, err
	}

	issueID, err := id.Next()
	if err != nil {
		return nil, err
	}

	now := s.now()
	issue := &model.Issue{
		ID:           issueID,
		UUID:         uuid.New(),
		WorkspaceID:  scope.WorkspaceID,
		ProjectID:    scope.ProjectID,
		DocumentUUID: scope.DocumentUUID,
		Centroid:     centroid.New(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if details != nil {
		issue.Title, issue.Description = details.Title, details.Description
	}

	if err := sp.Issues().Create(ctx, issue); err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}

	slog.InfoContext(ctx, "issue created", "issue_id", issue.ID, "title", issue.Title)
	return issue, nil
}

func (s *service) recentMatch(ctx context.Context, sp StoreProvider, scope model.DocumentScope, embedding []float64) (*model.Issue, error) {
	if len(embedding) == 0 || s.cfg.CreationLookback <= 0 {
		return nil, nil
	}

	recent, err := sp.Issues().ListActiveCreatedSince(ctx, scope, s.now().Add(-s.cfg.CreationLookback))
	if err != nil {
		return nil, fmt.Errorf("listing recent issues: %w", err)
	}

	minSimilarity := 1 - s.cfg.MaxVectorDistance
	var (
		best    *model.Issue
		bestSim float64
	)
	for i := range recent {
		if recent[i].Centroid.IsEmpty() {
			continue
		}
		sim, err := centroid.Cosine(centroid.Embed(recent[i].Centroid), embedding)
		if err != nil {
			slog.WarnContext(ctx, "skipping issue with incompatible centroid", "issue_id", recent[i].ID, "error", err)
			continue
		}
		if sim >= minSimilarity && (best == nil || sim > bestSim) {
			best, bestSim = &recent[i], sim
		}
	}

	if best != nil {
		slog.InfoContext(ctx, "reusing concurrently created issue", "issue_id", best.ID, "similarity", bestSim)
	}
	return best, nil
}
