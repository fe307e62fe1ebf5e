package issues

import (
	"context"
	"fmt"

	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
)

// centroidGate is the part of the centroid update policy that can be
// decided before locking. Whether the issue is new, and whether it saw
// other commits, is only known under the lock.
type centroidGate struct {
	allowed    bool // embedding present and not an experiment
	liveCommit bool
}

func (s *service) preCheckCentroid(ctx context.Context, sp StoreProvider, result *model.EvaluationResult) (centroidGate, error) {
	if len(result.Embedding) == 0 || result.FromExperiment() {
		return centroidGate{}, nil
	}

	commit, err := sp.Commits().GetByID(ctx, result.CommitID)
	if err != nil {
		return centroidGate{}, fmt.Errorf("fetching commit %d: %w", result.CommitID, err)
	}
	return centroidGate{allowed: true, liveCommit: commit.IsMerged()}, nil
}

// canUpdateCentroid keeps draft and experiment activity from distorting
// a centroid meant to represent live behavior, while letting a fresh issue
// take its initial shape from whatever commit produced it.
func canUpdateCentroid(ctx context.Context, links store.IssueResultStore, gate centroidGate, result *model.EvaluationResult, issueID int64, issueIsNew bool) (bool, error) {
	if !gate.allowed {
		return false, nil
	}
	if gate.liveCommit || issueIsNew {
		return true, nil
	}

	other, err := links.HasOtherCommit(ctx, issueID, result.CommitID)
	if err != nil {
		return false, fmt.Errorf("checking commits of issue %d: %w", issueID, err)
	}
	return !other, nil
}

func (s *service) contribution(result *model.EvaluationResult, evaluation *model.Evaluation) centroid.Contribution {
	return centroid.Contribution{
		Embedding: result.Embedding,
		Type:      string(evaluation.Type),
		CreatedAt: result.CreatedAt,
	}
}

func (s *service) updateCentroid(issue *model.Issue, c centroid.Contribution, op centroid.Operation) (centroid.Centroid, error) {
	next, err := s.cfg.Centroid.Update(issue.Centroid, c, op, s.now())
	if err != nil {
		return centroid.Centroid{}, &UnprocessableError{Err: fmt.Errorf("%w: issue %d: %w", ErrInvalidCentroid, issue.ID, err)}
	}
	return next, nil
}
