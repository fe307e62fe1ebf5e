package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
)

type UnassignParams struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
	// Issue defaults to the result's current issue.
	Issue *model.Issue
}

type UnassignOutcome struct {
	Issue *model.Issue
	// Deleted is set when the removed result was the issue's last occurrence.
	Deleted bool
}

type removePlan struct {
	result     *model.EvaluationResult
	evaluation *model.Evaluation
	issueID    int64
	gate       centroidGate
	skip       Skip
}

// Unassign detaches a result, typically one that started passing, from its
// issue. Removing the last occurrence deletes the issue.
func (s *service) Unassign(ctx context.Context, p UnassignParams) (*UnassignOutcome, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkspaceID:        logger.Ptr(p.Result.WorkspaceID),
		EvaluationResultID: logger.Ptr(p.Result.ID),
		Component:          "triage.issues.unassign",
	})

	issue := p.Issue
	if issue == nil {
		link, err := s.stores.IssueResults().LastActive(ctx, p.Result.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, unprocessable(ErrResultNotAssigned, fmt.Sprintf("result %d", p.Result.ID))
		}
		if err != nil {
			return nil, fmt.Errorf("looking up assignment of result %d: %w", p.Result.ID, err)
		}
		if issue, err = s.stores.Issues().GetByID(ctx, link.IssueID); err != nil {
			return nil, fmt.Errorf("fetching issue %d: %w", link.IssueID, err)
		}
	}

	plan, err := s.prepareRemove(ctx, p.Result, p.Evaluation, issue, Skip{Passed: true, Assigned: true, Reason: true})
	if err != nil {
		return nil, err
	}

	var (
		fx      afterCommit
		outcome *UnassignOutcome
	)
	err = s.tx.WithTx(ctx, func(sp StoreProvider) error {
		fx = afterCommit{}
		out, err := s.applyRemove(ctx, sp, plan, &fx)
		if err != nil {
			return err
		}
		outcome = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.run(ctx)
	return outcome, nil
}

func (s *service) prepareRemove(ctx context.Context, result *model.EvaluationResult, evaluation *model.Evaluation, issue *model.Issue, skip Skip) (*removePlan, error) {
	err := s.validate(ctx, s.stores, Eligibility{Result: result, Evaluation: evaluation, Issue: issue, Skip: skip})
	if err != nil {
		return nil, err
	}

	if err := s.ensureEmbedding(ctx, result, evaluation); err != nil {
		return nil, err
	}

	gate, err := s.preCheckCentroid(ctx, s.stores, result)
	if err != nil {
		return nil, err
	}

	return &removePlan{
		result:     result,
		evaluation: evaluation,
		issueID:    issue.ID,
		gate:       gate,
		skip:       skip,
	}, nil
}

func (s *service) applyRemove(ctx context.Context, sp StoreProvider, plan *removePlan, fx *afterCommit) (*UnassignOutcome, error) {
	result := plan.result

	issue, err := sp.Issues().GetByIDForUpdate(ctx, plan.issueID)
	if err != nil {
		return nil, fmt.Errorf("locking issue %d: %w", plan.issueID, err)
	}

	err = s.validate(ctx, sp, Eligibility{Result: result, Evaluation: plan.evaluation, Issue: issue, Skip: plan.skip})
	if err != nil {
		return nil, err
	}

	if err := sp.IssueResults().Delete(ctx, issue.ID, result.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, unprocessable(ErrResultNotAssigned, fmt.Sprintf("result %d is not in issue %d", result.ID, issue.ID))
		}
		return nil, fmt.Errorf("unlinking result %d from issue %d: %w", result.ID, issue.ID, err)
	}

	update, err := canUpdateCentroid(ctx, sp.IssueResults(), plan.gate, result, issue.ID, false)
	if err != nil {
		return nil, err
	}
	if update {
		issue.Centroid, err = s.updateCentroid(issue, s.contribution(result, plan.evaluation), centroid.Remove)
		if err != nil {
			return nil, err
		}
	}

	if err := s.decrementHistogram(ctx, sp, issue, result); err != nil {
		return nil, err
	}

	remaining, err := sp.Histograms().TotalByIssue(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("counting occurrences of issue %d: %w", issue.ID, err)
	}
	if remaining <= 0 {
		if err := sp.Issues().Delete(ctx, issue.ID); err != nil {
			return nil, fmt.Errorf("deleting issue %d: %w", issue.ID, err)
		}
		slog.InfoContext(ctx, "issue deleted after its last occurrence was removed", "issue_id", issue.ID)
		s.dropFromIndex(fx, issue.ID)
		return &UnassignOutcome{Issue: issue, Deleted: true}, nil
	}

	if update {
		if err := sp.Issues().UpdateCentroid(ctx, issue.ID, issue.Centroid); err != nil {
			return nil, fmt.Errorf("saving centroid of issue %d: %w", issue.ID, err)
		}
	}

	slog.InfoContext(ctx, "result removed from issue",
		"issue_id", issue.ID,
		"remaining", remaining,
		"centroid_updated", update)

	s.syncIndex(fx, issue)
	s.enqueueFollowUps(fx, issue, true)
	return &UnassignOutcome{Issue: issue}, nil
}
