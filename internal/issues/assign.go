package issues

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
)

type AssignParams struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
	Scope      model.DocumentScope
	// Issue is the target. When nil a new issue is generated from the
	// result, unless one for the same cluster was just created concurrently.
	Issue *model.Issue
	// Context is passed to generation when a new issue is created.
	Context string
}

type ReassignParams struct {
	Result     *model.EvaluationResult
	Evaluation *model.Evaluation
	Issue      *model.Issue
}

// addPlan is everything Add needs that can be computed before locking.
type addPlan struct {
	result     *model.EvaluationResult
	evaluation *model.Evaluation
	issueID    int64 // zero until the issue exists
	gate       centroidGate
	details    *model.IssueDetails
}

// AssignToIssue attaches a failing result to an issue, creating the issue
// when none is given, and detaches it from the issue it was in before.
func (s *service) AssignToIssue(ctx context.Context, p AssignParams) (*model.Issue, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkspaceID:        logger.Ptr(p.Result.WorkspaceID),
		EvaluationResultID: logger.Ptr(p.Result.ID),
		Component:          "triage.issues.assign",
	})

	err := s.validate(ctx, s.stores, Eligibility{
		Result:     p.Result,
		Evaluation: p.Evaluation,
		Issue:      p.Issue,
		Skip:       Skip{Assigned: true},
	})
	if err != nil {
		return nil, err
	}

	var details *model.IssueDetails
	if p.Issue == nil {
		details, err = s.Generate(ctx, GenerateParams{
			Context: p.Context,
			Results: []ResultWithEvaluation{{Result: p.Result, Evaluation: p.Evaluation}},
			Skip:    Skip{Assigned: true},
		})
		if err != nil {
			return nil, err
		}
	}

	return s.reassign(ctx, p.Result, p.Evaluation, p.Issue, p.Scope, details)
}

// Reassign moves a result from its current issue, if any, to p.Issue.
// Both halves run in one transaction: if adding fails, the removal rolls
// back and the result stays where it was.
func (s *service) Reassign(ctx context.Context, p ReassignParams) (*model.Issue, error) {
	if p.Issue == nil {
		return nil, fmt.Errorf("reassign: target issue is required")
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkspaceID:        logger.Ptr(p.Result.WorkspaceID),
		EvaluationResultID: logger.Ptr(p.Result.ID),
		Component:          "triage.issues.reassign",
	})
	return s.reassign(ctx, p.Result, p.Evaluation, p.Issue, p.Issue.Scope(), nil)
}

func (s *service) reassign(ctx context.Context, result *model.EvaluationResult, evaluation *model.Evaluation, target *model.Issue, scope model.DocumentScope, details *model.IssueDetails) (*model.Issue, error) {
	var removal *removePlan
	link, err := s.stores.IssueResults().LastActive(ctx, result.ID)
	switch {
	case err == nil:
		if target != nil && link.IssueID == target.ID {
			return nil, unprocessable(ErrResultAlreadyAssigned, fmt.Sprintf("result %d is in issue %d", result.ID, target.ID))
		}
		from, err := s.stores.Issues().GetByID(ctx, link.IssueID)
		if err != nil {
			return nil, fmt.Errorf("fetching current issue %d: %w", link.IssueID, err)
		}
		removal, err = s.prepareRemove(ctx, result, evaluation, from, Skip{Assigned: true})
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("looking up assignment of result %d: %w", result.ID, err)
	}

	addition, err := s.prepareAdd(ctx, result, evaluation, target, Skip{Assigned: removal != nil})
	if err != nil {
		return nil, err
	}
	addition.details = details

	var (
		fx       afterCommit
		assigned *model.Issue
	)
	err = s.tx.WithTx(ctx, func(sp StoreProvider) error {
		fx = afterCommit{}
		issueID := addition.issueID
		if issueID == 0 {
			issue, err := s.createOrReuse(ctx, sp, scope, result.Embedding, details)
			if err != nil {
				return err
			}
			issueID = issue.ID
			if removal != nil && issueID == removal.issueID {
				return unprocessable(ErrResultAlreadyAssigned, fmt.Sprintf("result %d is in issue %d", result.ID, issueID))
			}
		}

		ids := []int64{issueID}
		if removal != nil {
			ids = append(ids, removal.issueID)
		}
		if _, err := sp.Issues().LockByIDs(ctx, lockOrder(ids)); err != nil {
			return fmt.Errorf("locking issues: %w", err)
		}

		if removal != nil {
			if _, err := s.applyRemove(ctx, sp, removal, &fx); err != nil {
				return err
			}
		}

		plan := *addition
		plan.issueID = issueID
		issue, err := s.applyAdd(ctx, sp, &plan, &fx)
		if err != nil {
			return err
		}
		assigned = issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.run(ctx)
	return assigned, nil
}

func (s *service) prepareAdd(ctx context.Context, result *model.EvaluationResult, evaluation *model.Evaluation, issue *model.Issue, skip Skip) (*addPlan, error) {
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

	plan := &addPlan{result: result, evaluation: evaluation, gate: gate}
	if issue != nil {
		plan.issueID = issue.ID
	}
	return plan, nil
}

// applyAdd runs under the transaction. The issue is re-read under its row
// lock and every check is repeated against what was read.
func (s *service) applyAdd(ctx context.Context, sp StoreProvider, plan *addPlan, fx *afterCommit) (*model.Issue, error) {
	result := plan.result

	issue, err := sp.Issues().GetByIDForUpdate(ctx, plan.issueID)
	if err != nil {
		return nil, fmt.Errorf("locking issue %d: %w", plan.issueID, err)
	}

	err = s.validate(ctx, sp, Eligibility{Result: result, Evaluation: plan.evaluation, Issue: issue})
	if err != nil {
		return nil, err
	}

	occurrences, err := sp.IssueResults().CountByIssue(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("counting results of issue %d: %w", issue.ID, err)
	}
	issueWasNew := occurrences == 0

	update, err := canUpdateCentroid(ctx, sp.IssueResults(), plan.gate, result, issue.ID, issueWasNew)
	if err != nil {
		return nil, err
	}
	if update {
		issue.Centroid, err = s.updateCentroid(issue, s.contribution(result, plan.evaluation), centroid.Add)
		if err != nil {
			return nil, err
		}
	}

	link := &model.IssueEvaluationResult{
		WorkspaceID:        issue.WorkspaceID,
		IssueID:            issue.ID,
		EvaluationResultID: result.ID,
		CommitID:           result.CommitID,
		CreatedAt:          s.now(),
	}
	if err := sp.IssueResults().Create(ctx, link); err != nil {
		return nil, fmt.Errorf("linking result %d to issue %d: %w", result.ID, issue.ID, err)
	}

	if err := s.incrementHistogram(ctx, sp, issue, result); err != nil {
		return nil, err
	}

	if update {
		if err := sp.Issues().UpdateCentroid(ctx, issue.ID, issue.Centroid); err != nil {
			return nil, fmt.Errorf("saving centroid of issue %d: %w", issue.ID, err)
		}
	}

	if issueWasNew && plan.details != nil &&
		(issue.Title != plan.details.Title || issue.Description != plan.details.Description) {
		if err := sp.Issues().UpdateDetails(ctx, issue.ID, plan.details.Title, plan.details.Description); err != nil {
			return nil, fmt.Errorf("saving details of issue %d: %w", issue.ID, err)
		}
		issue.Title, issue.Description = plan.details.Title, plan.details.Description
	}

	slog.InfoContext(ctx, "result assigned to issue",
		"issue_id", issue.ID,
		"issue_was_new", issueWasNew,
		"centroid_updated", update)

	s.syncIndex(fx, issue)
	if update {
		// A brand new issue has no prior details to refresh.
		s.enqueueFollowUps(fx, issue, !issueWasNew)
	}
	return issue, nil
}

// ensureEmbedding embeds the enriched reason unless the result already
// carries an embedding. Results without any reason stay unembedded and
// never move a centroid.
func (s *service) ensureEmbedding(ctx context.Context, result *model.EvaluationResult, evaluation *model.Evaluation) error {
	if len(result.Embedding) > 0 {
		return nil
	}

	reason, err := s.enrichedReason(ctx, result, evaluation)
	if err != nil {
		return err
	}
	if reason == "" {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, reason)
	if err != nil {
		return fmt.Errorf("embedding reason of result %d: %w", result.ID, err)
	}
	result.Embedding = embedding
	return nil
}

func lockOrder(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
