package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/issues"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/store"
)

// maxMergeHops bounds how far a stale index hit is followed through the
// merge chain to the issue that absorbed it.
const maxMergeHops = 5

// TaskHandler maps queue tasks onto the issues engine.
type TaskHandler struct {
	stores Stores
	issues issues.Service
}

func NewTaskHandler(stores Stores, svc issues.Service) *TaskHandler {
	return &TaskHandler{stores: stores, issues: svc}
}

// Handle runs msg. Missing rows surface as store.ErrNotFound and are
// retried like any other infrastructure failure.
func (h *TaskHandler) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeResultTransition:
		return h.resultTransition(ctx, *msg.EvaluationResultID, msg.Transition)
	case queue.TaskTypeGenerateIssueDetails:
		_, err := h.issues.RegenerateDetails(ctx, *msg.IssueID)
		return err
	case queue.TaskTypeMergeCommonIssues:
		_, err := h.issues.Merge(ctx, *msg.IssueID)
		return err
	default:
		return fmt.Errorf("unhandled task type %q", msg.TaskType)
	}
}

// transitionInput is a result with everything needed to place it.
type transitionInput struct {
	result     *model.EvaluationResult
	evaluation *model.Evaluation
	scope      model.DocumentScope
}

func (h *TaskHandler) resultTransition(ctx context.Context, resultID int64, transition queue.Transition) error {
	in, err := h.load(ctx, resultID)
	if err != nil {
		return err
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DocumentUUID: logger.Ptr(in.scope.DocumentUUID.String()),
	})

	switch transition {
	case queue.TransitionFailed:
		return h.place(ctx, in)
	case queue.TransitionPassed:
		out, err := h.issues.Unassign(ctx, issues.UnassignParams{
			Result:     in.result,
			Evaluation: in.evaluation,
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "result unassigned", "issue_id", out.Issue.ID, "issue_deleted", out.Deleted)
		return nil
	default:
		return fmt.Errorf("unknown transition %q", transition)
	}
}

func (h *TaskHandler) load(ctx context.Context, resultID int64) (transitionInput, error) {
	result, err := h.stores.EvaluationResults().GetByID(ctx, resultID)
	if err != nil {
		return transitionInput{}, fmt.Errorf("fetching evaluation result %d: %w", resultID, err)
	}
	evaluation, err := h.stores.Evaluations().GetByUUID(ctx, result.EvaluationUUID)
	if err != nil {
		return transitionInput{}, fmt.Errorf("fetching evaluation %s: %w", result.EvaluationUUID, err)
	}
	commit, err := h.stores.Commits().GetByID(ctx, result.CommitID)
	if err != nil {
		return transitionInput{}, fmt.Errorf("fetching commit %d: %w", result.CommitID, err)
	}
	return transitionInput{
		result:     result,
		evaluation: evaluation,
		scope: model.DocumentScope{
			WorkspaceID:  result.WorkspaceID,
			ProjectID:    commit.ProjectID,
			DocumentUUID: evaluation.DocumentUUID,
		},
	}, nil
}

// place assigns a failing result to the issue discovery finds for it, or to
// a new issue when nothing matches.
func (h *TaskHandler) place(ctx context.Context, in transitionInput) error {
	found, err := h.issues.Discover(ctx, issues.DiscoverParams{
		Result:     in.result,
		Evaluation: in.evaluation,
		Scope:      in.scope,
	})
	if err != nil {
		return err
	}
	in.result.Embedding = found.Embedding

	var target *model.Issue
	if found.Candidate != nil {
		if target, err = h.resolve(ctx, found.Candidate.IssueID); err != nil {
			return err
		}
	}

	issue, err := h.issues.AssignToIssue(ctx, issues.AssignParams{
		Result:     in.result,
		Evaluation: in.evaluation,
		Scope:      in.scope,
		Issue:      target,
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "result assigned", "issue_id", issue.ID, "discovered", target != nil)
	return nil
}

// resolve follows the merge chain of a search hit. It returns nil when the
// hit is gone or no longer active, in which case a new issue is created.
func (h *TaskHandler) resolve(ctx context.Context, issueID int64) (*model.Issue, error) {
	for range maxMergeHops {
		issue, err := h.stores.Issues().GetByID(ctx, issueID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetching candidate issue %d: %w", issueID, err)
		}
		switch {
		case issue.IsActive():
			return issue, nil
		case issue.IsMerged() && issue.MergedToIssueID != nil:
			issueID = *issue.MergedToIssueID
		default:
			return nil, nil
		}
	}
	slog.WarnContext(ctx, "merge chain too long, creating a new issue", "issue_id", issueID)
	return nil, nil
}
