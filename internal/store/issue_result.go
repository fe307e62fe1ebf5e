package store

import (
	"context"

	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/model"
)

type issueResultStore struct {
	queries *sqlc.Queries
}

func newIssueResultStore(queries *sqlc.Queries) IssueResultStore {
	return &issueResultStore{queries: queries}
}

func (s *issueResultStore) Create(ctx context.Context, link *model.IssueEvaluationResult) error {
	row, err := s.queries.CreateIssueEvaluationResult(ctx, sqlc.CreateIssueEvaluationResultParams{
		WorkspaceID:        link.WorkspaceID,
		IssueID:            link.IssueID,
		EvaluationResultID: link.EvaluationResultID,
		CommitID:           link.CommitID,
		CreatedAt:          timestamptz(link.CreatedAt),
	})
	if err != nil {
		return mapErr(err)
	}
	*link = toIssueResultModel(row)
	return nil
}

func (s *issueResultStore) Delete(ctx context.Context, issueID, evaluationResultID int64) error {
	n, err := s.queries.DeleteIssueEvaluationResult(ctx, sqlc.DeleteIssueEvaluationResultParams{
		IssueID:            issueID,
		EvaluationResultID: evaluationResultID,
	})
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *issueResultStore) LastActive(ctx context.Context, evaluationResultID int64) (*model.IssueEvaluationResult, error) {
	row, err := s.queries.GetLastActiveIssueEvaluationResult(ctx, evaluationResultID)
	if err != nil {
		return nil, mapErr(err)
	}
	link := toIssueResultModel(row)
	return &link, nil
}

func (s *issueResultStore) CountByIssue(ctx context.Context, issueID int64) (int64, error) {
	n, err := s.queries.CountIssueEvaluationResults(ctx, issueID)
	return n, mapErr(err)
}

func (s *issueResultStore) HasOtherCommit(ctx context.Context, issueID, commitID int64) (bool, error) {
	ok, err := s.queries.HasOtherCommitIssueEvaluationResult(ctx, sqlc.HasOtherCommitIssueEvaluationResultParams{
		IssueID:  issueID,
		CommitID: commitID,
	})
	return ok, mapErr(err)
}

func (s *issueResultStore) Repoint(ctx context.Context, winnerID int64, loserIDs []int64) (int64, error) {
	n, err := s.queries.RepointIssueEvaluationResults(ctx, sqlc.RepointIssueEvaluationResultsParams{
		WinnerID: winnerID,
		LoserIds: loserIDs,
	})
	return n, mapErr(err)
}

func (s *issueResultStore) ListRecentResults(ctx context.Context, issueID int64, limit int) ([]model.EvaluationResult, error) {
	rows, err := s.queries.ListRecentIssueEvaluationResults(ctx, sqlc.ListRecentIssueEvaluationResultsParams{
		IssueID: issueID,
		Limit:   int32(limit),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	results := make([]model.EvaluationResult, 0, len(rows))
	for _, row := range rows {
		r, err := toEvaluationResultModel(row)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, nil
}

func toIssueResultModel(row sqlc.IssueEvaluationResult) model.IssueEvaluationResult {
	return model.IssueEvaluationResult{
		ID:                 row.ID,
		WorkspaceID:        row.WorkspaceID,
		IssueID:            row.IssueID,
		EvaluationResultID: row.EvaluationResultID,
		CommitID:           row.CommitID,
		CreatedAt:          row.CreatedAt.Time,
	}
}
