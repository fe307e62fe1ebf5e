package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/model"
	"github.com/google/uuid"
)

type evaluationResultStore struct {
	queries *sqlc.Queries
}

func newEvaluationResultStore(queries *sqlc.Queries) EvaluationResultStore {
	return &evaluationResultStore{queries: queries}
}

func (s *evaluationResultStore) GetByID(ctx context.Context, id int64) (*model.EvaluationResult, error) {
	row, err := s.queries.GetEvaluationResult(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toEvaluationResultModel(row)
}

func (s *evaluationResultStore) SetEnrichedReason(ctx context.Context, id int64, reason string) error {
	return mapErr(s.queries.SetEvaluationResultEnrichedReason(ctx, sqlc.SetEvaluationResultEnrichedReasonParams{
		EnrichedReason: reason,
		ID:             id,
	}))
}

type evaluationStore struct {
	queries *sqlc.Queries
}

func newEvaluationStore(queries *sqlc.Queries) EvaluationStore {
	return &evaluationStore{queries: queries}
}

func (s *evaluationStore) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Evaluation, error) {
	row, err := s.queries.GetEvaluation(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &model.Evaluation{
		UUID:         row.UUID,
		WorkspaceID:  row.WorkspaceID,
		DocumentUUID: row.DocumentUUID,
		Type:         model.EvaluationType(row.Type),
		Metric:       row.Metric,
		AlertIssueID: row.AlertIssueID,
		IgnoredAt:    timePtr(row.IgnoredAt),
		CreatedAt:    row.CreatedAt.Time,
	}, nil
}

func (s *evaluationStore) IgnoreAlertingOn(ctx context.Context, issueIDs []int64, at time.Time) (int64, error) {
	n, err := s.queries.IgnoreEvaluationsAlertingOnIssues(ctx, sqlc.IgnoreEvaluationsAlertingOnIssuesParams{
		IgnoredAt: timestamptz(at),
		IssueIds:  issueIDs,
	})
	return n, mapErr(err)
}

type commitStore struct {
	queries *sqlc.Queries
}

func newCommitStore(queries *sqlc.Queries) CommitStore {
	return &commitStore{queries: queries}
}

func (s *commitStore) GetByID(ctx context.Context, id int64) (*model.Commit, error) {
	row, err := s.queries.GetCommit(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return &model.Commit{
		ID:          row.ID,
		UUID:        row.UUID,
		WorkspaceID: row.WorkspaceID,
		ProjectID:   row.ProjectID,
		MergedAt:    timePtr(row.MergedAt),
	}, nil
}

func toEvaluationResultModel(row sqlc.EvaluationResult) (*model.EvaluationResult, error) {
	var meta model.ResultMetadata
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata of evaluation result %d: %w", row.ID, err)
		}
	}
	return &model.EvaluationResult{
		ID:              row.ID,
		UUID:            row.UUID,
		WorkspaceID:     row.WorkspaceID,
		CommitID:        row.CommitID,
		EvaluationUUID:  row.EvaluationUUID,
		ExperimentID:    row.ExperimentID,
		Score:           row.Score,
		NormalizedScore: row.NormalizedScore,
		HasPassed:       row.HasPassed,
		Error:           row.Error,
		Metadata:        meta,
		CreatedAt:       row.CreatedAt.Time,
	}, nil
}
