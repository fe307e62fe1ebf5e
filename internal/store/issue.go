package store

import (
	"context"
	"fmt"
	"time"

	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
)

type issueStore struct {
	queries *sqlc.Queries
}

func newIssueStore(queries *sqlc.Queries) IssueStore {
	return &issueStore{queries: queries}
}

func (s *issueStore) GetByID(ctx context.Context, id int64) (*model.Issue, error) {
	row, err := s.queries.GetIssue(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toIssueModel(row), nil
}

func (s *issueStore) GetByIDForUpdate(ctx context.Context, id int64) (*model.Issue, error) {
	row, err := s.queries.GetIssueForUpdate(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return toIssueModel(row), nil
}

func (s *issueStore) ListByIDs(ctx context.Context, ids []int64) ([]model.Issue, error) {
	rows, err := s.queries.ListIssuesByIDs(ctx, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	return toIssueModels(rows), nil
}

func (s *issueStore) LockByIDs(ctx context.Context, ids []int64) ([]model.Issue, error) {
	rows, err := s.queries.LockIssuesByIDs(ctx, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	return toIssueModels(rows), nil
}

func (s *issueStore) ListActiveCreatedSince(ctx context.Context, scope model.DocumentScope, since time.Time) ([]model.Issue, error) {
	rows, err := s.queries.ListActiveIssuesCreatedSince(ctx, sqlc.ListActiveIssuesCreatedSinceParams{
		WorkspaceID:  scope.WorkspaceID,
		ProjectID:    scope.ProjectID,
		DocumentUUID: scope.DocumentUUID,
		CreatedAt:    timestamptz(since),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return toIssueModels(rows), nil
}

func (s *issueStore) LockDocument(ctx context.Context, scope model.DocumentScope) error {
	key := fmt.Sprintf("issues:%d:%d:%s", scope.WorkspaceID, scope.ProjectID, scope.DocumentUUID)
	return mapErr(s.queries.LockIssueDocument(ctx, key))
}

func (s *issueStore) Create(ctx context.Context, issue *model.Issue) error {
	base := issue.Centroid.Base
	if base == nil {
		base = []float64{}
	}
	row, err := s.queries.CreateIssue(ctx, sqlc.CreateIssueParams{
		ID:                issue.ID,
		UUID:              issue.UUID,
		WorkspaceID:       issue.WorkspaceID,
		ProjectID:         issue.ProjectID,
		DocumentUUID:      issue.DocumentUUID,
		Title:             issue.Title,
		Description:       issue.Description,
		CentroidBase:      base,
		CentroidWeight:    issue.Centroid.Weight,
		CentroidUpdatedAt: timestamptz(issue.Centroid.UpdatedAt),
		CreatedAt:         timestamptz(issue.CreatedAt),
	})
	if err != nil {
		return mapErr(err)
	}
	*issue = *toIssueModel(row)
	return nil
}

func (s *issueStore) UpdateCentroid(ctx context.Context, id int64, c centroid.Centroid) error {
	base := c.Base
	if base == nil {
		base = []float64{}
	}
	return mapErr(s.queries.UpdateIssueCentroid(ctx, sqlc.UpdateIssueCentroidParams{
		ID:                id,
		CentroidBase:      base,
		CentroidWeight:    c.Weight,
		CentroidUpdatedAt: timestamptz(c.UpdatedAt),
	}))
}

func (s *issueStore) UpdateDetails(ctx context.Context, id int64, title, description string) error {
	return mapErr(s.queries.UpdateIssueDetails(ctx, sqlc.UpdateIssueDetailsParams{
		ID:          id,
		Title:       title,
		Description: description,
	}))
}

func (s *issueStore) SetEscalating(ctx context.Context, id int64, at *time.Time) error {
	return mapErr(s.queries.SetIssueEscalating(ctx, sqlc.SetIssueEscalatingParams{
		ID:           id,
		EscalatingAt: optionalTimestamptz(at),
	}))
}

func (s *issueStore) MarkMerged(ctx context.Context, winnerID int64, loserIDs []int64, at time.Time) (int64, error) {
	n, err := s.queries.MarkIssuesMerged(ctx, sqlc.MarkIssuesMergedParams{
		MergedAt: timestamptz(at),
		WinnerID: &winnerID,
		Ids:      loserIDs,
	})
	return n, mapErr(err)
}

func (s *issueStore) Delete(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteIssue(ctx, id)
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toIssueModels(rows []sqlc.Issue) []model.Issue {
	issues := make([]model.Issue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, *toIssueModel(row))
	}
	return issues
}

func toIssueModel(row sqlc.Issue) *model.Issue {
	issue := &model.Issue{
		ID:           row.ID,
		UUID:         row.UUID,
		WorkspaceID:  row.WorkspaceID,
		ProjectID:    row.ProjectID,
		DocumentUUID: row.DocumentUUID,
		Title:        row.Title,
		Description:  row.Description,
		Centroid: centroid.Centroid{
			Base:   row.CentroidBase,
			Weight: row.CentroidWeight,
		},
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
		EscalatingAt:    timePtr(row.EscalatingAt),
		ResolvedAt:      timePtr(row.ResolvedAt),
		IgnoredAt:       timePtr(row.IgnoredAt),
		MergedAt:        timePtr(row.MergedAt),
		MergedToIssueID: row.MergedToIssueID,
	}
	if issue.Centroid.Base == nil {
		issue.Centroid.Base = []float64{}
	}
	if row.CentroidUpdatedAt.Valid {
		issue.Centroid.UpdatedAt = row.CentroidUpdatedAt.Time
	}
	return issue
}
