package store

import (
	"context"
	"time"

	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/model"
)

type histogramStore struct {
	queries *sqlc.Queries
}

func newHistogramStore(queries *sqlc.Queries) HistogramStore {
	return &histogramStore{queries: queries}
}

func (s *histogramStore) Increment(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error) {
	row, err := s.queries.IncrementIssueHistogram(ctx, sqlc.IncrementIssueHistogramParams{
		WorkspaceID: h.WorkspaceID,
		IssueID:     h.IssueID,
		CommitID:    h.CommitID,
		Date:        date(h.Date),
		OccurredAt:  timestamptz(h.OccurredAt),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return toHistogramModel(row), nil
}

func (s *histogramStore) Decrement(ctx context.Context, h model.IssueHistogram) (*model.IssueHistogram, error) {
	row, err := s.queries.DecrementIssueHistogram(ctx, sqlc.DecrementIssueHistogramParams{
		WorkspaceID: h.WorkspaceID,
		IssueID:     h.IssueID,
		CommitID:    h.CommitID,
		Date:        date(h.Date),
		OccurredAt:  timestamptz(h.OccurredAt),
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return toHistogramModel(row), nil
}

func (s *histogramStore) DeleteRow(ctx context.Context, id int64) error {
	return mapErr(s.queries.DeleteIssueHistogram(ctx, id))
}

func (s *histogramStore) TotalByIssue(ctx context.Context, issueID int64) (int64, error) {
	total, err := s.queries.SumIssueHistogram(ctx, issueID)
	return total, mapErr(err)
}

func (s *histogramStore) TotalsByIssues(ctx context.Context, issueIDs []int64) (map[int64]int64, error) {
	rows, err := s.queries.SumIssueHistogramsByIssues(ctx, issueIDs)
	if err != nil {
		return nil, mapErr(err)
	}
	totals := make(map[int64]int64, len(issueIDs))
	for _, id := range issueIDs {
		totals[id] = 0
	}
	for _, row := range rows {
		totals[row.IssueID] = row.Total
	}
	return totals, nil
}

func (s *histogramStore) CountBetween(ctx context.Context, issueID int64, from, to time.Time) (int64, error) {
	total, err := s.queries.SumIssueHistogramRange(ctx, sqlc.SumIssueHistogramRangeParams{
		IssueID:  issueID,
		FromDate: date(from),
		ToDate:   date(to),
	})
	return total, mapErr(err)
}

func (s *histogramStore) MergeInto(ctx context.Context, winnerID int64, loserIDs []int64) error {
	_, err := s.queries.MergeIssueHistograms(ctx, sqlc.MergeIssueHistogramsParams{
		WinnerID: winnerID,
		LoserIds: loserIDs,
	})
	return mapErr(err)
}

func (s *histogramStore) DeleteByIssues(ctx context.Context, issueIDs []int64) (int64, error) {
	n, err := s.queries.DeleteIssueHistogramsByIssues(ctx, issueIDs)
	return n, mapErr(err)
}

func (s *histogramStore) ListByIssue(ctx context.Context, issueID int64) ([]model.IssueHistogram, error) {
	rows, err := s.queries.ListIssueHistograms(ctx, issueID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]model.IssueHistogram, 0, len(rows))
	for _, row := range rows {
		out = append(out, *toHistogramModel(row))
	}
	return out, nil
}

func toHistogramModel(row sqlc.IssueHistogram) *model.IssueHistogram {
	return &model.IssueHistogram{
		ID:          row.ID,
		WorkspaceID: row.WorkspaceID,
		IssueID:     row.IssueID,
		CommitID:    row.CommitID,
		Date:        row.Date.Time,
		Count:       row.Count,
		OccurredAt:  row.OccurredAt.Time,
	}
}
