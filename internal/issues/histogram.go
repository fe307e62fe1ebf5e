package issues

import (
	"context"
	"fmt"

	"basegraph.app/triage/internal/model"
)

func histogramRow(issue *model.Issue, result *model.EvaluationResult) model.IssueHistogram {
	return model.IssueHistogram{
		WorkspaceID: issue.WorkspaceID,
		IssueID:     issue.ID,
		CommitID:    result.CommitID,
		Date:        model.HistogramDate(result.CreatedAt),
		OccurredAt:  result.CreatedAt,
	}
}

// incrementHistogram counts one occurrence of the issue on the result's
// commit and day.
func (s *service) incrementHistogram(ctx context.Context, sp StoreProvider, issue *model.Issue, result *model.EvaluationResult) error {
	if _, err := sp.Histograms().Increment(ctx, histogramRow(issue, result)); err != nil {
		return fmt.Errorf("incrementing histogram of issue %d: %w", issue.ID, err)
	}
	return s.cfg.Escalation.Recheck(ctx, sp, issue, s.now())
}

// decrementHistogram never drops below zero; an emptied row is deleted.
func (s *service) decrementHistogram(ctx context.Context, sp StoreProvider, issue *model.Issue, result *model.EvaluationResult) error {
	row, err := sp.Histograms().Decrement(ctx, histogramRow(issue, result))
	if err != nil {
		return fmt.Errorf("decrementing histogram of issue %d: %w", issue.ID, err)
	}
	if row.Count <= 0 {
		if err := sp.Histograms().DeleteRow(ctx, row.ID); err != nil {
			return fmt.Errorf("deleting empty histogram row %d: %w", row.ID, err)
		}
	}
	return s.cfg.Escalation.Recheck(ctx, sp, issue, s.now())
}
