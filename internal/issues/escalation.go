package issues

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/triage/internal/model"
)

const day = 24 * time.Hour

// Escalation flags issues whose recent occurrences spike above their
// usual rate.
type Escalation struct {
	Window       time.Duration
	BaselineDays int
	// Factor over the baseline rate the window must exceed.
	Factor float64
	// MinCount the window must reach regardless of the baseline.
	MinCount int64
}

// Recheck sets or clears the escalating mark of issue from its histogram.
// It runs inside the caller's transaction.
func (e Escalation) Recheck(ctx context.Context, sp StoreProvider, issue *model.Issue, now time.Time) error {
	if e.Window <= 0 {
		return nil
	}

	escalating, err := e.isEscalating(ctx, sp, issue.ID, now)
	if err != nil {
		return err
	}
	if escalating == issue.IsEscalating() {
		return nil
	}

	var at *time.Time
	if escalating {
		at = &now
	}
	if err := sp.Issues().SetEscalating(ctx, issue.ID, at); err != nil {
		return fmt.Errorf("updating escalation of issue %d: %w", issue.ID, err)
	}
	issue.EscalatingAt = at

	slog.InfoContext(ctx, "issue escalation changed", "issue_id", issue.ID, "escalating", escalating)
	return nil
}

func (e Escalation) isEscalating(ctx context.Context, sp StoreProvider, issueID int64, now time.Time) (bool, error) {
	windowDays := int((e.Window + day - 1) / day)
	if windowDays < 1 {
		windowDays = 1
	}

	to := model.HistogramDate(now).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -windowDays)

	recent, err := sp.Histograms().CountBetween(ctx, issueID, from, to)
	if err != nil {
		return false, fmt.Errorf("counting recent occurrences of issue %d: %w", issueID, err)
	}
	if recent < e.MinCount {
		return false, nil
	}
	if e.BaselineDays <= 0 {
		return true, nil
	}

	baseline, err := sp.Histograms().CountBetween(ctx, issueID, from.AddDate(0, 0, -e.BaselineDays), from)
	if err != nil {
		return false, fmt.Errorf("counting baseline occurrences of issue %d: %w", issueID, err)
	}

	expected := float64(baseline) / float64(e.BaselineDays) * float64(windowDays)
	return float64(recent) > e.Factor*expected, nil
}
