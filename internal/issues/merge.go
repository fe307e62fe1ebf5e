package issues

import (
	"context"
	"fmt"
	"log/slog"

	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
)

type MergeOutcome struct {
	Winner *model.Issue
	Losers []int64
}

// Merge folds the active issues of the same document whose centroids are
// close to issueID's into the one with the most occurrences. It returns a
// nil outcome when there is nothing to merge.
func (s *service) Merge(ctx context.Context, issueID int64) (*MergeOutcome, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		IssueID:   logger.Ptr(issueID),
		Component: "triage.issues.merge",
	})

	anchor, err := s.stores.Issues().GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %d: %w", issueID, err)
	}
	if !anchor.IsActive() || anchor.Centroid.IsEmpty() {
		slog.DebugContext(ctx, "issue not mergeable", "active", anchor.IsActive())
		return nil, nil
	}

	group, err := s.mergeGroup(ctx, anchor)
	if err != nil {
		return nil, err
	}
	if len(group) <= 1 {
		return nil, nil
	}

	ids := make([]int64, len(group))
	for i := range group {
		ids[i] = group[i].ID
	}
	totals, err := s.stores.Histograms().TotalsByIssues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("counting occurrences: %w", err)
	}

	winnerID := pickWinner(ids, totals, anchor.ID)
	losers := make([]int64, 0, len(ids)-1)
	for _, id := range ids {
		if id != winnerID {
			losers = append(losers, id)
		}
	}
	if len(losers) == 0 {
		return nil, nil
	}

	var (
		fx     afterCommit
		winner *model.Issue
	)
	err = s.tx.WithTx(ctx, func(sp StoreProvider) error {
		fx = afterCommit{}
		w, err := s.applyMerge(ctx, sp, winnerID, losers, &fx)
		if err != nil {
			return err
		}
		winner = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.run(ctx)
	return &MergeOutcome{Winner: winner, Losers: losers}, nil
}

// mergeGroup is the anchor plus its active near neighbours.
func (s *service) mergeGroup(ctx context.Context, anchor *model.Issue) ([]model.Issue, error) {
	neighbours, err := s.index.Nearest(ctx, index.NearestQuery{
		Scope:       anchor.Scope(),
		Embedding:   centroid.Embed(anchor.Centroid),
		MaxDistance: 1 - s.cfg.MergeSimilarity,
		Limit:       s.cfg.MergeLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("searching merge candidates: %w", err)
	}

	ids := []int64{anchor.ID}
	for _, n := range neighbours {
		ids = append(ids, n.IssueID)
	}
	ids = lockOrder(ids)
	if len(ids) <= 1 {
		return nil, nil
	}

	found, err := s.stores.Issues().ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching merge candidates: %w", err)
	}

	scope := anchor.Scope()
	group := found[:0]
	for _, issue := range found {
		if issue.IsActive() && issue.Scope() == scope {
			group = append(group, issue)
		}
	}
	return group, nil
}

// pickWinner prefers the most occurrences, then the anchor, then the
// lowest id.
func pickWinner(ids []int64, totals map[int64]int64, anchorID int64) int64 {
	winner := ids[0]
	better := func(id int64) bool {
		if totals[id] != totals[winner] {
			return totals[id] > totals[winner]
		}
		if id == anchorID || winner == anchorID {
			return id == anchorID
		}
		return id < winner
	}
	for _, id := range ids[1:] {
		if better(id) {
			winner = id
		}
	}
	return winner
}

func (s *service) applyMerge(ctx context.Context, sp StoreProvider, winnerID int64, losers []int64, fx *afterCommit) (*model.Issue, error) {
	all := lockOrder(append([]int64{winnerID}, losers...))
	locked, err := sp.Issues().LockByIDs(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("locking issues: %w", err)
	}
	if len(locked) != len(all) {
		return nil, fmt.Errorf("%w: %d of %d issues left", ErrIssueAlreadyMerged, len(locked), len(all))
	}

	var winner *model.Issue
	centroids := make([]centroid.Centroid, 0, len(locked))
	for i := range locked {
		issue := &locked[i]
		if issue.IsMerged() || !issue.IsActive() {
			return nil, fmt.Errorf("%w: issue %d", ErrIssueAlreadyMerged, issue.ID)
		}
		if issue.ID == winnerID {
			winner = issue
		}
		if !issue.Centroid.IsEmpty() {
			centroids = append(centroids, issue.Centroid)
		}
	}

	now := s.now()
	if len(centroids) > 0 {
		merged, err := s.cfg.Centroid.Merge(centroids, now)
		if err != nil {
			return nil, &UnprocessableError{Err: fmt.Errorf("%w: merging into issue %d: %w", ErrInvalidCentroid, winnerID, err)}
		}
		if err := sp.Issues().UpdateCentroid(ctx, winnerID, merged); err != nil {
			return nil, fmt.Errorf("saving centroid of issue %d: %w", winnerID, err)
		}
		winner.Centroid = merged
	}

	moved, err := sp.IssueResults().Repoint(ctx, winnerID, losers)
	if err != nil {
		return nil, fmt.Errorf("repointing results: %w", err)
	}

	if _, err := sp.Evaluations().IgnoreAlertingOn(ctx, losers, now); err != nil {
		return nil, fmt.Errorf("ignoring evaluations alerting on merged issues: %w", err)
	}

	if err := sp.Histograms().MergeInto(ctx, winnerID, losers); err != nil {
		return nil, fmt.Errorf("merging histograms: %w", err)
	}
	if _, err := sp.Histograms().DeleteByIssues(ctx, losers); err != nil {
		return nil, fmt.Errorf("deleting merged histograms: %w", err)
	}

	marked, err := sp.Issues().MarkMerged(ctx, winnerID, losers, now)
	if err != nil {
		return nil, fmt.Errorf("marking issues merged: %w", err)
	}
	if marked != int64(len(losers)) {
		return nil, fmt.Errorf("%w: marked %d of %d issues", ErrIssueAlreadyMerged, marked, len(losers))
	}

	if err := s.cfg.Escalation.Recheck(ctx, sp, winner, now); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "issues merged",
		"winner_issue_id", winnerID,
		"loser_issue_ids", losers,
		"results_moved", moved)

	s.dropFromIndex(fx, losers...)
	s.syncIndex(fx, winner)
	s.publishMerge(fx, queue.MergeEvent{
		WorkspaceID:   winner.WorkspaceID,
		WinnerIssueID: winnerID,
		LoserIssueIDs: append([]int64(nil), losers...),
		MergedAt:      now,
	})
	return winner, nil
}

func (s *service) publishMerge(fx *afterCommit, event queue.MergeEvent) {
	fx.add(func(ctx context.Context) {
		if s.publisher == nil {
			return
		}
		if err := s.publisher.PublishMerge(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish merge", "error", err, "winner_issue_id", event.WinnerIssueID)
		}
	})
}
