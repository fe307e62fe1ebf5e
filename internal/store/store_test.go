package store_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/core/db/sqlc"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/store"
	"github.com/google/uuid"
)

var seq atomic.Int64

func nextID() int64 {
	return time.Now().UnixNano()/1000 + seq.Add(1)
}

// seeded is one commit and evaluation with helpers to add results and
// issues under them.
type seeded struct {
	scope      model.DocumentScope
	commitID   int64
	evaluation uuid.UUID
}

func seed(ctx context.Context) seeded {
	s := seeded{
		scope:      model.DocumentScope{WorkspaceID: 1, ProjectID: 2, DocumentUUID: uuid.New()},
		commitID:   nextID(),
		evaluation: uuid.New(),
	}
	_, err := database.Pool().Exec(ctx,
		`INSERT INTO commits (id, uuid, workspace_id, project_id, merged_at) VALUES ($1, $2, 1, 2, now())`,
		s.commitID, uuid.New())
	Expect(err).NotTo(HaveOccurred())
	_, err = database.Pool().Exec(ctx,
		`INSERT INTO evaluations (uuid, workspace_id, document_uuid, type, metric) VALUES ($1, 1, $2, 'llm', 'binary')`,
		s.evaluation, s.scope.DocumentUUID)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func (s seeded) result(ctx context.Context, reason string) int64 {
	id := nextID()
	_, err := database.Pool().Exec(ctx,
		`INSERT INTO evaluation_results (id, uuid, workspace_id, commit_id, evaluation_uuid, has_passed, metadata)
		 VALUES ($1, $2, 1, $3, $4, false, jsonb_build_object('reason', $5::text))`,
		id, uuid.New(), s.commitID, s.evaluation, reason)
	Expect(err).NotTo(HaveOccurred())
	return id
}

func (s seeded) issue(ctx context.Context, stores *store.Stores) *model.Issue {
	issue := &model.Issue{
		ID:           nextID(),
		UUID:         uuid.New(),
		WorkspaceID:  s.scope.WorkspaceID,
		ProjectID:    s.scope.ProjectID,
		DocumentUUID: s.scope.DocumentUUID,
		Title:        "Tool calls time out",
		Centroid:     centroid.New(),
		CreatedAt:    time.Now(),
	}
	Expect(stores.Issues().Create(ctx, issue)).To(Succeed())
	return issue
}

func (s seeded) link(ctx context.Context, stores *store.Stores, issueID, resultID int64) {
	Expect(stores.IssueResults().Create(ctx, &model.IssueEvaluationResult{
		WorkspaceID: 1, IssueID: issueID, EvaluationResultID: resultID, CommitID: s.commitID, CreatedAt: time.Now(),
	})).To(Succeed())
}

func (s seeded) histogram(issueID int64, day time.Time) model.IssueHistogram {
	return model.IssueHistogram{
		WorkspaceID: 1, IssueID: issueID, CommitID: s.commitID,
		Date: model.HistogramDate(day), OccurredAt: day,
	}
}

var _ = Describe("Stores", func() {
	var (
		ctx    context.Context
		stores *store.Stores
		s      seeded
		today  time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		stores = store.NewStores(database.Queries())
		s = seed(ctx)
		today = time.Now().UTC()
	})

	Describe("issues", func() {
		It("round-trips centroids", func() {
			issue := s.issue(ctx, stores)
			c := centroid.Centroid{Base: []float64{0.6, 0.8}, Weight: 1.5, UpdatedAt: today.Truncate(time.Microsecond)}

			Expect(stores.Issues().UpdateCentroid(ctx, issue.ID, c)).To(Succeed())

			got, err := stores.Issues().GetByID(ctx, issue.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Centroid.Base).To(Equal(c.Base))
			Expect(got.Centroid.Weight).To(Equal(1.5))
			Expect(got.Centroid.UpdatedAt.Equal(c.UpdatedAt)).To(BeTrue())
			Expect(got.Scope()).To(Equal(s.scope))
		})

		It("reports missing issues", func() {
			_, err := stores.Issues().GetByID(ctx, -1)
			Expect(err).To(MatchError(store.ErrNotFound))
			Expect(stores.Issues().Delete(ctx, -1)).To(MatchError(store.ErrNotFound))
		})

		It("marks losers merged once and clears the pointer when the winner goes", func() {
			winner, loser := s.issue(ctx, stores), s.issue(ctx, stores)

			n, err := stores.Issues().MarkMerged(ctx, winner.ID, []int64{loser.ID}, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
			n, err = stores.Issues().MarkMerged(ctx, winner.ID, []int64{loser.ID}, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			Expect(stores.Issues().Delete(ctx, winner.ID)).To(Succeed())
			got, err := stores.Issues().GetByID(ctx, loser.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsMerged()).To(BeTrue())
			Expect(got.MergedToIssueID).To(BeNil())
		})

		It("lists only active issues of the document created since a time", func() {
			active, merged := s.issue(ctx, stores), s.issue(ctx, stores)
			_, err := stores.Issues().MarkMerged(ctx, active.ID, []int64{merged.ID}, today)
			Expect(err).NotTo(HaveOccurred())

			found, err := stores.Issues().ListActiveCreatedSince(ctx, s.scope, today.Add(-time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].ID).To(Equal(active.ID))
		})

		It("times out waiting on a row lock", func() {
			issue := s.issue(ctx, stores)
			locked := make(chan struct{})
			release := make(chan struct{})

			go func() {
				defer GinkgoRecover()
				err := database.WithTx(ctx, func(q *sqlc.Queries) error {
					if _, err := store.NewStores(q).Issues().GetByIDForUpdate(ctx, issue.ID); err != nil {
						return err
					}
					close(locked)
					<-release
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
			<-locked

			err := database.WithTx(ctx, func(q *sqlc.Queries) error {
				_, err := store.NewStores(q).Issues().GetByIDForUpdate(ctx, issue.ID)
				return err
			})
			close(release)

			Expect(errors.Is(err, store.ErrLockTimeout)).To(BeTrue())
		})

		It("makes a second creator wait for and then see the first creator's issue", func() {
			first := &model.Issue{
				ID: nextID(), UUID: uuid.New(),
				WorkspaceID: s.scope.WorkspaceID, ProjectID: s.scope.ProjectID, DocumentUUID: s.scope.DocumentUUID,
				Title: "first", Centroid: centroid.New(), CreatedAt: time.Now(),
			}
			locked := make(chan struct{})
			done := make(chan struct{})

			go func() {
				defer GinkgoRecover()
				defer close(done)
				err := database.WithTx(ctx, func(q *sqlc.Queries) error {
					issues := store.NewStores(q).Issues()
					if err := issues.LockDocument(ctx, s.scope); err != nil {
						return err
					}
					close(locked)
					time.Sleep(100 * time.Millisecond)
					return issues.Create(ctx, first)
				})
				Expect(err).NotTo(HaveOccurred())
			}()
			<-locked

			var seen []model.Issue
			err := database.WithTx(ctx, func(q *sqlc.Queries) error {
				issues := store.NewStores(q).Issues()
				if err := issues.LockDocument(ctx, s.scope); err != nil {
					return err
				}
				var err error
				seen, err = issues.ListActiveCreatedSince(ctx, s.scope, today.Add(-time.Minute))
				return err
			})
			<-done

			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(HaveLen(1))
			Expect(seen[0].ID).To(Equal(first.ID))
		})

		It("holds the document lock per document", func() {
			other := seed(ctx)
			locked := make(chan struct{})
			release := make(chan struct{})

			go func() {
				defer GinkgoRecover()
				err := database.WithTx(ctx, func(q *sqlc.Queries) error {
					if err := store.NewStores(q).Issues().LockDocument(ctx, s.scope); err != nil {
						return err
					}
					close(locked)
					<-release
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
			<-locked

			lock := func(scope model.DocumentScope) error {
				return database.WithTx(ctx, func(q *sqlc.Queries) error {
					return store.NewStores(q).Issues().LockDocument(ctx, scope)
				})
			}
			sameErr := lock(s.scope)
			otherErr := lock(other.scope)
			close(release)

			Expect(errors.Is(sameErr, store.ErrLockTimeout)).To(BeTrue())
			Expect(otherErr).NotTo(HaveOccurred())
		})
	})

	Describe("issue results", func() {
		It("finds the newest link to an active issue", func() {
			older, newer := s.issue(ctx, stores), s.issue(ctx, stores)
			rid := s.result(ctx, "timeout")
			s.link(ctx, stores, older.ID, rid)
			s.link(ctx, stores, newer.ID, rid)

			link, err := stores.IssueResults().LastActive(ctx, rid)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.IssueID).To(Equal(newer.ID))

			_, err = stores.Issues().MarkMerged(ctx, older.ID, []int64{newer.ID}, today)
			Expect(err).NotTo(HaveOccurred())
			link, err = stores.IssueResults().LastActive(ctx, rid)
			Expect(err).NotTo(HaveOccurred())
			Expect(link.IssueID).To(Equal(older.ID))
		})

		It("repoints links without duplicating results", func() {
			winner, loser := s.issue(ctx, stores), s.issue(ctx, stores)
			shared, own := s.result(ctx, "timeout"), s.result(ctx, "timeout")
			s.link(ctx, stores, winner.ID, shared)
			s.link(ctx, stores, loser.ID, shared)
			s.link(ctx, stores, loser.ID, own)

			n, err := stores.IssueResults().Repoint(ctx, winner.ID, []int64{loser.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			count, err := stores.IssueResults().CountByIssue(ctx, winner.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("reports deleting a missing link", func() {
			issue := s.issue(ctx, stores)
			Expect(stores.IssueResults().Delete(ctx, issue.ID, -1)).To(MatchError(store.ErrNotFound))
		})

		It("persists enriched reasons", func() {
			rid := s.result(ctx, "wrong table")
			Expect(stores.EvaluationResults().SetEnrichedReason(ctx, rid, "cites the wrong source")).To(Succeed())

			r, err := stores.EvaluationResults().GetByID(ctx, rid)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Metadata.Reason).To(Equal("wrong table"))
			Expect(r.Metadata.EnrichedReason).To(Equal("cites the wrong source"))
		})
	})

	Describe("histograms", func() {
		It("never counts below zero", func() {
			issue := s.issue(ctx, stores)

			row, err := stores.Histograms().Decrement(ctx, s.histogram(issue.ID, today))
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Count).To(BeZero())

			_, err = stores.Histograms().Increment(ctx, s.histogram(issue.ID, today))
			Expect(err).NotTo(HaveOccurred())
			row, err = stores.Histograms().Increment(ctx, s.histogram(issue.ID, today))
			Expect(err).NotTo(HaveOccurred())
			Expect(row.Count).To(Equal(int32(2)))
		})

		It("sums loser buckets into the winner by commit and day", func() {
			winner, loser := s.issue(ctx, stores), s.issue(ctx, stores)
			yesterday := today.AddDate(0, 0, -1)
			for _, h := range []model.IssueHistogram{
				s.histogram(winner.ID, today),
				s.histogram(loser.ID, today),
				s.histogram(loser.ID, today),
				s.histogram(loser.ID, yesterday),
			} {
				_, err := stores.Histograms().Increment(ctx, h)
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(stores.Histograms().MergeInto(ctx, winner.ID, []int64{loser.ID})).To(Succeed())
			_, err := stores.Histograms().DeleteByIssues(ctx, []int64{loser.ID})
			Expect(err).NotTo(HaveOccurred())

			totals, err := stores.Histograms().TotalsByIssues(ctx, []int64{winner.ID, loser.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(totals).To(Equal(map[int64]int64{winner.ID: 4, loser.ID: 0}))

			rows, err := stores.Histograms().ListByIssue(ctx, winner.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[1].Count).To(Equal(int32(3)))

			recent, err := stores.Histograms().CountBetween(ctx, winner.ID, model.HistogramDate(today), model.HistogramDate(today).AddDate(0, 0, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(recent).To(Equal(int64(3)))
		})

		It("goes away with its issue", func() {
			issue := s.issue(ctx, stores)
			_, err := stores.Histograms().Increment(ctx, s.histogram(issue.ID, today))
			Expect(err).NotTo(HaveOccurred())

			Expect(stores.Issues().Delete(ctx, issue.ID)).To(Succeed())

			total, err := stores.Histograms().TotalByIssue(ctx, issue.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})
	})

	Describe("evaluations", func() {
		It("ignores evaluations alerting on merged issues", func() {
			issue := s.issue(ctx, stores)
			_, err := database.Pool().Exec(ctx, `UPDATE evaluations SET alert_issue_id = $1 WHERE uuid = $2`, issue.ID, s.evaluation)
			Expect(err).NotTo(HaveOccurred())

			n, err := stores.Evaluations().IgnoreAlertingOn(ctx, []int64{issue.ID}, today)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			e, err := stores.Evaluations().GetByUUID(ctx, s.evaluation)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.IgnoredAt).NotTo(BeNil())
		})
	})
})
