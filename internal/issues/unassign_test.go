package issues_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/internal/issues"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
)

var _ = Describe("Unassign", func() {
	var (
		f     *fixture
		ctx   context.Context
		first *model.EvaluationResult
		issue *model.Issue
	)

	// passing turns a stored result into one that started passing.
	passing := func(r *model.EvaluationResult) *model.EvaluationResult {
		out := f.fresh(r)
		passed := true
		out.HasPassed = &passed
		return out
	}

	BeforeEach(func() {
		f = newFixture()
		ctx = context.Background()
		first = f.failing("timeout", liveCommitID)
		issue = f.assignNew(first)
	})

	It("deletes the issue with its last occurrence", func() {
		out, err := f.svc.Unassign(ctx, issues.UnassignParams{Result: passing(first), Evaluation: &f.llmEval})

		Expect(err).NotTo(HaveOccurred())
		Expect(out.Deleted).To(BeTrue())
		_, exists := f.db.issue(issue.ID)
		Expect(exists).To(BeFalse())
		Expect(f.index.deleted).To(ConsistOf(issue.ID))
	})

	It("shrinks the centroid and schedules follow-ups", func() {
		second := f.failing("timeout", liveCommitID)
		grown := f.assignTo(second, issue)
		f.jobs.jobs = nil

		out, err := f.svc.Unassign(ctx, issues.UnassignParams{Result: passing(second), Evaluation: &f.llmEval})

		Expect(err).NotTo(HaveOccurred())
		Expect(out.Deleted).To(BeFalse())
		Expect(out.Issue.Centroid.Weight).To(BeNumerically("<", grown.Centroid.Weight))
		Expect(f.db.total(issue.ID)).To(Equal(int64(1)))
		Expect(f.db.linksOf(issue.ID)).To(Equal([]int64{first.ID}))
		Expect(f.jobs.types()).To(ConsistOf(queue.TaskTypeGenerateIssueDetails, queue.TaskTypeMergeCommonIssues))
	})

	It("removes results that no longer carry a reason", func() {
		second := f.failing("timeout", liveCommitID)
		f.assignTo(second, issue)
		stripped := passing(second)
		stripped.Metadata.Reason = ""
		stripped.Embedding = vecTimeout

		_, err := f.svc.Unassign(ctx, issues.UnassignParams{Result: stripped, Evaluation: &f.llmEval, Issue: issue})

		Expect(err).NotTo(HaveOccurred())
		Expect(f.db.linksOf(issue.ID)).NotTo(ContainElement(second.ID))
	})

	It("rejects results that are not assigned", func() {
		r := f.failing("timeout", liveCommitID)

		_, err := f.svc.Unassign(ctx, issues.UnassignParams{Result: passing(r), Evaluation: &f.llmEval})
		Expect(err).To(MatchError(issues.ErrResultNotAssigned))

		_, err = f.svc.Unassign(ctx, issues.UnassignParams{Result: passing(r), Evaluation: &f.llmEval, Issue: issue})
		Expect(err).To(MatchError(issues.ErrResultNotAssigned))
		Expect(issues.IsUnprocessable(err)).To(BeTrue())
	})

	It("keeps the histogram consistent with its counters", func() {
		second := f.failing("timeout", liveCommitID)
		f.assignTo(second, issue)

		_, err := f.svc.Unassign(ctx, issues.UnassignParams{Result: passing(second), Evaluation: &f.llmEval})
		Expect(err).NotTo(HaveOccurred())

		rows, err := f.db.stores().Histograms().ListByIssue(ctx, issue.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Count).To(Equal(int32(1)))
	})
})
