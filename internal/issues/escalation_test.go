package issues_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/triage/internal/issues"
)

var _ = Describe("Escalation", func() {
	var (
		f          *fixture
		ctx        context.Context
		escalation issues.Escalation
	)

	const issueID int64 = 1

	BeforeEach(func() {
		f = newFixture()
		ctx = context.Background()
		f.seedIssue(issueID, vecTimeout)
		escalation = issues.Escalation{Window: 24 * time.Hour, BaselineDays: 7, Factor: 2, MinCount: 3}
	})

	baseline := func(perDay int) {
		for d := 1; d <= 7; d++ {
			f.db.addOccurrences(issueID, liveCommitID, perDay, f.now.AddDate(0, 0, -d))
		}
	}

	recheck := func() bool {
		issue, _ := f.db.issue(issueID)
		Expect(escalation.Recheck(ctx, f.db.stores(), &issue, f.now)).To(Succeed())
		stored, _ := f.db.issue(issueID)
		Expect(stored.IsEscalating()).To(Equal(issue.IsEscalating()))
		return stored.IsEscalating()
	}

	It("flags a spike over the baseline rate", func() {
		baseline(1)
		f.db.addOccurrences(issueID, liveCommitID, 3, f.now.Add(-time.Hour))

		Expect(recheck()).To(BeTrue())
	})

	It("needs the minimum count", func() {
		f.db.addOccurrences(issueID, liveCommitID, 2, f.now.Add(-time.Hour))

		Expect(recheck()).To(BeFalse())
	})

	It("does not flag a steady rate and clears an old flag", func() {
		baseline(3)
		f.db.addOccurrences(issueID, liveCommitID, 4, f.now.Add(-time.Hour))
		issue, _ := f.db.issue(issueID)
		issue.EscalatingAt = &f.now
		f.db.putIssue(issue)

		Expect(recheck()).To(BeFalse())
	})

	It("is rechecked as occurrences are assigned", func() {
		f.cfg.Escalation = issues.Escalation{Window: 24 * time.Hour, MinCount: 2}
		f.build()

		issue := f.assignNew(f.failing("timeout", liveCommitID))
		Expect(issue.IsEscalating()).To(BeFalse())

		issue = f.assignTo(f.failing("timeout", liveCommitID), issue)
		Expect(issue.IsEscalating()).To(BeTrue())
	})

	It("is disabled without a window", func() {
		escalation = issues.Escalation{}
		f.db.addOccurrences(issueID, liveCommitID, 50, f.now.Add(-time.Hour))

		Expect(recheck()).To(BeFalse())
	})
})
