// Package issues clusters failing evaluation results into issues, keeps
// each issue's centroid current as results come and go, and merges issues
// that turn out to describe the same failure.
//
// Every mutation follows the same shape: slow external work (reason
// enrichment, embeddings, reranking, summaries, vector search) runs first
// and outside any transaction; the transaction then row-locks the issues
// involved, re-reads them, re-validates the result against what it finds,
// and writes. Follow-up jobs and index updates run only after commit.
package issues

import (
	"context"
	"log/slog"
	"time"

	"basegraph.app/triage/common/cache"
	"basegraph.app/triage/common/llm"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/internal/centroid"
	"basegraph.app/triage/internal/index"
	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/queue"
)

// Service is the engine surface used by jobs and handlers. Business rule
// rejections come back as *UnprocessableError; everything else is an
// infrastructure failure and the enclosing transaction has rolled back.
type Service interface {
	Discover(ctx context.Context, p DiscoverParams) (*Discovery, error)
	Generate(ctx context.Context, p GenerateParams) (*model.IssueDetails, error)
	AssignToIssue(ctx context.Context, p AssignParams) (*model.Issue, error)
	Reassign(ctx context.Context, p ReassignParams) (*model.Issue, error)
	Unassign(ctx context.Context, p UnassignParams) (*UnassignOutcome, error)
	Merge(ctx context.Context, issueID int64) (*MergeOutcome, error)
	RegenerateDetails(ctx context.Context, issueID int64) (*model.Issue, error)
}

// Index is the searchable projection of issues.
type Index interface {
	HybridSearch(ctx context.Context, q index.SearchQuery) ([]index.Candidate, error)
	Nearest(ctx context.Context, q index.NearestQuery) ([]index.Candidate, error)
	Upsert(ctx context.Context, issue *model.Issue) error
	Delete(ctx context.Context, issueID int64) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task, opts queue.EnqueueOptions) (bool, error)
}

type Config struct {
	Centroid centroid.Aggregator

	HybridAlpha        float64
	MaxVectorDistance  float64
	MinKeywordMatches  int
	CandidateLimit     int
	MinRerankRelevance float64

	MergeSimilarity float64
	MergeLimit      int

	// CreationLookback bounds how far back issue creation looks for an
	// issue a concurrent writer just created for the same cluster.
	CreationLookback time.Duration

	DetailsThrottle    time.Duration
	DetailsSampleSize  int
	MergeThrottle      time.Duration
	MergeDelay         time.Duration
	GenerationCacheTTL time.Duration

	Escalation Escalation
}

type Deps struct {
	Stores     StoreProvider
	Tx         TxRunner
	Embedder   llm.Embedder
	Reranker   llm.Reranker
	Summarizer llm.Client
	Index      Index
	Cache      cache.Cache
	Jobs       Enqueuer
	Publisher  queue.Publisher
	Reasons    *Reasons
	Now        func() time.Time
}

type service struct {
	stores     StoreProvider
	tx         TxRunner
	embedder   llm.Embedder
	reranker   llm.Reranker
	summarizer llm.Client
	index      Index
	cache      cache.Cache
	jobs       Enqueuer
	publisher  queue.Publisher
	reasons    *Reasons
	now        func() time.Time
	cfg        Config
}

func NewService(deps Deps, cfg Config) Service {
	if deps.Reasons == nil {
		deps.Reasons = DefaultReasons()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 5
	}
	if cfg.MergeLimit <= 0 {
		cfg.MergeLimit = 100
	}
	if cfg.DetailsSampleSize <= 0 {
		cfg.DetailsSampleSize = 10
	}

	return &service{
		stores:     deps.Stores,
		tx:         deps.Tx,
		embedder:   deps.Embedder,
		reranker:   deps.Reranker,
		summarizer: deps.Summarizer,
		index:      deps.Index,
		cache:      deps.Cache,
		jobs:       deps.Jobs,
		publisher:  deps.Publisher,
		reasons:    deps.Reasons,
		now:        deps.Now,
		cfg:        cfg,
	}
}

// afterCommit collects side effects of a transaction. They run only once
// the transaction committed and their failures never undo it.
type afterCommit struct {
	fns []func(ctx context.Context)
}

func (a *afterCommit) add(fn func(ctx context.Context)) {
	a.fns = append(a.fns, fn)
}

func (a *afterCommit) run(ctx context.Context) {
	for _, fn := range a.fns {
		fn(ctx)
	}
}

func (s *service) syncIndex(fx *afterCommit, issue *model.Issue) {
	snapshot := *issue
	fx.add(func(ctx context.Context) {
		if s.index == nil {
			return
		}
		if err := s.index.Upsert(ctx, &snapshot); err != nil {
			slog.WarnContext(ctx, "failed to index issue", "error", err, "issue_id", snapshot.ID)
		}
	})
}

func (s *service) dropFromIndex(fx *afterCommit, issueIDs ...int64) {
	fx.add(func(ctx context.Context) {
		if s.index == nil {
			return
		}
		for _, id := range issueIDs {
			if err := s.index.Delete(ctx, id); err != nil {
				slog.WarnContext(ctx, "failed to remove issue from index", "error", err, "issue_id", id)
			}
		}
	})
}

// enqueueFollowUps schedules detail regeneration and a merge sweep for
// the issue, each collapsed per (workspace, issue).
func (s *service) enqueueFollowUps(fx *afterCommit, issue *model.Issue, regenerateDetails bool) {
	workspaceID, issueID := issue.WorkspaceID, issue.ID
	fx.add(func(ctx context.Context) {
		if s.jobs == nil {
			return
		}
		if regenerateDetails {
			s.enqueue(ctx, queue.TaskTypeGenerateIssueDetails, workspaceID, issueID, queue.EnqueueOptions{
				DedupeKey: queue.DedupeKey(queue.TaskTypeGenerateIssueDetails, workspaceID, issueID),
				Throttle:  s.cfg.DetailsThrottle,
			})
		}
		s.enqueue(ctx, queue.TaskTypeMergeCommonIssues, workspaceID, issueID, queue.EnqueueOptions{
			DedupeKey: queue.DedupeKey(queue.TaskTypeMergeCommonIssues, workspaceID, issueID),
			Throttle:  s.cfg.MergeThrottle,
			Delay:     s.cfg.MergeDelay,
		})
	})
}

func (s *service) enqueue(ctx context.Context, taskType queue.TaskType, workspaceID, issueID int64, opts queue.EnqueueOptions) {
	id := issueID
	task := queue.Task{
		TaskType:    taskType,
		WorkspaceID: workspaceID,
		IssueID:     &id,
	}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		task.TraceID = &traceID
	}
	_, err := s.jobs.Enqueue(ctx, task, opts)
	if err != nil {
		slog.WarnContext(ctx, "failed to enqueue follow-up job",
			"error", err,
			"task_type", taskType,
			"issue_id", issueID)
	}
}
