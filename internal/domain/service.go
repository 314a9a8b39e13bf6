package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrWriteBack wraps a rejection from the update endpoint.
var ErrWriteBack = errors.New("write back post")

// Messages reported for outcomes that did no work.
const (
	MsgNoTargets        = "No syndication targets have been configured"
	MsgNoPendingPosts   = "No posts awaiting syndication"
	MsgNoPendingTargets = "Post has no pending syndication targets"
	MsgDraft            = "Post is a draft"
)

// Outcome is the result of syndicating a single post.
type Outcome struct {
	URL           string   `json:"url,omitempty"`
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
	Syndication   []string `json:"syndication,omitempty"`
	FailedTargets []string `json:"failedTargets,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Summary is the result of a batch run.
type Summary struct {
	RunID     string     `json:"runId"`
	Message   string     `json:"message,omitempty"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Results   []*Outcome `json:"results"`
}

func (s *Summary) record(o *Outcome) {
	s.Results = append(s.Results, o)
	if o.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Total = len(s.Results)
}

// SyndicationService is the core domain service. It selects posts from the
// store, reconciles them against the configured targets and writes the new
// state back through the update endpoint.
type SyndicationService struct {
	pub        *Publication
	posts      PostStore
	updater    PostUpdater
	batchDelay time.Duration
	logger     *slog.Logger

	// locks allows one reconciliation per post URL at a time across the
	// HTTP, schedule and event stream entry points.
	locks postLocks
}

// NewSyndicationService creates a SyndicationService. batchDelay is the pause
// between consecutive posts in a batch.
func NewSyndicationService(pub *Publication, posts PostStore, updater PostUpdater, batchDelay time.Duration, logger *slog.Logger) (*SyndicationService, error) {
	if pub == nil {
		return nil, fmt.Errorf("publication is required")
	}
	if posts == nil {
		return nil, fmt.Errorf("post store is required")
	}
	if updater == nil {
		return nil, fmt.Errorf("post updater is required")
	}
	if batchDelay < 0 {
		return nil, fmt.Errorf("batch delay must not be negative")
	}

	return &SyndicationService{
		pub:        pub,
		posts:      posts,
		updater:    updater,
		batchDelay: batchDelay,
		logger:     logger,
	}, nil
}

// Targets returns the descriptors of the configured targets.
func (s *SyndicationService) Targets() []TargetInfo {
	return s.pub.TargetInfos()
}

// SyndicatePost reconciles a single post and writes back the result. An
// empty url selects the most recently published pending post. A missing
// post or an empty target registry is a successful no-op; a write-back
// failure is returned as an error. Drafts are only syndicated when forced.
func (s *SyndicationService) SyndicatePost(ctx context.Context, url string, force bool) (*Outcome, error) {
	if len(s.pub.Targets) == 0 {
		return &Outcome{URL: url, Success: true, Message: MsgNoTargets}, nil
	}

	if url == "" {
		post, err := s.posts.FindLatestPending(ctx)
		if errors.Is(err, ErrPostNotFound) {
			s.logger.Info("no post to syndicate")
			return &Outcome{Success: true, Message: MsgNoPendingPosts}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find post: %w", err)
		}
		url = post.URL
	}

	return s.process(ctx, url, force)
}

// SyndicatePending runs a batch over every pending post in the store.
func (s *SyndicationService) SyndicatePending(ctx context.Context) (*Summary, error) {
	if len(s.pub.Targets) == 0 {
		return &Summary{RunID: uuid.NewString(), Message: MsgNoTargets, Results: []*Outcome{}}, nil
	}

	posts, err := s.posts.FindPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending posts: %w", err)
	}

	if len(posts) == 0 {
		s.logger.Info("no posts awaiting syndication")
		return &Summary{RunID: uuid.NewString(), Message: MsgNoPendingPosts, Results: []*Outcome{}}, nil
	}

	return s.RunBatch(ctx, posts), nil
}

// RunBatch syndicates posts one after another, pausing for the batch delay
// between consecutive posts. A failing post is recorded in the summary and
// does not stop the batch. If ctx is cancelled, posts not yet processed are
// recorded as failed.
func (s *SyndicationService) RunBatch(ctx context.Context, posts []*Post) *Summary {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Results: make([]*Outcome, 0, len(posts)),
	}
	logger := s.logger.With("run_id", summary.RunID)
	logger.Info("batch started", "posts", len(posts), "delay", s.batchDelay)
	start := time.Now()

	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			summary.record(&Outcome{URL: post.URL, Error: err.Error()})
			continue
		}

		outcome, err := s.process(ctx, post.URL, false)
		if err != nil {
			logger.Error("post syndication failed", "url", post.URL, "error", err)
			outcome = &Outcome{URL: post.URL, Error: err.Error()}
		}
		summary.record(outcome)

		if i < len(posts)-1 {
			if err := sleep(ctx, s.batchDelay); err != nil {
				logger.Warn("batch interrupted", "error", err)
			}
		}
	}

	logger.Info("batch complete",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", time.Since(start),
	)
	return summary
}

// process reconciles one post and commits the result. The post is read
// from the store while its lock is held.
func (s *SyndicationService) process(ctx context.Context, url string, force bool) (*Outcome, error) {
	release, err := s.locks.acquire(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("lock post %s: %w", url, err)
	}
	defer release()

	post, err := s.posts.FindOne(ctx, url)
	if errors.Is(err, ErrPostNotFound) {
		s.logger.Info("no post to syndicate", "url", url)
		return &Outcome{URL: url, Success: true, Message: MsgNoPendingPosts}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}

	if post.Status == StatusDraft && !force {
		s.logger.Info("skipping draft", "url", url)
		return &Outcome{URL: url, Success: true, Message: MsgDraft}, nil
	}

	if len(RequestedTargets(post.Properties)) == 0 {
		if post.Properties.Has(PropSyndicateTo) {
			// Drop an empty syndicate-to so the post leaves the pending set.
			update := &Update{URL: url, Delete: []string{PropSyndicateTo}}
			if err := s.updater.UpdatePost(ctx, update); err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrWriteBack, url, err)
			}
		}
		return &Outcome{URL: url, Success: true, Message: MsgNoPendingTargets}, nil
	}

	result := Reconcile(ctx, s.pub, post.Properties, ReconcileOptions{Force: force}, s.logger)

	if err := s.updater.UpdatePost(ctx, NewUpdate(url, result)); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrWriteBack, url, err)
	}

	return &Outcome{
		URL:           url,
		Success:       true,
		Syndication:   result.SyndicatedURLs,
		FailedTargets: result.FailedTargets,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
