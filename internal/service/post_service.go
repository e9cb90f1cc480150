// Package service holds the feed read model and the write rules for posts and likes.
package service

import (
	"context"
	"errors"
	"log/slog"

	"emojifeed/internal/identity"
	"emojifeed/internal/middleware"
	"emojifeed/internal/models"
	"emojifeed/internal/observability"
	"emojifeed/internal/ratelimit"
	"emojifeed/internal/repository"
	"emojifeed/internal/validation"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Default caps for feed queries.
const (
	DefaultFeedLimit       = 100
	DefaultAuthorFeedLimit = 100
)

type PostService struct {
	postRepo        repository.PostRepository
	directory       identity.Directory
	limiter         ratelimit.Limiter
	feedLimit       int
	authorFeedLimit int
}

// PostServiceOption tunes a PostService.
type PostServiceOption func(*PostService)

// WithFeedLimits overrides how many posts ListAll and ListByAuthor return.
// Non-positive values keep the defaults.
func WithFeedLimits(feed, author int) PostServiceOption {
	return func(s *PostService) {
		if feed > 0 {
			s.feedLimit = feed
		}
		if author > 0 {
			s.authorFeedLimit = author
		}
	}
}

// NewPostService wires the post store, the identity directory and the limiter shared by
// post creation and likes.
func NewPostService(
	postRepo repository.PostRepository,
	directory identity.Directory,
	limiter ratelimit.Limiter,
	opts ...PostServiceOption,
) *PostService {
	s := &PostService{
		postRepo:        postRepo,
		directory:       directory,
		limiter:         limiter,
		feedLimit:       DefaultFeedLimit,
		authorFeedLimit: DefaultAuthorFeedLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll returns the newest posts across all authors. viewerID may be empty for anonymous readers.
func (s *PostService) ListAll(ctx context.Context, viewerID string) ([]models.EnrichedPost, error) {
	posts, err := s.postRepo.List(ctx, s.feedLimit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.enrich(ctx, "list_all", posts, viewerID)
}

// GetByID returns one enriched post or a NotFound error.
func (s *PostService) GetByID(ctx context.Context, id, viewerID string) (*models.EnrichedPost, error) {
	if err := validation.ID("id", id); err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post not found")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	enriched, err := s.enrich(ctx, "get_by_id", []models.Post{*post}, viewerID)
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

// ListByAuthor returns an author's newest posts. An author without posts yields an empty slice.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID string) ([]models.EnrichedPost, error) {
	if err := validation.ID("userId", authorID); err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListByAuthor(ctx, authorID, s.authorFeedLimit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.enrich(ctx, "list_by_author", posts, viewerID)
}

// Create validates content, spends one unit of the actor's write budget and stores the post.
func (s *PostService) Create(ctx context.Context, actorID, content string) (*models.Post, error) {
	if actorID == "" {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	if err := validation.PostContent(content); err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, actorID); err != nil {
		return nil, err
	}

	post := &models.Post{AuthorID: actorID, Content: content}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "post created", slog.String("post_id", post.ID))
	return post, nil
}

// CreateLikedPostEntry records that the actor likes postID. The post is not required to exist.
// Likes draw from the same budget as post creation.
func (s *PostService) CreateLikedPostEntry(ctx context.Context, actorID, postID string) (*models.LikedPost, error) {
	if actorID == "" {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	if err := validation.ID("postId", postID); err != nil {
		return nil, err
	}
	if err := s.acquire(ctx, actorID); err != nil {
		return nil, err
	}

	like, err := s.postRepo.CreateLike(ctx, postID, actorID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return like, nil
}

// DeleteLikedPostEntry removes the actor's likes on postID and reports how many were removed.
// It is not rate limited and succeeds with zero when nothing matched.
func (s *PostService) DeleteLikedPostEntry(ctx context.Context, actorID, postID string) (int64, error) {
	if actorID == "" {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	if err := validation.ID("postId", postID); err != nil {
		return 0, err
	}

	deleted, err := s.postRepo.DeleteLikes(ctx, postID, actorID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return deleted, nil
}

func (s *PostService) acquire(ctx context.Context, actorID string) error {
	ok, err := s.limiter.TryAcquire(ctx, actorID)
	if err != nil {
		return models.NewUpstreamError("rate limit store", err)
	}
	if !ok {
		return models.NewTooManyRequestsError()
	}
	return nil
}

// enrich attaches authors, like counts and the viewer's likes to posts, keeping their order.
// A post whose author is unknown to the directory, or has no username, aborts the batch.
func (s *PostService) enrich(ctx context.Context, operation string, posts []models.Post, viewerID string) (result []models.EnrichedPost, err error) {
	if len(posts) == 0 {
		return []models.EnrichedPost{}, nil
	}

	ctx, span := observability.StartSpan(ctx, "posts.enrich",
		attribute.String("feed.operation", operation),
		attribute.Int("feed.posts", len(posts)),
	)
	defer func() { observability.EndSpan(span, err) }()

	postIDs := lo.Map(posts, func(p models.Post, _ int) string { return p.ID })
	authorIDs := lo.Uniq(lo.Map(posts, func(p models.Post, _ int) string { return p.AuthorID }))

	var (
		authors map[string]models.AuthorProfile
		counts  map[string]int
		liked   map[string]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		authors, err = s.resolveAuthors(gctx, authorIDs)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.postRepo.CountLikes(gctx, postIDs)
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if viewerID != "" {
		g.Go(func() error {
			var err error
			liked, err = s.postRepo.LikedPostIDs(gctx, viewerID, postIDs)
			if err != nil {
				return models.NewInternalError(err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result = make([]models.EnrichedPost, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok || author.Username == "" {
			observability.EnrichmentInconsistencies.Inc()
			middleware.Logger.ErrorContext(ctx, "post author missing from identity directory",
				slog.String("post_id", p.ID),
				slog.String("author_id", p.AuthorID),
				slog.Bool("resolved", ok),
			)
			return nil, models.NewInconsistencyError("Author for post not found")
		}

		result = append(result, models.EnrichedPost{
			Post:          models.PostWithLikes{Post: p, LikeCount: counts[p.ID]},
			Author:        author,
			IsLikedByUser: liked[p.ID],
		})
	}

	observability.EnrichedPostsServed.WithLabelValues(operation).Add(float64(len(result)))
	return result, nil
}

// resolveAuthors looks up authors in directory-sized batches.
func (s *PostService) resolveAuthors(ctx context.Context, ids []string) (map[string]models.AuthorProfile, error) {
	authors := make(map[string]models.AuthorProfile, len(ids))
	for _, chunk := range lo.Chunk(ids, identity.MaxBatchSize) {
		found, err := s.directory.ResolveByIDs(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for id, p := range found {
			authors[id] = p
		}
	}
	return authors, nil
}
