// Package seed creates demo profiles, emoji posts and likes for development.
// These helpers are intended for development and testing only.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"emojifeed/internal/middleware"
	"emojifeed/internal/models"
	"emojifeed/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fallback emojis used when the faker produces something the content rule rejects.
var palette = []string{"😀", "🎉", "🔥", "🚀", "🌮", "🐙", "🌈", "💯", "🥳", "👀", "🍕", "🎸"}

// Options controls how much data Seed writes.
type Options struct {
	AuthorIDs      []string
	PostsPerAuthor int
	// MaxLikesPerPost caps likes per post; likers are drawn from AuthorIDs.
	MaxLikesPerPost int
	// MaxDays spreads created_at over the trailing window.
	MaxDays int
	// RandSeed makes output reproducible when non-zero.
	RandSeed int64
}

// Result reports what Seed wrote.
type Result struct {
	Posts int
	Likes int
}

// Factory builds emoji posts and profiles from one faker source.
type Factory struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewFactory returns a factory. A zero seed draws from crypto randomness.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed), now: time.Now}
}

// Content returns 1..5 emojis that satisfy the post content rule.
func (f *Factory) Content() string {
	n := f.faker.Number(1, 5)
	var b strings.Builder
	for i := 0; i < n; i++ {
		e := f.faker.Emoji()
		if !validation.IsEmojiOnly(e) {
			e = f.faker.RandomString(palette)
		}
		b.WriteString(e)
	}
	if validation.PostContent(b.String()) != nil {
		return f.faker.RandomString(palette)
	}
	return b.String()
}

// Profile builds a directory profile with a unique-looking username.
func (f *Factory) Profile() models.AuthorProfile {
	username := strings.ToLower(f.faker.Username())
	return models.AuthorProfile{
		UserID:          "user_" + strings.ReplaceAll(f.faker.UUID(), "-", "")[:24],
		Username:        username,
		ProfileImageURL: fmt.Sprintf("https://api.dicebear.com/7.x/fun-emoji/svg?seed=%s", username),
	}
}

// Profiles builds n profiles.
func (f *Factory) Profiles(n int) []models.AuthorProfile {
	out := make([]models.AuthorProfile, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.Profile())
	}
	return out
}

// Post builds an unsaved post by authorID with a created_at within maxDays.
func (f *Factory) Post(authorID string, maxDays int) *models.Post {
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.faker.Number(0, maxDays*24*60)) * time.Minute
	return &models.Post{
		AuthorID:  authorID,
		Content:   f.Content(),
		CreatedAt: f.now().Add(-back),
	}
}

// Seed writes posts for every author and random likes between them.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (Result, error) {
	authors := lo.Uniq(lo.Compact(opts.AuthorIDs))
	if len(authors) == 0 {
		return Result{}, errors.New("seed: at least one author id is required")
	}
	if opts.PostsPerAuthor <= 0 {
		opts.PostsPerAuthor = 5
	}

	f := NewFactory(opts.RandSeed)

	posts := make([]*models.Post, 0, len(authors)*opts.PostsPerAuthor)
	for _, author := range authors {
		for i := 0; i < opts.PostsPerAuthor; i++ {
			posts = append(posts, f.Post(author, opts.MaxDays))
		}
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(posts, 100).Error; err != nil {
			return fmt.Errorf("create posts: %w", err)
		}
		res.Posts = len(posts)

		if opts.MaxLikesPerPost <= 0 {
			return nil
		}

		var likes []models.LikedPost
		for _, p := range posts {
			n := f.faker.Number(0, min(opts.MaxLikesPerPost, len(authors)))
			for _, liker := range lo.Samples(authors, n) {
				likes = append(likes, models.LikedPost{PostID: p.ID, UserID: liker})
			}
		}
		if len(likes) == 0 {
			return nil
		}

		result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(likes, 100)
		if result.Error != nil {
			return fmt.Errorf("create likes: %w", result.Error)
		}
		res.Likes = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	middleware.Logger.InfoContext(ctx, "Seed completed",
		slog.Int("authors", len(authors)),
		slog.Int("posts", res.Posts),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}
