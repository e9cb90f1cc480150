// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"emojifeed/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxInClause bounds the number of ids sent in a single IN (...) predicate.
const maxInClause = 500

// PostRepository defines the interface for post and like data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, limit int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error)
	CountLikes(ctx context.Context, postIDs []string) (map[string]int, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	CreateLike(ctx context.Context, postID, userID string) (*models.LikedPost, error)
	DeleteLikes(ctx context.Context, postID, userID string) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// GetByID returns gorm.ErrRecordNotFound when no post has the id.
func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

type likeCountRow struct {
	PostID string
	Count  int
}

// CountLikes returns the number of likes per post. Posts without likes are absent from the map.
func (r *postRepository) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(postIDs))
	for _, chunk := range lo.Chunk(lo.Uniq(postIDs), maxInClause) {
		var rows []likeCountRow
		err := r.db.WithContext(ctx).
			Model(&models.LikedPost{}).
			Select("post_id, COUNT(*) AS count").
			Where("post_id IN ?", chunk).
			Group("post_id").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.PostID] = row.Count
		}
	}
	return counts, nil
}

// LikedPostIDs returns the subset of postIDs that userID has liked.
func (r *postRepository) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	for _, chunk := range lo.Chunk(lo.Uniq(postIDs), maxInClause) {
		var ids []string
		err := r.db.WithContext(ctx).
			Model(&models.LikedPost{}).
			Where("user_id = ? AND post_id IN ?", userID, chunk).
			Distinct().
			Pluck("post_id", &ids).Error
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			liked[id] = true
		}
	}
	return liked, nil
}

// CreateLike records a like. Liking the same post twice keeps the first record and returns it.
func (r *postRepository) CreateLike(ctx context.Context, postID, userID string) (*models.LikedPost, error) {
	like := &models.LikedPost{PostID: postID, UserID: userID}

	// Use OnConflict to collapse duplicate likes onto the existing row
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(like)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return like, nil
	}

	var existing models.LikedPost
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Deleted between the conflicting insert and this read.
		return like, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// DeleteLikes removes every like by userID on postID and reports how many rows went away.
func (r *postRepository) DeleteLikes(ctx context.Context, postID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.LikedPost{})
	return result.RowsAffected, result.Error
}
