package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"emojifeed/internal/database"
	"emojifeed/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLite(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedPost(t *testing.T, db *gorm.DB, id, author string, createdAt time.Time) {
	require.NoError(t, db.Create(&models.Post{
		ID:        id,
		AuthorID:  author,
		Content:   "😀",
		CreatedAt: createdAt,
	}).Error)
}

func TestPostRepository_CreateAndGetByID(t *testing.T) {
	repo := NewPostRepository(setupSQLite(t))
	ctx := context.Background()

	post := &models.Post{AuthorID: "user_a", Content: "🎉"}
	require.NoError(t, repo.Create(ctx, post))
	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "user_a", got.AuthorID)
	assert.Equal(t, "🎉", got.Content)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_ListOrdering(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedPost(t, db, "p1", "user_a", base)
	seedPost(t, db, "p2", "user_b", base.Add(time.Minute))
	seedPost(t, db, "p3", "user_a", base.Add(2*time.Minute))

	posts, err := repo.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"p3", "p2", "p1"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	posts, err = repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	byAuthor, err := repo.ListByAuthor(ctx, "user_a", 100)
	require.NoError(t, err)
	require.Len(t, byAuthor, 2)
	assert.Equal(t, "p3", byAuthor[0].ID)
	assert.Equal(t, "p1", byAuthor[1].ID)

	byAuthor, err = repo.ListByAuthor(ctx, "user_a", 1)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 1)

	none, err := repo.ListByAuthor(ctx, "nobody", 100)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_Likes(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	now := time.Now()
	seedPost(t, db, "p1", "user_a", now)
	seedPost(t, db, "p2", "user_a", now)

	first, err := repo.CreateLike(ctx, "p1", "user_b")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	// A second like by the same user collapses onto the first.
	again, err := repo.CreateLike(ctx, "p1", "user_b")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = repo.CreateLike(ctx, "p1", "user_c")
	require.NoError(t, err)

	// Likes on unknown posts are accepted.
	_, err = repo.CreateLike(ctx, "ghost", "user_b")
	require.NoError(t, err)

	counts, err := repo.CountLikes(ctx, []string{"p1", "p2", "p1"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["p1"])
	_, hasP2 := counts["p2"]
	assert.False(t, hasP2)

	liked, err := repo.LikedPostIDs(ctx, "user_b", []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p1": true}, liked)

	deleted, err := repo.DeleteLikes(ctx, "p1", "user_b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.DeleteLikes(ctx, "p1", "user_b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	counts, err = repo.CountLikes(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["p1"])
}

func TestPostRepository_EmptyInputs(t *testing.T) {
	repo := NewPostRepository(setupSQLite(t))
	ctx := context.Background()

	counts, err := repo.CountLikes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)

	liked, err := repo.LikedPostIDs(ctx, "user_b", nil)
	require.NoError(t, err)
	assert.Empty(t, liked)
}

func TestPostRepository_DeleteLikes_ReportsRowsAffected(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "liked_posts" WHERE post_id = $1 AND user_id = $2`)).
		WithArgs("p1", "user_b").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	deleted, err := repo.DeleteLikes(context.Background(), "p1", "user_b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_QueryErrors(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock)
		call         func(repo PostRepository) error
	}{
		{
			name: "List",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY created_at DESC,id DESC LIMIT $1`)).
					WillReturnError(dbErr)
			},
			call: func(repo PostRepository) error {
				_, err := repo.List(context.Background(), 100)
				return err
			},
		},
		{
			name: "ListByAuthor",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE author_id = $1`)).
					WillReturnError(dbErr)
			},
			call: func(repo PostRepository) error {
				_, err := repo.ListByAuthor(context.Background(), "user_a", 4)
				return err
			},
		},
		{
			name: "CountLikes",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT post_id, COUNT(*) AS count FROM "liked_posts"`)).
					WillReturnError(dbErr)
			},
			call: func(repo PostRepository) error {
				_, err := repo.CountLikes(context.Background(), []string{"p1"})
				return err
			},
		},
		{
			name: "LikedPostIDs",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "post_id" FROM "liked_posts"`)).
					WillReturnError(dbErr)
			},
			call: func(repo PostRepository) error {
				_, err := repo.LikedPostIDs(context.Background(), "user_b", []string{"p1"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.mockBehavior(mock)

			err := tt.call(NewPostRepository(db))
			assert.ErrorIs(t, err, dbErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
