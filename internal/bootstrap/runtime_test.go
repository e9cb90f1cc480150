package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"emojifeed/internal/config"
	"emojifeed/internal/identity"
	"emojifeed/internal/models"
	"emojifeed/internal/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T, redisURL string) *config.Config {
	return &config.Config{
		Env:             "development",
		DBDriver:        "sqlite",
		SQLitePath:      filepath.Join(t.TempDir(), "feed.db"),
		RedisURL:        redisURL,
		RateLimitMax:    3,
		RateLimitWindow: time.Minute,
		IdentityTimeout: time.Second,
	}
}

func TestInitRuntime_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rt, err := InitRuntime(context.Background(), sqliteConfig(t, mr.Addr()), Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.NotNil(t, rt.Redis)
	assert.IsType(t, &ratelimit.RedisLimiter{}, rt.Limiter)
	assert.IsType(t, &identity.MemoryDirectory{}, rt.Directory)
	assert.True(t, rt.DB.Migrator().HasTable(&models.Post{}))
}

func TestInitRuntime_FallsBackWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rt, err := InitRuntime(context.Background(), sqliteConfig(t, addr), Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Redis)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, rt.Limiter)
}

func TestInitRuntime_ProductionRequiresRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := sqliteConfig(t, addr)
	cfg.Env = "production"
	cfg.IdentityURL = "http://identity.internal"

	_, err := InitRuntime(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestInitRuntime_ClosesDatabaseOnFailure(t *testing.T) {
	var opened *gorm.DB
	prev := connect
	connect = func(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
		db, err := prev(ctx, cfg)
		opened = db
		return db, err
	}
	t.Cleanup(func() { connect = prev })

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := sqliteConfig(t, addr)
	cfg.Env = "production"

	rt, err := InitRuntime(context.Background(), cfg, Options{})
	require.Error(t, err)
	assert.Nil(t, rt)

	require.NotNil(t, opened)
	sqlDB, err := opened.DB()
	require.NoError(t, err)
	assert.ErrorContains(t, sqlDB.Ping(), "database is closed")
}

func TestRuntime_CloseWithoutRedis(t *testing.T) {
	assert.NotPanics(t, func() { (&Runtime{}).Close() })
}

func TestInitRuntime_HTTPDirectory(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := sqliteConfig(t, mr.Addr())
	cfg.IdentityURL = "http://identity.internal"

	rt, err := InitRuntime(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &identity.HTTPDirectory{}, rt.Directory)
	assert.Equal(t, rt.Directory, rt.Deps().Directory)
}

func TestInitRuntime_SeedDemo(t *testing.T) {
	mr := miniredis.RunT(t)

	rt, err := InitRuntime(context.Background(), sqliteConfig(t, mr.Addr()), Options{SeedDemo: true, DemoProfiles: 3})
	require.NoError(t, err)
	defer rt.Close()

	var posts []models.Post
	require.NoError(t, rt.DB.Find(&posts).Error)
	assert.Len(t, posts, 15)

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	found, err := rt.Directory.ResolveByIDs(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, found, 3)
}
