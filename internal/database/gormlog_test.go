package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) { return `SELECT * FROM "posts"`, 2 }

	tests := []struct {
		name    string
		level   logger.LogLevel
		elapsed time.Duration
		err     error
		want    string
	}{
		{"error", logger.Warn, 0, errors.New("relation missing"), "sql error"},
		{"not found is quiet", logger.Warn, 0, gorm.ErrRecordNotFound, ""},
		{"slow", logger.Warn, time.Second, nil, "slow sql"},
		{"fast", logger.Warn, 0, nil, ""},
		{"info logs everything", logger.Info, 0, nil, "sql"},
		{"silent", logger.Silent, time.Second, errors.New("x"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, nil)), 100*time.Millisecond).LogMode(tt.level)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), query, tt.err)

			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, tt.want, rec["msg"])
			assert.Equal(t, `SELECT * FROM "posts"`, rec["sql"])
			assert.Equal(t, float64(2), rec["rows"])
		})
	}
}

func TestGormLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewTextHandler(&buf, nil)), 0)

	l.Info(context.Background(), "hidden %d", 1)
	l.Warn(context.Background(), "replaced %s", "callback")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "replaced callback"))
}
