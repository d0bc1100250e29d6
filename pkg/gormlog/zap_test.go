package gormlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestTrace_Levels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := New(zap.New(core).Sugar(), WithSlowThreshold(50*time.Millisecond), WithLogLevel(gormlogger.Warn))
	sql := func() (string, int64) { return "SELECT 1", 1 }

	lg.Trace(context.Background(), time.Now(), sql, nil)
	require.Equal(t, 0, logs.Len(), "fast queries are not logged at warn level")

	lg.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("gorm_slow").Len())

	lg.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	require.Equal(t, 0, logs.FilterMessage("gorm_trace").Len())

	lg.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 1, logs.FilterMessage("gorm_trace").Len())
}

func TestTrace_SilentSkipsEverything(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := New(zap.New(core).Sugar()).LogMode(gormlogger.Silent)

	lg.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	require.Equal(t, 0, logs.Len())
}

func TestShortCaller(t *testing.T) {
	require.Equal(t, "internal/platform/db/db.go:38", shortCaller("/home/dev/repairdesk/internal/platform/db/db.go:38"))
	require.Equal(t, "a/b/c.go:1", shortCaller("/x/y/a/b/c.go:1"))
	require.Equal(t, "", shortCaller(""))
}
