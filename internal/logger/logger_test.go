package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"auto_update_reviews/config"
)

func TestManagerSplitsInfoAndErrorFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LogDirectory: dir, LogLevel: "debug"}

	m, err := New(cfg)
	require.NoError(t, err)

	m.Logger().Info("pipeline finished")
	m.Logger().Error("pipeline failed")
	require.NoError(t, m.Close())

	info, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	errs, err := os.ReadFile(filepath.Join(dir, "app.error.log"))
	require.NoError(t, err)

	assert.Contains(t, string(info), "pipeline finished")
	assert.NotContains(t, string(info), "pipeline failed")
	assert.Contains(t, string(errs), "pipeline failed")
	assert.NotContains(t, string(errs), "pipeline finished")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestGlobalFallsBackToNop(t *testing.T) {
	require.NoError(t, Close())
	assert.NotNil(t, L())
}
