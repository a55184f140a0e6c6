package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, SetupLogger(&buf, "debug", "json"))

	LogInfo("package reconciled", Fields{"package_id": "P1", "status": "review"})
	assert.Contains(t, buf.String(), `"package_id":"P1"`)
	assert.Contains(t, buf.String(), `"status":"review"`)

	assert.Error(t, SetupLogger(&buf, "loud", "json"))
	assert.Error(t, SetupLogger(&buf, "info", "xml"))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
