package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentscout/scoutctl/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogConfig{Level: "debug", Format: "json"})

	logger.Debug("poll", "job_id", "abc", "attempt", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "poll", rec["msg"])
	assert.Equal(t, "abc", rec["job_id"])
	assert.EqualValues(t, 2, rec["attempt"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, config.LogConfig{Level: "warn", Format: "text"})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Same(t, l, OrDiscard(l))
}

func TestSyncWriter_SharedByLoggerAndDirectWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewSyncWriter(&buf)
	assert.Same(t, w, NewSyncWriter(w))

	logger := New(w, config.LogConfig{Level: "info", Format: "text"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			logger.Info("poll", "n", i)
		}()
		go func() {
			defer wg.Done()
			_, _ = w.Write([]byte("\rspinner\n"))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 16)
	for _, line := range lines {
		assert.True(t, strings.Contains(line, "msg=poll") || line == "\rspinner", line)
	}
}
