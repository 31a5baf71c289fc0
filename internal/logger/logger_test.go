package logger

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, f func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	f()

	_ = w.Close()
	b, _ := io.ReadAll(r)
	_ = r.Close()
	return string(b)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func TestNew_ErrorCarriesStackAndService(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("rosterkeep-test", "debug")
		log.Error().Stack().Err(errors.New("boom")).Msg("it broke")
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lastLine(out)), &payload))
	require.Equal(t, "rosterkeep-test", payload["service"])
	require.Equal(t, "error", payload["level"])
	require.Contains(t, payload, "stack")
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("rosterkeep-test", "warn")
		log.Debug().Msg("invisible")
		log.Warn().Msg("visible")
	})
	require.NotContains(t, out, "invisible")
	require.Contains(t, out, "visible")
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	out := captureStdout(t, func() {
		log := New("rosterkeep-test", "chatty")
		log.Info().Msg("hello")
	})
	require.Contains(t, out, "hello")
}
