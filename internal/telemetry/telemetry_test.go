package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "bench.log")
	logger, closeLog := InitLogger(&buf, LogOptions{File: logFile})

	logger.Debug("hidden")
	slog.Info("cell complete", "cell", "Insert/Fixed/8")
	require.NoError(t, closeLog())

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "cell complete", record["msg"])
	assert.Equal(t, "Insert/Fixed/8", record["cell"])
	assert.NotContains(t, buf.String(), "hidden")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cell complete")
}

func TestInitLoggerTextDebug(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, closeLog := InitLogger(&buf, LogOptions{Debug: true, Format: "TEXT"})
	defer closeLog()

	ForRun(logger, "run-1", "branch").Debug("calibration round", "round", 2)
	slog.Error("cell failed", "error", io.ErrUnexpectedEOF)

	out := buf.String()
	assert.Contains(t, out, "msg=\"calibration round\"")
	assert.Contains(t, out, "run=run-1 suite=branch round=2")
	assert.Contains(t, out, "unexpected EOF")
}

func TestInitLoggerBadFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, closeLog := InitLogger(&buf, LogOptions{File: filepath.Join(t.TempDir(), "missing", "bench.log")})
	assert.NoError(t, closeLog())

	logger.Info("still logging")
	assert.Contains(t, buf.String(), "failed to open log file")
	assert.Contains(t, buf.String(), "still logging")
}

func TestParseLogFormat(t *testing.T) {
	for in, want := range map[string]string{"": "json", "json": "json", " Text ": "text"} {
		got, err := ParseLogFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLogFormat("xml")
	assert.ErrorContains(t, err, "unknown log format")
}

func TestMultiHandlerRespectsLevels(t *testing.T) {
	var info, debug bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}}
	logger := slog.New(h).With("suite", "containers").WithGroup("cell")

	logger.Debug("round", "n", 8)
	assert.Empty(t, info.String())
	assert.Contains(t, debug.String(), "suite=containers")
	assert.Contains(t, debug.String(), "cell.n=8")
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "microbench_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv, err := StartMetricsServer("127.0.0.1:0", reg)
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "microbench_test_total 1"))
}
