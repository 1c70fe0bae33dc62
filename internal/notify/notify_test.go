package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbench/internal/benchmark"
	"microbench/internal/telemetry"
)

func okCell(name string, stable bool) benchmark.Result {
	r := benchmark.Result{
		Name:   name,
		Status: benchmark.StatusOK,
		Stable: stable,
		Stats:  &benchmark.Statistics{CleanMean: 10},
	}
	if !stable {
		r.Warning = &benchmark.InstabilityWarning{Reason: benchmark.ReasonHighVariation, CV: 0.09, Threshold: 0.05}
	}
	return r
}

func cleanRun() benchmark.Run {
	return benchmark.Run{
		ID:      "0123456789abcdef",
		Suite:   "branch",
		Commit:  "abc123",
		Results: []benchmark.Result{okCell("A", true), okCell("B", true)},
	}
}

func TestHeadline(t *testing.T) {
	run := cleanRun()
	assert.Equal(t, ":white_check_mark: *branch* run `01234567`: 2 cells, 2 ok, 0 unstable, 0 aborted (commit abc123)", Headline(run, nil))
	assert.False(t, HasIssues(run, nil))
	assert.Empty(t, Details(run, nil))

	run.Results = append(run.Results, okCell("C", false))
	assert.True(t, strings.HasPrefix(Headline(run, nil), ":warning:"))
	assert.True(t, HasIssues(run, nil))

	run.Results = append(run.Results, benchmark.Result{Name: "D", Status: benchmark.StatusAborted, Error: "boom"})
	assert.True(t, strings.HasPrefix(Headline(run, nil), ":x:"))
	details := Details(run, nil)
	assert.Contains(t, details, "`C` UNSTABLE")
	assert.Contains(t, details, "`D` ABORTED: boom")
}

func TestHeadlineRegressions(t *testing.T) {
	prev := cleanRun()
	curr := cleanRun()
	curr.Results = []benchmark.Result{okCell("A", true), okCell("B", true)}
	curr.Results[0].Stats = &benchmark.Statistics{CleanMean: 20}

	comps := benchmark.Compare(prev, curr, 5)
	line := Headline(curr, comps)
	assert.True(t, strings.HasPrefix(line, ":x:"), line)
	assert.Contains(t, line, "1 regressions")
	assert.Contains(t, Details(curr, comps), "regression A:")
}

type slackServer struct {
	mu    sync.Mutex
	posts []map[string]string
}

func (s *slackServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		s.posts = append(s.posts, map[string]string{
			"path":      r.URL.Path,
			"channel":   r.FormValue("channel"),
			"text":      r.FormValue("text"),
			"thread_ts": r.FormValue("thread_ts"),
		})
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000000.000100"}`))
	})
}

func newTestNotifier(t *testing.T, onlyOnIssues bool) (*SlackNotifier, *slackServer) {
	t.Helper()
	s := &slackServer{}
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	n, err := NewSlackNotifier(SlackConfig{Token: "xoxb-test", Channel: "#perf", OnlyOnIssues: onlyOnIssues},
		telemetry.Discard(), slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, err)
	return n, s
}

func TestSlackNotifier_CleanRun(t *testing.T) {
	n, s := newTestNotifier(t, false)
	require.NoError(t, n.NotifyRun(context.Background(), cleanRun(), nil))

	require.Len(t, s.posts, 1)
	assert.Equal(t, "/chat.postMessage", s.posts[0]["path"])
	assert.Equal(t, "#perf", s.posts[0]["channel"])
	assert.Contains(t, s.posts[0]["text"], "2 ok")
}

func TestSlackNotifier_ThreadsDetails(t *testing.T) {
	n, s := newTestNotifier(t, false)
	run := cleanRun()
	run.Results = append(run.Results, benchmark.Result{Name: "D", Status: benchmark.StatusAborted, Error: "boom"})

	require.NoError(t, n.NotifyRun(context.Background(), run, nil))
	require.Len(t, s.posts, 2)
	assert.Equal(t, "", s.posts[0]["thread_ts"])
	assert.Equal(t, "1700000000.000100", s.posts[1]["thread_ts"])
	assert.Contains(t, s.posts[1]["text"], "boom")
}

func TestSlackNotifier_OnlyOnIssues(t *testing.T) {
	n, s := newTestNotifier(t, true)
	require.NoError(t, n.NotifyRun(context.Background(), cleanRun(), nil))
	assert.Empty(t, s.posts)
}

func TestSlackNotifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	n, err := NewSlackNotifier(SlackConfig{Token: "xoxb-test"}, telemetry.Discard(), slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, err)
	err = n.NotifyRun(context.Background(), cleanRun(), nil)
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestNewSlackNotifier_MissingToken(t *testing.T) {
	_, err := NewSlackNotifier(SlackConfig{}, nil)
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NoError(t, n.NotifyRun(context.Background(), cleanRun(), nil))
}
