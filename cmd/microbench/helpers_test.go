package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"microbench/internal/benchmark"
	"microbench/internal/host"
	"microbench/internal/kernel"
	"microbench/internal/matrix"
	"microbench/internal/notify"
	"microbench/internal/workload"
)

func init() {
	workload.Register(workload.Suite{
		Name:        "clitest",
		Description: "One passing and one failing cell",
		Build: func(seed uint64) (*matrix.Matrix, error) {
			m, err := matrix.New(matrix.Axis{Name: "kind", Values: []string{"ok", "fail"}})
			if err != nil {
				return nil, err
			}
			if err := m.Register(kernel.Simple(kernel.Pure(func() uint64 { return seed })), "ok"); err != nil {
				return nil, err
			}
			fail := func() (uint64, error) { return 0, errors.New("boom") }
			if err := m.Register(kernel.Simple(fail), "fail"); err != nil {
				return nil, err
			}
			return m, nil
		},
	})
}

type memStore struct {
	runs   []benchmark.Run
	closed bool
}

func (m *memStore) Save(run benchmark.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) Load(id string) (*benchmark.Run, error) { return benchmark.FindRun(m.runs, id) }

func (m *memStore) LoadLatest() (*benchmark.Run, error) {
	if len(m.runs) == 0 {
		return nil, nil
	}
	return &m.runs[len(m.runs)-1], nil
}

func (m *memStore) LoadAll() ([]benchmark.Run, error) {
	return append([]benchmark.Run(nil), m.runs...), nil
}

func (m *memStore) Close() error {
	m.closed = true
	return nil
}

type recordingNotifier struct {
	runs  []benchmark.Run
	comps [][]benchmark.Comparison
}

func (r *recordingNotifier) NotifyRun(_ context.Context, run benchmark.Run, comps []benchmark.Comparison) error {
	r.runs = append(r.runs, run)
	r.comps = append(r.comps, comps)
	return nil
}

type testEnv struct {
	store    *memStore
	notifier *recordingNotifier
}

// setupTest isolates viper, the working directory and every seam, and
// makes calibration fast.
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("MICROBENCH_WARMUP_THRESHOLD_MS", "1")
	t.Setenv("MICROBENCH_SAMPLE_COUNT", "3")
	t.Setenv("SLACK_BOT_USER_TOKEN", "")

	env := &testEnv{store: &memStore{}, notifier: &recordingNotifier{}}

	oldStore, oldNotifier := newStoreFunc, newNotifierFunc
	oldHost, oldID, oldExec, oldTerm := hostInfoFunc, newRunID, runExecCommand, isTerminalFunc
	oldAsk, oldCfg := askOneFunc, cfgFile
	t.Cleanup(func() {
		newStoreFunc, newNotifierFunc = oldStore, oldNotifier
		hostInfoFunc, newRunID, runExecCommand, isTerminalFunc = oldHost, oldID, oldExec, oldTerm
		askOneFunc, cfgFile = oldAsk, oldCfg
	})

	newStoreFunc = func() (benchmark.Store, error) { return env.store, nil }
	newNotifierFunc = func(*slog.Logger) (notify.Notifier, error) { return env.notifier, nil }
	hostInfoFunc = func(context.Context) host.Info { return host.Info{Hostname: "bench-host", LogicalCores: 4} }
	ids := 0
	newRunID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	runExecCommand = func(name string, args ...string) *exec.Cmd {
		return exec.Command("echo", "abc1234")
	}
	isTerminalFunc = func(io.Writer) bool { return false }
	cfgFile = ""
	return env
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	oldExit := exit
	exit = func(code int) {
		if code != 0 {
			panic(fmt.Sprintf("exit-%d", code))
		}
	}
	defer func() { exit = oldExit }()

	b := new(bytes.Buffer)
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if s, ok := r.(string); ok && strings.HasPrefix(s, "exit-") {
					err = errors.New(s)
					return
				}
				panic(r)
			}
		}()
		root.SetArgs(args)
		root.SetOut(b)
		root.SetErr(b)
		root.SetIn(bytes.NewBufferString(""))
		err = root.Execute()
	}()
	return b.String(), err
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCommand(newRootCmd(), args...)
}
