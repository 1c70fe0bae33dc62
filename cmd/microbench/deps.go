package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/viper"

	"microbench/internal/benchmark"
	"microbench/internal/config"
	"microbench/internal/db"
	"microbench/internal/host"
	"microbench/internal/notify"
	"microbench/internal/report"
)

// Seams replaced by tests.
var (
	newStoreFunc = func() (benchmark.Store, error) {
		return db.NewStore(db.StoreConfig{
			Backend: viper.GetString(config.KeyHistoryBackend),
			Path:    viper.GetString(config.KeyHistoryPath),
			DSN:     viper.GetString(config.KeyHistoryDSN),
		})
	}

	newNotifierFunc = func(logger *slog.Logger) (notify.Notifier, error) {
		if !viper.GetBool(config.KeySlackEnabled) {
			return notify.Nop{}, nil
		}
		return notify.NewSlackNotifier(notify.SlackConfig{
			Token:        os.Getenv("SLACK_BOT_USER_TOKEN"),
			Channel:      viper.GetString(config.KeySlackChannel),
			OnlyOnIssues: viper.GetBool(config.KeySlackOnlyIssues),
		}, logger)
	}

	askOneFunc     = survey.AskOne
	hostInfoFunc   = host.Collect
	newRunID       = uuid.NewString
	now            = time.Now
	isTerminalFunc = report.IsTerminal

	// runExecCommand allows mocking git in tests.
	runExecCommand = exec.Command
)

func gitCommit() (string, error) {
	cmd := runExecCommand("git", "rev-parse", "--short", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// openStore opens the history store and hands it to fn.
func openStore(fn func(benchmark.Store) error) error {
	store, err := newStoreFunc()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func render(ctx context.Context, w io.Writer, f report.Format, rep *report.Report, title string) error {
	return report.Write(w, f, rep.Records(ctx), report.Options{
		Styled: isTerminalFunc(w),
		Title:  title,
		Axes:   rep.Axes(),
	})
}
