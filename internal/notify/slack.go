package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"microbench/internal/benchmark"
)

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	Token        string
	Channel      string
	OnlyOnIssues bool
}

// SlackNotifier posts run summaries to a Slack channel. The headline is
// the parent message; per-cell details go in its thread.
type SlackNotifier struct {
	client       *slack.Client
	channelID    string
	onlyOnIssues bool
	logger       *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier. Extra options are passed to
// the Slack client.
func NewSlackNotifier(cfg SlackConfig, logger *slog.Logger, opts ...slack.Option) (*SlackNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack bot token is not configured")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "#benchmarks"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{
		client:       slack.New(cfg.Token, opts...),
		channelID:    channel,
		onlyOnIssues: cfg.OnlyOnIssues,
		logger:       logger,
	}, nil
}

// NotifyRun posts the run summary.
func (s *SlackNotifier) NotifyRun(ctx context.Context, run benchmark.Run, comps []benchmark.Comparison) error {
	if s.onlyOnIssues && !HasIssues(run, comps) {
		s.logger.Debug("skipping slack notification, run has no issues", "run", run.ID)
		return nil
	}

	_, ts, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(Headline(run, comps), false))
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	s.logger.Info("posted run summary to slack", "channel", s.channelID, "ts", ts)

	details := Details(run, comps)
	if details == "" {
		return nil
	}
	_, _, err = s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(details, false),
		slack.MsgOptionTS(ts))
	if err != nil {
		return fmt.Errorf("failed to send slack thread reply: %w", err)
	}
	return nil
}
