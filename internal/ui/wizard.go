package ui

import (
	"fmt"
	"strconv"

	"github.com/AlecAivazis/survey/v2"

	"microbench/internal/benchmark"
)

// AskOneFunc matches survey.AskOne so tests can script answers.
type AskOneFunc func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error

// WizardAnswers are the settings collected by ConfigWizard.
type WizardAnswers struct {
	WarmupThresholdMs int64
	SampleCount       int
	OutlierK          float64
	CVThreshold       float64
	Parallelism       int
	HistoryBackend    string
	HistoryPath       string
	HistoryDSN        string
	EnableMetrics     bool
	EnableSlack       bool
	SlackChannel      string
}

// ConfigWizard asks for the common options, offering d as defaults.
func ConfigWizard(ask AskOneFunc, d benchmark.Config) (WizardAnswers, error) {
	var a WizardAnswers
	var err error

	if a.WarmupThresholdMs, err = askInt(ask, "Minimum timed batch (ms):", d.MinInterval.Milliseconds()); err != nil {
		return a, err
	}
	samples, err := askInt(ask, "Samples per cell:", int64(d.SampleCount))
	if err != nil {
		return a, err
	}
	if samples < 2 {
		return a, fmt.Errorf("samples per cell must be at least 2, got %d", samples)
	}
	a.SampleCount = int(samples)

	if a.OutlierK, err = askFloat(ask, "Outlier rejection threshold (standard deviations):", d.OutlierK); err != nil {
		return a, err
	}
	if a.CVThreshold, err = askFloat(ask, "Instability threshold (coefficient of variation, e.g. 0.05):", d.CVThreshold); err != nil {
		return a, err
	}
	parallel, err := askInt(ask, "Cells to run in parallel (1 = sequential):", int64(d.Parallelism))
	if err != nil {
		return a, err
	}
	a.Parallelism = int(parallel)

	err = ask(&survey.Select{
		Message: "Where should run history be stored?",
		Options: []string{"file", "sqlite", "postgres"},
		Default: "file",
	}, &a.HistoryBackend)
	if err != nil {
		return a, err
	}

	switch a.HistoryBackend {
	case "postgres":
		err = ask(&survey.Password{Message: "Postgres connection string:"}, &a.HistoryDSN)
	case "sqlite":
		err = ask(&survey.Input{Message: "SQLite database path:", Default: ".microbench/history.db"}, &a.HistoryPath)
	default:
		err = ask(&survey.Input{Message: "History file path:", Default: ".microbench/history.json"}, &a.HistoryPath)
	}
	if err != nil {
		return a, err
	}

	err = ask(&survey.Confirm{Message: "Serve Prometheus metrics during runs?", Default: false}, &a.EnableMetrics)
	if err != nil {
		return a, err
	}

	err = ask(&survey.Confirm{Message: "Post run summaries to Slack?", Default: false}, &a.EnableSlack)
	if err != nil {
		return a, err
	}
	if a.EnableSlack {
		err = ask(&survey.Input{Message: "Slack Channel:", Default: "#benchmarks"}, &a.SlackChannel)
		if err != nil {
			return a, err
		}
	}
	return a, nil
}

func askInt(ask AskOneFunc, msg string, def int64) (int64, error) {
	var s string
	if err := ask(&survey.Input{Message: msg, Default: strconv.FormatInt(def, 10)}, &s); err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a whole number", msg, s)
	}
	return v, nil
}

func askFloat(ask AskOneFunc, msg string, def float64) (float64, error) {
	var s string
	if err := ask(&survey.Input{Message: msg, Default: strconv.FormatFloat(def, 'g', -1, 64)}, &s); err != nil {
		return 0, err
	}
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", msg, s)
	}
	return v, nil
}
