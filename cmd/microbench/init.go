package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"microbench/internal/config"
	"microbench/internal/ui"
)

func newInitCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := ui.ConfigWizard(askOneFunc, config.Harness())
			if err != nil {
				return err
			}

			viper.Set(config.KeyWarmupThresholdMs, answers.WarmupThresholdMs)
			viper.Set(config.KeySampleCount, answers.SampleCount)
			viper.Set(config.KeyOutlierK, answers.OutlierK)
			viper.Set(config.KeyInstabilityCVThreshold, answers.CVThreshold)
			viper.Set(config.KeyParallelism, answers.Parallelism)
			viper.Set(config.KeyHistoryBackend, answers.HistoryBackend)
			if answers.HistoryPath != "" {
				viper.Set(config.KeyHistoryPath, answers.HistoryPath)
			}
			if answers.HistoryDSN != "" {
				viper.Set(config.KeyHistoryDSN, answers.HistoryDSN)
			}
			viper.Set(config.KeyMetricsEnabled, answers.EnableMetrics)
			viper.Set(config.KeySlackEnabled, answers.EnableSlack)
			if answers.EnableSlack {
				viper.Set(config.KeySlackChannel, answers.SlackChannel)
			}

			if err := config.ValidateConfig(); err != nil {
				return err
			}
			if path == "" {
				path = cfgFile
			}
			if path == "" {
				path = "config.yaml"
			}
			if err := config.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)
			if answers.EnableSlack {
				fmt.Fprintln(cmd.OutOrStdout(), "Set SLACK_BOT_USER_TOKEN in the environment or .env to enable Slack.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "output", "", "Where to write the config (default: --config or ./config.yaml)")
	return cmd
}
