package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"microbench/internal/config"
	"microbench/internal/telemetry"
)

var exit = os.Exit

var (
	cfgFile   string
	logCloser = func() error { return nil }
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "microbench",
		Short: "Run micro-benchmark matrices with calibrated timing",
		Long: `microbench runs matrices of micro-benchmark kernels. Every cell is
calibrated until one timed batch outlasts the clock's resolution, sampled
repeatedly, and summarized after outlier rejection. Noisy cells are flagged
rather than hidden.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	viper.BindPFlag(config.KeyVerbose, root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newSuitesCmd(),
		newCompareCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newInitCmd(),
	)
	return root
}

func init() {
	cobra.OnInitialize(initConfig)
}

// Execute runs the root command. It exits non-zero on any error,
// including a run with aborted cells.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	err := rootCmd.Execute()
	logCloser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}

	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}

	_, logCloser = telemetry.InitLogger(os.Stderr, logOptions())
}

func logOptions() telemetry.LogOptions {
	return telemetry.LogOptions{
		Debug:  viper.GetBool(config.KeyVerbose),
		File:   viper.GetString(config.KeyLogFile),
		Format: viper.GetString(config.KeyLogFormat),
	}
}
